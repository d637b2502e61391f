package authcore

import "context"

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Reason:    auditReason(err),
		Metadata:  metadata,
	}

	e.audit.Emit(ctx, event)
}

// auditReason prefers the internal reason of an authentication failure and
// falls back to the error kind.
func auditReason(err error) string {
	if err == nil {
		return ""
	}
	if reason := failureReason(err); reason != "" {
		return reason
	}
	return KindOf(err).String()
}
