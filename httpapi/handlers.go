package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/workhub/authcore"
	"github.com/workhub/authcore/middleware"
)

const forgotPasswordMessage = "if the account exists, a reset link has been sent"

type handlers struct {
	engine *authcore.Engine
	logger *slog.Logger
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type mfaTokenRequest struct {
	MFAToken string `json:"mfaToken"`
}

type verifyMFARequest struct {
	MFAToken string `json:"mfaToken"`
	Code     string `json:"code" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type changePasswordRequest struct {
	MFAToken    string `json:"mfaToken"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.engine.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stepResponse(res))
}

func (h *handlers) setupMFA(c *gin.Context) {
	var req mfaTokenRequest
	if !bindOptional(c, &req) {
		return
	}
	res, err := h.engine.SetupMFA(c.Request.Context(), mfaToken(c, req.MFAToken))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) verifyMFA(c *gin.Context) {
	var req verifyMFARequest
	if !bind(c, &req) {
		return
	}
	session, err := h.engine.VerifyMFA(c.Request.Context(), mfaToken(c, req.MFAToken), req.Code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *handlers) refresh(c *gin.Context) {
	var req refreshRequest
	if !bind(c, &req) {
		return
	}
	pair, err := h.engine.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *handlers) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.engine.ChangeTemporaryPassword(c.Request.Context(), mfaToken(c, req.MFAToken), req.NewPassword)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stepResponse(res))
}

// stepResponse renders a login step as a flag key next to the MFA token,
// e.g. {"mfaRequired":true,"mfaToken":"..."}.
func stepResponse(res authcore.LoginResult) gin.H {
	return gin.H{
		string(res.Step): true,
		"mfaToken":       res.MFAToken,
	}
}

func (h *handlers) logout(c *gin.Context) {
	var req logoutRequest
	if !bindOptional(c, &req) {
		return
	}
	principal, _ := middleware.PrincipalFrom(c)
	if err := h.engine.Logout(c.Request.Context(), principal.UserID, req.RefreshToken); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) me(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	user, err := h.engine.Me(c.Request.Context(), principal.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// forgotPassword answers 200 whatever happens after decoding, so the
// response never reveals whether the email belongs to an account.
func (h *handlers) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bind(c, &req) {
		return
	}
	if _, err := h.engine.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		_ = c.Error(err)
		h.logger.ErrorContext(c.Request.Context(), "forgot password failed", slog.Any("error", err))
	}
	c.JSON(http.StatusOK, gin.H{"message": forgotPasswordMessage})
}

func (h *handlers) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := h.engine.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// mfaToken prefers the body field and falls back to a Bearer header.
func mfaToken(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	token, _ := middleware.BearerToken(c.GetHeader("Authorization"))
	return token
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeBadRequest(c, err)
		return false
	}
	return true
}

// bindOptional accepts an empty body.
func bindOptional(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(c, err)
		return false
	}
	return true
}

func writeBadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":  "invalid request",
		"detail": err.Error(),
	})
}
