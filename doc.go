// Package authcore provides the authentication and session-security engine:
// password login with lockout, TOTP enrollment and verification with
// encrypted secrets at rest, JWT access tokens, rotating refresh tokens, and
// one-time password-reset tokens.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Login flow
//
//	Login(email, password)         -> LoginResult{step, mfaToken}
//	ChangeTemporaryPassword(mfa)   -> LoginResult (only for temporary passwords)
//	SetupMFA(mfa)                  -> MFASetup{secret, otpauthUrl}
//	VerifyMFA(mfa, code)           -> Session{accessToken, refreshToken, user}
//	Refresh(refreshToken)          -> TokenPair (the presented token is revoked)
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the store interfaces, and value types. Persistence is supplied by the
// caller through [UserStore], [RefreshTokenStore] and [ResetTokenStore]
// (see store/memory and store/postgres). Transport lives in httpapi.
//
// # What this package must NOT do
//
//   - Report an infrastructure failure as bad credentials.
//   - Reveal which authentication check failed to the caller.
//   - Log or audit passwords, tokens, or TOTP secrets.
//   - Import httpapi, middleware, or a store implementation.
package authcore
