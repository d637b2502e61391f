// Package jwt signs and verifies the three token kinds issued by authcore:
// access tokens, short-lived MFA bridge tokens, and refresh tokens.
//
// Every token carries a "type" claim. Parsing decodes the claim set into one
// variant of the sealed [Claims] union and each Parse method accepts exactly
// one variant, so an access token can never stand in for an MFA token and a
// refresh token can never authenticate a request.
//
// Access and MFA tokens are signed with the access secret. Refresh tokens use
// a separate secret. All tokens are HS256.
//
// # What this package must NOT do
//
//   - Persist anything. Refresh token bookkeeping belongs to the caller.
//   - Distinguish failure causes to end users. Callers map every error here
//     to one authentication failure.
package jwt
