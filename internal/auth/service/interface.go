// Package service generates and verifies the admin bearer token.
//
// Only the Argon2id hash of the token is configured (ADMIN_TOKEN_HASH), so a leaked
// configuration does not leak the token.
package service

// AdminTokenService generates and verifies admin tokens.
type AdminTokenService interface {
	// GenerateToken creates a random token and returns it with its PHC encoded hash. The
	// plain token is shown once and never stored.
	GenerateToken() (plainToken string, tokenHash string, err error)

	// HashToken hashes a plain token.
	HashToken(plainToken string) (string, error)

	// VerifyToken reports whether plainToken matches tokenHash. It runs in constant time.
	VerifyToken(plainToken, tokenHash string) bool
}
