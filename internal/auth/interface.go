package auth

import "tenantchat/internal/domain/models"

// JWTVerifier validates session tokens issued by the identity provider.
// Middleware and the identity resolver depend on this, not on the JWKS details.
type JWTVerifier interface {
	// VerifyToken returns the parsed claims, or domain.ErrUnauthorized if the token
	// is malformed, expired, wrongly signed or not an "authenticated" session.
	VerifyToken(tokenString string) (*models.SupabaseClaims, error)

	// Close releases resources held by the verifier
	Close() error
}
