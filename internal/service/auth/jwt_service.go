package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService issues and checks the bearer tokens that guard the ledger API.
type JWTService interface {
	// GenerateToken creates a signed access token for the given subject.
	// Tokens are normally issued by the identity provider; the server never
	// calls this, it exists for tests and local tooling.
	GenerateToken(ctx context.Context, subjectID uuid.UUID) (string, error)

	// ValidateToken verifies signature and expiry and returns the claims.
	// Every failure is one of the errors in this package.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims are the fields the API reads from a validated token.
type Claims struct {
	// SubjectID identifies the caller the token was issued for.
	SubjectID uuid.UUID `json:"sid,omitempty"`

	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}

// TokenValidator is the subset of JWTService the HTTP middleware needs.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}
