package domain

import "time"

// AccessToken is the persisted record behind an issued bearer token.
// ID equals the token's jti claim.
type AccessToken struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Active reports whether the token can still authenticate requests at now.
func (t *AccessToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// IssuedToken is what a successful login hands back to the caller.
type IssuedToken struct {
	Token     string
	TokenType string
	ExpiresAt time.Time
	Record    *AccessToken
}
