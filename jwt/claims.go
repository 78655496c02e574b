package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType is the "typ" discriminator carried by every token.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
	TypeReset   TokenType = "reset"
)

// Claims is the wire form shared by all token kinds.
type Claims struct {
	Email          string    `json:"email,omitempty"`
	EmailConfirmed bool      `json:"email_confirmed,omitempty"`
	Type           TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// Subject is the identity a token pair is minted for.
type Subject struct {
	ID             string
	Email          string
	EmailConfirmed bool
}

// AccessClaims is the typed view of a verified access token.
type AccessClaims struct {
	Subject
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RefreshClaims is the typed view of a verified refresh token. ID is the
// refresh session id.
type RefreshClaims struct {
	Subject
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ResetClaims is the typed view of a verified password-reset token.
type ResetClaims struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Pair is an access token and its refresh token, minted together.
type Pair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	// RefreshID is the jti of RefreshToken.
	RefreshID string
	// AccessID is the jti of AccessToken.
	AccessID string
}

func (c *Claims) subject() Subject {
	return Subject{ID: c.Subject, Email: c.Email, EmailConfirmed: c.EmailConfirmed}
}

func (c *Claims) times() (time.Time, time.Time) {
	var iat, exp time.Time
	if c.IssuedAt != nil {
		iat = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	return iat, exp
}
