package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrInvalidToken covers bad signatures, malformed tokens, and wrong "typ".
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrTokenExpired is returned for well-formed tokens past their exp.
	ErrTokenExpired = errors.New("jwt: token expired")
)

// Config defines token lifetimes and keys.
//
// For MethodHS256 PrivateKey is the shared secret. For MethodEd25519
// PrivateKey signs and PublicKey verifies; both accept raw or PEM form.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTTL      time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

// Issuer mints and verifies tokens. It is safe for concurrent use.
type Issuer struct {
	config    Config
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	now       func() time.Time
}

// NewIssuer validates cfg and prepares keys.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must be >= access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	iss := &Issuer{config: cfg, now: time.Now}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a key of at least 32 bytes")
		}
		iss.method = jwt.SigningMethodHS256
		iss.signKey = cfg.PrivateKey
		iss.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		iss.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			iss.signKey = priv
			iss.verifyKey = priv.Public().(ed25519.PublicKey)
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			iss.verifyKey = pub
		}
		if iss.verifyKey == nil {
			return nil, errors.New("ed25519 requires private or public key")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return iss, nil
}

// WithClock replaces the clock used for minting and validation.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	if now != nil {
		i.now = now
	}
	return i
}

// AccessTTL returns the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.config.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.config.RefreshTTL }

// IssueAccess mints an access token for sub.
func (i *Issuer) IssueAccess(sub Subject) (string, *AccessClaims, error) {
	claims := i.newClaims(TypeAccess, sub.ID, i.config.AccessTTL)
	claims.Email = sub.Email
	claims.EmailConfirmed = sub.EmailConfirmed

	token, err := i.sign(claims)
	if err != nil {
		return "", nil, err
	}
	iat, exp := claims.times()
	return token, &AccessClaims{Subject: sub, ID: claims.ID, IssuedAt: iat, ExpiresAt: exp}, nil
}

// IssueRefresh mints a refresh token for sub with a fresh jti.
func (i *Issuer) IssueRefresh(sub Subject) (string, *RefreshClaims, error) {
	claims := i.newClaims(TypeRefresh, sub.ID, i.config.RefreshTTL)
	claims.Email = sub.Email
	claims.EmailConfirmed = sub.EmailConfirmed

	token, err := i.sign(claims)
	if err != nil {
		return "", nil, err
	}
	iat, exp := claims.times()
	return token, &RefreshClaims{Subject: sub, ID: claims.ID, IssuedAt: iat, ExpiresAt: exp}, nil
}

// IssueReset mints a password-reset token.
func (i *Issuer) IssueReset(userID, email string) (string, error) {
	claims := i.newClaims(TypeReset, userID, i.config.ResetTTL)
	claims.Email = email
	return i.sign(claims)
}

// IssuePair mints an access token and a refresh token for sub.
func (i *Issuer) IssuePair(sub Subject) (Pair, error) {
	access, ac, err := i.IssueAccess(sub)
	if err != nil {
		return Pair{}, err
	}
	refresh, rc, err := i.IssueRefresh(sub)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:      access,
		AccessExpiresAt:  ac.ExpiresAt,
		AccessID:         ac.ID,
		RefreshToken:     refresh,
		RefreshExpiresAt: rc.ExpiresAt,
		RefreshID:        rc.ID,
	}, nil
}

// VerifyAccess accepts only tokens with typ "access".
func (i *Issuer) VerifyAccess(token string) (*AccessClaims, error) {
	claims, err := i.parse(token, TypeAccess)
	if err != nil {
		return nil, err
	}
	iat, exp := claims.times()
	return &AccessClaims{Subject: claims.subject(), ID: claims.ID, IssuedAt: iat, ExpiresAt: exp}, nil
}

// VerifyRefresh accepts only tokens with typ "refresh" and a jti.
func (i *Issuer) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims, err := i.parse(token, TypeRefresh)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, ErrInvalidToken
	}
	iat, exp := claims.times()
	return &RefreshClaims{Subject: claims.subject(), ID: claims.ID, IssuedAt: iat, ExpiresAt: exp}, nil
}

// VerifyReset accepts only tokens with typ "reset".
func (i *Issuer) VerifyReset(token string) (*ResetClaims, error) {
	claims, err := i.parse(token, TypeReset)
	if err != nil {
		return nil, err
	}
	_, exp := claims.times()
	return &ResetClaims{UserID: claims.Subject, Email: claims.Email, ExpiresAt: exp}, nil
}

// RotateRefresh verifies old and mints a fresh pair from the identity
// embedded in it. The old token stays cryptographically valid until it
// expires; callers revoke it through the session store.
func (i *Issuer) RotateRefresh(old string) (Pair, *RefreshClaims, error) {
	oldClaims, err := i.VerifyRefresh(old)
	if err != nil {
		return Pair{}, nil, err
	}
	pair, err := i.IssuePair(oldClaims.Subject)
	if err != nil {
		return Pair{}, nil, err
	}
	return pair, oldClaims, nil
}

func (i *Issuer) newClaims(typ TokenType, subject string, ttl time.Duration) *Claims {
	now := i.now()
	claims := &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    i.config.Issuer,
		},
	}
	if i.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.config.Audience}
	}
	return claims
}

func (i *Issuer) sign(claims *Claims) (string, error) {
	if i.signKey == nil {
		return "", errors.New("issuer has no signing key")
	}
	token := jwt.NewWithClaims(i.method, claims)
	if i.config.KeyID != "" {
		token.Header["kid"] = i.config.KeyID
	}
	signed, err := token.SignedString(i.signKey)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", claims.Type, err)
	}
	return signed, nil
}

// parse is the single decode step for every token kind.
func (i *Issuer) parse(tokenStr string, want TokenType) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(i.config.Leeway))
	}
	if i.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(i.config.Issuer))
	}
	if i.config.Audience != "" {
		options = append(options, jwt.WithAudience(i.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if i.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != i.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return i.verifyKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != want || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
