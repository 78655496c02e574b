package otpauth

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds every Engine setting. Start from [DefaultConfig] and override
// what differs; [Builder.Build] validates the result.
type Config struct {
	// Secret is the root secret. Link-signing keys (and the HS256 key when
	// JWT.PrivateKey is empty) are derived from it per purpose.
	Secret []byte

	JWT      JWTConfig
	OTP      OTPConfig
	Deletion DeletionConfig
	Captcha  CaptchaConfig
	Session  SessionConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Email    EmailConfig
}

/*
====================================
JWT CONFIG
====================================
*/

type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTTL      time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string

	// EnableAccessDenylist makes ValidateAccess consult a Redis denylist
	// that Logout feeds with the access token id.
	EnableAccessDenylist bool
	DenylistPrefix       string
}

/*
====================================
OTP CONFIG
====================================
*/

type OTPConfig struct {
	Digits int
	TTL    time.Duration

	MaxIssues    int
	IssueWindow  time.Duration
	MaxVerifies  int
	VerifyWindow time.Duration

	EnableIPThrottle bool
	MaxIssuesPerIP   int

	RedisPrefix     string
	RateLimitPrefix string
}

/*
====================================
DELETION CONFIG
====================================
*/

type DeletionConfig struct {
	// GracePeriod delays permanent deletion and bounds the life of
	// cancellation links.
	GracePeriod time.Duration
	// CancelURL receives the link token as its "token" query parameter.
	// Empty mails the bare token.
	CancelURL string

	SweepConcurrency int
	SweepUserTimeout time.Duration
	// NoticeRate caps final notices per second during a sweep. Zero disables pacing.
	NoticeRate  float64
	NoticeBurst int
}

type CaptchaConfig struct {
	// Enabled is the default used until settings are loaded, and whenever the
	// settings source has no value.
	Enabled bool
	// SettingsKey names the Redis hash read by the built-in settings source.
	SettingsKey string
}

type SessionConfig struct {
	RedisPrefix string
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

type EmailConfig struct {
	// ResetURL receives the reset JWT as its "token" query parameter.
	ResetURL string
	// UnsubscribeURL receives "email" and "token" query parameters.
	UnsubscribeURL string

	MaxResetRequests int
	ResetWindow      time.Duration
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. Secret and, for ed25519,
// the key pair must still be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:      15 * time.Minute,
			RefreshTTL:     7 * 24 * time.Hour,
			ResetTTL:       time.Hour,
			SigningMethod:  "hs256",
			Leeway:         5 * time.Second,
			DenylistPrefix: "otd",
		},
		OTP: OTPConfig{
			Digits:          6,
			TTL:             5 * time.Minute,
			MaxIssues:       5,
			IssueWindow:     15 * time.Minute,
			MaxVerifies:     5,
			VerifyWindow:    time.Minute,
			MaxIssuesPerIP:  30,
			RedisPrefix:     "oto",
			RateLimitPrefix: "otr",
		},
		Deletion: DeletionConfig{
			GracePeriod:      30 * 24 * time.Hour,
			SweepConcurrency: 4,
			SweepUserTimeout: 30 * time.Second,
			NoticeRate:       10,
			NoticeBurst:      1,
		},
		Captcha: CaptchaConfig{
			SettingsKey: "ots:settings",
		},
		Session: SessionConfig{
			RedisPrefix: "ots",
		},
		Audit: AuditConfig{
			BufferSize: 1024,
			DropIfFull: true,
		},
		Email: EmailConfig{
			MaxResetRequests: 3,
			ResetWindow:      time.Hour,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Secret = cloneBytes(cfg.Secret)
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if len(c.Secret) < 32 {
		return errors.New("Secret must be at least 32 bytes")
	}

	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.ResetTTL <= 0 {
		return errors.New("JWT ResetTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must exceed AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > time.Minute {
		return errors.New("JWT Leeway must be within [0, 1m]")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) > 0 && len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 PrivateKey must be at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.EnableAccessDenylist && c.JWT.DenylistPrefix == "" {
		return errors.New("JWT DenylistPrefix required when EnableAccessDenylist is true")
	}

	// OTP
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be within [6, 10]")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if c.OTP.MaxIssues <= 0 || c.OTP.IssueWindow <= 0 {
		return errors.New("OTP MaxIssues and IssueWindow must be > 0")
	}
	if c.OTP.MaxVerifies <= 0 || c.OTP.VerifyWindow <= 0 {
		return errors.New("OTP MaxVerifies and VerifyWindow must be > 0")
	}
	if c.OTP.EnableIPThrottle && c.OTP.MaxIssuesPerIP <= 0 {
		return errors.New("OTP MaxIssuesPerIP must be > 0 when EnableIPThrottle is true")
	}
	if c.OTP.RedisPrefix == "" || c.OTP.RateLimitPrefix == "" {
		return errors.New("OTP RedisPrefix and RateLimitPrefix must be set")
	}

	// Deletion
	if c.Deletion.GracePeriod <= 0 {
		return errors.New("Deletion GracePeriod must be > 0")
	}
	if c.Deletion.SweepConcurrency <= 0 {
		return errors.New("Deletion SweepConcurrency must be > 0")
	}
	if c.Deletion.SweepUserTimeout < 0 {
		return errors.New("Deletion SweepUserTimeout must be >= 0")
	}
	if c.Deletion.NoticeRate < 0 {
		return errors.New("Deletion NoticeRate must be >= 0")
	}
	if c.Deletion.NoticeRate > 0 && c.Deletion.NoticeBurst <= 0 {
		return errors.New("Deletion NoticeBurst must be > 0 when NoticeRate is set")
	}
	if err := validateURL("Deletion CancelURL", c.Deletion.CancelURL); err != nil {
		return err
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must be set")
	}
	if c.Session.RedisPrefix == c.OTP.RedisPrefix || c.Session.RedisPrefix == c.OTP.RateLimitPrefix {
		return errors.New("Session RedisPrefix must differ from OTP prefixes")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Email
	if c.Email.MaxResetRequests <= 0 || c.Email.ResetWindow <= 0 {
		return errors.New("Email MaxResetRequests and ResetWindow must be > 0")
	}
	if err := validateURL("Email ResetURL", c.Email.ResetURL); err != nil {
		return err
	}
	if err := validateURL("Email UnsubscribeURL", c.Email.UnsubscribeURL); err != nil {
		return err
	}

	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL", name)
	}
	return nil
}

// tokenLink sets token (and any extra key/value pairs) as query parameters
// of base. An empty base yields the bare token.
func tokenLink(base, token string, extra ...string) string {
	if base == "" {
		return token
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for i := 0; i+1 < len(extra); i += 2 {
		q.Set(extra[i], extra[i+1])
	}
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
