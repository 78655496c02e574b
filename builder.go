package otpauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	timerate "golang.org/x/time/rate"

	internalaudit "github.com/MrEthical07/otpauth/internal/audit"
	"github.com/MrEthical07/otpauth/internal/flows"
	"github.com/MrEthical07/otpauth/internal/limiters"
	"github.com/MrEthical07/otpauth/internal/otp"
	"github.com/MrEthical07/otpauth/internal/rate"
	"github.com/MrEthical07/otpauth/internal/stores"
	"github.com/MrEthical07/otpauth/internal/templates"
	"github.com/MrEthical07/otpauth/jwt"
	"github.com/MrEthical07/otpauth/linktoken"
	"github.com/MrEthical07/otpauth/session"
)

const settingsLoadTimeout = 2 * time.Second

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users    UserStore
	mailer   EmailSender
	captcha  CaptchaVerifier
	settings SettingsSource
	sink     AuditSink
	logger   *slog.Logger
	now      func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New starts from [DefaultConfig]; Secret must still be set.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// The config is copied; later changes to cfg do not reach the Builder.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client that backs codes, rate windows, sessions,
// the denylist and the default settings source.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

func (b *Builder) WithEmailSender(sender EmailSender) *Builder {
	b.mailer = sender
	return b
}

// WithCaptchaVerifier describes the withcaptchaverifier operation and its observable behavior.
//
// A verifier is required when Captcha.Enabled is set, and is otherwise only
// consulted once settings turn CAPTCHA on.
func (b *Builder) WithCaptchaVerifier(v CaptchaVerifier) *Builder {
	b.captcha = v
	return b
}

// WithSettingsSource replaces the Redis hash named by Captcha.SettingsKey.
func (b *Builder) WithSettingsSource(src SettingsSource) *Builder {
	b.settings = src
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the logger for swallowed failures. The default discards.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces the wall clock of every component. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration, wires every store and flow, and loads
// settings once. A settings load failure is logged and the configured
// defaults are used.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.mailer == nil {
		return nil, errors.New("email sender required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Captcha.Enabled && b.captcha == nil {
		return nil, errors.New("Captcha enabled requires a captcha verifier")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// -------- JWT --------
	signingKey := cfg.JWT.PrivateKey
	if cfg.JWT.SigningMethod == "hs256" && len(signingKey) == 0 {
		derived, err := linktoken.DeriveKey(cfg.Secret, "jwt")
		if err != nil {
			return nil, err
		}
		signingKey = derived
	}
	issuer, err := jwt.NewIssuer(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		ResetTTL:      cfg.JWT.ResetTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    signingKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}
	issuer.WithClock(now)

	// -------- LINK SIGNERS --------
	deletionSigner, err := linktoken.NewSigner(cfg.Secret, linktoken.PurposeDeletionCancel)
	if err != nil {
		return nil, err
	}
	deletionSigner.WithClock(now)
	unsubscribeSigner, err := linktoken.NewSigner(cfg.Secret, linktoken.PurposeUnsubscribe)
	if err != nil {
		return nil, err
	}
	unsubscribeSigner.WithClock(now)

	// -------- REDIS STORES --------
	counter := rate.NewCounter(b.redis, cfg.OTP.RateLimitPrefix)
	otpLimiter := limiters.NewOTPLimiter(counter, limiters.OTPLimiterConfig{
		MaxIssues:        cfg.OTP.MaxIssues,
		IssueWindow:      cfg.OTP.IssueWindow,
		MaxVerifies:      cfg.OTP.MaxVerifies,
		VerifyWindow:     cfg.OTP.VerifyWindow,
		EnableIPThrottle: cfg.OTP.EnableIPThrottle,
		MaxIssuesPerIP:   cfg.OTP.MaxIssuesPerIP,
	})
	otpCfg := otp.Config{Digits: cfg.OTP.Digits, TTL: cfg.OTP.TTL}
	loginCodes := otp.NewStore(
		stores.NewOTPStore(b.redis, cfg.OTP.RedisPrefix),
		otpLimiter,
		codeMailer{sender: b.mailer, render: templates.OTPCode},
		otpCfg,
	).WithClock(now)
	changeCodes := otp.NewStore(
		stores.NewOTPStore(b.redis, cfg.OTP.RedisPrefix+":chg"),
		otpLimiter,
		codeMailer{sender: b.mailer, render: templates.EmailChangeCode},
		otpCfg,
	).WithClock(now)

	sessions := session.NewStore(b.redis, cfg.Session.RedisPrefix).WithClock(now)

	var denylist *stores.DenylistStore
	if cfg.JWT.EnableAccessDenylist {
		denylist = stores.NewDenylistStore(b.redis, cfg.JWT.DenylistPrefix)
	}

	settingsSource := b.settings
	if settingsSource == nil {
		settingsSource = stores.NewSettingsHashStore(b.redis, cfg.Captcha.SettingsKey)
	}
	settings := NewSettingsCache(settingsSource, Settings{CaptchaEnabled: cfg.Captcha.Enabled})
	settings.now = now

	var noticeLimiter *timerate.Limiter
	if cfg.Deletion.NoticeRate > 0 {
		noticeLimiter = timerate.NewLimiter(timerate.Limit(cfg.Deletion.NoticeRate), cfg.Deletion.NoticeBurst)
	}

	e := &Engine{
		config:            cfg,
		users:             b.users,
		issuer:            issuer,
		sessions:          sessions,
		denylist:          denylist,
		loginCodes:        loginCodes,
		changeCodes:       changeCodes,
		counter:           counter,
		deletionSigner:    deletionSigner,
		unsubscribeSigner: unsubscribeSigner,
		settings:          settings,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.sink),
		metrics:  NewMetrics(cfg.Metrics),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		now:      now,
	}

	// -------- FLOWS --------
	var flowDenylist flows.Denylist
	if denylist != nil {
		flowDenylist = denylist
	}
	warn := logger.Warn

	e.flows = flows.New(flows.Deps{
		RequestOTP: flows.RequestOTPDeps{
			NormalizeEmail:  e.normalizeEmail,
			Users:           b.users,
			CaptchaRequired: func() bool { return settings.Current().CaptchaEnabled },
			Captcha:         b.captcha,
			Codes:           loginCodes,
		},
		Login: flows.LoginDeps{
			NormalizeEmail: e.normalizeEmail,
			Codes:          loginCodes,
			Users:          b.users,
			Tokens:         issuer,
			Sessions:       sessions,
			Now:            now,
		},
		Refresh: flows.RefreshDeps{
			Tokens:   issuer,
			Sessions: sessions,
			Users:    b.users,
			Now:      now,
			Warn:     warn,
		},
		Logout: flows.LogoutDeps{
			Tokens:   issuer,
			Sessions: sessions,
			Denylist: flowDenylist,
			Leeway:   cfg.JWT.Leeway,
			Now:      now,
		},
		EmailChange: flows.EmailChangeDeps{
			NormalizeEmail: e.normalizeEmail,
			Users:          b.users,
			Codes:          changeCodes,
			Sessions:       sessions,
			Mailer:         b.mailer,
			Warn:           warn,
		},
		Deletion: flows.DeletionDeps{
			Users:  b.users,
			Signer: deletionSigner,
			Grace:  cfg.Deletion.GracePeriod,
			CancelURL: func(token string) string {
				return tokenLink(cfg.Deletion.CancelURL, token)
			},
			Mailer: b.mailer,
			Now:    now,
			Warn:   warn,
		},
		Sweep: flows.SweepDeps{
			Users:          b.users,
			Sessions:       sessions,
			Mailer:         b.mailer,
			Concurrency:    cfg.Deletion.SweepConcurrency,
			PerUserTimeout: cfg.Deletion.SweepUserTimeout,
			NoticeLimiter:  noticeLimiter,
			Now:            now,
			Warn:           warn,
		},
		Reset: flows.ResetDeps{
			NormalizeEmail: e.normalizeEmail,
			Users:          b.users,
			Tokens:         issuer,
			ResetURL: func(token string) string {
				return tokenLink(cfg.Email.ResetURL, token)
			},
			Mailer:   b.mailer,
			Throttle: e.allowResetRequest,
			Warn:     warn,
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), settingsLoadTimeout)
	defer cancel()
	if err := settings.Refresh(ctx); err != nil {
		logger.Warn("otpauth: initial settings load failed; using defaults", "err", err)
	}

	b.built = true
	return e, nil
}

// codeMailer renders a code email and hands it to the host's sender.
type codeMailer struct {
	sender EmailSender
	render func(code string, ttl time.Duration) (templates.Message, error)
}

func (m codeMailer) SendCode(ctx context.Context, email, code string, ttl time.Duration) error {
	msg, err := m.render(code, ttl)
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, email, msg.Subject, msg.HTML)
}
