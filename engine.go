package otpauth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MrEthical07/otpauth/internal"
	internalaudit "github.com/MrEthical07/otpauth/internal/audit"
	"github.com/MrEthical07/otpauth/internal/flows"
	"github.com/MrEthical07/otpauth/internal/otp"
	"github.com/MrEthical07/otpauth/internal/rate"
	"github.com/MrEthical07/otpauth/internal/stores"
	"github.com/MrEthical07/otpauth/jwt"
	"github.com/MrEthical07/otpauth/linktoken"
	"github.com/MrEthical07/otpauth/session"
)

const (
	opResetRequest = "reset_request"
	maxEmailLength = 254
)

// Engine runs every authentication and account lifecycle operation. Build
// one with [New] and share it; all methods are safe for concurrent use.
type Engine struct {
	config            Config
	users             UserStore
	flows             flows.Service
	issuer            *jwt.Issuer
	sessions          *session.Store
	denylist          *stores.DenylistStore
	loginCodes        *otp.Store
	changeCodes       *otp.Store
	counter           *rate.Counter
	deletionSigner    *linktoken.Signer
	unsubscribeSigner *linktoken.Signer
	settings          *SettingsCache
	audit             *internalaudit.Dispatcher
	metrics           *Metrics
	validate          *validator.Validate
	logger            *slog.Logger
	now               func() time.Time
}

// Close flushes pending audit events. The Redis client and user store are
// owned by the caller and stay open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDelivered reports audit events handed to the sink.
func (e *Engine) AuditDelivered() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Delivered()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// The snapshot is empty unless metrics are enabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// RefreshSettings reloads runtime settings from the settings source.
func (e *Engine) RefreshSettings(ctx context.Context) error {
	if e == nil || e.settings == nil {
		return ErrEngineNotReady
	}
	return e.settings.Refresh(ctx)
}

// Settings returns the cached runtime settings.
func (e *Engine) Settings() Settings {
	if e == nil {
		return Settings{}
	}
	return e.settings.Current()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > maxEmailLength {
		return "", ErrInvalidEmail
	}
	if err := e.validate.Var(email, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func (e *Engine) allowResetRequest(ctx context.Context, email string) (bool, error) {
	count, err := e.counter.Increment(ctx, opResetRequest, email, e.config.Email.ResetWindow)
	if err != nil {
		return false, err
	}
	return count <= int64(e.config.Email.MaxResetRequests), nil
}

func backendErr(err error) error {
	if err == nil {
		return ErrBackendUnavailable
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

func emailHash(email string) string {
	if email == "" {
		return ""
	}
	return internal.EmailFingerprint(email)
}
