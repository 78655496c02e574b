package linktoken

import (
	"crypto/hkdf"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	keySize    = 32
	infoPrefix = "otpauth:linktoken:"

	// PurposeDeletionCancel keys the account-deletion cancellation links.
	PurposeDeletionCancel = "deletion-cancel"
	// PurposeUnsubscribe keys the marketing unsubscribe links.
	PurposeUnsubscribe = "unsubscribe"
)

var ErrShortSecret = errors.New("linktoken: root secret must be at least 32 bytes")

// Result is the outcome of [Signer.Verify]. Expired implies !Valid.
type Result struct {
	Valid     bool
	SubjectID string
	Expired   bool
}

// Signer signs and verifies tokens for a single purpose.
type Signer struct {
	key []byte
	now func() time.Time
}

// DeriveKey returns the HKDF-SHA256 subkey of rootSecret for purpose.
func DeriveKey(rootSecret []byte, purpose string) ([]byte, error) {
	if len(rootSecret) < keySize {
		return nil, ErrShortSecret
	}
	key, err := hkdf.Key(sha256.New, rootSecret, nil, infoPrefix+purpose, keySize)
	if err != nil {
		return nil, fmt.Errorf("linktoken: derive key: %w", err)
	}
	return key, nil
}

// NewSigner builds a Signer whose key is derived from rootSecret for purpose.
func NewSigner(rootSecret []byte, purpose string) (*Signer, error) {
	if strings.TrimSpace(purpose) == "" {
		return nil, errors.New("linktoken: purpose is required")
	}
	key, err := DeriveKey(rootSecret, purpose)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key, now: time.Now}, nil
}

// WithClock replaces the clock used for timestamps and expiry checks.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	if now != nil {
		s.now = now
	}
	return s
}

// Sign returns a token for subject. With withTimestamp the current time in
// unix milliseconds is bound into the payload; without it the token is
// deterministic.
func (s *Signer) Sign(subject string, withTimestamp bool) string {
	payload := subject
	if withTimestamp {
		payload = subject + "." + strconv.FormatInt(s.now().UnixMilli(), 10)
	}
	raw := payload + "." + s.mac(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Verify checks token and, when maxAge > 0, its age. A timestamp is
// required when maxAge > 0. Timestamps in the future are accepted.
func (s *Signer) Verify(token string, maxAge time.Duration) Result {
	raw, ok := decode(token)
	if !ok {
		return Result{}
	}

	sep := strings.LastIndexByte(raw, '.')
	if sep <= 0 || sep == len(raw)-1 {
		return Result{}
	}
	payload, sig := raw[:sep], raw[sep+1:]

	if !hmac.Equal([]byte(sig), []byte(s.mac(payload))) {
		return Result{}
	}

	subject, ts, hasTS := splitTimestamp(payload)
	if subject == "" {
		return Result{}
	}

	if maxAge > 0 {
		if !hasTS {
			return Result{}
		}
		issued := time.UnixMilli(ts)
		if s.now().Sub(issued) > maxAge {
			return Result{Expired: true}
		}
	}

	return Result{Valid: true, SubjectID: subject}
}

// UnsubscribeToken returns hex(HMAC(email)) over the normalized address.
func (s *Signer) UnsubscribeToken(email string) string {
	return s.mac(normalizeEmail(email))
}

// VerifyUnsubscribe reports whether token was minted for email.
func (s *Signer) VerifyUnsubscribe(email, token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	return hmac.Equal([]byte(strings.ToLower(token)), []byte(s.UnsubscribeToken(email)))
}

func (s *Signer) mac(payload string) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

func decode(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	// Strict rejects non-zero trailing bits, so every token has exactly one
	// wire form.
	raw, err := base64.RawURLEncoding.Strict().DecodeString(token)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// splitTimestamp treats a trailing all-digit segment as unix milliseconds.
func splitTimestamp(payload string) (string, int64, bool) {
	sep := strings.LastIndexByte(payload, '.')
	if sep <= 0 || sep == len(payload)-1 {
		return payload, 0, false
	}
	ts, err := strconv.ParseInt(payload[sep+1:], 10, 64)
	if err != nil || ts < 0 {
		return payload, 0, false
	}
	return payload[:sep], ts, true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
