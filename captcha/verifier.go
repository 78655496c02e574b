// Package captcha verifies CAPTCHA response tokens against a siteverify
// endpoint (reCAPTCHA, hCaptcha, and Turnstile share the protocol).
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultEndpoint = "https://www.google.com/recaptcha/api/siteverify"

var (
	ErrInvalid     = errors.New("captcha: invalid response token")
	ErrUnavailable = errors.New("captcha: verifier unavailable")
)

type Config struct {
	Endpoint string
	Secret   string
	Timeout  time.Duration
}

type HTTPVerifier struct {
	endpoint string
	secret   string
	client   *http.Client
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func NewHTTPVerifier(cfg Config) (*HTTPVerifier, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("captcha: secret is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &HTTPVerifier{
		endpoint: cfg.Endpoint,
		secret:   cfg.Secret,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Verify returns nil only when the provider accepts token.
func (v *HTTPVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if strings.TrimSpace(token) == "" {
		return ErrInvalid
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body siteverifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if !body.Success {
		return ErrInvalid
	}
	return nil
}
