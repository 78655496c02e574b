package otpauth

import (
	"context"
	"errors"
	"html"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/otpauth/userstore/memory"
)

var (
	codePattern = regexp.MustCompile(`<strong>(\d+)</strong>`)
	hrefPattern = regexp.MustCompile(`href="([^"]+)"`)
)

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, HTML: body})
	return nil
}

func (m *captureMailer) last(t testing.TB, to string) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To == to {
			return m.sent[i]
		}
	}
	t.Fatalf("no mail sent to %s", to)
	return sentMail{}
}

func (m *captureMailer) count(to string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.To == to {
			n++
		}
	}
	return n
}

func (m *captureMailer) code(t testing.TB, to string) string {
	t.Helper()
	match := codePattern.FindStringSubmatch(m.last(t, to).HTML)
	if match == nil {
		t.Fatalf("no code in mail to %s", to)
	}
	return match[1]
}

func (m *captureMailer) linkToken(t testing.TB, to string) string {
	t.Helper()
	match := hrefPattern.FindStringSubmatch(m.last(t, to).HTML)
	if match == nil {
		t.Fatalf("no link in mail to %s", to)
	}
	u, err := url.Parse(html.UnescapeString(match[1]))
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return u.Query().Get("token")
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	engine *Engine
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	users  *memory.Store
	mailer *captureMailer
	clock  *testClock
	sink   *ChannelSink
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Deletion.CancelURL = "https://app.example/account/keep"
	cfg.Email.ResetURL = "https://app.example/reset"
	cfg.Email.UnsubscribeURL = "https://app.example/unsubscribe"
	cfg.Deletion.NoticeRate = 0
	return cfg
}

func newTestEnv(t testing.TB, mutate func(*Config, *Builder)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	users := memory.New().WithClock(clock.Now)
	mailer := &captureMailer{}
	sink := NewChannelSink(256)

	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = true
	cfg.Metrics.Enabled = true

	b := New().
		WithRedis(rdb).
		WithUserStore(users).
		WithEmailSender(mailer).
		WithAuditSink(sink).
		WithClock(clock.Now)
	if mutate != nil {
		mutate(&cfg, b)
	}
	engine, err := b.WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &testEnv{
		engine: engine,
		mr:     mr,
		rdb:    rdb,
		users:  users,
		mailer: mailer,
		clock:  clock,
		sink:   sink,
	}
}

func (env *testEnv) login(t testing.TB, email string) *LoginResult {
	t.Helper()
	ctx := context.Background()
	if _, err := env.engine.RequestOTP(ctx, email, ""); err != nil {
		t.Fatalf("RequestOTP(%s) failed: %v", email, err)
	}
	res, err := env.engine.VerifyOTPAndLogin(ctx, email, env.mailer.code(t, email))
	if err != nil {
		t.Fatalf("VerifyOTPAndLogin(%s) failed: %v", email, err)
	}
	return res
}

func wrongCode(code string) string {
	b := []byte(code)
	if b[len(b)-1] == '9' {
		b[len(b)-1] = '0'
	} else {
		b[len(b)-1]++
	}
	return string(b)
}
