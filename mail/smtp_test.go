package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newTestSender(t *testing.T, cfg SMTPConfig, err error) (*SMTPSender, *captured) {
	t.Helper()
	s, newErr := NewSMTPSender(cfg)
	require.NoError(t, newErr)

	c := &captured{}
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		c.addr, c.auth, c.from, c.to, c.msg = addr, a, from, to, string(msg)
		return err
	}
	return s, c
}

func TestSMTPSender_Send(t *testing.T) {
	s, c := newTestSender(t, SMTPConfig{Host: "smtp.example.com", From: "no-reply@example.com", Username: "u", Password: "p"}, nil)

	err := s.Send(context.Background(), "a@example.com", "Your code", "<p>123456</p>")
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", c.addr)
	assert.NotNil(t, c.auth)
	assert.Equal(t, []string{"a@example.com"}, c.to)
	assert.Contains(t, c.msg, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(c.msg, "\r\n\r\n<p>123456</p>"))
}

func TestSMTPSender_NoAuthWithoutUsername(t *testing.T) {
	s, c := newTestSender(t, SMTPConfig{Host: "localhost", Port: "1025", From: "x@example.com"}, nil)

	require.NoError(t, s.Send(context.Background(), "a@example.com", "s", "b"))
	assert.Nil(t, c.auth)
	assert.Equal(t, "localhost:1025", c.addr)
}

func TestSMTPSender_RejectsHeaderInjection(t *testing.T) {
	s, _ := newTestSender(t, SMTPConfig{Host: "h", From: "f@example.com"}, nil)

	err := s.Send(context.Background(), "a@example.com\r\nBcc: x@evil.com", "s", "b")
	assert.ErrorIs(t, err, ErrHeaderInjection)
}

func TestSMTPSender_PropagatesFailure(t *testing.T) {
	s, _ := newTestSender(t, SMTPConfig{Host: "h", From: "f@example.com"}, errors.New("421 busy"))

	err := s.Send(context.Background(), "a@example.com", "s", "b")
	assert.Error(t, err)
}

func TestSMTPSender_CanceledContext(t *testing.T) {
	s, c := newTestSender(t, SMTPConfig{Host: "h", From: "f@example.com"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Send(ctx, "a@example.com", "s", "b"), context.Canceled)
	assert.Empty(t, c.addr)
}

func TestNewSMTPSender_Validation(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{From: "f@example.com"})
	assert.Error(t, err)
	_, err = NewSMTPSender(SMTPConfig{Host: "h"})
	assert.Error(t, err)
}
