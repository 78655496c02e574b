package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, handler http.HandlerFunc) *HTTPVerifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	v, err := NewHTTPVerifier(Config{Endpoint: srv.URL, Secret: "s3cret"})
	require.NoError(t, err)
	return v
}

func TestHTTPVerifier_Success(t *testing.T) {
	v := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "s3cret", r.PostForm.Get("secret"))
		assert.Equal(t, "tok", r.PostForm.Get("response"))
		assert.Equal(t, "10.0.0.1", r.PostForm.Get("remoteip"))
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	assert.NoError(t, v.Verify(context.Background(), "tok", "10.0.0.1"))
}

func TestHTTPVerifier_Rejected(t *testing.T) {
	v := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	})

	assert.ErrorIs(t, v.Verify(context.Background(), "tok", ""), ErrInvalid)
}

func TestHTTPVerifier_EmptyTokenShortCircuits(t *testing.T) {
	called := false
	v := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		called = true
	})

	assert.ErrorIs(t, v.Verify(context.Background(), " ", ""), ErrInvalid)
	assert.False(t, called)
}

func TestHTTPVerifier_ProviderDown(t *testing.T) {
	v := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	assert.ErrorIs(t, v.Verify(context.Background(), "tok", ""), ErrUnavailable)
}

func TestNewHTTPVerifier_RequiresSecret(t *testing.T) {
	_, err := NewHTTPVerifier(Config{})
	assert.Error(t, err)
}
