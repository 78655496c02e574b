package otpauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mapSettings struct {
	values map[string]string
	err    error
}

func (s *mapSettings) Load(context.Context) (map[string]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.values, nil
}

func TestSettingsCacheServesDefaultsUntilRefresh(t *testing.T) {
	src := &mapSettings{values: map[string]string{SettingCaptchaEnabled: "true"}}
	cache := NewSettingsCache(src, Settings{})

	if cache.Current().CaptchaEnabled {
		t.Fatal("expected defaults before the first refresh")
	}
	if !cache.LoadedAt().IsZero() {
		t.Fatal("expected zero LoadedAt before the first refresh")
	}

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !cache.Current().CaptchaEnabled {
		t.Fatal("expected captcha enabled after refresh")
	}
	if cache.LoadedAt().IsZero() {
		t.Fatal("expected LoadedAt to be set")
	}
}

func TestSettingsCacheKeepsValuesOnError(t *testing.T) {
	src := &mapSettings{values: map[string]string{SettingCaptchaEnabled: "1"}}
	cache := NewSettingsCache(src, Settings{})
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	src.err = errors.New("redis down")
	err := cache.Refresh(context.Background())
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if !cache.Current().CaptchaEnabled {
		t.Fatal("previous settings must survive a failed refresh")
	}

	src.err = nil
	src.values = map[string]string{SettingCaptchaEnabled: "maybe"}
	if err := cache.Refresh(context.Background()); err == nil {
		t.Fatal("expected malformed value to be rejected")
	}
	if !cache.Current().CaptchaEnabled {
		t.Fatal("previous settings must survive a malformed value")
	}
}

func TestSettingsCacheMissingFieldUsesDefault(t *testing.T) {
	src := &mapSettings{values: map[string]string{}}
	cache := NewSettingsCache(src, Settings{CaptchaEnabled: true})
	cache.now = func() time.Time { return time.Unix(100, 0) }

	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !cache.Current().CaptchaEnabled {
		t.Fatal("missing field must fall back to the default")
	}
	if got := cache.LoadedAt(); !got.Equal(time.Unix(100, 0)) {
		t.Fatalf("unexpected LoadedAt %v", got)
	}
}

func TestSettingsCacheNilSource(t *testing.T) {
	cache := NewSettingsCache(nil, Settings{CaptchaEnabled: true})
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh with nil source failed: %v", err)
	}
	if !cache.Current().CaptchaEnabled {
		t.Fatal("expected defaults")
	}
}
