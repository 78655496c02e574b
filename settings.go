package otpauth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// SettingCaptchaEnabled is the settings field that toggles CAPTCHA on RequestOTP.
const SettingCaptchaEnabled = "captcha_enabled"

// Settings are the runtime flags read from a [SettingsSource].
type Settings struct {
	CaptchaEnabled bool
}

// SettingsCache holds the last loaded [Settings]. Each Engine owns one; it
// changes only on Refresh.
type SettingsCache struct {
	source   SettingsSource
	defaults Settings

	mu       sync.RWMutex
	current  Settings
	loadedAt time.Time
	now      func() time.Time
}

// NewSettingsCache returns a cache that serves defaults until the first
// successful Refresh. A nil source keeps the defaults forever.
func NewSettingsCache(source SettingsSource, defaults Settings) *SettingsCache {
	return &SettingsCache{
		source:   source,
		defaults: defaults,
		current:  defaults,
		now:      time.Now,
	}
}

// Refresh reloads settings from the source. Missing fields fall back to the
// defaults; on error the previous values are kept.
func (c *SettingsCache) Refresh(ctx context.Context) error {
	if c == nil || c.source == nil {
		return nil
	}

	raw, err := c.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: load settings: %v", ErrBackendUnavailable, err)
	}

	next := c.defaults
	if v, ok := raw[SettingCaptchaEnabled]; ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("settings: %s=%q: %w", SettingCaptchaEnabled, v, err)
		}
		next.CaptchaEnabled = enabled
	}

	c.mu.Lock()
	c.current = next
	c.loadedAt = c.now()
	c.mu.Unlock()
	return nil
}

// Current returns the cached settings.
func (c *SettingsCache) Current() Settings {
	if c == nil {
		return Settings{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// LoadedAt reports the time of the last successful Refresh, or zero.
func (c *SettingsCache) LoadedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}
