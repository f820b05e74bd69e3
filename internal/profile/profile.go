// Package profile holds the runtime configuration for tools built on
// the AI client, loaded from the environment and an optional config
// file.
package profile

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Profile is the configuration for a client instance.
type Profile struct {
	// Mode can be "prod" or "dev".
	Mode string
	// BaseURL is the AI backend root, e.g. https://ai.glowdesk.io.
	BaseURL string
	// APIKey is the bearer token for the AI backend.
	APIKey string

	// RequestTimeout bounds each HTTP request.
	RequestTimeout time.Duration
	// RateLimit is the max requests per RateWindow.
	RateLimit  int
	RateWindow time.Duration
	// CacheTTL is the default insight cache TTL.
	CacheTTL time.Duration

	// ReconnectBaseDelay is the first realtime reconnect delay.
	ReconnectBaseDelay time.Duration
	// MaxReconnectAttempts bounds consecutive realtime reconnects.
	MaxReconnectAttempts int
}

// Default returns the default profile.
func Default() *Profile {
	return &Profile{
		Mode:                 "prod",
		BaseURL:              "https://ai.glowdesk.io",
		RequestTimeout:       30 * time.Second,
		RateLimit:            30,
		RateWindow:           time.Minute,
		CacheTTL:             5 * time.Minute,
		ReconnectBaseDelay:   time.Second,
		MaxReconnectAttempts: 5,
	}
}

// Load builds a profile from defaults, an optional config file, and
// GLOWDESK_* environment variables (env wins). configFile may be empty.
func Load(configFile string) (*Profile, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("mode", def.Mode)
	v.SetDefault("base_url", def.BaseURL)
	v.SetDefault("api_key", "")
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("rate_limit", def.RateLimit)
	v.SetDefault("rate_window", def.RateWindow)
	v.SetDefault("cache_ttl", def.CacheTTL)
	v.SetDefault("reconnect_base_delay", def.ReconnectBaseDelay)
	v.SetDefault("max_reconnect_attempts", def.MaxReconnectAttempts)

	v.SetEnvPrefix("glowdesk")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	p := &Profile{
		Mode:                 v.GetString("mode"),
		BaseURL:              v.GetString("base_url"),
		APIKey:               v.GetString("api_key"),
		RequestTimeout:       v.GetDuration("request_timeout"),
		RateLimit:            v.GetInt("rate_limit"),
		RateWindow:           v.GetDuration("rate_window"),
		CacheTTL:             v.GetDuration("cache_ttl"),
		ReconnectBaseDelay:   v.GetDuration("reconnect_base_delay"),
		MaxReconnectAttempts: v.GetInt("max_reconnect_attempts"),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the profile for usable values.
func (p *Profile) Validate() error {
	if p.Mode != "prod" && p.Mode != "dev" {
		return errors.Errorf("invalid mode %q, want prod or dev", p.Mode)
	}
	if p.BaseURL == "" {
		return errors.New("base_url required")
	}
	if !strings.HasPrefix(p.BaseURL, "http://") && !strings.HasPrefix(p.BaseURL, "https://") {
		return errors.Errorf("base_url %q must be http(s)", p.BaseURL)
	}
	if p.RateLimit <= 0 {
		return errors.New("rate_limit must be positive")
	}
	if p.RateWindow <= 0 {
		return errors.New("rate_window must be positive")
	}
	return nil
}

// IsDev reports whether the profile runs in dev mode.
func (p *Profile) IsDev() bool {
	return p.Mode == "dev"
}
