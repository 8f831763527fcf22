package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero fields with their defaults and resolves the API
// key from the environment.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	rt := &cfg.Realtime
	if rt.BaseURL == "" {
		rt.BaseURL = DefaultBaseURL
	}
	if rt.Model == "" {
		rt.Model = DefaultModel
	}
	rt.APIKey = os.ExpandEnv(rt.APIKey)
	if rt.APIKey == "" {
		rt.APIKey = os.Getenv(APIKeyEnv)
	}
	if rt.ConnectTimeout == 0 {
		rt.ConnectTimeout = DefaultConnectTimeout
	}
	if rt.ReadLimitBytes == 0 {
		rt.ReadLimitBytes = DefaultReadLimit
	}
	if rt.SendQueue == 0 {
		rt.SendQueue = DefaultSendQueue
	}

	if cfg.Audio.BufferSeconds == 0 {
		cfg.Audio.BufferSeconds = DefaultBufferSeconds
	}
	if cfg.Audio.TickInterval == 0 {
		cfg.Audio.TickInterval = DefaultTickInterval
	}
	if cfg.Pipeline.InboundQueue == 0 {
		cfg.Pipeline.InboundQueue = DefaultInboundQueue
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	rt := cfg.Realtime
	if u, err := url.Parse(rt.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("realtime.base_url %q: %w", rt.BaseURL, err))
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		errs = append(errs, fmt.Errorf("realtime.base_url %q must use ws or wss", rt.BaseURL))
	} else if u.Host == "" {
		errs = append(errs, fmt.Errorf("realtime.base_url %q has no host", rt.BaseURL))
	}
	if rt.APIKey == "" {
		errs = append(errs, fmt.Errorf("realtime.api_key is required (or set %s)", APIKeyEnv))
	}
	if rt.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("realtime.connect_timeout must be positive, got %s", rt.ConnectTimeout))
	}
	if rt.ReadLimitBytes < 0 {
		errs = append(errs, fmt.Errorf("realtime.read_limit_bytes must be positive, got %d", rt.ReadLimitBytes))
	}
	if rt.SendQueue < 0 {
		errs = append(errs, fmt.Errorf("realtime.send_queue must be positive, got %d", rt.SendQueue))
	}

	if cfg.Audio.BufferSeconds < 0 {
		errs = append(errs, fmt.Errorf("audio.buffer_seconds must be positive, got %d", cfg.Audio.BufferSeconds))
	}
	if cfg.Audio.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("audio.tick_interval must be positive, got %s", cfg.Audio.TickInterval))
	} else if cfg.Audio.BufferDuration() > 0 && cfg.Audio.TickInterval >= cfg.Audio.BufferDuration() {
		errs = append(errs, fmt.Errorf("audio.tick_interval %s must be shorter than the %ds recording buffer", cfg.Audio.TickInterval, cfg.Audio.BufferSeconds))
	}
	if cfg.Pipeline.InboundQueue < 0 {
		errs = append(errs, fmt.Errorf("pipeline.inbound_queue must be positive, got %d", cfg.Pipeline.InboundQueue))
	}

	return errors.Join(errs...)
}
