// Package config provides the configuration schema, loader and reload watcher
// for the realtalk client.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to its slog level. Unknown values map to Info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Default values applied by [ApplyDefaults].
const (
	DefaultListenAddr     = ":9090"
	DefaultBaseURL        = "wss://api.openai.com/v1/realtime"
	DefaultModel          = "gpt-4o-realtime-preview"
	DefaultConnectTimeout = 15 * time.Second
	DefaultReadLimit      = 16 << 20
	DefaultSendQueue      = 256
	DefaultBufferSeconds  = 10
	DefaultTickInterval   = 20 * time.Millisecond
	DefaultInboundQueue   = 256

	// APIKeyEnv is consulted when realtime.api_key is empty.
	APIKeyEnv = "OPENAI_API_KEY"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Audio    AudioConfig    `yaml:"audio"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// ListenAddr is the ops HTTP address serving /healthz, /readyz and
	// /metrics. The literal "off" disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel sets the minimum log level. Reloadable.
	LogLevel LogLevel `yaml:"log_level"`
}

// RealtimeConfig describes the remote service and the connection limits.
type RealtimeConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// APIKey supports ${VAR} expansion. Empty falls back to $OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`

	// Voice and Instructions are sent in the session.update after connect.
	Voice        string `yaml:"voice"`
	Instructions string `yaml:"instructions"`

	// ConnectTimeout bounds the wait for the connection to open.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// ReadLimitBytes caps the size of one inbound message.
	ReadLimitBytes int64 `yaml:"read_limit_bytes"`

	// SendQueue is the outbound queue capacity of the transport.
	SendQueue int `yaml:"send_queue"`
}

// AudioConfig selects devices and the capture cadence.
type AudioConfig struct {
	// Device names the capture device by ID or name. Empty picks the default.
	Device string `yaml:"device"`

	// Capture and Playback toggle the two audio paths. Both default to true.
	Capture  *bool `yaml:"capture"`
	Playback *bool `yaml:"playback"`

	// BufferSeconds sizes the circular recording buffer.
	BufferSeconds int `yaml:"buffer_seconds"`

	// TickInterval is the capture poll cadence.
	TickInterval time.Duration `yaml:"tick_interval"`
}

// CaptureEnabled reports whether the capture path is on.
func (a AudioConfig) CaptureEnabled() bool { return a.Capture == nil || *a.Capture }

// PlaybackEnabled reports whether the playback path is on.
func (a AudioConfig) PlaybackEnabled() bool { return a.Playback == nil || *a.Playback }

// BufferDuration returns BufferSeconds as a duration.
func (a AudioConfig) BufferDuration() time.Duration {
	return time.Duration(a.BufferSeconds) * time.Second
}

// PipelineConfig tunes the tick loop.
type PipelineConfig struct {
	// InboundQueue bounds transport callbacks waiting for the tick loop.
	InboundQueue int `yaml:"inbound_queue"`
}
