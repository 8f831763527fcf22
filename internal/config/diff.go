package config

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	// LogLevelChanged is set when server.log_level differs. The level is
	// applied without restart.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired lists the changed keys that only take effect on the
	// next start.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	restart := func(key string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, key)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("realtime.base_url", old.Realtime.BaseURL != new.Realtime.BaseURL)
	restart("realtime.model", old.Realtime.Model != new.Realtime.Model)
	restart("realtime.api_key", old.Realtime.APIKey != new.Realtime.APIKey)
	restart("realtime.voice", old.Realtime.Voice != new.Realtime.Voice)
	restart("realtime.instructions", old.Realtime.Instructions != new.Realtime.Instructions)
	restart("realtime.connect_timeout", old.Realtime.ConnectTimeout != new.Realtime.ConnectTimeout)
	restart("realtime.read_limit_bytes", old.Realtime.ReadLimitBytes != new.Realtime.ReadLimitBytes)
	restart("realtime.send_queue", old.Realtime.SendQueue != new.Realtime.SendQueue)
	restart("audio.device", old.Audio.Device != new.Audio.Device)
	restart("audio.capture", old.Audio.CaptureEnabled() != new.Audio.CaptureEnabled())
	restart("audio.playback", old.Audio.PlaybackEnabled() != new.Audio.PlaybackEnabled())
	restart("audio.buffer_seconds", old.Audio.BufferSeconds != new.Audio.BufferSeconds)
	restart("audio.tick_interval", old.Audio.TickInterval != new.Audio.TickInterval)
	restart("pipeline.inbound_queue", old.Pipeline.InboundQueue != new.Pipeline.InboundQueue)

	return d
}
