package config

import "time"

type Config struct {
	Recording     RecordingConfig           `toml:"recording"`
	Transcription TranscriptionConfig       `toml:"transcription"`
	Session       SessionConfig             `toml:"session"`
	Storage       StorageConfig             `toml:"storage"`
	Notifications NotificationsConfig       `toml:"notifications"`
	Providers     map[string]ProviderConfig `toml:"providers"`
}

// ProviderConfig holds the API key for a transcription provider.
type ProviderConfig struct {
	APIKey string `toml:"api_key"`
}

type RecordingConfig struct {
	SampleRate        int           `toml:"sample_rate"`
	Channels          int           `toml:"channels"`
	Format            string        `toml:"format"`
	BufferSize        int           `toml:"buffer_size"`
	Device            string        `toml:"device"`
	ChannelBufferSize int           `toml:"channel_buffer_size"`
	SegmentDuration   time.Duration `toml:"segment_duration"`
}

type TranscriptionConfig struct {
	Enabled    bool          `toml:"enabled"` // transcribe chunks live as they are captured
	Provider   string        `toml:"provider"`
	APIKey     string        `toml:"api_key"` // legacy location, prefer [providers.<name>]
	Language   string        `toml:"language"`
	Model      string        `toml:"model"`
	MaxRetries int           `toml:"max_retries"`
	BaseDelay  time.Duration `toml:"base_delay"`
	MaxDelay   time.Duration `toml:"max_delay"`
}

type SessionConfig struct {
	AutoSaveInterval  time.Duration `toml:"auto_save_interval"`
	FinalDrainTimeout time.Duration `toml:"final_drain_timeout"`
	StopAckTimeout    time.Duration `toml:"stop_ack_timeout"`
}

type StorageConfig struct {
	Directory string `toml:"directory"` // empty means ~/.local/share/voicelog
	KeepAudio bool   `toml:"keep_audio"`
}

type NotificationsConfig struct {
	Enabled bool   `toml:"enabled"`
	Type    string `toml:"type"` // "desktop", "log", "none"
}
