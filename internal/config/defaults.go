package config

import "time"

func DefaultConfig() *Config {
	return &Config{
		Recording: RecordingConfig{
			SampleRate:        16000,
			Channels:          1,
			Format:            "s16le",
			BufferSize:        8192,
			Device:            "",
			ChannelBufferSize: 30,
			SegmentDuration:   25 * time.Second,
		},
		Transcription: TranscriptionConfig{
			Enabled:    true,
			Provider:   "openai",
			Language:   "en-GB",
			Model:      "whisper-1",
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   8 * time.Second,
		},
		Session: SessionConfig{
			AutoSaveInterval: 10 * time.Second,
			StopAckTimeout:   10 * time.Second,
		},
		Storage: StorageConfig{
			Directory: "",
			KeepAudio: true,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Type:    "desktop",
		},
		Providers: make(map[string]ProviderConfig),
	}
}
