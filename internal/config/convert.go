package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/emorandi/voicelog/internal/capture"
	"github.com/emorandi/voicelog/internal/session"
	"github.com/emorandi/voicelog/internal/transcribe"
)

func (c *Config) ToCaptureConfig() capture.Config {
	return capture.Config{
		SampleRate:        c.Recording.SampleRate,
		Channels:          c.Recording.Channels,
		Format:            c.Recording.Format,
		BufferSize:        c.Recording.BufferSize,
		Device:            c.Recording.Device,
		ChannelBufferSize: c.Recording.ChannelBufferSize,
		SegmentDuration:   c.Recording.SegmentDuration,
	}
}

func (c *Config) ToTranscribeConfig() transcribe.Config {
	return transcribe.Config{
		Provider:   c.Transcription.Provider,
		APIKey:     c.resolveAPIKeyForProvider(c.Transcription.Provider),
		Model:      c.Transcription.Model,
		SampleRate: c.Recording.SampleRate,
		Channels:   c.Recording.Channels,
	}
}

func (c *Config) ToQueueConfig() transcribe.QueueConfig {
	return transcribe.QueueConfig{
		Language:   c.Transcription.Language,
		MaxRetries: c.Transcription.MaxRetries,
		BaseDelay:  c.Transcription.BaseDelay,
		MaxDelay:   c.Transcription.MaxDelay,
	}
}

func (c *Config) ToSessionConfig() session.Config {
	return session.Config{
		AutoTranscribe:    c.Transcription.Enabled,
		Language:          c.Transcription.Language,
		AutoSaveInterval:  c.Session.AutoSaveInterval,
		FinalDrainTimeout: c.Session.FinalDrainTimeout,
		StopAckTimeout:    c.Session.StopAckTimeout,
	}
}

// StorageDir resolves the journal directory, creating it if needed.
func (c *Config) StorageDir() (string, error) {
	dir := c.Storage.Directory
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		dir = filepath.Join(home, ".local", "share", "voicelog")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}
	return dir, nil
}

// resolveAPIKeyForProvider returns the API key for a provider, preferring the
// providers map, then the legacy transcription.api_key, then the environment.
func (c *Config) resolveAPIKeyForProvider(providerName string) string {
	if c.Providers != nil {
		if pc, ok := c.Providers[providerName]; ok && pc.APIKey != "" {
			return pc.APIKey
		}
	}

	if c.Transcription.APIKey != "" {
		return c.Transcription.APIKey
	}

	if envVar := envVarForProvider(providerName); envVar != "" {
		return os.Getenv(envVar)
	}

	return ""
}

func envVarForProvider(providerName string) string {
	switch providerName {
	case "openai":
		return "OPENAI_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}
