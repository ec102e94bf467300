package capture

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	t.Run("default values", func(t *testing.T) {
		if config.SampleRate != 16000 {
			t.Errorf("default sample rate should be 16000, got %d", config.SampleRate)
		}
		if config.Channels != 1 {
			t.Errorf("default channels should be 1, got %d", config.Channels)
		}
		if config.Format != "s16le" {
			t.Errorf("default format should be s16le, got %s", config.Format)
		}
		if config.SegmentDuration != 25*time.Second {
			t.Errorf("default segment duration should be 25s, got %v", config.SegmentDuration)
		}
		if config.ChannelBufferSize != 30 {
			t.Errorf("default channel buffer size should be 30, got %d", config.ChannelBufferSize)
		}
	})
}

func TestNewRecorder(t *testing.T) {
	recorder := NewRecorder(DefaultConfig())

	t.Run("initial state", func(t *testing.T) {
		if recorder == nil {
			t.Fatal("recorder should not be nil")
		}
		if recorder.IsRecording() {
			t.Error("recorder should not be recording initially")
		}
	})

	t.Run("mime type reflects config", func(t *testing.T) {
		mime := recorder.MimeType()
		if !strings.Contains(mime, "s16le") || !strings.Contains(mime, "16000") {
			t.Errorf("unexpected mime type: %s", mime)
		}
	})
}

func TestRecorderValidateConfig(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:        "valid default config",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "invalid sample rate",
			mutate:      func(c *Config) { c.SampleRate = 0 },
			expectError: true,
		},
		{
			name:        "invalid channels",
			mutate:      func(c *Config) { c.Channels = -1 },
			expectError: true,
		},
		{
			name:        "invalid buffer size",
			mutate:      func(c *Config) { c.BufferSize = 0 },
			expectError: true,
		},
		{
			name:        "empty format",
			mutate:      func(c *Config) { c.Format = "" },
			expectError: true,
		},
		{
			name:        "invalid segment duration",
			mutate:      func(c *Config) { c.SegmentDuration = 0 },
			expectError: true,
		},
		{
			name:        "invalid channel buffer size",
			mutate:      func(c *Config) { c.ChannelBufferSize = 0 },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			recorder := NewRecorder(config)
			err := recorder.validateConfig()
			if tt.expectError && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestRecorderStopWhenIdle(t *testing.T) {
	recorder := NewDefaultRecorder()
	if err := recorder.Stop(); err != nil {
		t.Errorf("Stop on idle recorder should be a no-op, got %v", err)
	}
}

func TestRecorderFlushWhenIdle(t *testing.T) {
	recorder := NewDefaultRecorder()
	if err := recorder.Flush(); err == nil {
		t.Error("Flush on idle recorder should fail")
	}
}

func TestRecorderPauseResumeWhenIdle(t *testing.T) {
	recorder := NewDefaultRecorder()
	if err := recorder.Pause(); err != nil {
		t.Errorf("Pause on idle recorder should be a no-op, got %v", err)
	}
	if err := recorder.Resume(); err != nil {
		t.Errorf("Resume on idle recorder should be a no-op, got %v", err)
	}
}
