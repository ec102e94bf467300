// Package testutil holds shared helpers for package tests: a valid baseline
// config, mock capture and transcription implementations, and small
// synchronization utilities.
package testutil

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/emorandi/voicelog/internal/capture"
	"github.com/emorandi/voicelog/internal/config"
	"github.com/emorandi/voicelog/internal/transcribe"
)

// TestConfig returns a valid configuration for testing
func TestConfig() *config.Config {
	return &config.Config{
		Recording: config.RecordingConfig{
			SampleRate:        16000,
			Channels:          1,
			Format:            "s16le",
			BufferSize:        8192,
			Device:            "",
			ChannelBufferSize: 30,
			SegmentDuration:   25 * time.Second,
		},
		Transcription: config.TranscriptionConfig{
			Enabled:    true,
			Provider:   "openai",
			Language:   "en-GB",
			Model:      "whisper-1",
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   8 * time.Second,
		},
		Providers: map[string]config.ProviderConfig{
			"openai": {APIKey: "test-api-key"},
		},
		Session: config.SessionConfig{
			AutoSaveInterval: 10 * time.Second,
			StopAckTimeout:   10 * time.Second,
		},
		Storage: config.StorageConfig{
			KeepAudio: true,
		},
		Notifications: config.NotificationsConfig{
			Enabled: true,
			Type:    "log",
		},
	}
}

// TestConfigWithInvalidValues returns a config with invalid values for testing validation
func TestConfigWithInvalidValues() *config.Config {
	return &config.Config{
		Recording: config.RecordingConfig{
			SampleRate:        0,  // Invalid
			Channels:          0,  // Invalid
			Format:            "", // Invalid
			BufferSize:        0,  // Invalid
			ChannelBufferSize: 0,  // Invalid
			SegmentDuration:   0,  // Invalid
		},
		Transcription: config.TranscriptionConfig{
			Provider: "", // Invalid
			Model:    "", // Invalid
		},
		Notifications: config.NotificationsConfig{
			Type: "invalid", // Invalid
		},
	}
}

// CreateTempConfigFile creates a temporary config file for testing
func CreateTempConfigFile(t *testing.T, configContent string) string {
	t.Helper()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

// TestContext returns a context with timeout for testing
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("Condition not met within %v", timeout)
		default:
			if condition() {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// CaptureOutput captures stdout for testing
func CaptureOutput(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	out, _ := io.ReadAll(r)
	return string(out)
}

// MockSegment creates a test audio segment ending now
func MockSegment(data []byte) capture.Segment {
	if data == nil {
		data = make([]byte, 1024)
		for i := range data {
			data[i] = byte(i % 256)
		}
	}

	now := time.Now()
	return capture.Segment{
		Data:  data,
		Start: now.Add(-25 * time.Second),
		End:   now,
	}
}

// MockAdapter implements transcribe.Adapter for testing
type MockAdapter struct {
	TranscribeFunc func(ctx context.Context, audio []byte, language string) (transcribe.Result, error)
}

func (m *MockAdapter) Transcribe(ctx context.Context, audio []byte, language string) (transcribe.Result, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio, language)
	}
	return transcribe.Result{Text: "mock transcription", Confidence: 1.0}, nil
}

// NewMockAdapter creates a mock transcription adapter
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

// MockEncoder implements capture.Encoder for testing. Segments pushed with
// Emit are delivered to the session; Stop closes the segment channel the way
// a drained recorder does.
type MockEncoder struct {
	StartError error

	mu       sync.Mutex
	segCh    chan capture.Segment
	errCh    chan error
	stopOnce sync.Once
}

func NewMockEncoder() *MockEncoder {
	return &MockEncoder{
		segCh: make(chan capture.Segment, 8),
		errCh: make(chan error, 1),
	}
}

func (m *MockEncoder) Start(ctx context.Context) (<-chan capture.Segment, <-chan error, error) {
	if m.StartError != nil {
		return nil, nil, m.StartError
	}
	return m.segCh, m.errCh, nil
}

func (m *MockEncoder) Flush() error  { return nil }
func (m *MockEncoder) Pause() error  { return nil }
func (m *MockEncoder) Resume() error { return nil }

func (m *MockEncoder) Stop() error {
	m.stopOnce.Do(func() {
		close(m.segCh)
	})
	return nil
}

func (m *MockEncoder) MimeType() string { return "audio/test" }

// Emit delivers a segment as if the microphone produced it
func (m *MockEncoder) Emit(seg capture.Segment) {
	m.segCh <- seg
}

// Fail delivers a fatal capture error
func (m *MockEncoder) Fail(err error) {
	m.errCh <- err
}

// MockEncoderFactory returns a factory that hands out the given mock encoder
func MockEncoderFactory(mock *MockEncoder) func() (capture.Encoder, error) {
	return func() (capture.Encoder, error) {
		return mock, nil
	}
}
