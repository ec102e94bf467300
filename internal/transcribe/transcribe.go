package transcribe

import (
	"context"
	"fmt"
	"strings"
)

// Result is the outcome of transcribing one audio segment.
type Result struct {
	Text       string
	Confidence float64
}

// Adapter is a remote speech-to-text backend. Calls may fail with transient
// or permanent errors; the queue retries uniformly without distinguishing.
type Adapter interface {
	Transcribe(ctx context.Context, audio []byte, language string) (Result, error)
}

// Config selects and configures a transcription backend.
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	SampleRate int
	Channels   int
}

func DefaultConfig() Config {
	return Config{
		Provider:   "openai",
		Model:      "whisper-1",
		SampleRate: 16000,
		Channels:   1,
	}
}

// NewAdapter creates the adapter for the configured provider.
func NewAdapter(config Config) (Adapter, error) {
	switch config.Provider {
	case "openai":
		if config.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		return NewOpenAIAdapter(config), nil

	case "groq":
		if config.APIKey == "" {
			return nil, fmt.Errorf("Groq API key required")
		}
		return NewGroqAdapter(config), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
}

// whisperLanguage maps a BCP-47 tag like "en-GB" to the ISO-639-1 code the
// Whisper endpoints expect.
func whisperLanguage(language string) string {
	if i := strings.IndexByte(language, '-'); i > 0 {
		return language[:i]
	}
	return language
}
