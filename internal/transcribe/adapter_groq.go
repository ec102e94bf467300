package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"
)

// GroqAdapter transcribes segments through the Groq Whisper API, which
// speaks the OpenAI wire protocol under a different base URL.
type GroqAdapter struct {
	client *openai.Client
	config Config
}

func NewGroqAdapter(config Config) *GroqAdapter {
	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = "https://api.groq.com/openai/v1"
	client := openai.NewClientWithConfig(clientConfig)

	return &GroqAdapter{
		client: client,
		config: config,
	}
}

func (a *GroqAdapter) Transcribe(ctx context.Context, audio []byte, language string) (Result, error) {
	if len(audio) == 0 {
		return Result{}, nil
	}

	req := openai.AudioRequest{
		Model:    a.config.Model,
		Reader:   bytes.NewReader(WrapWAV(audio, a.config.SampleRate, a.config.Channels)),
		FilePath: "segment.wav",
		Language: whisperLanguage(language),
		Format:   openai.AudioResponseFormatVerboseJSON,
	}

	start := time.Now()
	resp, err := a.client.CreateTranscription(ctx, req)
	duration := time.Since(start)

	if err != nil {
		log.Printf("groq-adapter: API call failed after %v: %v", duration, err)
		return Result{}, fmt.Errorf("groq transcription: %w", err)
	}

	log.Printf("groq-adapter: transcribed %d bytes in %v: %q", len(audio), duration, resp.Text)
	return Result{Text: resp.Text, Confidence: responseConfidence(resp)}, nil
}
