package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIAdapter transcribes segments through the OpenAI Whisper API.
type OpenAIAdapter struct {
	client *openai.Client
	config Config
}

func NewOpenAIAdapter(config Config) *OpenAIAdapter {
	client := openai.NewClient(config.APIKey)
	return &OpenAIAdapter{
		client: client,
		config: config,
	}
}

func (a *OpenAIAdapter) Transcribe(ctx context.Context, audio []byte, language string) (Result, error) {
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
		log.Printf("openai-adapter: API call failed after %v: %v", duration, err)
		return Result{}, fmt.Errorf("openai transcription: %w", err)
	}

	log.Printf("openai-adapter: transcribed %d bytes in %v: %q", len(audio), duration, resp.Text)
	return Result{Text: resp.Text, Confidence: responseConfidence(resp)}, nil
}

func responseConfidence(resp openai.AudioResponse) float64 {
	logprobs := make([]float64, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		logprobs = append(logprobs, seg.AvgLogprob)
	}
	return confidenceFromLogprobs(logprobs, resp.Text)
}

// confidenceFromLogprobs derives a 0..1 confidence from per-segment average
// log-probabilities of a verbose response. Responses without segments get
// full confidence when non-empty.
func confidenceFromLogprobs(logprobs []float64, text string) float64 {
	if len(logprobs) == 0 {
		if text == "" {
			return 0
		}
		return 1
	}

	var sum float64
	for _, lp := range logprobs {
		sum += math.Exp(lp)
	}
	conf := sum / float64(len(logprobs))
	if conf > 1 {
		conf = 1
	}
	return conf
}
