package transcribe

import (
	"encoding/binary"
	"testing"
)

func TestNewAdapter(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		expectErr bool
	}{
		{
			name:      "openai with key",
			config:    Config{Provider: "openai", APIKey: "k", Model: "whisper-1"},
			expectErr: false,
		},
		{
			name:      "openai without key",
			config:    Config{Provider: "openai"},
			expectErr: true,
		},
		{
			name:      "groq with key",
			config:    Config{Provider: "groq", APIKey: "k", Model: "whisper-large-v3"},
			expectErr: false,
		},
		{
			name:      "groq without key",
			config:    Config{Provider: "groq"},
			expectErr: true,
		},
		{
			name:      "unsupported provider",
			config:    Config{Provider: "carrier-pigeon", APIKey: "k"},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := NewAdapter(tt.config)
			if tt.expectErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if adapter == nil {
				t.Error("adapter should not be nil")
			}
		})
	}
}

func TestWhisperLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"en-GB", "en"},
		{"en-US", "en"},
		{"it", "it"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := whisperLanguage(tt.in); got != tt.want {
			t.Errorf("whisperLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWrapWAV(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04}
	wav := WrapWAV(raw, 16000, 1)

	if string(wav[0:4]) != "RIFF" {
		t.Errorf("missing RIFF marker, got %q", wav[0:4])
	}
	if string(wav[8:12]) != "WAVE" {
		t.Errorf("missing WAVE marker, got %q", wav[8:12])
	}

	sampleRate := binary.LittleEndian.Uint32(wav[24:28])
	if sampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", sampleRate)
	}

	dataSize := binary.LittleEndian.Uint32(wav[40:44])
	if int(dataSize) != len(raw) {
		t.Errorf("data size = %d, want %d", dataSize, len(raw))
	}
	if len(wav) != 44+len(raw) {
		t.Errorf("total size = %d, want %d", len(wav), 44+len(raw))
	}
}

func TestConfidenceFromLogprobs(t *testing.T) {
	t.Run("no segments, empty text", func(t *testing.T) {
		if c := confidenceFromLogprobs(nil, ""); c != 0 {
			t.Errorf("confidence = %v, want 0", c)
		}
	})

	t.Run("no segments, text present", func(t *testing.T) {
		if c := confidenceFromLogprobs(nil, "hi"); c != 1 {
			t.Errorf("confidence = %v, want 1", c)
		}
	})

	t.Run("segments average into range", func(t *testing.T) {
		c := confidenceFromLogprobs([]float64{-0.1, -0.5}, "hi")
		if c <= 0 || c > 1 {
			t.Errorf("confidence = %v, want within (0, 1]", c)
		}
	})

	t.Run("zero logprob clamps to one", func(t *testing.T) {
		if c := confidenceFromLogprobs([]float64{0, 0}, "hi"); c != 1 {
			t.Errorf("confidence = %v, want 1", c)
		}
	})
}
