package config

import (
	"fmt"
	"strings"
)

func (c *Config) Validate() error {
	if c.Recording.SampleRate <= 0 {
		return fmt.Errorf("invalid recording.sample_rate: %d", c.Recording.SampleRate)
	}
	if c.Recording.Channels <= 0 {
		return fmt.Errorf("invalid recording.channels: %d", c.Recording.Channels)
	}
	if c.Recording.BufferSize <= 0 {
		return fmt.Errorf("invalid recording.buffer_size: %d", c.Recording.BufferSize)
	}
	if c.Recording.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid recording.channel_buffer_size: %d", c.Recording.ChannelBufferSize)
	}
	if c.Recording.Format == "" {
		return fmt.Errorf("invalid recording.format: empty")
	}
	if c.Recording.SegmentDuration <= 0 {
		return fmt.Errorf("invalid recording.segment_duration: %v", c.Recording.SegmentDuration)
	}

	if c.Transcription.Provider == "" {
		return fmt.Errorf("invalid transcription.provider: empty")
	}

	apiKey := c.resolveAPIKeyForProvider(c.Transcription.Provider)

	switch c.Transcription.Provider {
	case "openai":
		if apiKey == "" {
			return fmt.Errorf("OpenAI API key required: not found in config (providers.openai.api_key, transcription.api_key) or environment variable (OPENAI_API_KEY)")
		}

	case "groq":
		if apiKey == "" {
			return fmt.Errorf("Groq API key required: not found in config (providers.groq.api_key, transcription.api_key) or environment variable (GROQ_API_KEY)")
		}

		validGroqModels := map[string]bool{"whisper-large-v3": true, "whisper-large-v3-turbo": true}
		if c.Transcription.Model != "" && !validGroqModels[c.Transcription.Model] {
			return fmt.Errorf("invalid model for groq: %s (must be whisper-large-v3 or whisper-large-v3-turbo)", c.Transcription.Model)
		}

	default:
		return fmt.Errorf("unsupported transcription.provider: %s (must be openai or groq)", c.Transcription.Provider)
	}

	if c.Transcription.Model == "" {
		return fmt.Errorf("invalid transcription.model: empty")
	}
	if c.Transcription.Language != "" && !isValidLanguageTag(c.Transcription.Language) {
		return fmt.Errorf("invalid transcription.language: %s (use empty string for auto-detect or tags like 'en', 'en-GB', 'it')", c.Transcription.Language)
	}
	if c.Transcription.MaxRetries < 0 {
		return fmt.Errorf("invalid transcription.max_retries: %d", c.Transcription.MaxRetries)
	}
	if c.Transcription.BaseDelay <= 0 {
		return fmt.Errorf("invalid transcription.base_delay: %v", c.Transcription.BaseDelay)
	}
	if c.Transcription.MaxDelay < c.Transcription.BaseDelay {
		return fmt.Errorf("invalid transcription.max_delay: %v (must be >= base_delay %v)", c.Transcription.MaxDelay, c.Transcription.BaseDelay)
	}

	if c.Session.AutoSaveInterval < 0 {
		return fmt.Errorf("invalid session.auto_save_interval: %v", c.Session.AutoSaveInterval)
	}
	if c.Session.FinalDrainTimeout < 0 {
		return fmt.Errorf("invalid session.final_drain_timeout: %v", c.Session.FinalDrainTimeout)
	}
	if c.Session.StopAckTimeout <= 0 {
		return fmt.Errorf("invalid session.stop_ack_timeout: %v", c.Session.StopAckTimeout)
	}

	validTypes := map[string]bool{"desktop": true, "log": true, "none": true}
	if !validTypes[c.Notifications.Type] {
		return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
	}

	return nil
}

// IsValidLanguageTag accepts an ISO-639-1 code with an optional region
// subtag, e.g. "en" or "en-GB". The region is not validated beyond shape.
func IsValidLanguageTag(tag string) bool {
	return isValidLanguageTag(tag)
}

func isValidLanguageTag(tag string) bool {
	base, region, hasRegion := strings.Cut(tag, "-")
	if !isValidLanguageCode(base) {
		return false
	}
	if hasRegion && len(region) != 2 {
		return false
	}
	return true
}

func isValidLanguageCode(code string) bool {
	validCodes := map[string]bool{
		"en": true, "es": true, "fr": true, "de": true, "it": true, "pt": true,
		"ru": true, "ja": true, "ko": true, "zh": true, "ar": true, "hi": true,
		"nl": true, "sv": true, "da": true, "no": true, "fi": true, "pl": true,
		"tr": true, "he": true, "th": true, "vi": true, "id": true, "ms": true,
		"uk": true, "cs": true, "hu": true, "ro": true, "bg": true, "hr": true,
		"sk": true, "sl": true, "et": true, "lv": true, "lt": true, "mt": true,
		"cy": true, "ga": true, "eu": true, "ca": true, "gl": true, "is": true,
		"mk": true, "sq": true, "az": true, "be": true, "ka": true, "hy": true,
		"kk": true, "ky": true, "tg": true, "uz": true, "mn": true, "ne": true,
		"si": true, "km": true, "lo": true, "my": true, "fa": true, "ps": true,
		"ur": true, "bn": true, "ta": true, "te": true, "ml": true, "kn": true,
		"gu": true, "pa": true, "or": true, "as": true, "mr": true, "sa": true,
		"sw": true, "yo": true, "ig": true, "ha": true, "zu": true, "xh": true,
		"af": true, "am": true, "mg": true, "so": true, "sn": true, "rw": true,
	}
	return validCodes[code]
}
