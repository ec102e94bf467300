package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	voicelogDir := filepath.Join(configDir, "voicelog")
	if err := os.MkdirAll(voicelogDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(voicelogDir, "config.toml"), nil
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	// First run: materialize the default config so users have something to edit.
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Printf("config: no config file found at %s, creating with defaults", configPath)
		if err := SaveDefaultConfig(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	log.Printf("config: loading configuration from %s", configPath)
	var config Config
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if config.Providers == nil {
		config.Providers = make(map[string]ProviderConfig)
	}
	config.applyDefaults()

	log.Printf("config: configuration loaded successfully")
	return &config, nil
}

// applyDefaults fills fields TOML left at zero where zero is not a usable
// value. Durations deliberately excluded: session timeouts treat zero as a
// meaningful setting.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Recording.SampleRate == 0 {
		c.Recording.SampleRate = def.Recording.SampleRate
	}
	if c.Recording.Channels == 0 {
		c.Recording.Channels = def.Recording.Channels
	}
	if c.Recording.Format == "" {
		c.Recording.Format = def.Recording.Format
	}
	if c.Recording.BufferSize == 0 {
		c.Recording.BufferSize = def.Recording.BufferSize
	}
	if c.Recording.ChannelBufferSize == 0 {
		c.Recording.ChannelBufferSize = def.Recording.ChannelBufferSize
	}
	if c.Recording.SegmentDuration == 0 {
		c.Recording.SegmentDuration = def.Recording.SegmentDuration
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = def.Transcription.Model
	}
	if c.Transcription.MaxRetries == 0 {
		c.Transcription.MaxRetries = def.Transcription.MaxRetries
	}
	if c.Transcription.BaseDelay == 0 {
		c.Transcription.BaseDelay = def.Transcription.BaseDelay
	}
	if c.Transcription.MaxDelay == 0 {
		c.Transcription.MaxDelay = def.Transcription.MaxDelay
	}
}

// Save writes the given config back to the config file. Used by the
// configure wizard; hand-edited comments in the file are not preserved.
func Save(c *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

func SaveDefaultConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	configContent := `# Voicelog Configuration
# This file is automatically generated with defaults.
# Edit values as needed - changes are applied immediately without daemon restart.

# Audio Recording Configuration
[recording]
  sample_rate = 16000          # Audio sample rate in Hz (16000 recommended for speech)
  channels = 1                 # Number of audio channels (1 = mono, 2 = stereo)
  format = "s16le"             # Audio format (s16le = 16-bit signed little-endian)
  buffer_size = 8192           # Internal buffer size in bytes (larger = less CPU, more latency)
  device = ""                  # PipeWire audio device (empty = use default microphone)
  channel_buffer_size = 30     # Segment channel buffer (segments to buffer)
  segment_duration = "25s"     # Fixed interval at which audio is sliced into chunks

# Speech Transcription Configuration
[transcription]
  enabled = true               # Transcribe chunks live while recording continues
  provider = "openai"          # Transcription service ("openai" or "groq")
  language = "en-GB"           # Language tag (e.g., "en-GB", "en-US", "it")
  model = "whisper-1"          # Whisper model name
  max_retries = 3              # Retries per chunk after the first attempt fails
  base_delay = "1s"            # First retry backoff delay
  max_delay = "8s"             # Backoff cap

# Session Behavior
[session]
  auto_save_interval = "10s"   # Periodic transcript snapshot interval ("0" to disable)
  final_drain_timeout = "0s"   # Wait this long for pending chunks before finalizing ("0" = snapshot at stop)
  stop_ack_timeout = "10s"     # Wait for the final audio segment after a stop request

# Journal Storage
[storage]
  directory = ""               # Where journal entries are kept (empty = ~/.local/share/voicelog)
  keep_audio = true            # Persist reassembled audio alongside transcripts

# Desktop Notification Configuration
[notifications]
  enabled = true               # Enable notifications
  type = "desktop"             # Notification type ("desktop", "log", "none")

# Provider API keys (or set OPENAI_API_KEY / GROQ_API_KEY environment variables)
[providers.openai]
  api_key = ""

[providers.groq]
  api_key = ""
`

	if _, err := file.WriteString(configContent); err != nil {
		return fmt.Errorf("failed to write config content: %w", err)
	}

	return nil
}
