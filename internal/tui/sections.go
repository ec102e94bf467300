package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/emorandi/voicelog/internal/config"
)

// AllProviders is the list of supported transcription providers
var AllProviders = []string{"openai", "groq"}

// providerDisplayNames maps provider IDs to human-readable names
var providerDisplayNames = map[string]string{
	"openai": "OpenAI",
	"groq":   "Groq",
}

func getProviderDisplayName(providerName string) string {
	if name, ok := providerDisplayNames[providerName]; ok {
		return name
	}
	return providerName
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

// editTranscription configures the provider, API key, model, and language.
func editTranscription(cfg *config.Config) error {
	enabled := cfg.Transcription.Enabled
	selectedProvider := cfg.Transcription.Provider
	if selectedProvider == "" {
		selectedProvider = AllProviders[0]
	}

	providerOptions := make([]huh.Option[string], 0, len(AllProviders))
	for _, name := range AllProviders {
		label := getProviderDisplayName(name)
		if key := configuredKey(cfg, name); key != "" {
			label = fmt.Sprintf("%s (key %s)", label, maskAPIKey(key))
		}
		providerOptions = append(providerOptions, huh.NewOption(label, name))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Live Transcription").
				Description("Transcribe chunks while recording. Disabled keeps audio for later.").
				Affirmative("Enabled").
				Negative("Disabled").
				Value(&enabled),
			huh.NewSelect[string]().
				Title("Provider").
				Description("Speech-to-text service").
				Options(providerOptions...).
				Value(&selectedProvider),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	if err := editAPIKey(cfg, selectedProvider); err != nil {
		return err
	}

	modelOptions := transcriptionModelOptions(selectedProvider)
	selectedModel := cfg.Transcription.Model
	if !containsOption(modelOptions, selectedModel) {
		selectedModel = modelOptions[0].Value
	}

	language := cfg.Transcription.Language

	detailForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Model").
				Options(modelOptions...).
				Value(&selectedModel),
			huh.NewInput().
				Title("Language").
				Description("Language tag like 'en', 'en-GB', 'it'. Empty for auto-detect.").
				Placeholder("auto-detect").
				Validate(validateLanguage).
				Value(&language),
		),
	).WithTheme(getTheme())

	if err := detailForm.Run(); err != nil {
		return err
	}

	cfg.Transcription.Enabled = enabled
	cfg.Transcription.Provider = selectedProvider
	cfg.Transcription.Model = selectedModel
	cfg.Transcription.Language = language
	return nil
}

// editAPIKey prompts for the provider's API key. An empty input keeps the
// existing key (or defers to the environment variable).
func editAPIKey(cfg *config.Config, providerName string) error {
	existing := configuredKey(cfg, providerName)

	desc := fmt.Sprintf("Leave empty to use the %s environment variable", envVarName(providerName))
	if existing != "" {
		desc = fmt.Sprintf("Current: %s. Leave empty to keep it.", maskAPIKey(existing))
	}

	var key string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("%s API Key", getProviderDisplayName(providerName))).
				Description(desc).
				EchoMode(huh.EchoModePassword).
				Value(&key),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	if key != "" {
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]config.ProviderConfig)
		}
		cfg.Providers[providerName] = config.ProviderConfig{APIKey: key}
	}
	return nil
}

func editRecording(cfg *config.Config) error {
	segment := cfg.Recording.SegmentDuration.String()
	device := cfg.Recording.Device

	sampleRate := cfg.Recording.SampleRate
	rateOptions := []huh.Option[int]{
		huh.NewOption("16000 Hz (recommended for speech)", 16000),
		huh.NewOption("44100 Hz", 44100),
		huh.NewOption("48000 Hz", 48000),
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Segment Duration").
				Description("Interval at which audio is sliced into chunks, e.g. '25s'").
				Validate(validateDuration(false)).
				Value(&segment),
			huh.NewSelect[int]().
				Title("Sample Rate").
				Options(rateOptions...).
				Value(&sampleRate),
			huh.NewInput().
				Title("Audio Device").
				Description("PipeWire device name. Empty uses the default microphone.").
				Placeholder("default").
				Value(&device),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	d, err := time.ParseDuration(segment)
	if err != nil {
		return err
	}
	cfg.Recording.SegmentDuration = d
	cfg.Recording.SampleRate = sampleRate
	cfg.Recording.Device = device
	return nil
}

func editSession(cfg *config.Config) error {
	autoSave := cfg.Session.AutoSaveInterval.String()
	finalDrain := cfg.Session.FinalDrainTimeout.String()
	stopAck := cfg.Session.StopAckTimeout.String()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Auto-Save Interval").
				Description("Periodic transcript snapshot, e.g. '10s'. '0s' disables.").
				Validate(validateDuration(true)).
				Value(&autoSave),
			huh.NewInput().
				Title("Final Drain Timeout").
				Description("How long to wait for pending chunks at stop. '0s' snapshots immediately.").
				Validate(validateDuration(true)).
				Value(&finalDrain),
			huh.NewInput().
				Title("Stop Ack Timeout").
				Description("How long to wait for the final audio segment after stop.").
				Validate(validateDuration(false)).
				Value(&stopAck),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Session.AutoSaveInterval, _ = time.ParseDuration(autoSave)
	cfg.Session.FinalDrainTimeout, _ = time.ParseDuration(finalDrain)
	cfg.Session.StopAckTimeout, _ = time.ParseDuration(stopAck)
	return nil
}

func editStorage(cfg *config.Config) error {
	directory := cfg.Storage.Directory
	keepAudio := cfg.Storage.KeepAudio

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Journal Directory").
				Description("Where entries are kept. Empty uses ~/.local/share/voicelog.").
				Placeholder("~/.local/share/voicelog").
				Value(&directory),
			huh.NewConfirm().
				Title("Keep Audio").
				Description("Persist reassembled audio alongside transcripts").
				Affirmative("Keep").
				Negative("Discard").
				Value(&keepAudio),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Storage.Directory = directory
	cfg.Storage.KeepAudio = keepAudio
	return nil
}

func editNotifications(cfg *config.Config) error {
	enabled := cfg.Notifications.Enabled
	typ := cfg.Notifications.Type
	if typ == "" {
		typ = "desktop"
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Notifications").
				Affirmative("Enabled").
				Negative("Disabled").
				Value(&enabled),
			huh.NewSelect[string]().
				Title("Type").
				Options(
					huh.NewOption("Desktop (notify-send)", "desktop"),
					huh.NewOption("Log only", "log"),
					huh.NewOption("None", "none"),
				).
				Value(&typ),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Notifications.Enabled = enabled
	cfg.Notifications.Type = typ
	return nil
}

func transcriptionModelOptions(providerName string) []huh.Option[string] {
	switch providerName {
	case "groq":
		return []huh.Option[string]{
			huh.NewOption("whisper-large-v3-turbo (faster)", "whisper-large-v3-turbo"),
			huh.NewOption("whisper-large-v3 (standard)", "whisper-large-v3"),
		}
	default:
		return []huh.Option[string]{
			huh.NewOption("whisper-1", "whisper-1"),
		}
	}
}

func containsOption(options []huh.Option[string], value string) bool {
	for _, o := range options {
		if o.Value == value {
			return true
		}
	}
	return false
}

func configuredKey(cfg *config.Config, providerName string) string {
	if pc, ok := cfg.Providers[providerName]; ok && pc.APIKey != "" {
		return pc.APIKey
	}
	if providerName == cfg.Transcription.Provider {
		return cfg.Transcription.APIKey
	}
	return ""
}

func envVarName(providerName string) string {
	if providerName == "groq" {
		return "GROQ_API_KEY"
	}
	return "OPENAI_API_KEY"
}

func validateLanguage(tag string) error {
	if tag == "" {
		return nil
	}
	if !config.IsValidLanguageTag(tag) {
		return fmt.Errorf("use tags like 'en', 'en-GB', 'it' or leave empty")
	}
	return nil
}

// validateDuration checks a user-entered duration string. allowZero permits
// '0s' for settings where zero means disabled.
func validateDuration(allowZero bool) func(string) error {
	return func(s string) error {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("use durations like '25s' or '1m'")
		}
		if d < 0 {
			return fmt.Errorf("must not be negative")
		}
		if !allowZero && d == 0 {
			return fmt.Errorf("must be greater than zero")
		}
		return nil
	}
}

func formatTranscriptionLabel(cfg *config.Config) string {
	if !cfg.Transcription.Enabled {
		return "Transcription (disabled)"
	}
	return fmt.Sprintf("Transcription (%s/%s)", cfg.Transcription.Provider, cfg.Transcription.Model)
}

func formatRecordingLabel(cfg *config.Config) string {
	return fmt.Sprintf("Recording (%s segments)", cfg.Recording.SegmentDuration)
}

func formatSessionLabel(cfg *config.Config) string {
	if cfg.Session.AutoSaveInterval == 0 {
		return "Session (auto-save off)"
	}
	return fmt.Sprintf("Session (auto-save %s)", cfg.Session.AutoSaveInterval)
}

func formatStorageLabel(cfg *config.Config) string {
	if cfg.Storage.KeepAudio {
		return "Storage (audio kept)"
	}
	return "Storage (transcripts only)"
}

func formatNotificationsLabel(cfg *config.Config) string {
	if !cfg.Notifications.Enabled {
		return "Notifications (disabled)"
	}
	return fmt.Sprintf("Notifications (%s)", cfg.Notifications.Type)
}
