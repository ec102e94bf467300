package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/emorandi/voicelog/internal/config"
	"github.com/muesli/termenv"
)

// ConfigureResult holds the configuration result from the TUI
type ConfigureResult struct {
	Config    *config.Config
	Cancelled bool
}

// ConfigSection represents a configuration section
type ConfigSection string

const (
	SectionTranscription ConfigSection = "transcription"
	SectionRecording     ConfigSection = "recording"
	SectionSession       ConfigSection = "session"
	SectionStorage       ConfigSection = "storage"
	SectionNotifications ConfigSection = "notifications"
	SectionSaveExit      ConfigSection = "save_exit"
	SectionDiscardExit   ConfigSection = "discard_exit"
)

// Run starts the TUI configuration wizard. The given config is edited in
// place; the caller persists it only when Cancelled is false.
func Run(cfg *config.Config) (*ConfigureResult, error) {
	for {
		clearScreen()
		fmt.Println(Logo())
		fmt.Println()

		section, err := selectSection(cfg)
		if err != nil {
			return &ConfigureResult{Cancelled: true}, nil
		}

		switch section {
		case SectionSaveExit:
			confirmed, err := showSummary(cfg)
			if err != nil {
				return &ConfigureResult{Cancelled: true}, nil
			}
			if confirmed {
				return &ConfigureResult{Config: cfg, Cancelled: false}, nil
			}

		case SectionDiscardExit:
			return &ConfigureResult{Cancelled: true}, nil

		case SectionTranscription:
			if err := editTranscription(cfg); err != nil {
				continue
			}

		case SectionRecording:
			if err := editRecording(cfg); err != nil {
				continue
			}

		case SectionSession:
			if err := editSession(cfg); err != nil {
				continue
			}

		case SectionStorage:
			if err := editStorage(cfg); err != nil {
				continue
			}

		case SectionNotifications:
			if err := editNotifications(cfg); err != nil {
				continue
			}
		}
	}
}

func selectSection(cfg *config.Config) (ConfigSection, error) {
	options := []huh.Option[ConfigSection]{
		huh.NewOption(formatTranscriptionLabel(cfg), SectionTranscription),
		huh.NewOption(formatRecordingLabel(cfg), SectionRecording),
		huh.NewOption(formatSessionLabel(cfg), SectionSession),
		huh.NewOption(formatStorageLabel(cfg), SectionStorage),
		huh.NewOption(formatNotificationsLabel(cfg), SectionNotifications),
		huh.NewOption("Save & Exit", SectionSaveExit),
		huh.NewOption("Discard & Exit", SectionDiscardExit),
	}

	var selected ConfigSection
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[ConfigSection]().
				Title("Configuration Menu").
				Description("↑/↓ navigate • enter select • esc cancel").
				Options(options...).
				Value(&selected),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return "", err
	}

	return selected, nil
}

// showSummary validates the config, renders it, and asks for confirmation.
func showSummary(cfg *config.Config) (bool, error) {
	if err := cfg.Validate(); err != nil {
		clearScreen()
		fmt.Println(Logo())
		fmt.Println()
		fmt.Println(StyleError.Render("Configuration is not valid:"))
		fmt.Printf("  %v\n\n", err)
		fmt.Println(StyleMuted.Render("Press enter to go back and fix it."))
		fmt.Scanln()
		return false, nil
	}

	clearScreen()
	fmt.Println(Logo())
	fmt.Println()

	var b strings.Builder
	fmt.Fprintf(&b, "Transcription:  %s\n", describeTranscription(cfg))
	fmt.Fprintf(&b, "Segments:       every %s at %d Hz\n",
		cfg.Recording.SegmentDuration, cfg.Recording.SampleRate)
	fmt.Fprintf(&b, "Auto-save:      %s\n", describeInterval(cfg.Session.AutoSaveInterval))
	fmt.Fprintf(&b, "Final drain:    %s\n", describeDrain(cfg.Session.FinalDrainTimeout))
	fmt.Fprintf(&b, "Storage:        %s\n", describeStorage(cfg))
	fmt.Fprintf(&b, "Notifications:  %s", describeNotifications(cfg))
	fmt.Println(StyleBox.Render(b.String()))

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this configuration?").
				Affirmative("Save").
				Negative("Back").
				Value(&confirmed),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

func describeTranscription(cfg *config.Config) string {
	if !cfg.Transcription.Enabled {
		return "disabled (audio kept for later)"
	}
	lang := cfg.Transcription.Language
	if lang == "" {
		lang = "auto-detect"
	}
	return fmt.Sprintf("%s %s (%s)", cfg.Transcription.Provider, cfg.Transcription.Model, lang)
}

func describeInterval(d time.Duration) string {
	if d == 0 {
		return "disabled"
	}
	return fmt.Sprintf("every %s", d)
}

func describeDrain(d time.Duration) string {
	if d == 0 {
		return "none (snapshot transcript at stop)"
	}
	return fmt.Sprintf("wait up to %s for pending chunks", d)
}

func describeStorage(cfg *config.Config) string {
	dir := cfg.Storage.Directory
	if dir == "" {
		dir = "~/.local/share/voicelog"
	}
	if cfg.Storage.KeepAudio {
		return dir + " (audio kept)"
	}
	return dir + " (transcripts only)"
}

func describeNotifications(cfg *config.Config) string {
	if !cfg.Notifications.Enabled {
		return "disabled"
	}
	return cfg.Notifications.Type
}

// clearScreen clears the terminal screen
func clearScreen() {
	output := termenv.NewOutput(os.Stdout)
	output.ClearScreen()
}

func getTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Focused.Base = lipgloss.NewStyle().BorderForeground(ColorPrimary)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(ColorSecondary)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(ColorText)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Blurred.Description = lipgloss.NewStyle().Foreground(ColorSubtle)

	return t
}
