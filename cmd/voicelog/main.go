package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/emorandi/voicelog/internal/bus"
	"github.com/emorandi/voicelog/internal/config"
	"github.com/emorandi/voicelog/internal/daemon"
	"github.com/emorandi/voicelog/internal/deps"
	"github.com/emorandi/voicelog/internal/store"
	"github.com/emorandi/voicelog/internal/tui"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "voicelog",
	Short:         "Continuous voice journaling with live transcription",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		toggleCmd(),
		pauseCmd(),
		resumeCmd(),
		statusCmd(),
		transcriptCmd(),
		retryCmd(),
		versionCmd(),
		stopCmd(),
		configureCmd(),
		doctorCmd(),
		journalCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := config.NewManager()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			d, err := daemon.New(manager)
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}
			return d.Run()
		},
	}
}

// sendCmd builds a command that forwards a single control byte to the daemon.
func sendCmd(use, short string, b byte, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(b)
			if err != nil {
				return fmt.Errorf("failed to %s: %w", action, err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func toggleCmd() *cobra.Command {
	return sendCmd("toggle", "Start or stop the recording session", bus.CmdToggle, "toggle recording")
}

func pauseCmd() *cobra.Command {
	return sendCmd("pause", "Pause audio capture", bus.CmdPause, "pause recording")
}

func resumeCmd() *cobra.Command {
	return sendCmd("resume", "Resume a paused session", bus.CmdResume, "resume recording")
}

func statusCmd() *cobra.Command {
	return sendCmd("status", "Get session status and chunk counts", bus.CmdStatus, "get status")
}

func transcriptCmd() *cobra.Command {
	return sendCmd("transcript", "Print the live transcript so far", bus.CmdTranscript, "get transcript")
}

func retryCmd() *cobra.Command {
	return sendCmd("retry", "Re-enqueue failed chunks for transcription", bus.CmdRetryFailed, "retry failed chunks")
}

func versionCmd() *cobra.Command {
	return sendCmd("version", "Get protocol version", bus.CmdVersion, "get version")
}

func stopCmd() *cobra.Command {
	return sendCmd("stop", "Stop the daemon", bus.CmdQuit, "stop daemon")
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration wizard for voicelog.
This will guide you through setting up:
- Transcription provider and API keys (OpenAI, Groq)
- Recording segment duration
- Auto-save and finalization behavior
- Journal storage and notification preferences`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure()
		},
	}
}

func runConfigure() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result, err := tui.Run(cfg)
	if err != nil {
		return fmt.Errorf("configuration wizard error: %w", err)
	}

	if result.Cancelled {
		fmt.Println("Configuration cancelled.")
		return nil
	}

	if err := config.Save(result.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("Configuration saved successfully!")
	fmt.Println()

	showNextSteps()
	return nil
}

func showNextSteps() {
	fmt.Println("Next Steps:")
	fmt.Println("1. Start the daemon: voicelog serve (or systemctl --user restart voicelog.service)")
	fmt.Println("2. Start journaling: voicelog toggle")
	fmt.Println("3. Read entries:     voicelog journal list")
	fmt.Println()

	configPath, _ := config.GetConfigPath()
	fmt.Printf("Config file location: %s\n", configPath)
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ok := true

			printDep := func(name string, status deps.Status, required bool) {
				switch {
				case status.Installed && status.Version != "":
					fmt.Printf("[x] %-12s %s (%s)\n", name, status.Path, status.Version)
				case status.Installed:
					fmt.Printf("[x] %-12s %s\n", name, status.Path)
				case required:
					fmt.Printf("[ ] %-12s not found (required for recording)\n", name)
					ok = false
				default:
					fmt.Printf("[ ] %-12s not found (desktop notifications unavailable)\n", name)
				}
			}

			printDep("pw-record", deps.CheckPwRecord(), true)
			printDep("notify-send", deps.CheckNotifySend(), false)

			cfg, err := config.Load()
			if err != nil {
				fmt.Printf("[ ] config       %v\n", err)
				return fmt.Errorf("configuration is not loadable")
			}
			if err := cfg.Validate(); err != nil {
				fmt.Printf("[ ] config       %v\n", err)
				ok = false
			} else {
				path, _ := config.GetConfigPath()
				fmt.Printf("[x] config       %s\n", path)
			}

			if _, err := bus.SendCommand(bus.CmdStatus); err != nil {
				fmt.Printf("[ ] daemon       not running (start with: voicelog serve)\n")
			} else {
				fmt.Printf("[x] daemon       running\n")
			}

			if !ok {
				return fmt.Errorf("some checks failed")
			}
			return nil
		},
	}
}

func journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Browse saved journal entries",
	}

	cmd.AddCommand(journalListCmd())
	cmd.AddCommand(journalShowCmd())
	cmd.AddCommand(journalExportCmd())
	cmd.AddCommand(journalDeleteCmd())

	return cmd
}

// openStore opens the journal store at the configured location.
func openStore() (*store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	dir, err := cfg.StorageDir()
	if err != nil {
		return nil, err
	}
	return store.Open(dir, cfg.Storage.KeepAudio)
}

func journalListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.List(limit)
			if err != nil {
				return fmt.Errorf("failed to list entries: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println("No journal entries yet. Start one with: voicelog toggle")
				return nil
			}

			printEntries(entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show (0 for all)")

	return cmd
}

func printEntries(entries []store.Entry) {
	for _, e := range entries {
		fmt.Println(formatEntryLine(e))
	}
}

// formatEntryLine renders one entry for journal list output.
func formatEntryLine(e store.Entry) string {
	preview := strings.TrimSpace(e.Transcript)
	preview = strings.Join(strings.Fields(preview), " ")
	if len(preview) > 60 {
		preview = preview[:60] + "..."
	}
	if preview == "" {
		preview = "(no transcript)"
	}

	marker := " "
	if e.ChunkFailed > 0 {
		marker = "!"
	}

	return fmt.Sprintf("%s %s  %s  %4ds  %s",
		marker,
		e.ID[:8],
		e.CreatedAt.Format("2006-01-02 15:04"),
		e.DurationSeconds,
		preview)
}

func journalShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <entry-id>",
		Short: "Print a journal entry's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			entry, err := resolveEntry(st, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Entry:    %s\n", entry.ID)
			fmt.Printf("Created:  %s\n", entry.CreatedAt.Format(time.RFC1123))
			fmt.Printf("Duration: %ds\n", entry.DurationSeconds)
			fmt.Printf("Chunks:   %d (%d transcribed, %d failed)\n",
				entry.ChunkTotal, entry.ChunkDone, entry.ChunkFailed)
			if entry.AudioPath != "" {
				fmt.Printf("Audio:    %s\n", entry.AudioPath)
			}
			fmt.Println()
			fmt.Println(entry.Transcript)
			return nil
		},
	}
}

func journalExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <entry-id>",
		Short: "Export a journal entry as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			entry, err := resolveEntry(st, args[0])
			if err != nil {
				return err
			}

			md, err := st.ExportMarkdown(entry.ID)
			if err != nil {
				return fmt.Errorf("failed to export entry: %w", err)
			}

			if output == "" {
				fmt.Print(md)
				return nil
			}
			if err := os.WriteFile(output, []byte(md), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Printf("Exported to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")

	return cmd
}

func journalDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entry-id>",
		Short: "Delete a journal entry and its audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			entry, err := resolveEntry(st, args[0])
			if err != nil {
				return err
			}

			if err := st.Delete(entry.ID); err != nil {
				return fmt.Errorf("failed to delete entry: %w", err)
			}
			fmt.Printf("Deleted %s\n", entry.ID)
			return nil
		},
	}
}

// resolveEntry looks up an entry by full ID or unique prefix.
func resolveEntry(st *store.Store, id string) (*store.Entry, error) {
	entry, err := st.Get(id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up entry: %w", err)
	}
	if entry != nil {
		return entry, nil
	}

	entries, err := st.List(0)
	if err != nil {
		return nil, fmt.Errorf("failed to look up entry: %w", err)
	}

	var match *store.Entry
	for i := range entries {
		if strings.HasPrefix(entries[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("entry prefix %q is ambiguous", id)
			}
			match = &entries[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no entry found for %q", id)
	}
	return match, nil
}
