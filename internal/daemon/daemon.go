package daemon

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/emorandi/voicelog/internal/bus"
	"github.com/emorandi/voicelog/internal/capture"
	"github.com/emorandi/voicelog/internal/config"
	"github.com/emorandi/voicelog/internal/ledger"
	"github.com/emorandi/voicelog/internal/notify"
	"github.com/emorandi/voicelog/internal/session"
	"github.com/emorandi/voicelog/internal/store"
	"github.com/emorandi/voicelog/internal/transcribe"
)

// Daemon owns the long-running journaling service: the control socket, the
// recording session controller, the journal store, and notifications.
type Daemon struct {
	mu       sync.Mutex
	manager  *config.Manager
	notifier notify.Notifier
	store    *store.Store

	controller *session.Controller
	language   string
	sampleRate int
	channels   int

	newEncoder session.EncoderFactory

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Daemon)

// WithNotifier overrides the notifier derived from configuration.
func WithNotifier(n notify.Notifier) Option {
	return func(d *Daemon) { d.notifier = n }
}

// WithEncoderFactory overrides microphone acquisition, for tests.
func WithEncoderFactory(f session.EncoderFactory) Option {
	return func(d *Daemon) { d.newEncoder = f }
}

func New(manager *config.Manager, opts ...Option) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		manager: manager,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(d)
	}

	cfg := manager.GetConfig()

	if d.notifier == nil {
		d.notifier = notify.New(cfg.Notifications.Enabled, cfg.Notifications.Type)
	}

	storageDir, err := cfg.StorageDir()
	if err != nil {
		cancel()
		return nil, err
	}
	st, err := store.Open(storageDir, cfg.Storage.KeepAudio)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open journal store: %w", err)
	}
	d.store = st

	if err := d.buildController(cfg); err != nil {
		st.Close()
		cancel()
		return nil, err
	}

	manager.OnReload(d.applyConfig)

	return d, nil
}

// buildController assembles a session controller from the given config.
// Caller holds no locks; the new controller replaces any idle previous one.
func (d *Daemon) buildController(cfg *config.Config) error {
	var adapter transcribe.Adapter
	if cfg.Transcription.Enabled {
		a, err := transcribe.NewAdapter(cfg.ToTranscribeConfig())
		if err != nil {
			return fmt.Errorf("create transcription adapter: %w", err)
		}
		adapter = a
	}

	factory := d.newEncoder
	if factory == nil {
		captureCfg := cfg.ToCaptureConfig()
		factory = func() (capture.Encoder, error) {
			return capture.NewRecorder(captureCfg), nil
		}
	}

	storageDir, err := cfg.StorageDir()
	if err != nil {
		return err
	}
	draftPath := filepath.Join(storageDir, "autosave.txt")

	callbacks := session.Callbacks{
		OnAutoSave: func(transcript string, chunks []ledger.Chunk) {
			d.writeDraft(draftPath, transcript)
		},
		OnComplete: func(rec session.Recording) {
			d.persist(rec, draftPath)
		},
	}

	controller := session.New(cfg.ToSessionConfig(), adapter, cfg.ToQueueConfig(), factory, callbacks)

	d.mu.Lock()
	old := d.controller
	d.controller = controller
	d.language = cfg.Transcription.Language
	d.sampleRate = cfg.Recording.SampleRate
	d.channels = cfg.Recording.Channels
	d.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// applyConfig reacts to a live config reload. A recording in progress keeps
// its current settings; the new config takes effect for the next session.
func (d *Daemon) applyConfig(cfg *config.Config) {
	d.mu.Lock()
	recording := d.controller != nil && d.controller.Recording()
	d.mu.Unlock()

	if recording {
		log.Printf("daemon: config changed mid-session, applying on next start")
		return
	}
	if err := d.buildController(cfg); err != nil {
		log.Printf("daemon: failed to apply reloaded config: %v", err)
		d.notifier.Error(fmt.Sprintf("Config reload failed: %v", err))
		return
	}
	d.notifier.Notify("Voicelog", "Configuration reloaded")
}

// writeDraft persists the in-progress transcript for crash recovery.
func (d *Daemon) writeDraft(path, transcript string) {
	if err := os.WriteFile(path, []byte(transcript), 0600); err != nil {
		log.Printf("daemon: auto-save draft failed: %v", err)
	}
}

// persist saves a finalized recording as a journal entry and clears the
// crash-recovery draft.
func (d *Daemon) persist(rec session.Recording, draftPath string) {
	d.mu.Lock()
	sampleRate := d.sampleRate
	channels := d.channels
	language := d.language
	st := d.store
	d.mu.Unlock()

	var audio []byte
	if len(rec.Audio) > 0 {
		audio = transcribe.WrapWAV(rec.Audio, sampleRate, channels)
	}

	entry, err := st.Save(rec, language, audio)
	if err != nil {
		log.Printf("daemon: failed to save journal entry: %v", err)
		d.notifier.Error(fmt.Sprintf("Failed to save journal entry: %v", err))
		return
	}
	log.Printf("daemon: journal entry %s saved (%d chunks, %d failed)",
		entry.ID, rec.Stats.Total, rec.Stats.Failed)

	for _, chunk := range rec.Chunks {
		if chunk.Status == ledger.StatusFailed {
			d.notifier.ChunkFailed(chunk.Index)
		}
	}
	d.notifier.EntrySaved(preview(rec.Transcript))

	if err := os.Remove(draftPath); err != nil && !os.IsNotExist(err) {
		log.Printf("daemon: failed to remove draft: %v", err)
	}
}

func preview(transcript string) string {
	const max = 60
	transcript = strings.TrimSpace(transcript)
	if len(transcript) <= max {
		return transcript
	}
	return transcript[:max] + "..."
}

func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	if err := d.manager.StartWatching(d.ctx); err != nil {
		log.Printf("daemon: config watching unavailable: %v", err)
	}
	defer d.manager.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		log.Printf("daemon: received signal %v, shutting down gracefully", sig)
		d.cancel()
	}()

	// Close the listener when context is done
	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	log.Printf("daemon: started, listening on socket")

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				log.Printf("daemon: shutdown requested")
				d.shutdown()
				return nil
			}
			log.Printf("daemon: accept error: %v", err)
			d.shutdown()
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(c)
	}
}

// shutdown stops any active session so captured audio is finalized rather
// than lost, then releases the store.
func (d *Daemon) shutdown() {
	d.mu.Lock()
	controller := d.controller
	st := d.store
	d.mu.Unlock()

	if controller != nil {
		if controller.Recording() {
			if err := controller.Stop(); err != nil {
				log.Printf("daemon: stop during shutdown failed: %v", err)
			}
		}
		controller.Close()
	}
	if st != nil {
		st.Close()
	}
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		log.Printf("daemon: client read error: %v", err)
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	if len(line) == 0 {
		fmt.Fprint(c, "ERR empty\n")
		return
	}
	cmd := line[0]

	switch cmd {
	case bus.CmdToggle:
		d.toggle(c)
	case bus.CmdPause:
		if err := d.controllerRef().Pause(); err != nil {
			fmt.Fprintf(c, "ERR pause: %v\n", err)
			return
		}
		fmt.Fprint(c, "OK paused\n")
	case bus.CmdResume:
		if err := d.controllerRef().Resume(); err != nil {
			fmt.Fprintf(c, "ERR resume: %v\n", err)
			return
		}
		fmt.Fprint(c, "OK resumed\n")
	case bus.CmdStatus:
		d.writeStatus(c)
	case bus.CmdTranscript:
		transcript := d.controllerRef().Transcript()
		fmt.Fprintf(c, "TRANSCRIPT %s\n", transcript)
	case bus.CmdRetryFailed:
		n := d.controllerRef().RetryFailed()
		fmt.Fprintf(c, "OK retried=%d\n", n)
	case bus.CmdVersion:
		fmt.Fprintf(c, "STATUS proto=%s\n", bus.ProtoVer)
	case bus.CmdQuit:
		fmt.Fprint(c, "OK quitting\n")
		d.cancel()
	default:
		log.Printf("daemon: unknown command: %c", cmd)
		fmt.Fprintf(c, "ERR unknown=%q\n", cmd)
	}
}

func (d *Daemon) controllerRef() *session.Controller {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.controller
}

func (d *Daemon) toggle(c net.Conn) {
	controller := d.controllerRef()

	if controller.Recording() {
		if err := controller.Stop(); err != nil {
			fmt.Fprintf(c, "ERR stop: %v\n", err)
			return
		}
		d.notifier.RecordingStopped()
		fmt.Fprint(c, "STATUS recording=false\n")
		return
	}

	if err := controller.Start(d.ctx); err != nil {
		log.Printf("daemon: start failed: %v", err)
		d.notifier.Error(fmt.Sprintf("Could not start recording: %v", err))
		fmt.Fprintf(c, "ERR start: %v\n", err)
		return
	}
	d.notifier.RecordingStarted()
	fmt.Fprint(c, "STATUS recording=true\n")
}

func (d *Daemon) writeStatus(c net.Conn) {
	controller := d.controllerRef()

	status := "idle"
	if controller.Recording() {
		status = "recording"
		if controller.Paused() {
			status = "paused"
		}
	}
	stats := controller.Stats()
	fmt.Fprintf(c, "STATUS status=%s timer=%d total=%d done=%d failed=%d\n",
		status, controller.Timer(), stats.Total, stats.Done, stats.Failed)
}

// Recording reports whether a session is active, for tests and callers that
// hold a daemon reference.
func (d *Daemon) Recording() bool {
	return d.controllerRef().Recording()
}
