package notify

import (
	"fmt"
	"log"
	"os/exec"
)

type Notifier interface {
	RecordingStarted()
	RecordingStopped()
	EntrySaved(transcriptPreview string)
	ChunkFailed(index int)
	Error(msg string)
	Notify(title, body string)
}

// New returns the notifier for the configured type. Unknown types and
// enabled=false fall back to Nop.
func New(enabled bool, typ string) Notifier {
	if !enabled {
		return Nop{}
	}
	switch typ {
	case "desktop":
		return Desktop{}
	case "log":
		return Log{}
	default:
		return Nop{}
	}
}

type Desktop struct{}

func (Desktop) RecordingStarted() {
	send("Voicelog", "Recording Started", false)
}

func (Desktop) RecordingStopped() {
	send("Voicelog", "Recording Stopped", false)
}

func (Desktop) EntrySaved(transcriptPreview string) {
	body := "Journal entry saved"
	if transcriptPreview != "" {
		body = fmt.Sprintf("Saved: %s", transcriptPreview)
	}
	send("Voicelog", body, false)
}

func (Desktop) ChunkFailed(index int) {
	send("Voicelog", fmt.Sprintf("Chunk %d failed to transcribe, retry from the CLI", index), true)
}

func (Desktop) Error(msg string) {
	send("Voicelog", msg, true)
}

func (Desktop) Notify(title, body string) {
	send(title, body, false)
}

func send(title, body string, critical bool) {
	args := []string{"-a", "Voicelog"}
	if critical {
		args = append(args, "-u", "critical")
	}
	args = append(args, title, body)
	if err := exec.Command("notify-send", args...).Run(); err != nil {
		log.Printf("notify: failed to send notification: %v", err)
	}
}

// Log writes notifications to the daemon log instead of the desktop.
type Log struct{}

func (Log) RecordingStarted() {
	log.Printf("notify: Voicelog: Recording Started")
}

func (Log) RecordingStopped() {
	log.Printf("notify: Voicelog: Recording Stopped")
}

func (Log) EntrySaved(transcriptPreview string) {
	log.Printf("notify: Voicelog: entry saved: %s", transcriptPreview)
}

func (Log) ChunkFailed(index int) {
	log.Printf("notify: Voicelog: chunk %d failed to transcribe", index)
}

func (Log) Error(msg string) {
	log.Printf("notify: Voicelog Error: %s", msg)
}

func (Log) Notify(title, body string) {
	log.Printf("notify: %s: %s", title, body)
}

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) RecordingStarted()         {}
func (Nop) RecordingStopped()         {}
func (Nop) EntrySaved(string)         {}
func (Nop) ChunkFailed(int)           {}
func (Nop) Error(msg string)          {}
func (Nop) Notify(title, body string) {}
