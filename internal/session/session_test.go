package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emorandi/voicelog/internal/capture"
	"github.com/emorandi/voicelog/internal/ledger"
	"github.com/emorandi/voicelog/internal/transcribe"
)

// fakeEncoder lets tests script segment emission. Stop closes the segment
// channel, mirroring the real recorder's stop acknowledgment.
type fakeEncoder struct {
	mu         sync.Mutex
	segCh      chan capture.Segment
	errCh      chan error
	partial    []byte
	started    bool
	pauseCalls int
	resumeCall int
	flushCalls int
	stopCalls  int
	stopOnce   sync.Once
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{
		segCh: make(chan capture.Segment, 8),
		errCh: make(chan error, 1),
	}
}

func (f *fakeEncoder) Start(ctx context.Context) (<-chan capture.Segment, <-chan error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return f.segCh, f.errCh, nil
}

func (f *fakeEncoder) emitSegment(data string, end time.Time) {
	f.segCh <- capture.Segment{
		Data:  []byte(data),
		Start: end.Add(-25 * time.Second),
		End:   end,
	}
}

func (f *fakeEncoder) setPartial(data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partial = []byte(data)
}

func (f *fakeEncoder) emitError(err error) {
	f.errCh <- err
}

func (f *fakeEncoder) Flush() error {
	f.mu.Lock()
	f.flushCalls++
	partial := f.partial
	f.partial = nil
	f.mu.Unlock()

	if len(partial) > 0 {
		now := time.Now()
		f.segCh <- capture.Segment{Data: partial, Start: now.Add(-5 * time.Second), End: now}
	}
	return nil
}

func (f *fakeEncoder) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauseCalls++
	return nil
}

func (f *fakeEncoder) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumeCall++
	return nil
}

func (f *fakeEncoder) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.segCh) })
	return nil
}

func (f *fakeEncoder) MimeType() string { return "audio/test" }

// fakeAdapter echoes the payload as transcript unless fn overrides it.
type fakeAdapter struct {
	mu    sync.Mutex
	calls int
	fn    func(audio []byte) (transcribe.Result, error)
}

func (f *fakeAdapter) Transcribe(ctx context.Context, audio []byte, language string) (transcribe.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(audio)
	}
	return transcribe.Result{Text: string(audio), Confidence: 0.9}, nil
}

func fastQueueConfig() transcribe.QueueConfig {
	return transcribe.QueueConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   4 * time.Millisecond,
	}
}

type testHarness struct {
	enc        *fakeEncoder
	adapter    *fakeAdapter
	controller *Controller

	mu        sync.Mutex
	completed []Recording
	autosaves []string
}

func newHarness(t *testing.T, cfg Config, adapter *fakeAdapter) *testHarness {
	t.Helper()
	h := &testHarness{enc: newFakeEncoder(), adapter: adapter}
	if h.adapter == nil {
		h.adapter = &fakeAdapter{}
	}
	factory := func() (capture.Encoder, error) { return h.enc, nil }
	callbacks := Callbacks{
		OnAutoSave: func(transcript string, chunks []ledger.Chunk) {
			h.mu.Lock()
			h.autosaves = append(h.autosaves, transcript)
			h.mu.Unlock()
		},
		OnComplete: func(rec Recording) {
			h.mu.Lock()
			h.completed = append(h.completed, rec)
			h.mu.Unlock()
		},
	}
	h.controller = New(cfg, h.adapter, fastQueueConfig(), factory, callbacks)
	t.Cleanup(h.controller.Close)
	return h
}

func (h *testHarness) recordings() []Recording {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Recording, len(h.completed))
	copy(out, h.completed)
	return out
}

// waitChunks blocks until the ledger holds n chunks, so segment intake has
// definitely happened before the test proceeds.
func (h *testHarness) waitChunks(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(h.controller.Chunks()) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d chunks, have %d", n, len(h.controller.Chunks()))
}

func TestContinuousSession(t *testing.T) {
	// 55 seconds at a 25-second interval: two full segments plus the
	// trailing partial emitted on flush.
	cfg := DefaultConfig()
	cfg.AutoSaveInterval = 0
	cfg.FinalDrainTimeout = 2 * time.Second

	h := newHarness(t, cfg, nil)
	if err := h.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !h.controller.Recording() {
		t.Fatal("controller should be recording after Start")
	}

	base := time.Now()
	h.enc.emitSegment("I woke up early.", base.Add(25*time.Second))
	h.enc.emitSegment("The coffee was good.", base.Add(50*time.Second))
	h.waitChunks(t, 2)
	h.enc.setPartial("Time to work.")

	if err := h.controller.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	recs := h.recordings()
	if len(recs) != 1 {
		t.Fatalf("completion callback invoked %d times, want exactly 1", len(recs))
	}
	rec := recs[0]

	if len(rec.Chunks) != 3 {
		t.Fatalf("finalized with %d chunks, want 3", len(rec.Chunks))
	}
	for i, c := range rec.Chunks {
		if c.Index != i {
			t.Errorf("chunk[%d].Index = %d, want %d", i, c.Index, i)
		}
		if c.Status != ledger.StatusDone {
			t.Errorf("chunk[%d].Status = %s, want done", i, c.Status)
		}
	}

	want := "I woke up early. The coffee was good. Time to work."
	if rec.Transcript != want {
		t.Errorf("transcript = %q, want %q", rec.Transcript, want)
	}
	if rec.Stats.Done != 3 || rec.Stats.Total != 3 {
		t.Errorf("stats = %+v, want 3 total / 3 done", rec.Stats)
	}
	if rec.MimeType != "audio/test" {
		t.Errorf("mime type = %q, want audio/test", rec.MimeType)
	}

	if h.controller.Recording() {
		t.Error("controller should be idle after Stop")
	}
	if h.controller.Stats().Total != 0 {
		t.Error("ledger should be cleared after handoff")
	}
}

func TestNoDataLossOnStop(t *testing.T) {
	// With auto-transcribe off, payloads are never released, so the
	// finalized audio must account for every pre-stop segment.
	cfg := DefaultConfig()
	cfg.AutoTranscribe = false
	cfg.AutoSaveInterval = 0

	h := newHarness(t, cfg, nil)
	if err := h.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	base := time.Now()
	segments := []string{"aaaa", "bbbb", "cccc"}
	for i, s := range segments {
		h.enc.emitSegment(s, base.Add(time.Duration(i+1)*25*time.Second))
	}
	h.waitChunks(t, 3)

	if err := h.controller.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	recs := h.recordings()
	if len(recs) != 1 {
		t.Fatalf("completion callback invoked %d times, want 1", len(recs))
	}
	if got, want := string(recs[0].Audio), "aaaabbbbcccc"; got != want {
		t.Errorf("finalized audio = %q, want %q", got, want)
	}
	if recs[0].Stats.Pending != 3 {
		t.Errorf("stats = %+v, want 3 pending with auto-transcribe off", recs[0].Stats)
	}
}

func TestDoubleStartIsNoOp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoSaveInterval = 0

	var factoryCalls int
	h := &testHarness{enc: newFakeEncoder(), adapter: &fakeAdapter{}}
	factory := func() (capture.Encoder, error) {
		factoryCalls++
		return h.enc, nil
	}
	h.controller = New(cfg, h.adapter, fastQueueConfig(), factory, Callbacks{})
	t.Cleanup(h.controller.Close)

	if err := h.controller.Start(context.Background()); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := h.controller.Start(context.Background()); err != nil {
		t.Errorf("second Start should be a no-op, got %v", err)
	}

	if factoryCalls != 1 {
		t.Errorf("encoder created %d times, want 1", factoryCalls)
	}
	if !h.controller.Recording() {
		t.Error("controller should still be recording")
	}
	if err := h.controller.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestStopWhenIdleIsNoOp(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	if err := h.controller.Stop(); err != nil {
		t.Errorf("Stop while idle should be a no-op, got %v", err)
	}
	if len(h.recordings()) != 0 {
		t.Error("no completion expected for a session that never started")
	}
}

func TestEmptySessionSkipsHandoff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoSaveInterval = 0

	h := newHarness(t, cfg, nil)
	if err := h.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.controller.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if len(h.recordings()) != 0 {
		t.Error("completion callback should be skipped when nothing was captured")
	}
}

func TestMiddleChunkFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoSaveInterval = 0
	cfg.FinalDrainTimeout = 2 * time.Second

	adapter := &fakeAdapter{
		fn: func(audio []byte) (transcribe.Result, error) {
			if string(audio) == "corrupted segment" {
				return transcribe.Result{}, errors.New("decode failure")
			}
			return transcribe.Result{Text: string(audio), Confidence: 0.8}, nil
		},
	}
	h := newHarness(t, cfg, adapter)
	if err := h.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	base := time.Now()
	h.enc.emitSegment("First thought.", base.Add(25*time.Second))
	h.enc.emitSegment("corrupted segment", base.Add(50*time.Second))
	h.enc.emitSegment("Final thought.", base.Add(75*time.Second))
	h.waitChunks(t, 3)

	if err := h.controller.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	recs := h.recordings()
	if len(recs) != 1 {
		t.Fatalf("completion callback invoked %d times, want 1", len(recs))
	}
	rec := recs[0]

	want := ledger.StatsSnapshot{Total: 3, Done: 2, Failed: 1}
	if rec.Stats != want {
		t.Errorf("stats = %+v, want %+v", rec.Stats, want)
	}
	if got, want := rec.Transcript, "First thought. Final thought."; got != want {
		t.Errorf("transcript = %q, want %q", got, want)
	}

	// The failed chunk keeps its payload for manual retry; done chunks were
	// released, so the audio holds only the failed segment's bytes.
	if !strings.Contains(string(rec.Audio), "corrupted segment") {
		t.Error("failed chunk payload missing from finalized audio")
	}
}

func TestPauseResumeGuards(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoSaveInterval = 0

	h := newHarness(t, cfg, nil)

	t.Run("pause while idle is a no-op", func(t *testing.T) {
		if err := h.controller.Pause(); err != nil {
			t.Errorf("Pause while idle: %v", err)
		}
		if h.enc.pauseCalls != 0 {
			t.Error("encoder pause should not be called while idle")
		}
	})

	if err := h.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	t.Run("pause and resume while recording", func(t *testing.T) {
		if err := h.controller.Pause(); err != nil {
			t.Fatalf("Pause failed: %v", err)
		}
		if !h.controller.Paused() {
			t.Error("controller should report paused")
		}
		if err := h.controller.Resume(); err != nil {
			t.Fatalf("Resume failed: %v", err)
		}
		if h.controller.Paused() {
			t.Error("controller should report not paused")
		}
		if h.enc.pauseCalls != 1 || h.enc.resumeCall != 1 {
			t.Errorf("encoder pause/resume calls = %d/%d, want 1/1", h.enc.pauseCalls, h.enc.resumeCall)
		}
	})

	t.Run("resume while not paused is a no-op", func(t *testing.T) {
		if err := h.controller.Resume(); err != nil {
			t.Errorf("Resume while running: %v", err)
		}
		if h.enc.resumeCall != 1 {
			t.Error("encoder resume should not be called when not paused")
		}
	})

	if err := h.controller.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestCaptureErrorSalvagesSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoSaveInterval = 0
	cfg.FinalDrainTimeout = 2 * time.Second

	h := newHarness(t, cfg, nil)
	if err := h.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	h.enc.emitSegment("captured before the microphone died", time.Now())
	h.waitChunks(t, 1)
	h.enc.emitError(errors.New("device unplugged"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && h.controller.Recording() {
		time.Sleep(5 * time.Millisecond)
	}

	if h.controller.Recording() {
		t.Fatal("controller should have auto-stopped after capture error")
	}
	if h.controller.Err() == nil {
		t.Error("last error should be recorded")
	}

	recs := h.recordings()
	if len(recs) != 1 {
		t.Fatalf("completion callback invoked %d times, want 1 (salvaged session)", len(recs))
	}
	if recs[0].Transcript != "captured before the microphone died" {
		t.Errorf("salvaged transcript = %q", recs[0].Transcript)
	}
}

func TestEncoderAcquisitionFailure(t *testing.T) {
	cfg := DefaultConfig()
	factory := func() (capture.Encoder, error) {
		return nil, errors.New("permission denied")
	}
	c := New(cfg, &fakeAdapter{}, fastQueueConfig(), factory, Callbacks{})
	t.Cleanup(c.Close)

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("Start should surface encoder acquisition failure")
	}
	if c.Recording() {
		t.Error("session must remain idle after acquisition failure")
	}
	if c.Err() == nil {
		t.Error("last error should be recorded")
	}

	// The failure is recoverable: a later start with a working encoder runs.
	c.newEncoder = func() (capture.Encoder, error) { return newFakeEncoder(), nil }
	if err := c.Start(context.Background()); err != nil {
		t.Errorf("retry after recoverable failure should work: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestAutoSave(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoSaveInterval = 20 * time.Millisecond
	cfg.FinalDrainTimeout = 2 * time.Second

	h := newHarness(t, cfg, nil)
	if err := h.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	h.enc.emitSegment("draft text", time.Now())
	h.waitChunks(t, 1)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		n := len(h.autosaves)
		h.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.mu.Lock()
	periodic := len(h.autosaves)
	h.mu.Unlock()
	if periodic == 0 {
		t.Fatal("auto-save callback never fired")
	}

	if err := h.controller.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// One more auto-save fires at stop, with the final transcript.
	h.mu.Lock()
	final := h.autosaves[len(h.autosaves)-1]
	h.mu.Unlock()
	if final != "draft text" {
		t.Errorf("final auto-save transcript = %q, want %q", final, "draft text")
	}
}

func TestLiveReadsDuringRecording(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoSaveInterval = 0

	h := newHarness(t, cfg, nil)
	if err := h.controller.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	h.enc.emitSegment("live preview works", time.Now())
	h.waitChunks(t, 1)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && h.controller.Stats().Done == 0 {
		time.Sleep(time.Millisecond)
	}

	if got := h.controller.Transcript(); got != "live preview works" {
		t.Errorf("live transcript = %q, want %q", got, "live preview works")
	}
	stats := h.controller.Stats()
	if stats.Total != 1 || stats.Done != 1 {
		t.Errorf("live stats = %+v, want 1 total / 1 done", stats)
	}

	if err := h.controller.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
