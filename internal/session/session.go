package session

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/emorandi/voicelog/internal/capture"
	"github.com/emorandi/voicelog/internal/ledger"
	"github.com/emorandi/voicelog/internal/stitch"
	"github.com/emorandi/voicelog/internal/transcribe"
)

// Config holds the per-session recorder settings.
type Config struct {
	AutoTranscribe   bool
	Language         string
	AutoSaveInterval time.Duration
	// FinalDrainTimeout bounds an optional wait for the transcription queue
	// before finalizing. Zero finalizes from the stop-time snapshot,
	// excluding chunks still pending or in flight.
	FinalDrainTimeout time.Duration
	// StopAckTimeout bounds the wait for the encoder's final segment after
	// a stop request.
	StopAckTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		AutoTranscribe:   true,
		Language:         "en-GB",
		AutoSaveInterval: 10 * time.Second,
		StopAckTimeout:   10 * time.Second,
	}
}

// Recording is the finalized bundle handed to OnComplete exactly once per
// session. Audio is the concatenation of chunk payloads in index order;
// chunks whose payload was released after transcription contribute no bytes,
// so the audio is a best-effort reconstruction.
type Recording struct {
	Audio           []byte
	MimeType        string
	Transcript      string
	DurationSeconds int
	Chunks          []ledger.Chunk
	Stats           ledger.StatsSnapshot
}

// Callbacks are supplied by the caller of the session controller.
type Callbacks struct {
	// OnAutoSave receives the current stitched transcript periodically and
	// at stop, for crash-recovery persistence.
	OnAutoSave func(transcript string, chunks []ledger.Chunk)
	// OnComplete receives the finalized recording.
	OnComplete func(Recording)
}

// EncoderFactory creates a fresh encoder for each session.
type EncoderFactory func() (capture.Encoder, error)

// Controller owns the recording lifecycle: start/stop/pause/resume guards,
// segment intake, the 1Hz timer, periodic auto-save, and the one-time
// finalization handoff.
type Controller struct {
	cfg        Config
	adapter    transcribe.Adapter
	queueCfg   transcribe.QueueConfig
	newEncoder EncoderFactory
	callbacks  Callbacks

	mu            sync.Mutex
	recording     bool
	paused        bool
	stopping      bool
	encoder       capture.Encoder
	led           *ledger.Ledger
	queue         *transcribe.Queue
	mimeType      string
	startTime     time.Time
	chunkStart    time.Time
	nextIndex     int
	capturedBytes int64
	timerSecs     int
	lastErr       error
	loopDone      chan struct{}
}

func New(cfg Config, adapter transcribe.Adapter, queueCfg transcribe.QueueConfig, factory EncoderFactory, callbacks Callbacks) *Controller {
	queueCfg.Language = cfg.Language
	return &Controller{
		cfg:        cfg,
		adapter:    adapter,
		queueCfg:   queueCfg,
		newEncoder: factory,
		callbacks:  callbacks,
		led:        ledger.New(),
	}
}

// Start begins a recording session. Starting while already recording is a
// logged no-op. A capability failure (microphone denied or unavailable) is
// returned as a recoverable error and the session stays idle.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.recording {
		c.mu.Unlock()
		log.Printf("session: start ignored, already recording")
		return nil
	}

	enc, err := c.newEncoder()
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		return fmt.Errorf("acquire encoder: %w", err)
	}

	segCh, errCh, err := enc.Start(ctx)
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		return fmt.Errorf("start capture: %w", err)
	}

	// Previous session's queue may still be draining stragglers.
	if c.queue != nil {
		c.queue.Close()
	}

	now := time.Now()
	c.encoder = enc
	c.led = ledger.New()
	c.queue = transcribe.NewQueue(c.adapter, c.led, c.queueCfg)
	c.mimeType = enc.MimeType()
	c.startTime = now
	c.chunkStart = now
	c.nextIndex = 0
	c.capturedBytes = 0
	c.timerSecs = 0
	c.recording = true
	c.paused = false
	c.stopping = false
	c.lastErr = nil
	c.loopDone = make(chan struct{})
	loopDone := c.loopDone
	c.mu.Unlock()

	go c.run(segCh, errCh, loopDone)

	log.Printf("session: recording started (language=%s autoTranscribe=%v)",
		c.cfg.Language, c.cfg.AutoTranscribe)
	return nil
}

// run consumes encoder events until the segment channel closes (stop ack).
func (c *Controller) run(segCh <-chan capture.Segment, errCh <-chan error, loopDone chan struct{}) {
	defer close(loopDone)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var autoSaveC <-chan time.Time // nil unless auto-save is configured
	if c.callbacks.OnAutoSave != nil && c.cfg.AutoSaveInterval > 0 {
		autoSave := time.NewTicker(c.cfg.AutoSaveInterval)
		defer autoSave.Stop()
		autoSaveC = autoSave.C
	}

	for {
		select {
		case seg, ok := <-segCh:
			if !ok {
				return
			}
			c.handleSegment(seg)

		case err := <-errCh:
			if err == nil {
				continue
			}
			log.Printf("session: capture error: %v, stopping to salvage session", err)
			c.mu.Lock()
			c.lastErr = err
			c.mu.Unlock()
			// Stop waits on this loop; run it elsewhere.
			go func() {
				if stopErr := c.Stop(); stopErr != nil {
					log.Printf("session: salvage stop failed: %v", stopErr)
				}
			}()

		case <-ticker.C:
			c.mu.Lock()
			if c.recording && !c.paused {
				c.timerSecs++
			}
			c.mu.Unlock()

		case <-autoSaveC:
			c.mu.Lock()
			paused := c.paused
			snap := c.led.Snapshot()
			c.mu.Unlock()
			if !paused {
				c.callbacks.OnAutoSave(stitch.Stitch(snap), snap)
			}
		}
	}
}

// handleSegment turns an emitted segment into the next ledger chunk. The
// chunk start watermark carries the previous chunk's end so segments are
// contiguous and non-overlapping.
func (c *Controller) handleSegment(seg capture.Segment) {
	if len(seg.Data) == 0 {
		return
	}

	c.mu.Lock()
	index := c.nextIndex
	c.nextIndex++
	start := c.chunkStart
	c.chunkStart = seg.End
	c.capturedBytes += int64(len(seg.Data))
	led := c.led
	queue := c.queue
	c.mu.Unlock()

	chunk := ledger.Chunk{
		ID:      ledger.ChunkID(index, seg.End),
		Index:   index,
		Start:   start,
		End:     seg.End,
		Payload: seg.Data,
		Status:  ledger.StatusPending,
	}
	if err := led.Append(chunk); err != nil {
		log.Printf("session: dropping segment: %v", err)
		return
	}
	log.Printf("session: chunk %d captured (%d bytes, %v..%v)",
		index, len(seg.Data), start.Format("15:04:05"), seg.End.Format("15:04:05"))

	if c.cfg.AutoTranscribe {
		queue.Enqueue(chunk.ID)
	}
}

// Pause suspends capture and the timers. Only valid while recording.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.recording || c.paused || c.stopping {
		log.Printf("session: pause ignored (recording=%v paused=%v)", c.recording, c.paused)
		return nil
	}
	if err := c.encoder.Pause(); err != nil {
		return fmt.Errorf("pause capture: %w", err)
	}
	c.paused = true
	log.Printf("session: paused")
	return nil
}

// Resume continues a paused session.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.recording || !c.paused || c.stopping {
		log.Printf("session: resume ignored (recording=%v paused=%v)", c.recording, c.paused)
		return nil
	}
	if err := c.encoder.Resume(); err != nil {
		return fmt.Errorf("resume capture: %w", err)
	}
	c.paused = false
	log.Printf("session: resumed")
	return nil
}

// Stop flushes buffered audio, awaits the encoder's stop acknowledgment, and
// finalizes the session. Stopping while idle and double invocation are
// logged no-ops.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		log.Printf("session: stop ignored, not recording")
		return nil
	}
	if c.stopping {
		c.mu.Unlock()
		log.Printf("session: stop already in progress")
		return nil
	}
	c.stopping = true
	enc := c.encoder
	loopDone := c.loopDone
	c.mu.Unlock()

	if enc != nil {
		// Emit buffered-but-unflushed audio before stopping so the final
		// partial segment is captured rather than dropped.
		if err := enc.Flush(); err != nil {
			log.Printf("session: flush before stop failed: %v", err)
		}
		if err := enc.Stop(); err != nil {
			log.Printf("session: encoder stop failed: %v", err)
		}
	}

	ackTimeout := c.cfg.StopAckTimeout
	if ackTimeout <= 0 {
		ackTimeout = 10 * time.Second
	}
	select {
	case <-loopDone:
	case <-time.After(ackTimeout):
		log.Printf("session: timed out waiting for final segment, finalizing anyway")
	}

	c.finalize()

	c.mu.Lock()
	c.recording = false
	c.paused = false
	c.stopping = false
	c.encoder = nil
	c.mu.Unlock()

	log.Printf("session: recording stopped")
	return nil
}

// finalize assembles and hands off the completed recording exactly once.
func (c *Controller) finalize() {
	c.mu.Lock()
	led := c.led
	queue := c.queue
	startTime := c.startTime
	mimeType := c.mimeType
	capturedBytes := c.capturedBytes
	c.mu.Unlock()

	if led.Len() == 0 || capturedBytes == 0 {
		log.Printf("session: nothing captured, skipping completion handoff")
		return
	}

	if c.cfg.FinalDrainTimeout > 0 && queue != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), c.cfg.FinalDrainTimeout)
		if err := queue.Wait(drainCtx); err != nil {
			log.Printf("session: final drain incomplete: %v", err)
		}
		cancel()
	}

	snap := led.Snapshot()
	sort.Slice(snap, func(i, j int) bool { return snap[i].Index < snap[j].Index })

	var audio []byte
	for _, chunk := range snap {
		// Released payloads are skipped; audio reassembly is lossy by design
		// once transcripts are durable.
		audio = append(audio, chunk.Payload...)
	}

	transcript := stitch.Stitch(snap)
	rec := Recording{
		Audio:           audio,
		MimeType:        mimeType,
		Transcript:      transcript,
		DurationSeconds: int(time.Since(startTime).Seconds()),
		Chunks:          snap,
		Stats:           led.Stats(),
	}

	if c.callbacks.OnAutoSave != nil {
		c.callbacks.OnAutoSave(transcript, snap)
	}
	if c.callbacks.OnComplete != nil {
		c.callbacks.OnComplete(rec)
	}

	// Handoff done; the session no longer owns the chunks.
	led.Clear()
}

// RetryChunk resubmits a failed chunk for transcription.
func (c *Controller) RetryChunk(id string) bool {
	c.mu.Lock()
	queue := c.queue
	c.mu.Unlock()
	if queue == nil {
		return false
	}
	return queue.Retry(id)
}

// RetryFailed resubmits every failed chunk. Returns the number resubmitted.
func (c *Controller) RetryFailed() int {
	c.mu.Lock()
	led := c.led
	queue := c.queue
	c.mu.Unlock()
	if queue == nil {
		return 0
	}

	var n int
	for _, chunk := range led.Snapshot() {
		if chunk.Status == ledger.StatusFailed && queue.Retry(chunk.ID) {
			n++
		}
	}
	return n
}

// Close releases the transcription queue. Call when the controller itself is
// being torn down, not on session stop.
func (c *Controller) Close() {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.mu.Unlock()
	if queue != nil {
		queue.Close()
	}
}

func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Timer returns elapsed non-paused seconds since start.
func (c *Controller) Timer() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timerSecs
}

func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Chunks returns a read-only snapshot of the session's chunks.
func (c *Controller) Chunks() []ledger.Chunk {
	c.mu.Lock()
	led := c.led
	c.mu.Unlock()
	return led.Snapshot()
}

// Stats returns live chunk counts by status.
func (c *Controller) Stats() ledger.StatsSnapshot {
	c.mu.Lock()
	led := c.led
	c.mu.Unlock()
	return led.Stats()
}

// Transcript returns the live stitched transcript. Safe to call at any time,
// including mid-recording.
func (c *Controller) Transcript() string {
	c.mu.Lock()
	led := c.led
	c.mu.Unlock()
	return stitch.Stitch(led.Snapshot())
}
