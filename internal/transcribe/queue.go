package transcribe

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/emorandi/voicelog/internal/ledger"
)

// QueueConfig bounds the retry behavior of the transcription queue.
type QueueConfig struct {
	Language   string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Language:   "en-GB",
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   8 * time.Second,
	}
}

// Queue is a strictly sequential transcription worker. Chunk IDs are drained
// one at a time in enqueue order, so no two remote calls are ever in flight
// simultaneously for a session. Each chunk is attempted at most
// MaxRetries+1 times with exponential backoff, then marked failed; failed
// chunks are only resubmitted through Retry.
type Queue struct {
	adapter Adapter
	led     *ledger.Ledger
	cfg     QueueConfig

	mu        sync.Mutex
	fifo      []string
	draining  bool
	processed map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(adapter Adapter, led *ledger.Ledger, cfg QueueConfig) *Queue {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		adapter:   adapter,
		led:       led,
		cfg:       cfg,
		processed: make(map[string]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Enqueue appends a chunk ID and triggers the drain loop. Duplicate enqueues
// of an already-processed chunk are discarded here and again at drain time,
// guarding against concurrent triggers.
func (q *Queue) Enqueue(id string) {
	q.mu.Lock()
	if _, done := q.processed[id]; done {
		q.mu.Unlock()
		log.Printf("queue: chunk %s already processed, skipping enqueue", id)
		return
	}
	q.fifo = append(q.fifo, id)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	q.wg.Add(1)
	go q.drain()
}

func (q *Queue) drain() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if len(q.fifo) == 0 || q.ctx.Err() != nil {
			q.fifo = nil
			q.draining = false
			q.mu.Unlock()
			return
		}
		id := q.fifo[0]
		_, done := q.processed[id]
		q.mu.Unlock()

		if !done {
			if chunk, ok := q.led.Get(id); !ok {
				log.Printf("queue: chunk %s no longer exists, discarding", id)
			} else if chunk.Status == ledger.StatusDone {
				log.Printf("queue: chunk %s already done, discarding", id)
			} else {
				q.transcribeWithRetry(chunk)
			}
		}

		// Remove from the FIFO regardless of outcome.
		q.mu.Lock()
		if len(q.fifo) > 0 && q.fifo[0] == id {
			q.fifo = q.fifo[1:]
		}
		q.mu.Unlock()
	}
}

func (q *Queue) transcribeWithRetry(chunk ledger.Chunk) {
	if chunk.Payload == nil {
		// Payload already released; nothing to transcribe.
		q.markProcessed(chunk.ID)
		return
	}

	q.led.Update(chunk.ID, func(c *ledger.Chunk) {
		c.Status = ledger.StatusTranscribing
	})

	attempts := q.cfg.MaxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		res, err := q.adapter.Transcribe(q.ctx, chunk.Payload, q.cfg.Language)
		if err == nil {
			q.led.Update(chunk.ID, func(c *ledger.Chunk) {
				c.Status = ledger.StatusDone
				c.Transcript = res.Text
				c.Confidence = res.Confidence
				c.Err = ""
				c.Payload = nil // transcript is durable, release the audio
			})
			q.markProcessed(chunk.ID)
			return
		}

		lastErr = err
		q.led.Update(chunk.ID, func(c *ledger.Chunk) {
			c.RetryCount++
		})
		log.Printf("queue: chunk %s attempt %d/%d failed: %v", chunk.ID, attempt+1, attempts, err)

		if attempt < attempts-1 {
			if !q.sleep(q.backoff(attempt)) {
				break
			}
		}
	}

	q.led.Update(chunk.ID, func(c *ledger.Chunk) {
		c.Status = ledger.StatusFailed
		if lastErr != nil {
			c.Err = lastErr.Error()
		}
		// Payload retained so a manual retry can resubmit it.
	})
	q.markProcessed(chunk.ID)
}

// backoff returns min(BaseDelay * 2^attempt, MaxDelay).
func (q *Queue) backoff(attempt int) time.Duration {
	delay := q.cfg.BaseDelay << uint(attempt)
	if delay > q.cfg.MaxDelay || delay <= 0 {
		delay = q.cfg.MaxDelay
	}
	return delay
}

// sleep waits for d or until the queue is closed. Reports whether the full
// delay elapsed.
func (q *Queue) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-q.ctx.Done():
		return false
	}
}

func (q *Queue) markProcessed(id string) {
	q.mu.Lock()
	q.processed[id] = struct{}{}
	q.mu.Unlock()
}

// Retry resubmits a failed chunk. Chunks in any other state are left alone.
func (q *Queue) Retry(id string) bool {
	chunk, ok := q.led.Get(id)
	if !ok {
		log.Printf("queue: retry of unknown chunk %s ignored", id)
		return false
	}
	if chunk.Status != ledger.StatusFailed {
		log.Printf("queue: retry of chunk %s ignored (status %s)", id, chunk.Status)
		return false
	}

	q.mu.Lock()
	delete(q.processed, id)
	q.mu.Unlock()

	q.led.Update(id, func(c *ledger.Chunk) {
		c.Status = ledger.StatusPending
		c.Err = ""
	})
	q.Enqueue(id)
	return true
}

// Idle reports whether the queue has no pending or in-flight work.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.draining && len(q.fifo) == 0
}

// Wait blocks until the current drain finishes or ctx expires. New enqueues
// after Wait returns are not covered.
func (q *Queue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close abandons backoff sleeps and in-flight calls. Session stop does not
// call this; finished sessions do, after handoff.
func (q *Queue) Close() {
	q.cancel()
	q.wg.Wait()
}
