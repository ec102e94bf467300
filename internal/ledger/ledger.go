package ledger

import (
	"fmt"
	"sync"
	"time"
)

// Status is the lifecycle state of a chunk.
type Status int

const (
	StatusPending Status = iota
	StatusTranscribing
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusTranscribing:
		return "transcribing"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Chunk is one bounded-duration slice of recorded audio.
// Transcript and Confidence are meaningful only when Status is StatusDone;
// Err and RetryCount only when StatusFailed. Payload is nil once released.
type Chunk struct {
	ID         string
	Index      int
	Start      time.Time
	End        time.Time
	Payload    []byte
	Status     Status
	Transcript string
	Confidence float64
	Err        string
	RetryCount int
}

// ChunkID derives the stable chunk identifier from its index and end time.
func ChunkID(index int, end time.Time) string {
	return fmt.Sprintf("chunk-%d-%d", index, end.UnixMilli())
}

// StatsSnapshot holds per-status chunk counts.
type StatsSnapshot struct {
	Total        int
	Pending      int
	Transcribing int
	Done         int
	Failed       int
}

// Ledger is the ordered, append-only record of all chunks in a session.
// All updates are keyed by chunk ID, never by position. Snapshot reflects
// the most recently written state synchronously so the finalizer can read
// it at stop time without races.
type Ledger struct {
	mu     sync.Mutex
	chunks []*Chunk
	byID   map[string]*Chunk
}

func New() *Ledger {
	return &Ledger{
		byID: make(map[string]*Chunk),
	}
}

// Append adds a chunk in insertion order. A duplicate ID is rejected.
func (l *Ledger) Append(c Chunk) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byID[c.ID]; exists {
		return fmt.Errorf("duplicate chunk id: %s", c.ID)
	}

	stored := c
	l.chunks = append(l.chunks, &stored)
	l.byID[c.ID] = &stored
	return nil
}

// Update applies fn to the chunk with the given ID under the ledger lock.
// Returns false if the chunk does not exist.
func (l *Ledger) Update(id string, fn func(*Chunk)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.byID[id]
	if !ok {
		return false
	}
	fn(c)
	return true
}

// Get returns a copy of the chunk with the given ID.
func (l *Ledger) Get(id string) (Chunk, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.byID[id]
	if !ok {
		return Chunk{}, false
	}
	return *c, true
}

// Snapshot returns a copy of all chunks in insertion order. Payload slices
// are shared with the ledger; callers must not mutate them.
func (l *Ledger) Snapshot() []Chunk {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Chunk, len(l.chunks))
	for i, c := range l.chunks {
		out[i] = *c
	}
	return out
}

// Stats returns live per-status counts.
func (l *Ledger) Stats() StatsSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := StatsSnapshot{Total: len(l.chunks)}
	for _, c := range l.chunks {
		switch c.Status {
		case StatusPending:
			s.Pending++
		case StatusTranscribing:
			s.Transcribing++
		case StatusDone:
			s.Done++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.chunks)
}

// Clear drops all chunks. Called only after a finalized recording has been
// handed off.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chunks = nil
	l.byID = make(map[string]*Chunk)
}
