// Package store persists finalized journal entries in SQLite.
package store

import "time"

// Entry is one saved journal entry.
type Entry struct {
	ID              string
	CreatedAt       time.Time
	DurationSeconds int
	Language        string
	Transcript      string
	AudioPath       string
	ChunkTotal      int
	ChunkDone       int
	ChunkFailed     int
}
