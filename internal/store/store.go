package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/emorandi/voicelog/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id TEXT PRIMARY KEY,
	createdAt REAL NOT NULL,
	durationSeconds INTEGER NOT NULL,
	language TEXT NOT NULL,
	transcript TEXT NOT NULL,
	audioPath TEXT NOT NULL DEFAULT '',
	chunkTotal INTEGER NOT NULL,
	chunkDone INTEGER NOT NULL,
	chunkFailed INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_createdAt ON entries(createdAt);
`

// Store owns the journal database and the audio files next to it.
type Store struct {
	db        *sql.DB
	dir       string
	keepAudio bool
}

// Open opens (or creates) the journal database under dir.
func Open(dir string, keepAudio bool) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	path := filepath.Join(dir, "journal.sqlite")
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db, dir: dir, keepAudio: keepAudio}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists a finalized recording as a journal entry. The audio argument
// is the container-framed bytes to keep on disk; pass nil to skip audio even
// when keep_audio is enabled.
func (s *Store) Save(rec session.Recording, language string, audio []byte) (*Entry, error) {
	entry := &Entry{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now(),
		DurationSeconds: rec.DurationSeconds,
		Language:        language,
		Transcript:      rec.Transcript,
		ChunkTotal:      rec.Stats.Total,
		ChunkDone:       rec.Stats.Done,
		ChunkFailed:     rec.Stats.Failed,
	}

	if s.keepAudio && len(audio) > 0 {
		audioPath := filepath.Join(s.dir, entry.ID+".wav")
		if err := os.WriteFile(audioPath, audio, 0644); err != nil {
			return nil, fmt.Errorf("write audio file: %w", err)
		}
		entry.AudioPath = audioPath
	}

	_, err := s.db.Exec(`
		INSERT INTO entries (id, createdAt, durationSeconds, language, transcript, audioPath, chunkTotal, chunkDone, chunkFailed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, timeToUnix(entry.CreatedAt), entry.DurationSeconds, entry.Language,
		entry.Transcript, entry.AudioPath, entry.ChunkTotal, entry.ChunkDone, entry.ChunkFailed)
	if err != nil {
		if entry.AudioPath != "" {
			if rmErr := os.Remove(entry.AudioPath); rmErr != nil {
				log.Printf("store: failed to remove orphaned audio file: %v", rmErr)
			}
		}
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	return entry, nil
}

// List returns entries newest first. A limit of 0 returns everything.
func (s *Store) List(limit int) ([]Entry, error) {
	query := `
		SELECT id, createdAt, durationSeconds, language, transcript, audioPath, chunkTotal, chunkDone, chunkFailed
		FROM entries
		ORDER BY createdAt DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt float64
		if err := rows.Scan(&e.ID, &createdAt, &e.DurationSeconds, &e.Language,
			&e.Transcript, &e.AudioPath, &e.ChunkTotal, &e.ChunkDone, &e.ChunkFailed); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.CreatedAt = timeFromUnix(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns the entry with the given id, or nil when not found.
func (s *Store) Get(id string) (*Entry, error) {
	row := s.db.QueryRow(`
		SELECT id, createdAt, durationSeconds, language, transcript, audioPath, chunkTotal, chunkDone, chunkFailed
		FROM entries
		WHERE id = ?
	`, id)

	var e Entry
	var createdAt float64
	if err := row.Scan(&e.ID, &createdAt, &e.DurationSeconds, &e.Language,
		&e.Transcript, &e.AudioPath, &e.ChunkTotal, &e.ChunkDone, &e.ChunkFailed); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	e.CreatedAt = timeFromUnix(createdAt)
	return &e, nil
}

// Delete removes an entry and its audio file.
func (s *Store) Delete(id string) error {
	entry, err := s.Get(id)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("entry not found: %s", id)
	}

	if _, err := s.db.Exec(`DELETE FROM entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	if entry.AudioPath != "" {
		if err := os.Remove(entry.AudioPath); err != nil && !os.IsNotExist(err) {
			log.Printf("store: failed to remove audio file %s: %v", entry.AudioPath, err)
		}
	}
	return nil
}

// ExportMarkdown renders an entry as a markdown document.
func (s *Store) ExportMarkdown(id string) (string, error) {
	entry, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if entry == nil {
		return "", fmt.Errorf("entry not found: %s", id)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Journal Entry - %s\n\n", entry.CreatedAt.Format("2 January 2006, 15:04"))
	fmt.Fprintf(&b, "- Duration: %s\n", formatDuration(entry.DurationSeconds))
	if entry.Language != "" {
		fmt.Fprintf(&b, "- Language: %s\n", entry.Language)
	}
	fmt.Fprintf(&b, "- Chunks: %d (%d transcribed, %d failed)\n", entry.ChunkTotal, entry.ChunkDone, entry.ChunkFailed)
	if entry.AudioPath != "" {
		fmt.Fprintf(&b, "- Audio: %s\n", entry.AudioPath)
	}
	b.WriteString("\n")
	b.WriteString(entry.Transcript)
	b.WriteString("\n")
	return b.String(), nil
}

func formatDuration(seconds int) string {
	d := time.Duration(seconds) * time.Second
	if d < time.Minute {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm%02ds", seconds/60, seconds%60)
}

func timeToUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
