package stitch

import (
	"regexp"
	"sort"
	"strings"

	"github.com/emorandi/voicelog/internal/ledger"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	sentenceRe   = regexp.MustCompile(`([.!?])\s*([A-Z])`)
)

// Stitch merges per-chunk transcripts into a single ordered transcript.
// Only chunks that finished transcription contribute text. The result is
// stable under re-application: stitching already-normalized text yields
// the same text.
func Stitch(chunks []ledger.Chunk) string {
	sorted := make([]ledger.Chunk, len(chunks))
	copy(sorted, chunks)
	// Insertion order should already match, but guard against reordering.
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	var parts []string
	for _, c := range sorted {
		if c.Status != ledger.StatusDone {
			continue
		}
		text := strings.TrimSpace(c.Transcript)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}

	full := strings.Join(parts, " ")
	full = strings.TrimSpace(whitespaceRe.ReplaceAllString(full, " "))
	full = sentenceRe.ReplaceAllString(full, "$1 $2")
	return full
}
