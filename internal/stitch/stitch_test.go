package stitch

import (
	"testing"

	"github.com/emorandi/voicelog/internal/ledger"
)

func doneChunk(index int, text string) ledger.Chunk {
	return ledger.Chunk{
		Index:      index,
		Status:     ledger.StatusDone,
		Transcript: text,
	}
}

func TestStitch(t *testing.T) {
	tests := []struct {
		name   string
		chunks []ledger.Chunk
		want   string
	}{
		{
			name:   "empty input",
			chunks: nil,
			want:   "",
		},
		{
			name: "joins done chunks with single space",
			chunks: []ledger.Chunk{
				doneChunk(0, "Good morning."),
				doneChunk(1, "Slept well last night."),
				doneChunk(2, "Lots to do today."),
			},
			want: "Good morning. Slept well last night. Lots to do today.",
		},
		{
			name: "sorts by index regardless of slice order",
			chunks: []ledger.Chunk{
				doneChunk(2, "third"),
				doneChunk(0, "first"),
				doneChunk(1, "second"),
			},
			want: "first second third",
		},
		{
			name: "skips non-done chunks",
			chunks: []ledger.Chunk{
				doneChunk(0, "kept"),
				{Index: 1, Status: ledger.StatusFailed, Transcript: "never stored"},
				{Index: 2, Status: ledger.StatusPending},
				{Index: 3, Status: ledger.StatusTranscribing},
				doneChunk(4, "also kept"),
			},
			want: "kept also kept",
		},
		{
			name: "skips done chunks with empty transcript",
			chunks: []ledger.Chunk{
				doneChunk(0, "hello"),
				doneChunk(1, "   "),
				doneChunk(2, "world"),
			},
			want: "hello world",
		},
		{
			name: "collapses whitespace runs and trims",
			chunks: []ledger.Chunk{
				doneChunk(0, "  spaced   out\ttext "),
				doneChunk(1, "\n more  "),
			},
			want: "spaced out text more",
		},
		{
			name: "normalizes sentence spacing before capitals",
			chunks: []ledger.Chunk{
				doneChunk(0, "It rained today.Then the sun came out!And I went for a walk?Yes."),
			},
			want: "It rained today. Then the sun came out! And I went for a walk? Yes.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Stitch(tt.chunks)
			if got != tt.want {
				t.Errorf("Stitch() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStitchIdempotent(t *testing.T) {
	chunks := []ledger.Chunk{
		doneChunk(0, "  First   entry.Second sentence! "),
		doneChunk(1, "Another\tthought?Indeed."),
	}
	once := Stitch(chunks)
	again := Stitch([]ledger.Chunk{doneChunk(0, once)})
	if once != again {
		t.Errorf("stitching already-clean text changed it:\nonce  = %q\nagain = %q", once, again)
	}
}
