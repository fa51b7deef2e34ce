package subtitle

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"media-subtitler/internal/domain"
)

// ErrEmptyTranscript is returned when no chunk survives validity filtering and
// no aggregate text exists to synthesize a fallback entry from.
var ErrEmptyTranscript = errors.New("transcript contains no usable entries")

// Output is the inference result handed to the formatter. Either Chunks or
// Text may be empty; both empty is an error.
type Output struct {
	Chunks []domain.TranscriptChunk
	Text   string
}

// Result holds both rendered artifact bodies derived from one output.
type Result struct {
	SRT   string
	Plain string
}

// FormatTime renders seconds as a fixed-width SRT timestamp HH:MM:SS,mmm.
// NaN, infinite, or negative input clamps to 00:00:00,000 instead of erroring.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "00:00:00,000"
	}

	hours := int(seconds / 3600)
	minutes := int(math.Mod(seconds, 3600) / 60)
	secs := int(math.Mod(seconds, 60))
	millis := int((seconds - math.Floor(seconds)) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// validChunk reports whether a chunk passes the validity predicate: finite
// start and end, start <= end, non-empty trimmed text.
func validChunk(chunk domain.TranscriptChunk) bool {
	if math.IsNaN(chunk.Start) || math.IsInf(chunk.Start, 0) {
		return false
	}
	if math.IsNaN(chunk.End) || math.IsInf(chunk.End, 0) {
		return false
	}
	if chunk.Start > chunk.End {
		return false
	}
	return strings.TrimSpace(chunk.Text) != ""
}

// ChunksToSRT renders chunks in input order, skipping invalid ones. Kept
// entries are numbered contiguously from 1; dropped chunks leave no gaps.
func ChunksToSRT(chunks []domain.TranscriptChunk) string {
	var b strings.Builder
	index := 1
	for _, chunk := range chunks {
		if !validChunk(chunk) {
			continue
		}

		fmt.Fprintf(&b, "%d\n", index)
		fmt.Fprintf(&b, "%s --> %s\n", FormatTime(chunk.Start), FormatTime(chunk.End))
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(chunk.Text))
		index++
	}
	return b.String()
}

// PlainText joins kept chunk texts (or the aggregate text when no chunk
// survives) with newlines, without indices or timestamps.
func PlainText(out Output) string {
	lines := make([]string, 0, len(out.Chunks))
	for _, chunk := range out.Chunks {
		if validChunk(chunk) {
			lines = append(lines, strings.TrimSpace(chunk.Text))
		}
	}
	if len(lines) == 0 {
		return strings.TrimSpace(out.Text)
	}
	return strings.Join(lines, "\n")
}

// Build renders both artifact bodies. When the output carries no chunk list
// at all but does carry aggregate text, exactly one chunk spanning
// [0, durationSeconds] is synthesized ([0, 1] when duration is unknown or
// zero). A non-empty chunk list that filtering empties out fails with
// ErrEmptyTranscript even when aggregate text exists; the fallback is only
// for outputs that never had timed chunks.
func Build(out Output, durationSeconds float64) (Result, error) {
	chunks := out.Chunks
	if len(chunks) == 0 {
		text := strings.TrimSpace(out.Text)
		if text == "" {
			return Result{}, ErrEmptyTranscript
		}

		duration := durationSeconds
		if math.IsNaN(duration) || duration <= 0 {
			duration = 1
		}
		chunks = []domain.TranscriptChunk{{Start: 0, End: duration, Text: text}}
	}

	srt := ChunksToSRT(chunks)
	if srt == "" {
		return Result{}, ErrEmptyTranscript
	}

	return Result{
		SRT:   srt,
		Plain: PlainText(Output{Chunks: chunks, Text: out.Text}),
	}, nil
}
