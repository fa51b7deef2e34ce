package domain

// JobStatus tracks each pipeline stage for a single transcription job.
type JobStatus string

const (
	JobStatusIdle         JobStatus = "idle"
	JobStatusDecoding     JobStatus = "decoding"
	JobStatusResampling   JobStatus = "resampling"
	JobStatusTranscribing JobStatus = "transcribing"
	JobStatusFormatting   JobStatus = "formatting"
	JobStatusDone         JobStatus = "done"
	JobStatusFailed       JobStatus = "failed"
	JobStatusCancelled    JobStatus = "cancelled"
)

// Settings contains user-selectable runtime configuration. Language is the
// only preference the app carries between sessions.
type Settings struct {
	ModelPath string `json:"modelPath"`
	Language  string `json:"language"`
}

// Job stores the current job identity, input name, and lifecycle status.
type Job struct {
	ID        string    `json:"id"`
	InputName string    `json:"inputName,omitempty"`
	Status    JobStatus `json:"status"`
}

// TranscriptChunk is one model-emitted speech segment with timestamps in
// seconds. Chunks may be malformed (NaN, inverted range, empty text) and are
// filtered, never trusted blindly.
type TranscriptChunk struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// DecodedAudio is a multi-channel float PCM buffer at its native sample rate.
type DecodedAudio struct {
	Channels   [][]float32
	SampleRate int
	Duration   float64
}

// NumChannels returns the channel count of the decoded buffer.
func (d DecodedAudio) NumChannels() int {
	return len(d.Channels)
}

// Frames returns the per-channel sample count.
func (d DecodedAudio) Frames() int {
	if len(d.Channels) == 0 {
		return 0
	}
	return len(d.Channels[0])
}
