package progress

import (
	"fmt"
	"time"
)

// Stage orders the user-visible phases of one transcription job. Later stages
// always win over earlier ones when rendering display state.
type Stage int

const (
	StageIdle Stage = iota
	StageReadingFile
	StageDecoding
	StageResampling
	StageLoadingModel
	StageTranscribing
	StageFormatting
	StageDone
)

// String returns the wire label for a stage.
func (s Stage) String() string {
	switch s {
	case StageReadingFile:
		return "reading-file"
	case StageDecoding:
		return "decoding"
	case StageResampling:
		return "resampling"
	case StageLoadingModel:
		return "loading-model"
	case StageTranscribing:
		return "transcribing"
	case StageFormatting:
		return "formatting"
	case StageDone:
		return "done"
	default:
		return "idle"
	}
}

// Display is the normalized (stage, percent, detail) triple shown to the
// user. A nil Percent means indeterminate: the bar is hidden but the textual
// status stays visible.
type Display struct {
	Stage   Stage
	Percent *float64
	Detail  string
}

// Event is one progress signal from a single source. Each variant carries
// only the fields relevant to that source.
type Event interface {
	stage() Stage
}

// FileRead reports chunked media-file ingestion in bytes.
type FileRead struct {
	Loaded int64
	Total  int64
}

func (FileRead) stage() Stage { return StageReadingFile }

// Model reports model-asset download/load activity, keyed by filename.
// Status uses the capability boundary vocabulary: initiate, download,
// downloading, progress, done, ready.
type Model struct {
	Status  string
	File    string
	Percent float64
	Loaded  int64
	Total   int64
}

func (Model) stage() Stage { return StageLoadingModel }

// Inference reports transcription progress as a bare percentage.
type Inference struct {
	Percent float64
}

func (Inference) stage() Stage { return StageTranscribing }

// Note marks entry into a stage with an indeterminate detail line.
type Note struct {
	At     Stage
	Detail string
}

func (n Note) stage() Stage { return n.At }

// Raw is an untyped progress payload from the inference capability boundary.
type Raw struct {
	Status  string  `json:"status"`
	File    string  `json:"file,omitempty"`
	Percent float64 `json:"progress,omitempty"`
	Loaded  int64   `json:"loaded,omitempty"`
	Total   int64   `json:"total,omitempty"`
}

// Classify maps a raw boundary event to its tagged variant. A "progress"
// status without a filename is the sole discriminator between model-file
// loading and active transcription, and is preserved here.
func Classify(raw Raw) Event {
	if raw.Status == "progress" && raw.File == "" {
		return Inference{Percent: raw.Percent}
	}
	return Model{
		Status:  raw.Status,
		File:    raw.File,
		Percent: raw.Percent,
		Loaded:  raw.Loaded,
		Total:   raw.Total,
	}
}

// Aggregator reduces heterogeneous progress events into one display triple.
// It is a synchronous state reducer with no concurrency of its own; callers
// invoke Apply from their own event callbacks.
type Aggregator struct {
	current Display
	now     func() time.Time

	// rolling download speed window, valid only across consecutive
	// downloading events for the same asset
	speedFile   string
	speedLoaded int64
	speedAt     time.Time
	speedActive bool
	speed       float64
}

// NewAggregator creates an idle aggregator using wall-clock time.
func NewAggregator() *Aggregator {
	return &Aggregator{now: time.Now}
}

// NewAggregatorForTests creates an aggregator with an injectable clock.
func NewAggregatorForTests(now func() time.Time) *Aggregator {
	return &Aggregator{now: now}
}

// Current returns the last computed display state.
func (a *Aggregator) Current() Display {
	return a.current
}

// Speed returns the rolling download speed estimate in bytes per second,
// zero while no download window is open.
func (a *Aggregator) Speed() float64 {
	return a.speed
}

// Reset returns the aggregator to idle for a fresh job.
func (a *Aggregator) Reset() {
	a.current = Display{}
	a.resetSpeedWindow()
}

// Apply folds one event into the display state and returns the result.
// Events from stages earlier than the current one are ignored so the display
// never rewinds.
func (a *Aggregator) Apply(event Event) Display {
	if event.stage() < a.current.Stage {
		return a.current
	}

	model, downloading := event.(Model)
	downloading = downloading && model.Status == "downloading"
	if !downloading {
		a.resetSpeedWindow()
	}

	switch ev := event.(type) {
	case FileRead:
		a.current = reduceFileRead(ev)
	case Model:
		a.current = a.reduceModel(ev)
	case Inference:
		percent := clampPercent(ev.Percent)
		a.current = Display{
			Stage:   StageTranscribing,
			Percent: &percent,
			Detail:  "processing audio segment",
		}
	case Note:
		a.current = Display{Stage: ev.At, Detail: ev.Detail}
	}
	return a.current
}

// reduceFileRead maps byte counters to a percentage when the total is known.
func reduceFileRead(ev FileRead) Display {
	display := Display{
		Stage:  StageReadingFile,
		Detail: fmt.Sprintf("read %s of %s", formatBytes(ev.Loaded), formatBytes(ev.Total)),
	}
	if ev.Total > 0 {
		percent := clampPercent(float64(ev.Loaded) / float64(ev.Total) * 100)
		display.Percent = &percent
	}
	return display
}

// reduceModel maps the model-asset status vocabulary to display state.
func (a *Aggregator) reduceModel(ev Model) Display {
	switch ev.Status {
	case "initiate", "download":
		zero := 0.0
		return Display{
			Stage:   StageLoadingModel,
			Percent: &zero,
			Detail:  fmt.Sprintf("file: %s", ev.File),
		}
	case "downloading":
		a.updateSpeedWindow(ev)
		percent := clampPercent(ev.Percent)
		detail := fmt.Sprintf("file: %s (%.1f%%)", ev.File, percent)
		if ev.Loaded > 0 && ev.Total > 0 {
			detail += fmt.Sprintf(" - %s / %s", formatBytes(ev.Loaded), formatBytes(ev.Total))
		}
		if a.speed > 0 {
			detail += fmt.Sprintf(" at %s/s", formatBytes(int64(a.speed)))
		}
		return Display{Stage: StageLoadingModel, Percent: &percent, Detail: detail}
	case "progress":
		percent := clampPercent(ev.Percent)
		return Display{
			Stage:   StageLoadingModel,
			Percent: &percent,
			Detail:  fmt.Sprintf("file: %s (%.1f%%)", ev.File, percent),
		}
	case "done":
		return Display{
			Stage:  StageLoadingModel,
			Detail: fmt.Sprintf("%s loaded", ev.File),
		}
	case "ready":
		return Display{
			Stage:  StageLoadingModel,
			Detail: "transcription model ready",
		}
	default:
		return a.current
	}
}

// updateSpeedWindow advances the rolling speed estimate for one asset.
func (a *Aggregator) updateSpeedWindow(ev Model) {
	now := a.now()
	if a.speedActive && a.speedFile == ev.File {
		elapsed := now.Sub(a.speedAt).Seconds()
		if elapsed > 0 && ev.Loaded >= a.speedLoaded {
			a.speed = float64(ev.Loaded-a.speedLoaded) / elapsed
		}
	}
	a.speedFile = ev.File
	a.speedLoaded = ev.Loaded
	a.speedAt = now
	a.speedActive = true
}

// resetSpeedWindow drops the speed estimate when the stream leaves the
// downloading status.
func (a *Aggregator) resetSpeedWindow() {
	a.speedActive = false
	a.speedFile = ""
	a.speedLoaded = 0
	a.speed = 0
}

// clampPercent bounds a percentage to the displayable 0..100 range.
func clampPercent(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

// formatBytes renders a byte count as whole megabytes, matching the coarse
// counters shown during large downloads.
func formatBytes(n int64) string {
	return fmt.Sprintf("%dMB", n/(1024*1024))
}
