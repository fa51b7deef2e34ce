package progress

import (
	"strings"
	"testing"
	"time"
)

// TestClassifyDiscriminatesInferenceFromModelFiles verifies the filename
// presence rule for "progress" status events.
func TestClassifyDiscriminatesInferenceFromModelFiles(t *testing.T) {
	event := Classify(Raw{Status: "progress", Percent: 42})
	inference, ok := event.(Inference)
	if !ok {
		t.Fatalf("progress without file classified as %T, want Inference", event)
	}
	if inference.Percent != 42 {
		t.Fatalf("inference percent = %v, want 42", inference.Percent)
	}

	event = Classify(Raw{Status: "progress", File: "ggml-tiny.bin", Percent: 42})
	if _, ok := event.(Model); !ok {
		t.Fatalf("progress with file classified as %T, want Model", event)
	}
}

// TestAggregatorIgnoresEarlierStageEvents verifies the display never rewinds
// to a previous stage.
func TestAggregatorIgnoresEarlierStageEvents(t *testing.T) {
	a := NewAggregator()
	a.Apply(Inference{Percent: 50})

	display := a.Apply(FileRead{Loaded: 10, Total: 100})
	if display.Stage != StageTranscribing {
		t.Fatalf("stage = %v, want transcribing after stale file-read event", display.Stage)
	}
	if display.Percent == nil || *display.Percent != 50 {
		t.Fatalf("percent = %v, want preserved 50", display.Percent)
	}
}

// TestAggregatorFileReadPercent verifies byte counters map to a percentage
// only when the total is known.
func TestAggregatorFileReadPercent(t *testing.T) {
	a := NewAggregator()

	display := a.Apply(FileRead{Loaded: 25 << 20, Total: 100 << 20})
	if display.Percent == nil || *display.Percent != 25 {
		t.Fatalf("percent = %v, want 25", display.Percent)
	}

	display = a.Apply(FileRead{Loaded: 30 << 20, Total: 0})
	if display.Percent != nil {
		t.Fatalf("percent = %v, want nil for unknown total", *display.Percent)
	}
}

// TestAggregatorModelVocabulary walks the model status vocabulary and checks
// the resulting percent semantics.
func TestAggregatorModelVocabulary(t *testing.T) {
	a := NewAggregator()

	display := a.Apply(Model{Status: "initiate", File: "ggml-tiny.bin"})
	if display.Percent == nil || *display.Percent != 0 {
		t.Fatalf("initiate percent = %v, want 0", display.Percent)
	}

	display = a.Apply(Model{Status: "downloading", File: "ggml-tiny.bin", Percent: 150})
	if display.Percent == nil || *display.Percent != 100 {
		t.Fatalf("downloading percent = %v, want clamped 100", display.Percent)
	}

	display = a.Apply(Model{Status: "done", File: "ggml-tiny.bin"})
	if display.Percent != nil {
		t.Fatalf("done percent = %v, want nil (indeterminate)", *display.Percent)
	}

	display = a.Apply(Model{Status: "ready"})
	if display.Percent != nil {
		t.Fatal("ready percent should be nil")
	}
	if display.Detail != "transcription model ready" {
		t.Fatalf("ready detail = %q", display.Detail)
	}
}

// TestAggregatorDownloadSpeedWindow verifies the rolling speed estimate over
// consecutive downloading events with a fake clock.
func TestAggregatorDownloadSpeedWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	a := NewAggregatorForTests(func() time.Time { return now })

	a.Apply(Model{Status: "downloading", File: "ggml-tiny.bin", Percent: 10, Loaded: 10 << 20, Total: 100 << 20})
	if a.Speed() != 0 {
		t.Fatalf("speed after first sample = %v, want 0", a.Speed())
	}

	now = now.Add(2 * time.Second)
	display := a.Apply(Model{Status: "downloading", File: "ggml-tiny.bin", Percent: 20, Loaded: 20 << 20, Total: 100 << 20})

	wantSpeed := float64(10<<20) / 2
	if a.Speed() != wantSpeed {
		t.Fatalf("speed = %v, want %v", a.Speed(), wantSpeed)
	}
	if !strings.Contains(display.Detail, "5MB/s") {
		t.Fatalf("detail = %q, want speed suffix", display.Detail)
	}

	// Any non-downloading event closes the window.
	a.Apply(Model{Status: "done", File: "ggml-tiny.bin"})
	if a.Speed() != 0 {
		t.Fatalf("speed after done = %v, want 0", a.Speed())
	}
}

// TestAggregatorNoteSetsIndeterminateStage verifies stage notes carry detail
// with no percent.
func TestAggregatorNoteSetsIndeterminateStage(t *testing.T) {
	a := NewAggregator()
	display := a.Apply(Note{At: StageResampling, Detail: "converting to mono 16000 Hz"})
	if display.Stage != StageResampling {
		t.Fatalf("stage = %v, want resampling", display.Stage)
	}
	if display.Percent != nil {
		t.Fatal("note percent should be nil")
	}
}

// TestStageStringLabels checks the wire labels used in UI events.
func TestStageStringLabels(t *testing.T) {
	cases := map[Stage]string{
		StageIdle:         "idle",
		StageReadingFile:  "reading-file",
		StageResampling:   "resampling",
		StageLoadingModel: "loading-model",
		StageTranscribing: "transcribing",
		StageFormatting:   "formatting",
		StageDone:         "done",
	}
	for stage, want := range cases {
		if got := stage.String(); got != want {
			t.Fatalf("Stage(%d).String() = %q, want %q", stage, got, want)
		}
	}
}
