package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"media-subtitler/internal/artifact"
	"media-subtitler/internal/domain"
	"media-subtitler/internal/jobs"
)

// TestDefaultModelPresetIsTinyMultilingual pins the first-use download model.
func TestDefaultModelPresetIsTinyMultilingual(t *testing.T) {
	preset := defaultModelPreset()
	if preset.ID != "tiny" {
		t.Fatalf("default preset = %q, want tiny", preset.ID)
	}
	if preset.FileName != "ggml-tiny.bin" || preset.URL == "" {
		t.Fatalf("preset = %+v, want downloadable ggml-tiny.bin", preset)
	}
}

// TestGetWhisperModelsMarksDownloaded verifies presence detection under the
// configured model path.
func TestGetWhisperModelsMarksDownloaded(t *testing.T) {
	modelDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(modelDir, "ggml-tiny.bin"), []byte("stub"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	app := &App{
		Store:     &fakeStore{settings: domain.Settings{ModelPath: modelDir, Language: "auto"}},
		Jobs:      jobs.NewManager(),
		Artifacts: artifact.NewStore(time.Minute),
		events:    jobs.NewEventBus(10),
	}

	models := app.GetWhisperModels()
	if len(models) == 0 {
		t.Fatal("catalog should not be empty")
	}

	for _, model := range models {
		switch model.ID {
		case "tiny":
			if !model.Downloaded {
				t.Fatal("tiny model should be marked downloaded")
			}
			if model.LocalPath != filepath.Join(modelDir, "ggml-tiny.bin") {
				t.Fatalf("local path = %q", model.LocalPath)
			}
		default:
			if model.Downloaded {
				t.Fatalf("model %s should not be marked downloaded", model.ID)
			}
		}
	}
}

// TestGetWhisperModelsModelFilePathUsesParentDir verifies a file-typed model
// path is resolved against its directory.
func TestGetWhisperModelsModelFilePathUsesParentDir(t *testing.T) {
	modelDir := t.TempDir()
	modelFile := filepath.Join(modelDir, "ggml-base.bin")
	if err := os.WriteFile(modelFile, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	app := &App{
		Store:     &fakeStore{settings: domain.Settings{ModelPath: modelFile, Language: "auto"}},
		Jobs:      jobs.NewManager(),
		Artifacts: artifact.NewStore(time.Minute),
		events:    jobs.NewEventBus(10),
	}

	for _, model := range app.GetWhisperModels() {
		if model.ID == "base" && !model.Downloaded {
			t.Fatal("base model next to the configured file should be marked downloaded")
		}
	}
}
