package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"media-subtitler/internal/artifact"
	"media-subtitler/internal/audio"
	"media-subtitler/internal/config"
	"media-subtitler/internal/decode"
	"media-subtitler/internal/diagnostics"
	"media-subtitler/internal/domain"
	"media-subtitler/internal/jobs"
	"media-subtitler/internal/progress"
	"media-subtitler/internal/subtitle"
	"media-subtitler/internal/transcribe"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Media files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.mp3;*.wav;*.m4a;*.flac;*.aac;*.ogg;*.webm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// cleanupPrompt is the static instruction copied for AI-assisted transcript
// cleanup. It is configuration, not computed.
const cleanupPrompt = "Please fix the following text, which comes from a subtitle file " +
	"(ignore the line numbers and timestamps): reorder the sentences where needed, " +
	"fix spelling and grammar, add sensible punctuation, and make the syntax clear " +
	"and readable. Preserve the original meaning."

// mediaDecoder isolates the media decoder behind an interface.
type mediaDecoder interface {
	Decode(ctx context.Context, r io.Reader, size int64, onProgress decode.ProgressFunc) (domain.DecodedAudio, error)
}

// transcriptionInvoker isolates the inference invoker behind an interface.
type transcriptionInvoker interface {
	Transcribe(ctx context.Context, input audio.NormalizedAudio, language string, onProgress func(progress.Raw)) (transcribe.Output, error)
	Loaded() bool
}

// App wires configuration, jobs, pipeline components, and UI runtime
// callbacks. It is the job controller: it sequences decode, normalize,
// transcribe, and format for one job at a time.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Jobs        *jobs.Manager
	Decoder     mediaDecoder
	Invoker     transcriptionInvoker
	Artifacts   *artifact.Store
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker

	mu          sync.Mutex
	activeJobID string
	cancel      context.CancelFunc
	modelFatal  bool
	events      *jobs.EventBus
	runtimeCtx  context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".media-subtitler", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	return &App{
		Settings:    settings,
		Store:       store,
		Jobs:        jobs.NewManager(),
		Decoder:     decode.NewDecoder(),
		Invoker:     transcribe.NewInvoker(transcribe.NewWhisperLoader(settings.ModelPath, defaultModelPreset())),
		Artifacts:   artifact.NewStore(artifact.DefaultGracePeriod),
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		events:      jobs.NewEventBus(1000),
	}, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Media Subtitler",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
// The model loader follows the new path as long as no capability has been
// loaded yet; a loaded model stays cached for the process lifetime.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	if !a.Invoker.Loaded() {
		a.Invoker = transcribe.NewInvoker(transcribe.NewWhisperLoader(normalized.ModelPath, defaultModelPreset()))
	}
	a.mu.Unlock()

	return normalized, nil
}

// ControlsEnabled reports whether the UI may start a new job: no job running
// and no fatal model-load failure latched.
func (a *App) ControlsEnabled() bool {
	a.mu.Lock()
	fatal := a.modelFatal
	a.mu.Unlock()
	return !fatal && !a.Jobs.IsRunning()
}

// PickInputFile opens a native file dialog for media selection.
func (a *App) PickInputFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select media file",
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// StartTranscription creates a job for the selected file and runs the
// pipeline asynchronously. The previous job's artifact handle is revoked
// before any new work begins, so two live handles never coexist.
func (a *App) StartTranscription(inputPath, language string) (domain.Job, error) {
	a.mu.Lock()
	fatal := a.modelFatal
	a.mu.Unlock()
	if fatal {
		return domain.Job{}, fmt.Errorf("model load failed; restart the application to retry")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.Job{}, fmt.Errorf("load settings: %w", err)
	}
	if strings.TrimSpace(language) != "" && !strings.EqualFold(language, settings.Language) {
		settings.Language = strings.TrimSpace(language)
		if saveErr := a.Store.Save(settings); saveErr == nil {
			a.mu.Lock()
			a.Settings = settings
			a.mu.Unlock()
		}
	}
	if strings.TrimSpace(language) == "" {
		language = settings.Language
	}

	jobID := uuid.NewString()
	if err := a.Jobs.Start(jobID, filepath.Base(inputPath)); err != nil {
		return domain.Job{}, err
	}

	a.Artifacts.RevokeCurrent()

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.activeJobID = jobID
	a.cancel = cancel
	a.mu.Unlock()

	a.publishStatus(jobID, domain.JobStatusDecoding, "Job started")
	go a.runTranscriptionJob(ctx, jobID, inputPath, language)
	return a.Jobs.Current(), nil
}

// CancelTranscription cancels the currently running job, if any. The
// memoized inference capability is untouched; only this job's results are
// suppressed and its artifact released.
func (a *App) CancelTranscription() error {
	a.mu.Lock()
	cancel := a.cancel
	activeJobID := a.activeJobID
	a.mu.Unlock()

	if cancel == nil {
		return jobs.ErrNoRunningJob
	}

	cancel()
	if err := a.Jobs.Cancel(); err != nil && !errors.Is(err, jobs.ErrNoRunningJob) {
		return err
	}

	a.Artifacts.RevokeCurrent()
	if activeJobID != "" {
		a.publishStatus(activeJobID, domain.JobStatusCancelled, "Cancellation requested")
	}
	return nil
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// GetArtifact returns the live artifact when the handle is still valid.
func (a *App) GetArtifact(id string) (artifact.Artifact, error) {
	art, ok := a.Artifacts.Get(id)
	if !ok {
		return artifact.Artifact{}, fmt.Errorf("artifact is no longer available")
	}
	return art, nil
}

// SaveArtifact writes one artifact body to a user-chosen location. Kind is
// "srt" or "txt".
func (a *App) SaveArtifact(id, kind string) (string, error) {
	art, err := a.GetArtifact(id)
	if err != nil {
		return "", err
	}

	content, defaultName, err := artifactBody(art, kind)
	if err != nil {
		return "", err
	}

	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.SaveFileDialog(ctx, wailsruntime.SaveDialogOptions{
		Title:           "Save transcript",
		DefaultFilename: defaultName,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return "", nil
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// CopyArtifact places one artifact body on the system clipboard verbatim.
func (a *App) CopyArtifact(id, kind string) error {
	art, err := a.GetArtifact(id)
	if err != nil {
		return err
	}

	content, _, err := artifactBody(art, kind)
	if err != nil {
		return err
	}

	ctx, err := a.runtimeContext()
	if err != nil {
		return err
	}
	return wailsruntime.ClipboardSetText(ctx, content)
}

// CopyCleanupPrompt places the static AI-cleanup instruction on the
// clipboard.
func (a *App) CopyCleanupPrompt() error {
	ctx, err := a.runtimeContext()
	if err != nil {
		return err
	}
	return wailsruntime.ClipboardSetText(ctx, cleanupPrompt)
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.Settings = settings
	a.Diagnostics = a.checker.Run(settings)
	return a.Diagnostics, nil
}

// runTranscriptionJob executes the pipeline stages in order and maps
// outcomes to job events. Cancellation is cooperative: each stage boundary
// checks the context and a cancelled job suppresses all later results.
func (a *App) runTranscriptionJob(ctx context.Context, jobID, inputPath, language string) {
	aggregator := progress.NewAggregator()
	emit := func(event progress.Event) {
		a.publishProgress(jobID, aggregator.Apply(event))
	}

	file, err := os.Open(inputPath)
	if err != nil {
		a.finishFailed(jobID, fmt.Errorf("open media file: %w", err))
		return
	}

	size := int64(0)
	if info, statErr := file.Stat(); statErr == nil {
		size = info.Size()
	}

	emit(progress.Note{At: progress.StageReadingFile, Detail: "reading media file"})
	decoded, err := a.Decoder.Decode(ctx, file, size, func(loaded, total int64) {
		emit(progress.FileRead{Loaded: loaded, Total: total})
	})
	_ = file.Close()
	if err != nil {
		a.finishAfterError(ctx, jobID, err)
		return
	}

	if err := a.transition(jobID, domain.JobStatusResampling); err != nil {
		return
	}
	emit(progress.Note{At: progress.StageResampling, Detail: fmt.Sprintf("converting to mono %d Hz", audio.TargetSampleRate)})
	normalized, err := audio.Normalize(decoded, audio.TargetSampleRate)
	if err != nil {
		a.finishAfterError(ctx, jobID, err)
		return
	}

	silent, err := normalized.Validate()
	if err != nil {
		a.finishAfterError(ctx, jobID, err)
		return
	}
	if silent {
		a.publishEvent(jobs.Event{
			JobID:   jobID,
			Type:    jobs.EventTypeWarning,
			Message: "Audio is completely silent; transcription will likely be empty.",
		})
	}

	if ctx.Err() != nil {
		a.finishCancelled(jobID)
		return
	}

	if err := a.transition(jobID, domain.JobStatusTranscribing); err != nil {
		return
	}
	emit(progress.Note{At: progress.StageLoadingModel, Detail: "preparing transcription model"})
	output, err := a.Invoker.Transcribe(ctx, normalized, language, func(raw progress.Raw) {
		emit(progress.Classify(raw))
	})
	if err != nil {
		a.finishAfterError(ctx, jobID, err)
		return
	}

	if err := a.transition(jobID, domain.JobStatusFormatting); err != nil {
		return
	}
	emit(progress.Note{At: progress.StageFormatting, Detail: "formatting subtitles"})
	result, err := subtitle.Build(subtitle.Output{Chunks: output.Chunks, Text: output.Text}, normalized.Duration())
	if err != nil {
		a.finishAfterError(ctx, jobID, err)
		return
	}

	if ctx.Err() != nil {
		a.finishCancelled(jobID)
		return
	}

	stem := outputStem(inputPath)
	art := a.Artifacts.Expose(stem, result.SRT, result.Plain)

	if err := a.Jobs.Transition(domain.JobStatusDone); err != nil {
		a.Artifacts.RevokeCurrent()
		a.clearActiveJob(jobID)
		return
	}
	a.publishStatus(jobID, domain.JobStatusDone, "Job completed")
	emit(progress.Note{At: progress.StageDone, Detail: ""})
	a.publishEvent(jobs.Event{
		JobID:      jobID,
		Type:       jobs.EventTypeResult,
		Status:     domain.JobStatusDone,
		Message:    "Subtitles ready for download",
		ArtifactID: art.ID,
		SRTName:    stem + ".srt",
		TextName:   stem + ".txt",
	})
	a.clearActiveJob(jobID)
}

// transition applies a job status change and publishes it; a failure means
// the job was already cancelled out from under the pipeline.
func (a *App) transition(jobID string, status domain.JobStatus) error {
	if err := a.Jobs.Transition(status); err != nil {
		a.clearActiveJob(jobID)
		return err
	}
	a.publishStatus(jobID, status, "Running "+string(status)+" stage")
	return nil
}

// finishAfterError routes a stage failure to cancelled or failed handling.
func (a *App) finishAfterError(ctx context.Context, jobID string, err error) {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		a.finishCancelled(jobID)
		return
	}
	a.finishFailed(jobID, err)
}

// finishCancelled suppresses results of a cancelled job and releases any
// artifact it produced.
func (a *App) finishCancelled(jobID string) {
	_ = a.Jobs.Transition(domain.JobStatusCancelled)
	a.Artifacts.RevokeCurrent()
	a.publishStatus(jobID, domain.JobStatusCancelled, "Job cancelled")
	a.clearActiveJob(jobID)
}

// finishFailed surfaces a stage error, revokes any partial artifact, and
// latches the fatal flag for model-load failures so controls stay disabled
// until restart.
func (a *App) finishFailed(jobID string, err error) {
	fatal := false
	var loadErr *transcribe.ModelLoadError
	if errors.As(err, &loadErr) {
		fatal = true
		a.mu.Lock()
		a.modelFatal = true
		a.mu.Unlock()
	}

	_ = a.Jobs.Transition(domain.JobStatusFailed)
	a.Artifacts.RevokeCurrent()
	a.publishStatus(jobID, domain.JobStatusFailed, "Job failed")
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeError,
		Status:  domain.JobStatusFailed,
		Message: err.Error(),
		Fatal:   fatal,
	})
	a.clearActiveJob(jobID)
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(jobID string, status domain.JobStatus, message string) {
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// publishProgress sends the aggregator's display triple to subscribers.
func (a *App) publishProgress(jobID string, display progress.Display) {
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeProgress,
		Stage:   display.Stage.String(),
		Percent: display.Percent,
		Detail:  display.Detail,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", published)
	}
}

// clearActiveJob clears cancellation handles for completed job IDs.
func (a *App) clearActiveJob(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeJobID == jobID {
		a.activeJobID = ""
		a.cancel = nil
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// artifactBody selects the requested artifact rendering and download name.
func artifactBody(art artifact.Artifact, kind string) (content, defaultName string, err error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "srt":
		return art.SRT, art.BaseName + ".srt", nil
	case "txt", "text", "plain":
		return art.Plain, art.BaseName + ".txt", nil
	default:
		return "", "", fmt.Errorf("unknown artifact kind: %s", kind)
	}
}

// outputStem builds the artifact base name from the input media name.
func outputStem(inputPath string) string {
	base := filepath.Base(inputPath)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "subtitles"
	}
	return name
}

// normalizeSettings trims user inputs and applies default language when
// empty.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.ModelPath = strings.TrimSpace(settings.ModelPath)
	settings.Language = strings.TrimSpace(settings.Language)
	if settings.Language == "" {
		settings.Language = "auto"
	}
	return settings
}
