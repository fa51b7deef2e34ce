package transcribe

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"media-subtitler/internal/audio"
	"media-subtitler/internal/domain"
	"media-subtitler/internal/progress"
)

// Options are the invocation parameters passed across the capability
// boundary. The invoker fixes them per job; capabilities only read them.
type Options struct {
	ChunkLengthSeconds  int
	StrideLengthSeconds int
	Language            string
	Task                string
	ReturnTimestamps    bool
}

// Output is the capability's transcription result. Chunks may be empty while
// Text still carries an aggregate transcript, or vice versa.
type Output struct {
	Chunks []domain.TranscriptChunk
	Text   string
}

// Capability is the opaque inference boundary: one call transcribes one mono
// PCM buffer.
type Capability interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int, opts Options, onProgress func(progress.Raw)) (Output, error)
}

// Loader produces a Capability, reporting asset download/load progress.
type Loader interface {
	Load(ctx context.Context, onProgress func(progress.Raw)) (Capability, error)
}

// Invoker owns the lazily-initialized, memoized inference capability and
// issues one inference call per job.
type Invoker struct {
	loader Loader
	group  singleflight.Group

	mu         sync.Mutex
	capability Capability
}

// NewInvoker creates an invoker that loads through the given loader on first
// use.
func NewInvoker(loader Loader) *Invoker {
	return &Invoker{loader: loader}
}

// Loaded reports whether a capability has been cached.
func (v *Invoker) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.capability != nil
}

// EnsureLoaded returns the cached capability, loading it on first call.
// Concurrent callers share one in-flight load; a completed load is cached for
// the process lifetime. Failure wraps as ModelLoadError.
func (v *Invoker) EnsureLoaded(ctx context.Context, onProgress func(progress.Raw)) (Capability, error) {
	v.mu.Lock()
	cached := v.capability
	v.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	value, err, _ := v.group.Do("model", func() (interface{}, error) {
		capability, loadErr := v.loader.Load(ctx, onProgress)
		if loadErr != nil {
			return nil, loadErr
		}

		v.mu.Lock()
		v.capability = capability
		v.mu.Unlock()
		return capability, nil
	})
	if err != nil {
		return nil, &ModelLoadError{Err: err}
	}
	return value.(Capability), nil
}

// Transcribe runs one inference call with the fixed invocation parameters:
// 30-second chunk window, 5-second stride overlap, timestamps always on.
func (v *Invoker) Transcribe(ctx context.Context, input audio.NormalizedAudio, language string, onProgress func(progress.Raw)) (Output, error) {
	capability, err := v.EnsureLoaded(ctx, onProgress)
	if err != nil {
		return Output{}, err
	}

	out, err := capability.Transcribe(ctx, input.Samples, input.SampleRate, fixedOptions(language), onProgress)
	if err != nil {
		return Output{}, &InferenceError{Err: err}
	}
	return out, nil
}

// fixedOptions builds the per-job invocation parameters.
func fixedOptions(language string) Options {
	return Options{
		ChunkLengthSeconds:  30,
		StrideLengthSeconds: 5,
		Language:            normalizeLanguage(language),
		Task:                "transcribe",
		ReturnTimestamps:    true,
	}
}

// normalizeLanguage maps "auto" and empty language to no explicit hint.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}
