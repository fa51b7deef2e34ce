package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"media-subtitler/internal/domain"
	"media-subtitler/internal/progress"
)

// whisperProgressRe matches the percentage whisper.cpp prints on stderr when
// --print-progress is set.
var whisperProgressRe = regexp.MustCompile(`progress\s*=\s*([0-9]+)%`)

// WhisperLoader loads a whisper.cpp backed capability: it verifies the local
// binary, resolves the configured model file, and downloads the fallback
// preset on first use when no model exists yet.
type WhisperLoader struct {
	binaryName string
	modelPath  string
	fallback   domain.WhisperModelOption
	runner     lineRunner
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	download   downloadFunc
}

// NewWhisperLoader builds a production loader for the given model path.
func NewWhisperLoader(modelPath string, fallback domain.WhisperModelOption) *WhisperLoader {
	return &WhisperLoader{
		binaryName: "whisper.cpp",
		modelPath:  modelPath,
		fallback:   fallback,
		runner:     &execLineRunner{},
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		download:   downloadURLToFile,
	}
}

// NewWhisperLoaderForTests builds a loader with injectable dependencies.
func NewWhisperLoaderForTests(
	binaryName string,
	modelPath string,
	fallback domain.WhisperModelOption,
	runner lineRunner,
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	download downloadFunc,
) *WhisperLoader {
	return &WhisperLoader{
		binaryName: binaryName,
		modelPath:  modelPath,
		fallback:   fallback,
		runner:     runner,
		lookPath:   lookPath,
		stat:       stat,
		readDir:    readDir,
		mkdirAll:   os.MkdirAll,
		download:   download,
	}
}

// Load verifies the binary, resolves or downloads the model file, and
// returns the ready capability. Progress events use the boundary vocabulary.
func (l *WhisperLoader) Load(ctx context.Context, onProgress func(progress.Raw)) (Capability, error) {
	binary, err := l.lookPath(l.binaryName)
	if err != nil {
		return nil, fmt.Errorf("whisper binary not found on PATH: %s", l.binaryName)
	}

	modelFile, err := l.resolveModelFile(ctx, onProgress)
	if err != nil {
		return nil, err
	}

	emitRaw(onProgress, progress.Raw{Status: "ready"})
	return &whisperCapability{
		binaryPath: binary,
		modelPath:  modelFile,
		runner:     l.runner,
		mkdirTemp:  os.MkdirTemp,
		removeAll:  os.RemoveAll,
		readFile:   os.ReadFile,
	}, nil
}

// resolveModelFile returns a usable model file from the configured path,
// accepting either a model file or a directory holding .bin/.gguf files, and
// falling back to downloading the default preset into a missing path.
func (l *WhisperLoader) resolveModelFile(ctx context.Context, onProgress func(progress.Raw)) (string, error) {
	modelPath := strings.TrimSpace(l.modelPath)
	if modelPath == "" {
		return "", fmt.Errorf("model path is not configured")
	}

	info, err := l.stat(modelPath)
	if err == nil && !info.IsDir() {
		emitRaw(onProgress, progress.Raw{Status: "initiate", File: filepath.Base(modelPath)})
		emitRaw(onProgress, progress.Raw{Status: "done", File: filepath.Base(modelPath)})
		return modelPath, nil
	}

	if err == nil && info.IsDir() {
		entries, readErr := l.readDir(modelPath)
		if readErr != nil {
			return "", fmt.Errorf("cannot read model directory: %s", modelPath)
		}

		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if ext == ".bin" || ext == ".gguf" {
				names = append(names, entry.Name())
			}
		}
		if len(names) > 0 {
			sort.Strings(names)
			chosen := filepath.Join(modelPath, names[0])
			emitRaw(onProgress, progress.Raw{Status: "initiate", File: names[0]})
			emitRaw(onProgress, progress.Raw{Status: "done", File: names[0]})
			return chosen, nil
		}
		return l.downloadFallback(ctx, modelPath, onProgress)
	}

	if !os.IsNotExist(err) {
		return "", fmt.Errorf("cannot access model path: %s", modelPath)
	}

	// Missing path: treat it as the download directory for the preset.
	dir := modelPath
	ext := strings.ToLower(filepath.Ext(modelPath))
	if ext == ".bin" || ext == ".gguf" {
		dir = filepath.Dir(modelPath)
	}
	return l.downloadFallback(ctx, dir, onProgress)
}

// downloadFallback fetches the default model preset into dir with
// initiate/download/downloading/done events.
func (l *WhisperLoader) downloadFallback(ctx context.Context, dir string, onProgress func(progress.Raw)) (string, error) {
	if l.fallback.URL == "" || l.fallback.FileName == "" {
		return "", fmt.Errorf("no model file found at %s and no fallback preset configured", l.modelPath)
	}
	if err := l.mkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}

	target := filepath.Join(dir, l.fallback.FileName)
	emitRaw(onProgress, progress.Raw{Status: "initiate", File: l.fallback.FileName})
	emitRaw(onProgress, progress.Raw{Status: "download", File: l.fallback.FileName})
	if err := l.download(ctx, l.fallback.URL, target, l.fallback.FileName, onProgress); err != nil {
		return "", fmt.Errorf("download model %s: %w", l.fallback.Name, err)
	}
	emitRaw(onProgress, progress.Raw{Status: "done", File: l.fallback.FileName})
	return target, nil
}

// whisperCapability runs whisper.cpp over strided audio windows and merges
// the per-window segments into one chunk list.
type whisperCapability struct {
	binaryPath string
	modelPath  string
	runner     lineRunner
	mkdirTemp  func(dir, pattern string) (string, error)
	removeAll  func(path string) error
	readFile   func(name string) ([]byte, error)
}

// audioWindow is one strided slice of the input buffer.
type audioWindow struct {
	start int
	end   int
}

// Transcribe splits the mono buffer into chunk-length windows with stride
// overlap, transcribes each window, and re-offsets segment timestamps into
// the source timeline. Inference progress events carry no filename.
func (c *whisperCapability) Transcribe(ctx context.Context, samples []float32, sampleRate int, opts Options, onProgress func(progress.Raw)) (Output, error) {
	if len(samples) == 0 {
		return Output{}, fmt.Errorf("audio buffer is empty")
	}
	if sampleRate <= 0 {
		return Output{}, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	windows := planWindows(len(samples), sampleRate, opts.ChunkLengthSeconds, opts.StrideLengthSeconds)
	tempDir, err := c.mkdirTemp("", "media-subtitler-asr-*")
	if err != nil {
		return Output{}, fmt.Errorf("create temporary workspace: %w", err)
	}
	defer func() {
		_ = c.removeAll(tempDir)
	}()

	emitRaw(onProgress, progress.Raw{Status: "progress", Percent: 0})

	var chunks []domain.TranscriptChunk
	var texts []string
	strideSeconds := float64(opts.StrideLengthSeconds)
	for i, window := range windows {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}

		wavPath := filepath.Join(tempDir, fmt.Sprintf("window-%03d.wav", i))
		if err := writeWAV16(wavPath, samples[window.start:window.end], sampleRate); err != nil {
			return Output{}, fmt.Errorf("stage window audio: %w", err)
		}

		outBase := filepath.Join(tempDir, fmt.Sprintf("window-%03d", i))
		args := buildWhisperArgs(c.modelPath, wavPath, outBase, opts)

		windowBase := float64(i) / float64(len(windows)) * 100
		windowShare := 100 / float64(len(windows))
		exitCode, stderrTail, runErr := c.runner.Run(ctx, c.binaryPath, args, func(line string) {
			if match := whisperProgressRe.FindStringSubmatch(line); match != nil {
				sub, _ := strconv.Atoi(match[1])
				emitRaw(onProgress, progress.Raw{
					Status:  "progress",
					Percent: windowBase + float64(sub)/100*windowShare,
				})
			}
		})
		if runErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Output{}, ctxErr
			}
			return Output{}, fmt.Errorf("whisper exited with code %d: %s", exitCode, lastLine(stderrTail))
		}

		offsetSeconds := float64(window.start) / float64(sampleRate)
		segments, err := c.parseWindowResult(outBase + ".json")
		if err != nil {
			return Output{}, err
		}

		// Overlap handling: a non-first window re-hears the last stride
		// seconds of its predecessor; segments starting in the first half of
		// that overlap belong to the predecessor and are dropped here.
		cutoff := offsetSeconds + strideSeconds/2
		for _, segment := range segments {
			absStart := offsetSeconds + segment.Start
			absEnd := offsetSeconds + segment.End
			if i > 0 && absStart < cutoff {
				continue
			}
			chunks = append(chunks, domain.TranscriptChunk{Start: absStart, End: absEnd, Text: segment.Text})
			if trimmed := strings.TrimSpace(segment.Text); trimmed != "" {
				texts = append(texts, trimmed)
			}
		}

		emitRaw(onProgress, progress.Raw{
			Status:  "progress",
			Percent: float64(i+1) / float64(len(windows)) * 100,
		})
	}

	return Output{Chunks: chunks, Text: strings.Join(texts, " ")}, nil
}

// whisperWindowResult mirrors the whisper.cpp JSON export layout.
type whisperWindowResult struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseWindowResult reads one window's JSON export into relative-time chunks.
func (c *whisperCapability) parseWindowResult(path string) ([]domain.TranscriptChunk, error) {
	data, err := c.readFile(path)
	if err != nil {
		return nil, fmt.Errorf("read whisper output %s: %w", path, err)
	}

	var result whisperWindowResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse whisper output %s: %w", path, err)
	}

	chunks := make([]domain.TranscriptChunk, 0, len(result.Transcription))
	for _, segment := range result.Transcription {
		chunks = append(chunks, domain.TranscriptChunk{
			Start: float64(segment.Offsets.From) / 1000,
			End:   float64(segment.Offsets.To) / 1000,
			Text:  segment.Text,
		})
	}
	return chunks, nil
}

// planWindows slices frame count into chunk-length windows advancing by
// chunk minus stride, so consecutive windows overlap by the stride.
func planWindows(frames, sampleRate, chunkSeconds, strideSeconds int) []audioWindow {
	windowLen := chunkSeconds * sampleRate
	if windowLen <= 0 || windowLen >= frames {
		return []audioWindow{{start: 0, end: frames}}
	}

	step := (chunkSeconds - strideSeconds) * sampleRate
	if step <= 0 {
		step = windowLen
	}

	var windows []audioWindow
	for start := 0; start < frames; start += step {
		end := start + windowLen
		if end > frames {
			end = frames
		}
		windows = append(windows, audioWindow{start: start, end: end})
		if end == frames {
			break
		}
	}
	return windows
}

// buildWhisperArgs builds whisper.cpp args for JSON export with progress.
func buildWhisperArgs(modelPath, audioPath, outBase string, opts Options) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-oj",
		"--print-progress",
	}
	if opts.Language != "" {
		args = append(args, "-l", opts.Language)
	}
	return args
}

// emitRaw forwards a boundary event when a callback is configured.
func emitRaw(onProgress func(progress.Raw), raw progress.Raw) {
	if onProgress != nil {
		onProgress(raw)
	}
}

// lastLine returns the final non-empty stderr line for error text.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
