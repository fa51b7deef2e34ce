package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"media-subtitler/internal/domain"
)

// commandResult is an internal process execution response. Stdout is raw
// bytes because ffmpeg emits binary PCM on it.
type commandResult struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// decodeWithFFmpeg handles every container the native paths do not. The input
// bytes are staged in a scoped temp dir that is removed on every exit path;
// ffprobe reports the stream layout and ffmpeg renders raw float PCM.
func (d *Decoder) decodeWithFFmpeg(ctx context.Context, data []byte) (domain.DecodedAudio, error) {
	tempDir, err := d.mkdirTemp("", "media-subtitler-*")
	if err != nil {
		return domain.DecodedAudio{}, &DecodeError{Reason: "create temporary workspace", Err: err}
	}
	defer func() {
		_ = d.removeAll(tempDir)
	}()

	inputPath := filepath.Join(tempDir, "input.media")
	if err := d.writeFile(inputPath, data, 0o600); err != nil {
		return domain.DecodedAudio{}, &DecodeError{Reason: "stage input media", Err: err}
	}

	sampleRate, numChannels, err := d.probeStream(ctx, inputPath)
	if err != nil {
		return domain.DecodedAudio{}, err
	}

	result, runErr := d.runner.Run(ctx, d.ffmpegPath, buildFFmpegDecodeArgs(inputPath)...)
	if runErr != nil {
		return domain.DecodedAudio{}, &DecodeError{
			Reason: fmt.Sprintf("ffmpeg decode failed (exit=%d): %s", result.ExitCode, firstLine(result.Stderr)),
			Err:    runErr,
		}
	}

	return parseRawFloatPCM(result.Stdout, sampleRate, numChannels)
}

// probeStream asks ffprobe for the first audio stream's rate and channels.
func (d *Decoder) probeStream(ctx context.Context, inputPath string) (sampleRate, numChannels int, err error) {
	result, runErr := d.runner.Run(ctx, d.ffprobePath, buildFFprobeArgs(inputPath)...)
	if runErr != nil {
		return 0, 0, &DecodeError{
			Reason: fmt.Sprintf("ffprobe failed (exit=%d): %s", result.ExitCode, firstLine(result.Stderr)),
			Err:    runErr,
		}
	}

	for _, line := range strings.Split(string(result.Stdout), "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		switch key {
		case "sample_rate":
			sampleRate, _ = strconv.Atoi(value)
		case "channels":
			numChannels, _ = strconv.Atoi(value)
		}
	}
	if sampleRate <= 0 || numChannels <= 0 {
		return 0, 0, &DecodeError{Reason: "no decodable audio stream found"}
	}
	return sampleRate, numChannels, nil
}

// parseRawFloatPCM de-interleaves little-endian float32 PCM into channels.
func parseRawFloatPCM(raw []byte, sampleRate, numChannels int) (domain.DecodedAudio, error) {
	frameBytes := 4 * numChannels
	frames := len(raw) / frameBytes
	if frames == 0 {
		return domain.DecodedAudio{}, ErrEmptyMedia
	}

	channels := make([][]float32, numChannels)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		base := i * frameBytes
		for c := 0; c < numChannels; c++ {
			bits := binary.LittleEndian.Uint32(raw[base+4*c:])
			channels[c][i] = math.Float32frombits(bits)
		}
	}

	return domain.DecodedAudio{
		Channels:   channels,
		SampleRate: sampleRate,
	}, nil
}

// buildFFprobeArgs builds stream inspection args for the first audio stream.
func buildFFprobeArgs(inputPath string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,channels",
		"-of", "default=noprint_wrappers=1",
		inputPath,
	}
}

// buildFFmpegDecodeArgs builds raw float PCM decode args at the native rate
// and channel layout.
func buildFFmpegDecodeArgs(inputPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-i", inputPath,
		"-vn",
		"-f", "f32le",
		"-c:a", "pcm_f32le",
		"-",
	}
}

// firstLine trims command stderr down to its leading line for error text.
func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
