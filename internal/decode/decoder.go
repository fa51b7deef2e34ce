package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"media-subtitler/internal/domain"
)

// ErrEmptyMedia is returned when the input or its decoded buffer is empty.
var ErrEmptyMedia = errors.New("media contains no audio frames")

// DecodeError reports an unsupported or corrupt media stream.
type DecodeError struct {
	Reason string
	Err    error
}

// Error formats decode failures for logs and UI.
func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decode media: %s", e.Reason)
	}
	return fmt.Sprintf("decode media: %s: %v", e.Reason, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ProgressFunc receives incremental byte counters during file ingestion.
type ProgressFunc func(loaded, total int64)

// Decoder turns raw media bytes into multi-channel float PCM. WAV and MP3
// containers decode in-process; every other container goes through ffmpeg.
type Decoder struct {
	ffmpegPath  string
	ffprobePath string
	runner      commandRunner
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	writeFile   func(name string, data []byte, perm os.FileMode) error
}

// NewDecoder constructs the production decoder with OS dependencies.
func NewDecoder() *Decoder {
	return &Decoder{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		runner:      &execRunner{},
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		writeFile:   os.WriteFile,
	}
}

// NewDecoderForTests constructs a decoder with injectable dependencies.
func NewDecoderForTests(
	ffmpegPath string,
	ffprobePath string,
	runner commandRunner,
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
) *Decoder {
	return &Decoder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
		mkdirTemp:   mkdirTemp,
		removeAll:   removeAll,
		writeFile:   os.WriteFile,
	}
}

// Decode reads all media bytes through a counting reader, sniffs the
// container, and produces a decoded buffer at its native sample rate.
// onProgress, when set, receives loaded/total byte counters as chunks arrive.
func (d *Decoder) Decode(ctx context.Context, r io.Reader, size int64, onProgress ProgressFunc) (domain.DecodedAudio, error) {
	data, err := readAllWithProgress(r, size, onProgress)
	if err != nil {
		return domain.DecodedAudio{}, &DecodeError{Reason: "read media bytes", Err: err}
	}
	if len(data) == 0 {
		return domain.DecodedAudio{}, ErrEmptyMedia
	}

	var dec domain.DecodedAudio
	switch sniffContainer(data) {
	case containerWAV:
		dec, err = decodeWAV(data)
	case containerMP3:
		dec, err = decodeMP3(data)
	default:
		dec, err = d.decodeWithFFmpeg(ctx, data)
	}
	if err != nil {
		return domain.DecodedAudio{}, err
	}

	if dec.Frames() == 0 {
		return domain.DecodedAudio{}, ErrEmptyMedia
	}
	if dec.SampleRate <= 0 {
		return domain.DecodedAudio{}, &DecodeError{Reason: fmt.Sprintf("invalid sample rate %d", dec.SampleRate)}
	}
	dec.Duration = float64(dec.Frames()) / float64(dec.SampleRate)
	return dec, nil
}

type container int

const (
	containerUnknown container = iota
	containerWAV
	containerMP3
)

// sniffContainer identifies WAV and MP3 streams by their leading bytes.
func sniffContainer(data []byte) container {
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return containerWAV
	}
	if len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")) {
		return containerMP3
	}
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return containerMP3
	}
	return containerUnknown
}

// readAllWithProgress buffers the whole source, reporting cumulative byte
// counts per chunk so large files drive the progress display while loading.
func readAllWithProgress(r io.Reader, total int64, onProgress ProgressFunc) ([]byte, error) {
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}

	chunk := make([]byte, 64*1024)
	var loaded int64
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			loaded += int64(n)
			if onProgress != nil {
				onProgress(loaded, total)
			}
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
