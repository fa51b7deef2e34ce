package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"testing"
)

// fakeRunner simulates command execution order and outcomes.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (commandResult, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	if f.run == nil {
		return commandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

// failRunner fails the test if any command is executed.
type failRunner struct {
	t *testing.T
}

// Run reports an unexpected process invocation.
func (f *failRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	f.t.Fatalf("unexpected command execution: %s %v", name, args)
	return commandResult{}, nil
}

// buildWAV renders a canonical 16-bit PCM RIFF file for native decode tests.
func buildWAV(sampleRate int, numChannels int, samples []int16) []byte {
	var data bytes.Buffer
	for _, s := range samples {
		_ = binary.Write(&data, binary.LittleEndian, s)
	}

	var b bytes.Buffer
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36+data.Len()))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	_ = binary.Write(&b, binary.LittleEndian, uint32(16))
	_ = binary.Write(&b, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&b, binary.LittleEndian, uint16(numChannels))
	_ = binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&b, binary.LittleEndian, uint32(sampleRate*numChannels*2))
	_ = binary.Write(&b, binary.LittleEndian, uint16(numChannels*2))
	_ = binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(data.Len()))
	b.Write(data.Bytes())
	return b.Bytes()
}

// TestSniffContainer verifies container detection by leading bytes.
func TestSniffContainer(t *testing.T) {
	wav := buildWAV(8000, 1, []int16{0, 0})
	if got := sniffContainer(wav); got != containerWAV {
		t.Fatalf("sniff WAV = %v, want containerWAV", got)
	}
	if got := sniffContainer([]byte("ID3\x04\x00rest")); got != containerMP3 {
		t.Fatalf("sniff ID3 = %v, want containerMP3", got)
	}
	if got := sniffContainer([]byte{0xFF, 0xFB, 0x90, 0x00}); got != containerMP3 {
		t.Fatalf("sniff frame sync = %v, want containerMP3", got)
	}
	if got := sniffContainer([]byte("ftypmp42 movie")); got != containerUnknown {
		t.Fatalf("sniff mp4 = %v, want containerUnknown", got)
	}
}

// TestDecodeWAVNative verifies the in-process WAV path: no external command,
// correct channel split, and computed duration.
func TestDecodeWAVNative(t *testing.T) {
	wav := buildWAV(8000, 2, []int16{
		16384, -16384,
		0, 0,
		32767, -32768,
		8192, 8192,
	})

	var lastLoaded, lastTotal int64
	dec := NewDecoderForTests("ffmpeg", "ffprobe", &failRunner{t: t}, os.MkdirTemp, os.RemoveAll)
	got, err := dec.Decode(context.Background(), bytes.NewReader(wav), int64(len(wav)), func(loaded, total int64) {
		lastLoaded, lastTotal = loaded, total
	})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if got.SampleRate != 8000 {
		t.Fatalf("sample rate = %d, want 8000", got.SampleRate)
	}
	if got.NumChannels() != 2 || got.Frames() != 4 {
		t.Fatalf("layout = %d channels x %d frames, want 2 x 4", got.NumChannels(), got.Frames())
	}
	if want := 4.0 / 8000; math.Abs(got.Duration-want) > 1e-9 {
		t.Fatalf("duration = %v, want %v", got.Duration, want)
	}
	if math.Abs(float64(got.Channels[0][0])-0.5) > 0.01 {
		t.Fatalf("left[0] = %v, want ~0.5", got.Channels[0][0])
	}
	if math.Abs(float64(got.Channels[1][0])+0.5) > 0.01 {
		t.Fatalf("right[0] = %v, want ~-0.5", got.Channels[1][0])
	}
	if lastLoaded != int64(len(wav)) || lastTotal != int64(len(wav)) {
		t.Fatalf("final progress = %d/%d, want %d/%d", lastLoaded, lastTotal, len(wav), len(wav))
	}
}

// TestDecodeEmptyInput verifies zero-byte media is rejected up front.
func TestDecodeEmptyInput(t *testing.T) {
	dec := NewDecoderForTests("ffmpeg", "ffprobe", &failRunner{t: t}, os.MkdirTemp, os.RemoveAll)
	_, err := dec.Decode(context.Background(), bytes.NewReader(nil), 0, nil)
	if !errors.Is(err, ErrEmptyMedia) {
		t.Fatalf("Decode() error = %v, want ErrEmptyMedia", err)
	}
}

// TestDecodeFFmpegFallback verifies unknown containers are probed and decoded
// through external commands, with the staged temp dir removed afterwards.
func TestDecodeFFmpegFallback(t *testing.T) {
	// Two frames of interleaved stereo float32 PCM.
	pcm := new(bytes.Buffer)
	for _, v := range []float32{0.5, -0.5, 0.25, -0.25} {
		_ = binary.Write(pcm, binary.LittleEndian, math.Float32bits(v))
	}

	call := 0
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			call++
			switch call {
			case 1:
				if name != "ffprobe-custom" {
					t.Fatalf("command 1 name = %q, want ffprobe-custom", name)
				}
				return commandResult{Stdout: []byte("sample_rate=22050\nchannels=2\n")}, nil
			case 2:
				if name != "ffmpeg-custom" {
					t.Fatalf("command 2 name = %q, want ffmpeg-custom", name)
				}
				return commandResult{Stdout: pcm.Bytes()}, nil
			default:
				t.Fatalf("unexpected command call: %d", call)
				return commandResult{}, nil
			}
		},
	}

	var removed string
	dec := NewDecoderForTests("ffmpeg-custom", "ffprobe-custom", runner, os.MkdirTemp, func(path string) error {
		removed = path
		return os.RemoveAll(path)
	})

	input := []byte("ftypmp42 not a wav, not an mp3")
	got, err := dec.Decode(context.Background(), bytes.NewReader(input), int64(len(input)), nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if call != 2 {
		t.Fatalf("command calls = %d, want 2", call)
	}
	if got.SampleRate != 22050 || got.NumChannels() != 2 || got.Frames() != 2 {
		t.Fatalf("decoded layout = rate %d, %d channels x %d frames", got.SampleRate, got.NumChannels(), got.Frames())
	}
	if got.Channels[0][1] != 0.25 || got.Channels[1][1] != -0.25 {
		t.Fatalf("frame 1 = %v / %v, want 0.25 / -0.25", got.Channels[0][1], got.Channels[1][1])
	}
	if removed == "" {
		t.Fatal("staged temp dir was not removed")
	}
	if _, err := os.Stat(removed); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp dir still exists: stat err = %v", err)
	}
}

// TestDecodeFFprobeNoAudioStream verifies probe output without an audio
// stream fails with a decode error.
func TestDecodeFFprobeNoAudioStream(t *testing.T) {
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			return commandResult{Stdout: []byte("")}, nil
		},
	}
	dec := NewDecoderForTests("ffmpeg", "ffprobe", runner, os.MkdirTemp, os.RemoveAll)

	input := []byte("ftyp unknown container")
	_, err := dec.Decode(context.Background(), bytes.NewReader(input), int64(len(input)), nil)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Decode() error = %v, want DecodeError", err)
	}
}

// TestReadAllWithProgress verifies byte counters advance per chunk.
func TestReadAllWithProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 200*1024)

	var calls int
	var lastLoaded int64
	data, err := readAllWithProgress(bytes.NewReader(payload), int64(len(payload)), func(loaded, total int64) {
		calls++
		if loaded < lastLoaded {
			t.Fatalf("loaded went backwards: %d -> %d", lastLoaded, loaded)
		}
		if total != int64(len(payload)) {
			t.Fatalf("total = %d, want %d", total, len(payload))
		}
		lastLoaded = loaded
	})
	if err != nil {
		t.Fatalf("readAllWithProgress() error = %v", err)
	}
	if len(data) != len(payload) {
		t.Fatalf("read %d bytes, want %d", len(data), len(payload))
	}
	if calls < 2 {
		t.Fatalf("progress calls = %d, want chunked reporting", calls)
	}
	if lastLoaded != int64(len(payload)) {
		t.Fatalf("final loaded = %d, want %d", lastLoaded, len(payload))
	}
}
