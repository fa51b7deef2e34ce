package transcribe

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// TestWriteWAV16Header verifies the staged file is canonical 16-bit mono PCM.
func TestWriteWAV16Header(t *testing.T) {
	path := filepath.Join(t.TempDir(), "window.wav")
	samples := []float32{0, 0.5, -0.5, 1}

	if err := writeWAV16(path, samples, 16000); err != nil {
		t.Fatalf("writeWAV16() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read staged wav: %v", err)
	}
	if len(data) != 44+len(samples)*2 {
		t.Fatalf("file size = %d, want %d", len(data), 44+len(samples)*2)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if channels := binary.LittleEndian.Uint16(data[22:24]); channels != 1 {
		t.Fatalf("channels = %d, want 1", channels)
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Fatalf("sample rate = %d, want 16000", rate)
	}
	if bits := binary.LittleEndian.Uint16(data[34:36]); bits != 16 {
		t.Fatalf("bit depth = %d, want 16", bits)
	}

	if s := int16(binary.LittleEndian.Uint16(data[44:46])); s != 0 {
		t.Fatalf("sample 0 = %d, want 0", s)
	}
	if s := int16(binary.LittleEndian.Uint16(data[46:48])); s != 16383 {
		t.Fatalf("sample 1 = %d, want 16383", s)
	}
}

// TestWriteWAV16ClampsOutOfRangeSamples verifies samples beyond [-1, 1] do
// not wrap around during quantization.
func TestWriteWAV16ClampsOutOfRangeSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipped.wav")
	if err := writeWAV16(path, []float32{2, -2}, 16000); err != nil {
		t.Fatalf("writeWAV16() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read staged wav: %v", err)
	}
	if s := int16(binary.LittleEndian.Uint16(data[44:46])); s != 32767 {
		t.Fatalf("clipped high sample = %d, want 32767", s)
	}
	if s := int16(binary.LittleEndian.Uint16(data[46:48])); s != -32767 {
		t.Fatalf("clipped low sample = %d, want -32767", s)
	}
}
