package transcribe

import (
	"bytes"
	"encoding/binary"
	"os"
)

// writeWAV16 stages one mono float window as a 16-bit PCM WAV file for
// whisper.cpp. Samples are clamped into [-1, 1] before quantization.
func writeWAV16(path string, samples []float32, sampleRate int) error {
	dataLen := len(samples) * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataLen)
	buf.WriteString("RIFF")
	writeUint32(&buf, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	writeUint32(&buf, 16)
	writeUint16(&buf, 1) // PCM
	writeUint16(&buf, 1) // mono
	writeUint32(&buf, uint32(sampleRate))
	writeUint32(&buf, uint32(sampleRate*2)) // byte rate
	writeUint16(&buf, 2)                    // block align
	writeUint16(&buf, 16)                   // bits per sample

	buf.WriteString("data")
	writeUint32(&buf, uint32(dataLen))
	for _, sample := range samples {
		v := sample
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		writeUint16(&buf, uint16(int16(v*32767)))
	}

	return os.WriteFile(path, buf.Bytes(), 0o600)
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
