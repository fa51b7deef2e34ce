package decode

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"

	"media-subtitler/internal/domain"
)

// decodeWAV decodes a RIFF/WAVE stream and de-interleaves it into per-channel
// float buffers scaled to [-1, 1].
func decodeWAV(data []byte) (domain.DecodedAudio, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return domain.DecodedAudio{}, &DecodeError{Reason: "parse wav stream", Err: err}
	}
	if !dec.WasPCMAccessed() || buf.Format == nil {
		return domain.DecodedAudio{}, &DecodeError{Reason: "wav stream carries no PCM data"}
	}

	numChannels := buf.Format.NumChannels
	if numChannels <= 0 {
		return domain.DecodedAudio{}, &DecodeError{Reason: "wav stream reports zero channels"}
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / numChannels
	channels := make([][]float32, numChannels)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			channels[c][i] = float32(buf.Data[i*numChannels+c]) / scale
		}
	}

	return domain.DecodedAudio{
		Channels:   channels,
		SampleRate: buf.Format.SampleRate,
	}, nil
}

// decodeMP3 decodes an MPEG audio stream. go-mp3 always emits 16-bit stereo
// interleaved samples at the stream's native rate.
func decodeMP3(data []byte) (domain.DecodedAudio, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return domain.DecodedAudio{}, &DecodeError{Reason: "parse mp3 stream", Err: err}
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return domain.DecodedAudio{}, &DecodeError{Reason: "decode mp3 frames", Err: err}
	}

	// 2 channels x 2 bytes per sample
	frames := len(pcm) / 4
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*4:]))) / 32768
		right[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))) / 32768
	}

	return domain.DecodedAudio{
		Channels:   [][]float32{left, right},
		SampleRate: dec.SampleRate(),
	}, nil
}
