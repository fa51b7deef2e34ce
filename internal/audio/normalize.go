package audio

import (
	"fmt"
	"math"

	"media-subtitler/internal/domain"
)

// TargetSampleRate is the fixed mono PCM rate expected by the speech model.
const TargetSampleRate = 16000

// ResampleError wraps a failure in the offline resampling pass.
type ResampleError struct {
	Err error
}

// Error formats the resample failure.
func (e *ResampleError) Error() string {
	return fmt.Sprintf("resample audio: %v", e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *ResampleError) Unwrap() error {
	return e.Err
}

// CorruptAudioError reports non-finite samples detected after normalization.
type CorruptAudioError struct {
	Index int
}

// Error names the first offending sample position.
func (e *CorruptAudioError) Error() string {
	return fmt.Sprintf("normalized audio contains a non-finite sample at index %d", e.Index)
}

// NormalizedAudio is a mono float PCM sequence at SampleRate.
type NormalizedAudio struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the buffer length in seconds.
func (n NormalizedAudio) Duration() float64 {
	if n.SampleRate <= 0 {
		return 0
	}
	return float64(len(n.Samples)) / float64(n.SampleRate)
}

// Validate checks every sample is finite and reports whether the buffer is
// completely silent. Silence is a soft warning for the caller, not an error.
func (n NormalizedAudio) Validate() (silent bool, err error) {
	silent = true
	for i, sample := range n.Samples {
		v := float64(sample)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false, &CorruptAudioError{Index: i}
		}
		if sample != 0 {
			silent = false
		}
	}
	return silent, nil
}

// Normalize converts decoded multi-channel audio into mono PCM at targetRate.
// Input at the target rate skips resampling and is only downmixed; any other
// rate goes through an offline linear-interpolation pass sized to
// ceil(duration * targetRate) output frames per channel. The input buffer is
// never mutated.
func Normalize(dec domain.DecodedAudio, targetRate int) (NormalizedAudio, error) {
	if dec.SampleRate <= 0 {
		return NormalizedAudio{}, &ResampleError{Err: fmt.Errorf("invalid source sample rate %d", dec.SampleRate)}
	}
	if targetRate <= 0 {
		return NormalizedAudio{}, &ResampleError{Err: fmt.Errorf("invalid target sample rate %d", targetRate)}
	}
	if dec.NumChannels() == 0 || dec.Frames() == 0 {
		return NormalizedAudio{}, &ResampleError{Err: fmt.Errorf("decoded buffer is empty")}
	}

	channels := dec.Channels
	if dec.SampleRate != targetRate {
		frames := int(math.Ceil(dec.Duration * float64(targetRate)))
		if frames <= 0 {
			frames = int(math.Ceil(float64(dec.Frames()) * float64(targetRate) / float64(dec.SampleRate)))
		}

		resampled := make([][]float32, len(channels))
		for i, channel := range channels {
			resampled[i] = resampleLinear(channel, dec.SampleRate, targetRate, frames)
		}
		channels = resampled
	}

	return NormalizedAudio{
		Samples:    Downmix(channels),
		SampleRate: targetRate,
	}, nil
}

// Downmix reduces any channel count to mono by per-sample arithmetic mean
// across all channels. This mean is the authoritative policy, not an
// approximation of a weighted downmix. A single-channel input is returned
// unchanged without allocating a new buffer.
func Downmix(channels [][]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	if len(channels) == 1 {
		return channels[0]
	}

	frames := len(channels[0])
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for _, channel := range channels {
			if i < len(channel) {
				sum += float64(channel[i])
			}
		}
		mono[i] = float32(sum / float64(len(channels)))
	}
	return mono
}

// resampleLinear renders one channel to frames output samples by linear
// interpolation between neighbouring source samples.
func resampleLinear(src []float32, srcRate, dstRate, frames int) []float32 {
	out := make([]float32, frames)
	if len(src) == 0 {
		return out
	}

	step := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * step
		left := int(pos)
		if left >= len(src)-1 {
			out[i] = src[len(src)-1]
			continue
		}
		frac := pos - float64(left)
		out[i] = float32(float64(src[left])*(1-frac) + float64(src[left+1])*frac)
	}
	return out
}
