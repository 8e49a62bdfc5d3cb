// Package audio provides the waveform preprocessing used ahead of embedding
// extraction: sample-rate conversion and amplitude normalization.
package audio

import "math"

// TargetSampleRate is the sample rate the embedding model expects.
const TargetSampleRate = 16000

// Resample converts a waveform from srcRate to dstRate using linear
// interpolation. If the rates already match the input slice is returned
// unchanged. The output length is round(len(samples) * dstRate/srcRate).
//
// This is not bandlimited resampling; aliasing is accepted in exchange for
// having no filter design or windowing stage.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(dstRate) / float64(srcRate)
	newLen := int(math.Round(float64(len(samples)) * ratio))
	if newLen < 1 {
		newLen = 1
	}

	out := make([]float32, newLen)
	if newLen == 1 || len(samples) == 1 {
		for i := range out {
			out[i] = samples[0]
		}
		return out
	}

	// Uniformly spaced positions over [0, len(samples)-1], evaluated by
	// interpolating between the two nearest source samples.
	step := float64(len(samples)-1) / float64(newLen-1)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		lo := int(pos)
		if lo >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(lo))
		out[i] = samples[lo] + frac*(samples[lo+1]-samples[lo])
	}
	return out
}

// Normalize scales integer-ranged PCM samples into [-1, 1]. Waveforms that
// are already in the normalized range are returned unchanged; anything with
// peaks above 1.0 is assumed to be 16-bit-scaled and divided by 32768.
func Normalize(samples []float32) []float32 {
	var peak float32
	for _, s := range samples {
		if s > peak {
			peak = s
		} else if -s > peak {
			peak = -s
		}
	}
	if peak <= 1.0 {
		return samples
	}

	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = s / 32768.0
	}
	return out
}
