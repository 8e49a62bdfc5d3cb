package audio

import (
	"math"
	"testing"
)

func TestResample(t *testing.T) {
	t.Run("Identity at matching rates", func(t *testing.T) {
		in := []float32{1, 2, 3, 4, 5}
		out := Resample(in, 16000, 16000)
		if len(out) != len(in) {
			t.Fatalf("Expected length %d, got %d", len(in), len(out))
		}
		for i := range in {
			if out[i] != in[i] {
				t.Errorf("Sample %d changed: %f vs %f", i, out[i], in[i])
			}
		}
	})

	t.Run("Output length follows rate ratio", func(t *testing.T) {
		rates := []int{8000, 22050, 44100, 48000}
		lengths := []int{1000, 16000, 661500}
		for _, rate := range rates {
			for _, n := range lengths {
				in := make([]float32, n)
				out := Resample(in, rate, TargetSampleRate)
				want := int(math.Round(float64(n) * float64(TargetSampleRate) / float64(rate)))
				diff := len(out) - want
				if diff < -1 || diff > 1 {
					t.Errorf("Resample %d samples %d->%d Hz: length %d, want %d (±1)", n, rate, TargetSampleRate, len(out), want)
				}
			}
		}
	})

	t.Run("Linear ramp interpolates linearly", func(t *testing.T) {
		// A straight line must stay a straight line under linear
		// interpolation, endpoints included.
		in := make([]float32, 100)
		for i := range in {
			in[i] = float32(i)
		}
		out := Resample(in, 22050, 16000)

		if out[0] != 0 {
			t.Errorf("First sample %f, want 0", out[0])
		}
		last := out[len(out)-1]
		if math.Abs(float64(last-99)) > 1e-4 {
			t.Errorf("Last sample %f, want 99", last)
		}

		step := float64(len(in)-1) / float64(len(out)-1)
		for i, v := range out {
			want := float32(float64(i) * step)
			if math.Abs(float64(v-want)) > 1e-3 {
				t.Errorf("Sample %d: %f, want %f", i, v, want)
			}
		}
	})

	t.Run("Constant signal stays constant", func(t *testing.T) {
		in := make([]float32, 500)
		for i := range in {
			in[i] = 0.25
		}
		for _, v := range Resample(in, 44100, 16000) {
			if v != 0.25 {
				t.Fatalf("Expected 0.25 everywhere, got %f", v)
			}
		}
	})

	t.Run("Single sample input", func(t *testing.T) {
		out := Resample([]float32{0.5}, 22050, 16000)
		if len(out) != 1 || out[0] != 0.5 {
			t.Errorf("Got %v, want [0.5]", out)
		}
	})

	t.Run("Empty input", func(t *testing.T) {
		if out := Resample(nil, 22050, 16000); len(out) != 0 {
			t.Errorf("Expected empty output, got %d samples", len(out))
		}
	})
}

func TestNormalize(t *testing.T) {
	t.Run("Integer-scaled input is divided by 32768", func(t *testing.T) {
		in := []float32{16384, -32768, 0}
		out := Normalize(in)
		want := []float32{0.5, -1.0, 0}
		for i := range want {
			if out[i] != want[i] {
				t.Errorf("Sample %d: %f, want %f", i, out[i], want[i])
			}
		}
	})

	t.Run("Normalized input unchanged", func(t *testing.T) {
		in := []float32{0.5, -1.0, 0.999}
		out := Normalize(in)
		for i := range in {
			if out[i] != in[i] {
				t.Errorf("Sample %d changed: %f vs %f", i, out[i], in[i])
			}
		}
	})
}
