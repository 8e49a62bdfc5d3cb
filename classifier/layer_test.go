package classifier

import "testing"

func TestModelBuilder(t *testing.T) {
	t.Run("Compile computes shapes", func(t *testing.T) {
		spec, err := NewModelBuilder(8).
			AddDense(4, "hidden").
			AddReLU("relu").
			AddDense(2, "out").
			AddSoftmax("softmax").
			Compile()
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}

		if spec.OutputDim != 2 {
			t.Errorf("OutputDim = %d, want 2", spec.OutputDim)
		}
		if spec.Layers[0].InputSize != 8 || spec.Layers[0].OutputSize != 4 {
			t.Errorf("hidden shapes %d->%d, want 8->4", spec.Layers[0].InputSize, spec.Layers[0].OutputSize)
		}
		// 8*4+4 + 4*2+2
		if spec.TotalParameters != 46 {
			t.Errorf("TotalParameters = %d, want 46", spec.TotalParameters)
		}
	})

	t.Run("Invalid layers rejected", func(t *testing.T) {
		if _, err := NewModelBuilder(0).AddDense(4, "d").Compile(); err == nil {
			t.Error("Expected error for zero input dim")
		}
		if _, err := NewModelBuilder(8).Compile(); err == nil {
			t.Error("Expected error for empty model")
		}
		if _, err := NewModelBuilder(8).AddDense(0, "d").Compile(); err == nil {
			t.Error("Expected error for zero units")
		}
		if _, err := NewModelBuilder(8).AddDropout(1.0, "d").Compile(); err == nil {
			t.Error("Expected error for dropout rate 1.0")
		}
	})
}

func TestNewGenreSpec(t *testing.T) {
	spec, err := NewGenreSpec(1024, 10)
	if err != nil {
		t.Fatalf("NewGenreSpec failed: %v", err)
	}

	if !spec.Compiled {
		t.Fatal("Spec not marked compiled")
	}
	if spec.InputDim != 1024 || spec.OutputDim != 10 {
		t.Errorf("Dims %d->%d, want 1024->10", spec.InputDim, spec.OutputDim)
	}

	dense := spec.DenseLayers()
	if len(dense) != 3 {
		t.Fatalf("Expected 3 dense layers, got %d", len(dense))
	}
	wantUnits := []int{256, 128, 10}
	for i, layer := range dense {
		if layer.Units != wantUnits[i] {
			t.Errorf("Dense layer %d has %d units, want %d", i, layer.Units, wantUnits[i])
		}
	}

	// 1024*256+256 + 256*128+128 + 128*10+10
	if spec.TotalParameters != 296586 {
		t.Errorf("TotalParameters = %d, want 296586", spec.TotalParameters)
	}

	if spec.Layers[len(spec.Layers)-1].Type != Softmax {
		t.Error("Final layer must be softmax")
	}

	rates := []float32{0.3, 0.2}
	ri := 0
	for _, layer := range spec.Layers {
		if layer.Type == Dropout {
			if ri >= len(rates) || layer.Rate != rates[ri] {
				t.Errorf("Dropout %d rate %f", ri, layer.Rate)
			}
			ri++
		}
	}
	if ri != 2 {
		t.Errorf("Expected 2 dropout layers, got %d", ri)
	}
}
