package classifier

import (
	"math/rand"
	"testing"
)

func TestAssembler(t *testing.T) {
	t.Run("Valid examples accumulate in order", func(t *testing.T) {
		a, err := NewAssembler(2, 10)
		if err != nil {
			t.Fatalf("NewAssembler failed: %v", err)
		}
		for i := 0; i < 5; i++ {
			if err := a.Add([]float32{float32(i), 0}, i); err != nil {
				t.Fatalf("Add %d failed: %v", i, err)
			}
		}
		if a.Len() != 5 {
			t.Errorf("Len = %d, want 5", a.Len())
		}
	})

	t.Run("Invalid labels rejected", func(t *testing.T) {
		a, _ := NewAssembler(2, 10)
		for _, label := range []int{-1, 10, 42} {
			if err := a.Add([]float32{0, 0}, label); err == nil {
				t.Errorf("Label %d accepted", label)
			}
		}
		if a.Len() != 0 {
			t.Errorf("Rejected labels were stored: Len = %d", a.Len())
		}
	})

	t.Run("Mis-sized embeddings rejected", func(t *testing.T) {
		a, _ := NewAssembler(4, 10)
		if err := a.Add([]float32{1, 2}, 0); err == nil {
			t.Error("Short embedding accepted")
		}
	})

	t.Run("Mixed valid and invalid input keeps only valid", func(t *testing.T) {
		a, _ := NewAssembler(1, 10)
		valid, invalid := 0, 0
		for i := 0; i < 30; i++ {
			label := i % 13 // labels 10, 11, 12 are invalid
			if err := a.Add([]float32{float32(i)}, label); err != nil {
				invalid++
			} else {
				valid++
			}
		}
		if a.Len() != valid {
			t.Errorf("Len = %d, want %d valid examples", a.Len(), valid)
		}
		if invalid == 0 {
			t.Fatal("Test produced no invalid labels; vacuous")
		}
	})
}

func TestSplit(t *testing.T) {
	t.Run("Sizes are floor(0.8N) and the remainder", func(t *testing.T) {
		for _, n := range []int{1, 2, 5, 10, 99, 100, 997} {
			a, _ := NewAssembler(1, 10)
			for i := 0; i < n; i++ {
				if err := a.Add([]float32{float32(i)}, i%10); err != nil {
					t.Fatalf("Add failed: %v", err)
				}
			}
			train, test := a.Split(rand.New(rand.NewSource(1)))
			wantTrain := int(0.8 * float64(n))
			if train.Len() != wantTrain || test.Len() != n-wantTrain {
				t.Errorf("N=%d: split %d/%d, want %d/%d", n, train.Len(), test.Len(), wantTrain, n-wantTrain)
			}
		}
	})

	t.Run("Split is a partition", func(t *testing.T) {
		const n = 200
		a, _ := NewAssembler(1, 10)
		for i := 0; i < n; i++ {
			// Unique first element tags each example.
			if err := a.Add([]float32{float32(i)}, i%10); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
		}

		train, test := a.Split(rand.New(rand.NewSource(2)))
		seen := make(map[float32]int)
		for _, e := range train.Embeddings {
			seen[e[0]]++
		}
		for _, e := range test.Embeddings {
			seen[e[0]]++
		}
		if len(seen) != n {
			t.Fatalf("Partition covers %d distinct examples, want %d", len(seen), n)
		}
		for tag, count := range seen {
			if count != 1 {
				t.Errorf("Example %v appears %d times", tag, count)
			}
		}
	})

	t.Run("Permutation preserves embedding-label pairing", func(t *testing.T) {
		const n = 150
		a, _ := NewAssembler(1, 10)
		for i := 0; i < n; i++ {
			// The embedding encodes its own label so pairing can be
			// checked after shuffling.
			label := i % 10
			if err := a.Add([]float32{float32(label)}, label); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
		}

		train, test := a.Split(rand.New(rand.NewSource(3)))
		check := func(ds Dataset) {
			for i := range ds.Labels {
				if int(ds.Embeddings[i][0]) != ds.Labels[i] {
					t.Fatalf("Pairing broken at %d: embedding %v, label %d", i, ds.Embeddings[i], ds.Labels[i])
				}
			}
		}
		check(train)
		check(test)
	})
}
