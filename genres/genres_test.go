package genres

import "testing"

func TestSchema(t *testing.T) {
	t.Run("Ten classes", func(t *testing.T) {
		if Count != 10 {
			t.Fatalf("Expected 10 genres, got %d", Count)
		}
		if len(Names()) != Count {
			t.Fatalf("Names() returned %d entries", len(Names()))
		}
	})

	t.Run("GTZAN ordering", func(t *testing.T) {
		// The exported model's output index is interpreted with this
		// exact ordering; a reorder would silently mislabel predictions.
		want := []string{"blues", "classical", "country", "disco", "hiphop",
			"jazz", "metal", "pop", "reggae", "rock"}
		got := Names()
		for i, name := range want {
			if got[i] != name {
				t.Errorf("Index %d: %q, want %q", i, got[i], name)
			}
		}
	})

	t.Run("Name and Index round-trip", func(t *testing.T) {
		for i := 0; i < Count; i++ {
			name, err := Name(i)
			if err != nil {
				t.Fatalf("Name(%d): %v", i, err)
			}
			if Index(name) != i {
				t.Errorf("Index(%q) = %d, want %d", name, Index(name), i)
			}
		}
	})

	t.Run("Out-of-range indices rejected", func(t *testing.T) {
		for _, idx := range []int{-1, 10, 100} {
			if Valid(idx) {
				t.Errorf("Valid(%d) = true", idx)
			}
			if _, err := Name(idx); err == nil {
				t.Errorf("Name(%d) succeeded", idx)
			}
			if _, err := DisplayName(idx); err == nil {
				t.Errorf("DisplayName(%d) succeeded", idx)
			}
		}
	})

	t.Run("Unknown name", func(t *testing.T) {
		if Index("polka") != -1 {
			t.Errorf("Index(polka) = %d, want -1", Index("polka"))
		}
	})

	t.Run("Display names", func(t *testing.T) {
		name, err := DisplayName(4)
		if err != nil {
			t.Fatalf("DisplayName(4): %v", err)
		}
		if name != "Hip-Hop" {
			t.Errorf("DisplayName(4) = %q, want Hip-Hop", name)
		}
	})
}
