package genres

import "fmt"

// Count is the number of genre classes in the GTZAN label schema.
const Count = 10

// Canonical genre identifiers, in GTZAN's native label order. The exported
// classifier's output index i means canonical[i], and downstream consumers
// (the mobile app bundling the .tflite file) decode predictions with this
// exact ordering, so it must never be reordered.
var canonical = [Count]string{
	"blues", "classical", "country", "disco", "hiphop",
	"jazz", "metal", "pop", "reggae", "rock",
}

// Human-readable names, index-aligned with the canonical list.
var display = [Count]string{
	"Blues", "Classical", "Country", "Disco", "Hip-Hop",
	"Jazz", "Metal", "Pop", "Reggae", "Rock",
}

// Valid reports whether idx is a well-formed genre label.
func Valid(idx int) bool {
	return idx >= 0 && idx < Count
}

// Name returns the canonical identifier for a genre index.
func Name(idx int) (string, error) {
	if !Valid(idx) {
		return "", fmt.Errorf("genre index out of range: %d", idx)
	}
	return canonical[idx], nil
}

// DisplayName returns the human-readable name for a genre index.
func DisplayName(idx int) (string, error) {
	if !Valid(idx) {
		return "", fmt.Errorf("genre index out of range: %d", idx)
	}
	return display[idx], nil
}

// Index returns the label index for a canonical genre identifier, or -1 if
// the name is not part of the schema.
func Index(name string) int {
	for i, g := range canonical {
		if g == name {
			return i
		}
	}
	return -1
}

// Names returns a copy of the canonical identifier list.
func Names() []string {
	out := make([]string, Count)
	copy(out, canonical[:])
	return out
}
