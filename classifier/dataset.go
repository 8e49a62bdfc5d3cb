package classifier

import (
	"fmt"
	"math/rand"
)

// Dataset is a pair of parallel sequences: one embedding vector and one
// integer label per example, index-aligned.
type Dataset struct {
	Embeddings [][]float32
	Labels     []int
}

// Len returns the number of examples.
func (d Dataset) Len() int {
	return len(d.Labels)
}

// flatten packs the selected examples into a row-major [len(idx), dim]
// activation block plus the matching label slice.
func (d Dataset) flatten(idx []int, dim int) ([]float32, []int) {
	x := make([]float32, len(idx)*dim)
	labels := make([]int, len(idx))
	for row, i := range idx {
		copy(x[row*dim:(row+1)*dim], d.Embeddings[i])
		labels[row] = d.Labels[i]
	}
	return x, labels
}

// Assembler accumulates (embedding, label) pairs in discovery order and
// produces the shuffled train/test split. Labels outside [0, classes) are
// rejected.
type Assembler struct {
	dim     int
	classes int
	ds      Dataset
}

// NewAssembler creates an assembler for embeddings of the given width and
// label space.
func NewAssembler(dim, classes int) (*Assembler, error) {
	if dim <= 0 || classes <= 0 {
		return nil, fmt.Errorf("invalid assembler shape: dim %d, classes %d", dim, classes)
	}
	return &Assembler{dim: dim, classes: classes}, nil
}

// Add appends one example. Invalid labels and mis-sized embeddings are
// reported as errors so the caller can count and skip them.
func (a *Assembler) Add(emb []float32, label int) error {
	if label < 0 || label >= a.classes {
		return fmt.Errorf("invalid genre index: %d", label)
	}
	if len(emb) != a.dim {
		return fmt.Errorf("embedding length %d, want %d", len(emb), a.dim)
	}
	a.ds.Embeddings = append(a.ds.Embeddings, emb)
	a.ds.Labels = append(a.ds.Labels, label)
	return nil
}

// Len returns the number of accumulated examples.
func (a *Assembler) Len() int {
	return a.ds.Len()
}

// Split draws one random permutation, reorders embeddings and labels with
// the same permutation so pairing is preserved, and slices the first 80%
// as train and the remainder as test. No stratification by class is
// performed.
func (a *Assembler) Split(rng *rand.Rand) (train, test Dataset) {
	n := a.ds.Len()
	perm := rng.Perm(n)

	shuffled := Dataset{
		Embeddings: make([][]float32, n),
		Labels:     make([]int, n),
	}
	for dst, src := range perm {
		shuffled.Embeddings[dst] = a.ds.Embeddings[src]
		shuffled.Labels[dst] = a.ds.Labels[src]
	}

	cut := int(0.8 * float64(n))
	train = Dataset{Embeddings: shuffled.Embeddings[:cut], Labels: shuffled.Labels[:cut]}
	test = Dataset{Embeddings: shuffled.Embeddings[cut:], Labels: shuffled.Labels[cut:]}
	return train, test
}
