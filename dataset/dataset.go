// Package dataset loads the GTZAN genre collection from the Hugging Face hub.
//
// The archive is fetched once and cached on disk; subsequent runs read the
// cached copy. Tracks are decoded lazily, one WAV at a time, so the whole
// collection is never resident in memory at once.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
)

// Track is one labeled audio example: the raw waveform, its native sample
// rate, and the integer genre label. Samples carry the decoder's 16-bit
// integer range; amplitude normalization happens at embedding time.
type Track struct {
	Name       string
	Samples    []float32
	SampleRate int
	Genre      int
}

// Config selects the dataset and where to cache it.
type Config struct {
	// Repo is the hub dataset identifier, e.g. "marsyas/gtzan".
	Repo string

	// Archive is the repo-relative path of the audio archive.
	Archive string

	// CacheDir is where the downloaded archive is kept. Empty means
	// a "genre-trainer" directory under the user cache dir.
	CacheDir string

	// Token is an optional hub access token for gated datasets.
	Token string
}

// DefaultConfig returns the GTZAN configuration used by the trainer.
func DefaultConfig() Config {
	return Config{
		Repo:    "marsyas/gtzan",
		Archive: "data/genres.tar.gz",
	}
}

func (c Config) cacheDir() (string, error) {
	if c.CacheDir != "" {
		return c.CacheDir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user cache dir: %v", err)
	}
	return filepath.Join(base, "genre-trainer"), nil
}

func (c Config) archiveURL() string {
	return fmt.Sprintf("https://huggingface.co/datasets/%s/resolve/main/%s", c.Repo, c.Archive)
}
