package dataset

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"

	"github.com/soundml/genre-trainer/genres"
)

// Source streams tracks out of a GTZAN archive. Next returns tracks in
// archive order and (nil, nil) once the archive is exhausted.
type Source struct {
	file *os.File
	gz   *gzip.Reader
	tr   *tar.Reader

	// err latches the first archive-stream failure. Once set, the
	// stream cannot advance and every later Next returns it.
	err error

	// Skipped counts archive entries that were not decodable tracks.
	Skipped int
}

// TrackError reports one undecodable track. The archive stream itself is
// still healthy; the caller can skip the track and keep reading.
type TrackError struct {
	Name string
	Err  error
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Name, e.Err)
}

func (e *TrackError) Unwrap() error {
	return e.Err
}

// Open downloads the dataset archive if it is not cached yet and returns a
// Source over it. A network failure here is fatal to the run: there is no
// retry, matching the one-shot nature of the tool.
func Open(cfg Config) (*Source, error) {
	dir, err := cfg.cacheDir()
	if err != nil {
		return nil, err
	}

	local := filepath.Join(dir, filepath.Base(cfg.Archive))
	if _, err := os.Stat(local); os.IsNotExist(err) {
		fmt.Printf("Downloading %s (this may take a while on first run)...\n", cfg.Repo)
		if err := fetch(cfg.archiveURL(), local, cfg.Token); err != nil {
			return nil, fmt.Errorf("failed to download dataset %s: %v", cfg.Repo, err)
		}
	} else {
		fmt.Printf("Using cached dataset archive: %s\n", local)
	}

	return openArchive(local)
}

func openArchive(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset archive: %v", err)
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read dataset archive: %v", err)
	}

	return &Source{
		file: f,
		gz:   gz,
		tr:   tar.NewReader(gz),
	}, nil
}

// Next decodes the next track from the archive. Entries that are not WAV
// files are skipped. A WAV that fails to decode is reported as a
// *TrackError so the caller can count it and move on; any other error is
// an archive-stream failure, which is terminal: tar and gzip errors are
// sticky, so the stream can never reach its end once one occurs, and every
// later call returns the same error.
func (s *Source) Next() (*Track, error) {
	if s.err != nil {
		return nil, s.err
	}

	for {
		hdr, err := s.tr.Next()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			s.err = fmt.Errorf("failed to read archive entry: %v", err)
			return nil, s.err
		}

		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(hdr.Name, ".wav") {
			s.Skipped++
			continue
		}

		raw, err := io.ReadAll(s.tr)
		if err != nil {
			s.err = fmt.Errorf("failed to read archive entry %s: %v", hdr.Name, err)
			return nil, s.err
		}

		track, err := decodeTrack(hdr.Name, raw)
		if err != nil {
			return nil, &TrackError{Name: hdr.Name, Err: err}
		}
		return track, nil
	}
}

// Close releases the underlying archive handles.
func (s *Source) Close() error {
	s.gz.Close()
	return s.file.Close()
}

// decodeTrack turns one WAV entry into a Track. The genre label comes from
// the parent directory name ("genres/blues/blues.00000.wav" -> blues); an
// unknown directory yields label -1, which the assembler rejects downstream.
func decodeTrack(name string, raw []byte) (*Track, error) {
	dec := wav.NewDecoder(bytes.NewReader(raw))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav decode: %v", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("wav decode: missing format header")
	}

	samples := toMono(buf.Data, buf.Format.NumChannels)

	return &Track{
		Name:       path.Base(name),
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Genre:      genres.Index(path.Base(path.Dir(name))),
	}, nil
}

// toMono converts interleaved PCM to a single channel by averaging frames.
// GTZAN is mono already, so this normally just copies.
func toMono(data []int, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(data))
		for i, v := range data {
			out[i] = float32(v)
		}
		return out
	}

	frames := len(data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(data[i*channels+c])
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// fetch performs a single GET of url into dest. Transient failures are not
// retried; a partial download is removed so the next run starts clean.
func fetch(url, dest, token string) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return err
	}
	return f.Close()
}
