// Command genre-trainer trains a music genre classifier on YAMNet
// embeddings of the GTZAN dataset and exports it for on-device inference.
//
// The run is a single linear pipeline: environment check, dataset download,
// embedding extraction, train/test split, training with early stopping,
// TFLite + checkpoint export, and a smoke test of the exported artifact.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	rt "github.com/mattn/go-tflite"

	"github.com/soundml/genre-trainer/audio"
	"github.com/soundml/genre-trainer/checkpoints"
	"github.com/soundml/genre-trainer/classifier"
	"github.com/soundml/genre-trainer/dataset"
	"github.com/soundml/genre-trainer/embedding"
	"github.com/soundml/genre-trainer/genres"
	"github.com/soundml/genre-trainer/tflite"
)

const (
	tflitePath     = "genre_classifier.tflite"
	checkpointPath = "genre_classifier.json"

	// Per-track failures are tolerated, but only this many are printed;
	// the rest are counted silently.
	maxLoggedErrors = 5
)

func main() {
	simple := flag.Bool("simple", false, "reserved: simpler single-hidden-layer architecture (not yet wired)")
	flag.Parse()

	banner("Music Genre Classifier Training")
	fmt.Println("Using YAMNet embeddings + Dense classifier")

	if *simple {
		// Parsed for forward compatibility; the full pipeline runs
		// regardless until the alternate architecture is defined.
		fmt.Println("Note: --simple is not wired to an alternate architecture yet")
	}

	checkEnvironment()

	// .env is optional; it can carry HF_TOKEN for gated hub access and
	// GENRE_TRAINER_CACHE to relocate the download cache.
	godotenv.Load()

	cacheDir := os.Getenv("GENRE_TRAINER_CACHE")

	cfg := dataset.DefaultConfig()
	cfg.CacheDir = cacheDir
	cfg.Token = os.Getenv("HF_TOKEN")

	src, err := dataset.Open(cfg)
	if err != nil {
		log.Fatalf("dataset load failed: %v", err)
	}
	defer src.Close()

	fmt.Println("\nLoading YAMNet model...")
	extractor, err := loadYAMNet(cacheDir)
	if err != nil {
		log.Fatalf("YAMNet load failed: %v", err)
	}
	defer extractor.Close()
	fmt.Println("YAMNet loaded!")

	fmt.Println("\nExtracting embeddings from GTZAN dataset...")
	fmt.Printf("Expected genres (0-%d): %s\n", genres.Count-1, strings.Join(genres.Names(), ", "))

	assembler, err := classifier.NewAssembler(embedding.Dim, genres.Count)
	if err != nil {
		log.Fatalf("assembler setup failed: %v", err)
	}

	count, failures := 0, 0
	for {
		track, err := src.Next()
		if err != nil {
			// Only single-track decode failures are tolerable; an
			// archive-stream error means no further tracks can ever
			// be read.
			var trackErr *dataset.TrackError
			if !errors.As(err, &trackErr) {
				log.Fatalf("dataset read failed: %v", err)
			}
			failures++
			if failures <= maxLoggedErrors {
				fmt.Printf("  Error processing track: %v\n", err)
			}
			continue
		}
		if track == nil {
			break
		}

		if !genres.Valid(track.Genre) {
			fmt.Printf("  Invalid genre index: %d (%s)\n", track.Genre, track.Name)
			continue
		}

		samples := audio.Resample(track.Samples, track.SampleRate, audio.TargetSampleRate)
		emb, err := extractor.Extract(samples)
		if err != nil {
			failures++
			if failures <= maxLoggedErrors {
				fmt.Printf("  Error processing track %s: %v\n", track.Name, err)
			}
			continue
		}

		if err := assembler.Add(emb, track.Genre); err != nil {
			fmt.Printf("  Skipping %s: %v\n", track.Name, err)
			continue
		}

		count++
		if count%100 == 0 {
			fmt.Printf("  Processed %d tracks...\n", count)
		}
	}
	fmt.Printf("  Total processed: %d, Errors: %d\n", count, failures)

	if assembler.Len() == 0 {
		log.Fatalf("no usable tracks in dataset")
	}
	fmt.Printf("\nDataset: %d samples, %d features\n", assembler.Len(), embedding.Dim)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	train, test := assembler.Split(rng)
	fmt.Printf("Train: %d, Test: %d\n", train.Len(), test.Len())

	fmt.Println("\nBuilding classifier model...")
	spec, err := classifier.NewGenreSpec(embedding.Dim, genres.Count)
	if err != nil {
		log.Fatalf("model build failed: %v", err)
	}
	net, err := classifier.NewNetwork(spec, rng.Int63())
	if err != nil {
		log.Fatalf("model init failed: %v", err)
	}
	fmt.Printf("Model: %d layers, %d parameters\n", len(spec.Layers), spec.TotalParameters)

	trainerCfg := classifier.DefaultTrainerConfig()
	trainerCfg.Seed = rng.Int63()
	trainer, err := classifier.NewTrainer(net, trainerCfg)
	if err != nil {
		log.Fatalf("trainer setup failed: %v", err)
	}

	fmt.Println("\nTraining...")
	history, err := trainer.Fit(train, test)
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}

	testLoss, testAcc, err := trainer.Evaluate(test)
	if err != nil {
		log.Fatalf("evaluation failed: %v", err)
	}
	fmt.Printf("\nTest accuracy: %.1f%%\n", testAcc*100)

	fmt.Println("\nConverting to TFLite...")
	if err := tflite.Export(net, tflitePath); err != nil {
		log.Fatalf("TFLite export failed: %v", err)
	}
	if info, err := os.Stat(tflitePath); err == nil {
		fmt.Printf("Model saved to: %s (%.1f KB)\n", tflitePath, float64(info.Size())/1024)
	}

	checkpoint, err := checkpoints.FromNetwork(net, checkpoints.TrainingState{
		Epochs:       len(history.Epochs),
		BestEpoch:    history.BestEpoch,
		LearningRate: trainerCfg.Adam.LearningRate,
		BestLoss:     testLoss,
		TestAccuracy: testAcc,
	})
	if err != nil {
		log.Fatalf("checkpoint build failed: %v", err)
	}
	if err := checkpoint.Save(checkpointPath); err != nil {
		log.Fatalf("checkpoint save failed: %v", err)
	}
	fmt.Printf("Checkpoint saved to: %s\n", checkpointPath)

	fmt.Println("\nVerifying TFLite model...")
	if err := verifyExport(tflitePath, test); err != nil {
		// Diagnostic only: a failed smoke test does not unexport the model.
		fmt.Printf("Verification failed: %v\n", err)
	}

	banner("Done! Copy " + tflitePath + " to the mobile app assets.")
}

// checkEnvironment reports the TFLite runtime version and the exported
// model's compatibility constraints. Warnings never block the run.
func checkEnvironment() {
	fmt.Printf("TFLite runtime version: %s\n", embedding.RuntimeVersion())
	for _, note := range tflite.CompatibilityNotes() {
		fmt.Printf("  %s\n", note)
	}
}

// loadYAMNet fetches the pretrained model into the cache dir and opens it.
func loadYAMNet(cacheDir string) (*embedding.YAMNet, error) {
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user cache dir: %v", err)
		}
		cacheDir = filepath.Join(base, "genre-trainer")
	}
	path, err := embedding.Download(cacheDir)
	if err != nil {
		return nil, err
	}
	return embedding.Load(path)
}

// verifyExport reloads the exported artifact into the TFLite runtime,
// prints its tensor shapes and runs one prediction on a held-out example.
func verifyExport(path string, test classifier.Dataset) error {
	if test.Len() == 0 {
		return fmt.Errorf("no held-out examples to verify with")
	}

	model := rt.NewModelFromFile(path)
	if model == nil {
		return fmt.Errorf("failed to load exported model")
	}
	defer model.Delete()

	options := rt.NewInterpreterOptions()
	defer options.Delete()

	interp := rt.NewInterpreter(model, options)
	if interp == nil {
		return fmt.Errorf("failed to create interpreter")
	}
	defer interp.Delete()

	if status := interp.AllocateTensors(); status != rt.OK {
		return fmt.Errorf("failed to allocate tensors")
	}

	input := interp.GetInputTensor(0)
	output := interp.GetOutputTensor(0)
	fmt.Printf("Input shape: %v\n", input.Shape())
	fmt.Printf("Output shape: %v\n", output.Shape())

	if status := input.SetFloat32s(test.Embeddings[0]); status != rt.OK {
		return fmt.Errorf("failed to write test embedding")
	}
	if status := interp.Invoke(); status != rt.OK {
		return fmt.Errorf("inference failed")
	}

	probs := make([]float32, genres.Count)
	copy(probs, output.Float32s())

	predicted, _ := genres.DisplayName(classifier.Argmax(probs))
	actual, _ := genres.DisplayName(test.Labels[0])
	fmt.Printf("Test prediction: %s (actual: %s)\n", predicted, actual)
	return nil
}

func banner(msg string) {
	line := strings.Repeat("=", 60)
	fmt.Printf("\n%s\n%s\n%s\n", line, msg, line)
}
