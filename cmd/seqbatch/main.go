// Command seqbatch loads a delimited data file, walks one epoch of
// fixed-shape sequence batches over it, and reports batching statistics.
// Optionally it plots the effective-sequence-length distribution and
// trains the reference MLP classifier on the batch stream.
//
// Configuration comes from CLI flags, optionally seeded from a JSON file
// via -config; explicitly set flags win over the file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/quantlab/seqbatch/batcher"
	"github.com/quantlab/seqbatch/datasets"
	"github.com/quantlab/seqbatch/model"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// fileConfig mirrors the CLI options that make sense to keep in a
// checked-in JSON file.
type fileConfig struct {
	Data struct {
		Datafile    string `json:"datafile"`
		KeyField    string `json:"key_field"`
		TargetField string `json:"target_field"`
		NumInputs   int    `json:"num_inputs"`
	} `json:"data"`
	Batching struct {
		BatchSize     int `json:"batch_size"`
		NumUnrollings int `json:"num_unrollings"`
	} `json:"batching"`
	Training struct {
		LearningRate float64 `json:"learning_rate"`
		Epochs       int     `json:"epochs"`
		HiddenSize   int     `json:"hidden_size"`
	} `json:"training"`
}

func main() {
	datafile := flag.String("datafile", "", "path to the data file (header row; whitespace- or comma-separated)")
	keyField := flag.String("key-field", "ID", "entity-id column name")
	targetField := flag.String("target-field", "YY", "label column name (+1/-1 values)")
	numInputs := flag.Int("num-inputs", 10, "number of feature columns following the label column")
	batchSize := flag.Int("batch-size", 10, "number of simultaneous sequences per batch")
	numUnrollings := flag.Int("num-unrollings", 1, "sequence window length per batch")
	configPath := flag.String("config", "", "path to JSON configuration file (flags set on the command line override it)")
	outDir := flag.String("out", "plots", "output directory for generated plots")
	doPlot := flag.Bool("plot", false, "write a PNG with sequence-length statistics for one epoch")
	doTrain := flag.Bool("train", false, "train the reference MLP on the batch stream and report accuracy")
	epochs := flag.Int("epochs", 5, "training epochs (with -train)")
	learningRate := flag.Float64("learning-rate", 0.01, "training learning rate (with -train)")
	hiddenSize := flag.Int("hidden-size", 32, "hidden layer size for the reference MLP (with -train)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed for weight initialization")
	printConfig := flag.Bool("print-effective-config", false, "print the effective (JSON+CLI merged) configuration and exit")
	flag.Parse()

	if *configPath != "" {
		if err := applyFileConfig(*configPath, datafile, keyField, targetField,
			numInputs, batchSize, numUnrollings, learningRate, epochs, hiddenSize); err != nil {
			log.Fatalf("failed to load config %s: %v", *configPath, err)
		}
	}

	if *printConfig {
		fmt.Printf("datafile=%s key-field=%s target-field=%s num-inputs=%d batch-size=%d num-unrollings=%d\n",
			*datafile, *keyField, *targetField, *numInputs, *batchSize, *numUnrollings)
		fmt.Printf("train: epochs=%d learning-rate=%g hidden-size=%d seed=%d\n",
			*epochs, *learningRate, *hiddenSize, *seed)
		return
	}

	if *datafile == "" {
		log.Fatal("no -datafile provided")
	}

	table, err := datasets.LoadTable(*datafile)
	if err != nil {
		log.Fatalf("failed to load %s: %v", *datafile, err)
	}
	view, err := datasets.NewView(table, *keyField, *targetField, *numInputs)
	if err != nil {
		log.Fatalf("column contract failed for %s: %v", *datafile, err)
	}
	gen, err := batcher.NewGenerator(view, *batchSize, *numUnrollings)
	if err != nil {
		log.Fatalf("failed to build generator: %v", err)
	}

	log.Printf("loaded %d records, %d entities, ~%d batches per epoch",
		gen.NumDataPoints(), view.NumEntities(), gen.NumBatches())

	perBatch, resets := walkEpoch(gen)
	logEpochStats(perBatch, resets, *numUnrollings)

	if *doPlot {
		path := filepath.Join(*outDir, "seq_lengths.png")
		if err := plotSeqLengths(path, perBatch); err != nil {
			log.Fatalf("failed to write plot: %v", err)
		}
		log.Printf("wrote %s", path)
	}

	if *doTrain {
		m, err := model.NewModel(model.Config{
			NumInputs:    *numInputs,
			HiddenSizes:  []int{*hiddenSize},
			LearningRate: *learningRate,
			Epochs:       *epochs,
			Seed:         *seed,
		})
		if err != nil {
			log.Fatalf("failed to build model: %v", err)
		}
		start := time.Now()
		if err := m.Train(gen); err != nil {
			log.Fatalf("training failed: %v", err)
		}
		acc, err := m.Accuracy(gen)
		if err != nil {
			log.Fatalf("evaluation failed: %v", err)
		}
		log.Printf("trained %d epochs in %v, training accuracy %.3f", *epochs, time.Since(start), acc)
	}
}

// applyFileConfig reads the JSON file and copies its values into the
// flag targets, except for flags the user set explicitly.
func applyFileConfig(path string, datafile, keyField, targetField *string,
	numInputs, batchSize, numUnrollings *int, learningRate *float64, epochs, hiddenSize *int) error {

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var cfg fileConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	setString := func(name string, dst *string, val string) {
		if !explicit[name] && val != "" {
			*dst = val
		}
	}
	setInt := func(name string, dst *int, val int) {
		if !explicit[name] && val != 0 {
			*dst = val
		}
	}

	setString("datafile", datafile, cfg.Data.Datafile)
	setString("key-field", keyField, cfg.Data.KeyField)
	setString("target-field", targetField, cfg.Data.TargetField)
	setInt("num-inputs", numInputs, cfg.Data.NumInputs)
	setInt("batch-size", batchSize, cfg.Batching.BatchSize)
	setInt("num-unrollings", numUnrollings, cfg.Batching.NumUnrollings)
	setInt("epochs", epochs, cfg.Training.Epochs)
	setInt("hidden-size", hiddenSize, cfg.Training.HiddenSize)
	if !explicit["learning-rate"] && cfg.Training.LearningRate != 0 {
		*learningRate = cfg.Training.LearningRate
	}
	return nil
}

// walkEpoch pulls one epoch of batches and collects each batch's
// effective sequence lengths and the number of reset slots.
func walkEpoch(gen *batcher.Generator) (perBatch [][]int, resets int) {
	gen.Rewind()
	for i := 0; i < gen.NumBatches(); i++ {
		batch := gen.NextBatch()
		lengths := make([]int, len(batch.SeqLengths()))
		copy(lengths, batch.SeqLengths())
		perBatch = append(perBatch, lengths)
		for _, f := range batch.ResetFlags() {
			if f == 0 {
				resets++
			}
		}
	}
	gen.Rewind()
	return perBatch, resets
}

func logEpochStats(perBatch [][]int, resets, numUnrollings int) {
	if len(perBatch) == 0 {
		log.Printf("epoch produced no batches")
		return
	}
	full, total, sum := 0, 0, 0
	for _, lengths := range perBatch {
		for _, l := range lengths {
			total++
			sum += l
			if l == numUnrollings {
				full++
			}
		}
	}
	log.Printf("epoch: %d batches, %d sequences, mean length %.2f/%d, %d full windows, %d resets",
		len(perBatch), total, float64(sum)/float64(total), numUnrollings, full, resets)
}

// plotSeqLengths writes a PNG scattering every slot's effective length
// against its batch index, with a line tracking the per-batch mean.
func plotSeqLengths(path string, perBatch [][]int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "Effective sequence lengths over one epoch"
	p.X.Label.Text = "batch"
	p.Y.Label.Text = "length"

	points := make(plotter.XYs, 0, len(perBatch))
	means := make(plotter.XYs, len(perBatch))
	for i, lengths := range perBatch {
		sum := 0
		for _, l := range lengths {
			points = append(points, plotter.XY{X: float64(i), Y: float64(l)})
			sum += l
		}
		means[i] = plotter.XY{X: float64(i), Y: float64(sum) / float64(len(lengths))}
	}

	sc, err := plotter.NewScatter(points)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = color.RGBA{R: 120, G: 120, B: 120, A: 180}
	sc.GlyphStyle.Radius = vg.Points(1.8)
	p.Add(sc)
	p.Legend.Add("slot length", sc)

	line, err := plotter.NewLine(means)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("per-batch mean", line)

	p.Add(plotter.NewGrid())

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}
