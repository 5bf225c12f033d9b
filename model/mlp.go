// Package model provides a small pure-Go MLP classifier that trains on
// the batch stream produced by the batcher package. It predicts the
// two-class one-hot target from a record's feature vector and is mainly
// a reference consumer for the batch engine; swap in a real sequence
// model for serious work.
package model

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/quantlab/seqbatch/batcher"
)

// Config holds configurable hyperparameters for the MLP and training.
type Config struct {
	// HiddenSizes is the list of hidden layer sizes. If empty, a single
	// hidden layer of size 32 is used.
	HiddenSizes []int

	// NumInputs is the dimensionality of the input feature vector.
	// Required; NewModel fails when it is zero.
	NumInputs int

	// LearningRate used by SGD (default 0.01 if zero).
	LearningRate float64

	// Epochs to train for (default 5 if zero).
	Epochs int

	// Seed controls RNG for weight init. If zero, a time-based seed is used.
	Seed int64
}

// BatchSource is the minimal interface this package requires from a
// batch producer. batcher.Generator satisfies it; tests can supply a
// canned implementation.
type BatchSource interface {
	// NextBatch returns the next fixed-shape batch.
	NextBatch() *batcher.Batch
	// NumBatches is the number of NextBatch calls per epoch.
	NumBatches() int
	// Rewind restarts traversal at the slots' initial positions.
	Rewind()
}

// Model is a configurable MLP with ReLU hidden layers and a linear
// two-way output trained against the one-hot targets with MSE loss.
type Model struct {
	Config Config

	// layerSizes includes input size, hidden sizes, then output size (2).
	layerSizes []int

	// weights[l] is a matrix of shape [out][in] for layer l -> l+1.
	weights [][][]float32

	// biases[l] is a vector of length out for layer l -> l+1.
	biases [][]float32

	rng *rand.Rand
}

const outputDim = 2

// NewModel creates a Model with the provided configuration, initializing
// weights with a Xavier-style heuristic.
func NewModel(cfg Config) (*Model, error) {
	if cfg.NumInputs <= 0 {
		return nil, errors.New("model: NumInputs must be set")
	}
	if len(cfg.HiddenSizes) == 0 {
		cfg.HiddenSizes = []int{32}
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.01
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 5
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	m := &Model{
		Config: cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}

	sizes := make([]int, 0, 2+len(cfg.HiddenSizes))
	sizes = append(sizes, cfg.NumInputs)
	sizes = append(sizes, cfg.HiddenSizes...)
	sizes = append(sizes, outputDim)
	m.layerSizes = sizes

	L := len(sizes) - 1
	m.weights = make([][][]float32, L)
	m.biases = make([][]float32, L)
	for l := 0; l < L; l++ {
		in := sizes[l]
		out := sizes[l+1]
		mat := make([][]float32, out)
		limit := float32(math.Sqrt(6.0 / float64(in+out)))
		for j := 0; j < out; j++ {
			row := make([]float32, in)
			for i := 0; i < in; i++ {
				row[i] = (m.rng.Float32()*2.0 - 1.0) * limit * 0.5
			}
			mat[j] = row
		}
		m.weights[l] = mat
		m.biases[l] = make([]float32, out)
	}

	return m, nil
}

func activationReLU(x []float32) {
	for i := range x {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

func activationReLUDeriv(preact []float32) []float32 {
	d := make([]float32, len(preact))
	for i := range preact {
		if preact[i] > 0 {
			d[i] = 1.0
		}
	}
	return d
}

// forwardSingle performs a forward pass for one input vector, returning
// pre-activations per layer and activations per layer (activations[0]
// is the input itself).
func (m *Model) forwardSingle(input []float32) (preActs [][]float32, acts [][]float32, err error) {
	if len(input) != m.layerSizes[0] {
		return nil, nil, errors.New("model: input has incorrect dimension")
	}
	L := len(m.weights)
	acts = make([][]float32, L+1)
	acts[0] = make([]float32, len(input))
	copy(acts[0], input)

	preActs = make([][]float32, L)
	for l := 0; l < L; l++ {
		inVec := acts[l]
		outDim := len(m.biases[l])
		pre := make([]float32, outDim)
		W := m.weights[l]
		b := m.biases[l]
		for j := 0; j < outDim; j++ {
			sum := b[j]
			row := W[j]
			for i := range inVec {
				sum += row[i] * inVec[i]
			}
			pre[j] = sum
		}
		preActs[l] = pre

		act := make([]float32, outDim)
		copy(act, pre)
		if l < L-1 {
			activationReLU(act)
		}
		acts[l+1] = act
	}
	return preActs, acts, nil
}

// PredictBatch returns class scores for a batch of feature vectors,
// shape [batch][2]. Forward pass only, no training.
func (m *Model) PredictBatch(inputs [][]float32) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		_, acts, err := m.forwardSingle(in)
		if err != nil {
			return nil, err
		}
		last := acts[len(acts)-1]
		pred := make([]float32, len(last))
		copy(pred, last)
		out[i] = pred
	}
	return out, nil
}

// Train fits the model against the batch stream. Each epoch rewinds the
// source and pulls NumBatches batches; within a batch, only rows at
// steps below the slot's effective sequence length contribute (padded
// rows carry no data). Gradients are averaged over the batch's live
// rows and applied once per batch.
func (m *Model) Train(src BatchSource) error {
	if src == nil {
		return errors.New("model: batch source is nil")
	}
	if src.NumBatches() <= 0 {
		return errors.New("model: batch source reports no batches")
	}

	lr := float32(m.Config.LearningRate)

	for ep := 0; ep < m.Config.Epochs; ep++ {
		src.Rewind()
		for i := 0; i < src.NumBatches(); i++ {
			if err := m.trainOnBatch(src.NextBatch(), lr); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Model) trainOnBatch(batch *batcher.Batch, lr float32) error {
	inputs := batch.Inputs()
	targets := batch.Targets()
	seqLengths := batch.SeqLengths()

	L := len(m.weights)
	gradW := make([][][]float32, L)
	gradB := make([][]float32, L)
	for l := 0; l < L; l++ {
		outDim := len(m.biases[l])
		inDim := len(m.weights[l][0])
		gradW[l] = make([][]float32, outDim)
		for j := 0; j < outDim; j++ {
			gradW[l][j] = make([]float32, inDim)
		}
		gradB[l] = make([]float32, outDim)
	}

	liveRows := 0
	for t := range inputs {
		for b := range inputs[t] {
			if t >= seqLengths[b] {
				continue
			}
			liveRows++

			preacts, acts, err := m.forwardSingle(inputs[t][b])
			if err != nil {
				return err
			}

			outAct := acts[len(acts)-1]
			delta := make([]float32, len(outAct))
			for j := range outAct {
				delta[j] = 2.0 * (outAct[j] - targets[t][b][j])
			}

			for l := L - 1; l >= 0; l-- {
				inAct := acts[l]
				for j := range delta {
					gradB[l][j] += delta[j]
					for i := range inAct {
						gradW[l][j][i] += delta[j] * inAct[i]
					}
				}

				if l > 0 {
					prevLen := len(m.weights[l][0])
					newDelta := make([]float32, prevLen)
					for i := 0; i < prevLen; i++ {
						sum := float32(0.0)
						for j := range delta {
							sum += m.weights[l][j][i] * delta[j]
						}
						newDelta[i] = sum
					}
					deriv := activationReLUDeriv(preacts[l-1])
					for i := 0; i < prevLen; i++ {
						newDelta[i] *= deriv[i]
					}
					delta = newDelta
				}
			}
		}
	}

	if liveRows == 0 {
		return nil
	}

	inv := float32(1.0 / float64(liveRows))
	for l := 0; l < L; l++ {
		for j := range m.biases[l] {
			m.biases[l][j] -= lr * gradB[l][j] * inv
			for i := range m.weights[l][j] {
				m.weights[l][j][i] -= lr * gradW[l][j][i] * inv
			}
		}
	}
	return nil
}

// Accuracy walks one epoch of the source and returns the fraction of
// live rows whose argmax prediction matches the one-hot target.
func (m *Model) Accuracy(src BatchSource) (float64, error) {
	if src == nil {
		return 0, errors.New("model: batch source is nil")
	}
	src.Rewind()

	correct, total := 0, 0
	for i := 0; i < src.NumBatches(); i++ {
		batch := src.NextBatch()
		inputs := batch.Inputs()
		targets := batch.Targets()
		seqLengths := batch.SeqLengths()
		for t := range inputs {
			for b := range inputs[t] {
				if t >= seqLengths[b] {
					continue
				}
				preds, err := m.PredictBatch(inputs[t][b : b+1])
				if err != nil {
					return 0, err
				}
				total++
				if argmax(preds[0]) == argmax(targets[t][b]) {
					correct++
				}
			}
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(correct) / float64(total), nil
}

func argmax(v []float32) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
