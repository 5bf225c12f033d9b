package batcher

import "github.com/gomlx/gomlx/pkg/core/tensors"

// Conversions from batches into gomlx tensors, plus the methods that let
// a Generator be driven directly by a gomlx training loop (the
// train.Dataset contract: Name / Yield / Reset-style restart).

// InputTensors converts the batch's input frames into gomlx tensors, one
// per unroll step, each of shape [batchSize, numInputs].
func (b *Batch) InputTensors() []*tensors.Tensor {
	out := make([]*tensors.Tensor, len(b.inputs))
	for t, frame := range b.inputs {
		out[t] = tensors.FromAnyValue(frame)
	}
	return out
}

// TargetTensors converts the batch's one-hot target frames into gomlx
// tensors, one per unroll step, each of shape [batchSize, 2].
func (b *Batch) TargetTensors() []*tensors.Tensor {
	out := make([]*tensors.Tensor, len(b.targets))
	for t, frame := range b.targets {
		out[t] = tensors.FromAnyValue(frame)
	}
	return out
}

// Name returns the dataset name for gomlx training loops.
func (g *Generator) Name() string {
	return "seqbatch.Generator"
}

// Yield returns the next batch as per-step input and target tensors for
// the gomlx Dataset interface. The spec return carries the batch itself
// so callers can reach SeqLengths and ResetFlags.
func (g *Generator) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	batch := g.NextBatch()
	return batch, batch.InputTensors(), batch.TargetTensors(), nil
}

// Restart rewinds the generator for a new epoch.
func (g *Generator) Restart() error {
	g.Rewind()
	return nil
}
