// Package batcher turns an ordered, entity-grouped dataset view into
// fixed-shape mini-batches for sequence-model training.
//
// A Generator keeps one cursor per batch slot and walks each cursor
// through the dataset one timestep at a time, wrapping cyclically so the
// data can be re-traversed indefinitely. Entity boundaries are never
// spliced: a sequence that runs out of its entity mid-batch is zero-padded
// and its cursor frozen at the next entity's first record until the
// following batch.
package batcher

// Batch is the immutable bundle produced by one Generator.NextBatch call.
// It has two dimensions: the batch size (number of simultaneous time
// sequences) and the number of unrollings (the sequence window length).
// The slices returned by its accessors alias internal storage and must
// not be modified.
type Batch struct {
	inputs     [][][]float32
	targets    [][][]float32
	seqLengths []int
	resetFlags []float32
	attribs    [][]string
}

// Inputs returns the input frames, one per unroll step; each frame is
// [batchSize][numInputs]. Steps past a slot's effective sequence length
// are all zero.
func (b *Batch) Inputs() [][][]float32 {
	return b.inputs
}

// Targets returns the one-hot target frames, one per unroll step; each
// frame is [batchSize][2]. Label +1 maps to [0,1] and -1 to [1,0];
// padded steps are all zero.
func (b *Batch) Targets() [][][]float32 {
	return b.targets
}

// SeqLengths returns the effective length of each slot's sequence. A
// slot that crossed an entity boundary at local step t has length t;
// all other slots have the full unroll length.
func (b *Batch) SeqLengths() []int {
	return b.seqLengths
}

// ResetFlags returns one flag per slot, evaluated before any stepping: 0
// when the slot's cursor sat at the first record of an entity (model
// state must be reset), 1 when it continues an ongoing sequence.
func (b *Batch) ResetFlags() []float32 {
	return b.resetFlags
}

// Attribs returns the per-step, per-slot auxiliary attributes (the
// dataset's date column when present). Padded steps and attribute-less
// datasets yield empty strings.
func (b *Batch) Attribs() [][]string {
	return b.attribs
}
