package batcher

import (
	"fmt"
	"math"

	"github.com/quantlab/seqbatch/datasets"
)

// numClasses is the number of target classes; labels are +1 or -1 and
// targets are one-hot over these two classes.
const numClasses = 2

// Generator produces fixed-shape batches from a datasets.View. It owns
// one cursor per batch slot; a cursor is an index into the view marking
// the next record to emit for that slot. Cursors always stay in
// [0, NumRows()) and advance modulo the dataset size, so traversal is
// cyclic and unbounded.
//
// Two cursor snapshots are kept: initCursor holds the entity-aligned
// starting positions fixed at construction, cursor is the live position
// mutated by NextBatch. Rewind restores cursor from initCursor exactly.
//
// A Generator is not safe for concurrent use; construct one per
// goroutine or serialize access externally. The underlying view is
// read-only and may be shared.
type Generator struct {
	view *datasets.View

	batchSize     int
	numUnrollings int
	numInputs     int

	initCursor []int
	cursor     []int

	numBatches int
}

// NewGeneratorFromFile loads the data file at path, binds the column
// contract, and builds a Generator over it. The file must have a header
// row; columns are whitespace- or comma-separated.
func NewGeneratorFromFile(path, entityCol, labelCol string, numInputs, batchSize, numUnrollings int) (*Generator, error) {
	table, err := datasets.LoadTable(path)
	if err != nil {
		return nil, err
	}
	view, err := datasets.NewView(table, entityCol, labelCol, numInputs)
	if err != nil {
		return nil, err
	}
	return NewGenerator(view, batchSize, numUnrollings)
}

// NewGenerator builds a Generator over an existing view.
//
// Initial cursors are spread evenly across the dataset (stride
// size/batchSize) and then each is advanced, wrapping modulo size, to
// the first record of the next entity so no slot starts mid-sequence.
// Slot 0 always starts at index 0, which is treated as aligned.
//
// Views with fewer than two entities are rejected: the alignment scan
// has no boundary to stop at and would never terminate.
func NewGenerator(view *datasets.View, batchSize, numUnrollings int) (*Generator, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d", batchSize)
	}
	if numUnrollings < 1 {
		return nil, fmt.Errorf("num unrollings must be >= 1, got %d", numUnrollings)
	}
	if view.NumEntities() < 2 {
		return nil, fmt.Errorf("dataset has %d entity, need at least 2 for cursor alignment",
			view.NumEntities())
	}

	g := &Generator{
		view:          view,
		batchSize:     batchSize,
		numUnrollings: numUnrollings,
		numInputs:     view.NumInputs(),
		initCursor:    make([]int, batchSize),
		cursor:        make([]int, batchSize),
	}

	size := view.NumRows()
	segment := size / batchSize
	for b := 0; b < batchSize; b++ {
		g.initCursor[b] = b * segment
	}

	// Walk each starting offset forward to the first record of the next
	// entity. Slot 0 keeps index 0: an entity always starts there.
	for b := 1; b < batchSize; b++ {
		idx := g.initCursor[b]
		key := view.EntityAt(idx)
		for view.EntityAt(idx) == key {
			idx = (idx + 1) % size
		}
		g.initCursor[b] = idx
	}
	copy(g.cursor, g.initCursor)

	g.numBatches = g.estimateNumBatches()
	return g, nil
}

// NextBatch generates the next batch of sequences. It runs in two
// phases: first the reset flags are read off the current cursor
// positions, then the cursors are advanced one unroll step at a time.
//
// When a slot runs past the end of its entity at step t, the remaining
// steps for that slot are zero-filled, its effective length is recorded
// as t, and its cursor stays frozen on the new entity's first record so
// the next call resumes there at step 0.
func (g *Generator) NextBatch() *Batch {
	seqLengths := make([]int, g.batchSize)
	for b := range seqLengths {
		seqLengths[b] = g.numUnrollings
	}
	resetFlags := g.resetFlags()

	inputs := make([][][]float32, g.numUnrollings)
	targets := make([][][]float32, g.numUnrollings)
	attribs := make([][]string, g.numUnrollings)
	for t := 0; t < g.numUnrollings; t++ {
		inputs[t], targets[t], attribs[t] = g.nextStep(t, seqLengths)
	}

	return &Batch{
		inputs:     inputs,
		targets:    targets,
		seqLengths: seqLengths,
		resetFlags: resetFlags,
		attribs:    attribs,
	}
}

// resetFlags observes the current cursor positions without moving them.
// A slot gets 0 when its cursor sits on the first record of an entity
// (index 0, or a row whose entity differs from the previous row's) and
// 1 otherwise.
func (g *Generator) resetFlags() []float32 {
	flags := make([]float32, g.batchSize)
	for b := 0; b < g.batchSize; b++ {
		idx := g.cursor[b]
		if idx == 0 || g.view.EntityAt(idx-1) != g.view.EntityAt(idx) {
			flags[b] = 0
		} else {
			flags[b] = 1
		}
	}
	return flags
}

// nextStep emits one unroll step for every slot and advances the live
// cursors of the slots that emitted a record.
func (g *Generator) nextStep(step int, seqLengths []int) (x, y [][]float32, attr []string) {
	size := g.view.NumRows()
	x = make([][]float32, g.batchSize)
	y = make([][]float32, g.batchSize)
	attr = make([]string, g.batchSize)

	for b := 0; b < g.batchSize; b++ {
		x[b] = make([]float32, g.numInputs)
		y[b] = make([]float32, numClasses)

		idx := g.cursor[b]
		prevIdx := idx - 1
		if idx == 0 {
			prevIdx = size - 1
		}

		if step > 0 && g.view.EntityAt(prevIdx) != g.view.EntityAt(idx) {
			// The slot ran past its entity mid-sequence: leave this cell
			// zeroed, record the shortened length once, and keep the
			// cursor on the new entity's first record.
			if seqLengths[b] == g.numUnrollings {
				seqLengths[b] = step
			}
			continue
		}

		rec := g.view.Record(idx)
		copy(x[b], rec.Inputs)
		y[b][0] = float32(math.Abs(float64(rec.Label)-1) / 2) // +1 -> 0, -1 -> 1
		y[b][1] = float32(math.Abs(float64(rec.Label)+1) / 2) // +1 -> 1, -1 -> 0
		attr[b] = rec.Attrib
		g.cursor[b] = (idx + 1) % size
	}
	return x, y, attr
}

// estimateNumBatches counts how many NextBatch calls it takes for slot
// 0's cursor, starting from its initial position, to catch up to where
// slot 1 started (or to the end of the data when batchSize is 1), less
// one unroll window of safety margin. The live cursors are saved and
// restored around the probe, so construction-time state is undisturbed.
//
// This is an approximation of the number of batches per epoch, not an
// exact accounting.
func (g *Generator) estimateNumBatches() int {
	saved := make([]int, len(g.cursor))
	copy(saved, g.cursor)
	g.Rewind()

	endIdx := g.view.NumRows() - 1
	if g.batchSize > 1 {
		endIdx = g.initCursor[1]
	}

	numBatches := 0
	for g.cursor[0] < endIdx-g.numUnrollings {
		g.NextBatch()
		numBatches++
	}
	if numBatches == 0 {
		// An unroll window wider than the data still needs one call to
		// touch every record at least once.
		numBatches = 1
	}

	copy(g.cursor, saved)
	return numBatches
}

// Rewind resets every live cursor to its entity-aligned starting
// position. It is idempotent and has no other side effects.
func (g *Generator) Rewind() {
	copy(g.cursor, g.initCursor)
}

// NumDataPoints returns the number of records in the underlying view.
func (g *Generator) NumDataPoints() int {
	return g.view.NumRows()
}

// NumBatches returns the cached estimate of NextBatch calls per epoch.
func (g *Generator) NumBatches() int {
	return g.numBatches
}

// BatchSize returns the number of batch slots.
func (g *Generator) BatchSize() int {
	return g.batchSize
}

// NumUnrollings returns the sequence window length.
func (g *Generator) NumUnrollings() int {
	return g.numUnrollings
}

// NumInputs returns the feature vector width.
func (g *Generator) NumInputs() int {
	return g.numInputs
}
