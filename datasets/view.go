package datasets

import "fmt"

// attribColumn is the optional per-record attribute carried for
// diagnostics. It matches the source data convention of a `date` column.
const attribColumn = "date"

// Record is one row of the dataset: an entity id, a two-class label
// (+1 or -1), the feature vector, and an optional attribute (empty when
// the table carries none).
type Record struct {
	EntityID string
	Label    float32
	Inputs   []float32
	Attrib   string
}

// View binds a Table to the column contract the batch engine needs: a
// designated entity-id column, a label column, and a block of numInputs
// feature columns starting immediately after the label column.
//
// Records for one entity are expected to be contiguous in table order.
// That is an input precondition; the view does not reorder rows.
//
// All numeric cells are parsed at construction so that malformed data
// surfaces as a configuration error rather than mid-iteration. The view
// is immutable once built and safe to share across engines.
type View struct {
	numInputs int

	entities []string
	labels   []float32
	features [][]float32
	attribs  []string // nil when the table has no attribute column

	numEntities int
}

// NewView validates the column contract against the table and parses the
// label and feature columns. It fails if any named column is missing, if
// the feature block of numInputs columns following the label column does
// not fit in the table, or if the entity-id column does not precede the
// feature block.
func NewView(t *Table, entityCol, labelCol string, numInputs int) (*View, error) {
	if numInputs < 1 {
		return nil, fmt.Errorf("numInputs must be >= 1, got %d", numInputs)
	}

	entityIdx, ok := t.ColumnIndex(entityCol)
	if !ok {
		return nil, fmt.Errorf("entity-id column %q not found", entityCol)
	}
	labelIdx, ok := t.ColumnIndex(labelCol)
	if !ok {
		return nil, fmt.Errorf("label column %q not found", labelCol)
	}

	// The feature block is the numInputs columns right after the label.
	featureStart := labelIdx + 1
	if featureStart+numInputs > len(t.Columns()) {
		return nil, fmt.Errorf("feature block of %d columns after %q exceeds table width %d",
			numInputs, labelCol, len(t.Columns()))
	}
	if entityIdx >= featureStart {
		return nil, fmt.Errorf("entity-id column %q must precede the feature block", entityCol)
	}

	attribIdx := -1
	if idx, ok := t.ColumnIndex(attribColumn); ok {
		attribIdx = idx
	}

	size := t.NumRows()
	v := &View{
		numInputs: numInputs,
		entities:  make([]string, size),
		labels:    make([]float32, size),
		features:  make([][]float32, size),
	}
	if attribIdx >= 0 {
		v.attribs = make([]string, size)
	}

	for i := 0; i < size; i++ {
		v.entities[i] = t.Cell(i, entityIdx)

		label, err := parseFloat32(t.Cell(i, labelIdx))
		if err != nil {
			return nil, fmt.Errorf("failed to parse label at row %d: %w", i, err)
		}
		if label != 1 && label != -1 {
			return nil, fmt.Errorf("label at row %d is %v, expected +1 or -1", i, label)
		}
		v.labels[i] = label

		feats := make([]float32, numInputs)
		for j := 0; j < numInputs; j++ {
			val, err := parseFloat32(t.Cell(i, featureStart+j))
			if err != nil {
				return nil, fmt.Errorf("failed to parse feature %q at row %d: %w",
					t.Columns()[featureStart+j], i, err)
			}
			feats[j] = val
		}
		v.features[i] = feats

		if attribIdx >= 0 {
			v.attribs[i] = t.Cell(i, attribIdx)
		}
	}

	v.numEntities = countEntityRuns(v.entities)
	return v, nil
}

// countEntityRuns counts contiguous runs of equal entity ids.
func countEntityRuns(entities []string) int {
	runs := 0
	for i, e := range entities {
		if i == 0 || entities[i-1] != e {
			runs++
		}
	}
	return runs
}

// NumRows returns the number of records in the view.
func (v *View) NumRows() int {
	return len(v.entities)
}

// NumInputs returns the width of the feature block.
func (v *View) NumInputs() int {
	return v.numInputs
}

// NumEntities returns the number of contiguous entity runs. Callers that
// require boundary alignment (the batch engine does) must check this is
// at least 2 before iterating.
func (v *View) NumEntities() int {
	return v.numEntities
}

// EntityAt returns the entity id of row i.
func (v *View) EntityAt(i int) string {
	return v.entities[i]
}

// Record returns row i. The returned feature slice aliases the view's
// storage and must not be modified.
func (v *View) Record(i int) Record {
	r := Record{
		EntityID: v.entities[i],
		Label:    v.labels[i],
		Inputs:   v.features[i],
	}
	if v.attribs != nil {
		r.Attrib = v.attribs[i]
	}
	return r
}

// HasAttribs reports whether the underlying table carried an attribute
// column.
func (v *View) HasAttribs() bool {
	return v.attribs != nil
}
