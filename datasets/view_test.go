package datasets

import "testing"

// buildTable constructs an in-memory table matching the conventional
// layout: ID YY X1 X2 X3, with three entities.
func buildTable(t *testing.T) *Table {
	t.Helper()
	tab, err := NewTable(
		[]string{"ID", "YY", "X1", "X2", "X3"},
		[][]string{
			{"aa", "+1", ".3", ".1", ".9"},
			{"aa", "-1", ".2", ".2", ".8"},
			{"bb", "+1", ".6", ".5", ".0"},
			{"bb", "-1", ".5", ".4", ".1"},
			{"cc", "-1", ".5", ".5", ".0"},
		},
	)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return tab
}

func TestNewView_ParsesRecords(t *testing.T) {
	v, err := NewView(buildTable(t), "ID", "YY", 3)
	if err != nil {
		t.Fatalf("NewView failed: %v", err)
	}

	if got := v.NumRows(); got != 5 {
		t.Fatalf("expected 5 rows, got %d", got)
	}
	if got := v.NumEntities(); got != 3 {
		t.Fatalf("expected 3 entities, got %d", got)
	}
	if v.HasAttribs() {
		t.Fatalf("expected no attribute column")
	}

	rec := v.Record(2)
	if rec.EntityID != "bb" || rec.Label != 1 {
		t.Fatalf("unexpected record 2: %+v", rec)
	}
	want := []float32{0.6, 0.5, 0.0}
	for i := range want {
		if rec.Inputs[i] != want[i] {
			t.Fatalf("unexpected features for record 2: %v", rec.Inputs)
		}
	}
	if rec.Attrib != "" {
		t.Fatalf("expected empty attrib, got %q", rec.Attrib)
	}
}

func TestNewView_AttribColumn(t *testing.T) {
	tab, err := NewTable(
		[]string{"ID", "date", "YY", "X1"},
		[][]string{
			{"aa", "2016-01-04", "+1", ".3"},
			{"bb", "2016-01-05", "-1", ".2"},
		},
	)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	v, err := NewView(tab, "ID", "YY", 1)
	if err != nil {
		t.Fatalf("NewView failed: %v", err)
	}
	if !v.HasAttribs() {
		t.Fatalf("expected attribute column to be detected")
	}
	if got := v.Record(1).Attrib; got != "2016-01-05" {
		t.Fatalf("unexpected attrib: %q", got)
	}
}

func TestNewView_ContractErrors(t *testing.T) {
	tab := buildTable(t)

	cases := []struct {
		name      string
		entityCol string
		labelCol  string
		numInputs int
	}{
		{"missing entity column", "NOPE", "YY", 3},
		{"missing label column", "ID", "NOPE", 3},
		{"feature block too wide", "ID", "YY", 4},
		{"entity column inside feature block", "X2", "YY", 3},
		{"zero inputs", "ID", "YY", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewView(tab, tc.entityCol, tc.labelCol, tc.numInputs); err == nil {
				t.Fatalf("expected configuration error, got nil")
			}
		})
	}
}

func TestNewView_BadLabel(t *testing.T) {
	tab, err := NewTable(
		[]string{"ID", "YY", "X1"},
		[][]string{
			{"aa", "+1", ".3"},
			{"bb", "2", ".2"},
		},
	)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	if _, err := NewView(tab, "ID", "YY", 1); err == nil {
		t.Fatalf("expected error for non ±1 label, got nil")
	}
}
