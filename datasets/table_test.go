package datasets

import (
	"os"
	"path/filepath"
	"testing"
)

// writeDataFile writes a data file with the given header and rows to path.
func writeDataFile(t *testing.T, path, header string, rows []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create data file %s: %v", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(header + "\n"); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	for _, r := range rows {
		if _, err := f.WriteString(r + "\n"); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}
}

func TestLoadTable_Whitespace(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "train.dat")
	writeDataFile(t, path, "ID YY X1 X2 X3", []string{
		"aa +1 .3 .1 .9",
		"aa -1 .2 .2 .8",
		"bb +1 .6 .5 .0",
	})

	tab, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}
	if got := tab.NumRows(); got != 3 {
		t.Fatalf("expected 3 rows, got %d", got)
	}
	if idx, ok := tab.ColumnIndex("YY"); !ok || idx != 1 {
		t.Fatalf("unexpected index for YY: %d %v", idx, ok)
	}
	if got := tab.Cell(2, 0); got != "bb" {
		t.Fatalf("unexpected cell (2,0): %q", got)
	}
}

func TestLoadTable_CSV(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "train.csv")
	writeDataFile(t, path, "ID,YY,X1,X2", []string{
		"aa,1,0.5,0.6",
		"bb,-1,0.7,0.8",
	})

	tab, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}
	if got := tab.NumRows(); got != 2 {
		t.Fatalf("expected 2 rows, got %d", got)
	}
	if got := tab.Cell(1, 3); got != "0.8" {
		t.Fatalf("unexpected cell (1,3): %q", got)
	}
}

func TestLoadTable_MissingFile(t *testing.T) {
	if _, err := LoadTable(filepath.Join(t.TempDir(), "nope.dat")); err == nil {
		t.Fatalf("expected error for missing file, got nil")
	}
}

func TestLoadTable_RaggedRow(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "bad.dat")
	writeDataFile(t, path, "ID YY X1", []string{
		"aa +1 .3",
		"aa -1",
	})
	if _, err := LoadTable(path); err == nil {
		t.Fatalf("expected error for ragged row, got nil")
	}
}

func TestNewTable_Empty(t *testing.T) {
	if _, err := NewTable([]string{"ID", "YY"}, nil); err == nil {
		t.Fatalf("expected error for empty table, got nil")
	}
}
