package datasets

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Table is an immutable, ordered table of string cells parsed from a
// delimited text file with a header row. Rows keep the file's order;
// the engine relies on that order to preserve entity contiguity.
type Table struct {
	columns  []string
	colIndex map[string]int
	rows     [][]string
}

// LoadTable reads a table from path. The first line is the header; the
// delimiter is sniffed from it: a header containing commas is parsed as
// CSV, anything else as whitespace-separated fields.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	headerLine, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}
	headerLine = strings.TrimRight(headerLine, "\r\n")
	if strings.TrimSpace(headerLine) == "" {
		return nil, fmt.Errorf("data file %s has no header row", path)
	}

	if strings.Contains(headerLine, ",") {
		return loadCSV(headerLine, br)
	}
	return loadWhitespace(headerLine, br)
}

func loadCSV(headerLine string, r io.Reader) (*Table, error) {
	header, err := csv.NewReader(strings.NewReader(headerLine)).Read()
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(header)

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows), err)
		}
		rows = append(rows, record)
	}
	return NewTable(header, rows)
}

func loadWhitespace(headerLine string, r io.Reader) (*Table, error) {
	header := strings.Fields(headerLine)

	var rows [][]string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d",
				len(rows), len(fields), len(header))
		}
		rows = append(rows, fields)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return NewTable(header, rows)
}

// NewTable builds a table from already-split cells. Every row must have
// exactly one cell per column and the table must contain at least one row.
func NewTable(columns []string, rows [][]string) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("table has no columns")
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table has no data rows")
	}

	colIndex := make(map[string]int, len(columns))
	for i, col := range columns {
		colIndex[strings.TrimSpace(col)] = i
	}

	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", i, len(row), len(columns))
		}
	}

	return &Table{
		columns:  columns,
		colIndex: colIndex,
		rows:     rows,
	}, nil
}

// NumRows returns the number of data rows (the header is not counted).
func (t *Table) NumRows() int {
	return len(t.rows)
}

// Columns returns the header names in file order.
func (t *Table) Columns() []string {
	return t.columns
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	idx, ok := t.colIndex[name]
	return idx, ok
}

// Cell returns the raw string value at (row, col).
func (t *Table) Cell(row, col int) string {
	return t.rows[row][col]
}

func parseFloat32(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty cell")
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}
