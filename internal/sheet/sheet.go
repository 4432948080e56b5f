// Package sheet reads and rewrites the CSV prompt sources.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrEmpty is returned for a file with no header row.
var ErrEmpty = errors.New("no columns to parse")

// Table is a CSV file held in memory: a header row and data rows, each data
// row padded to at least the header width.
type Table struct {
	Header []string
	Rows   [][]string
	bom    bool
}

func Parse(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	t := &Table{}
	if bytes.HasPrefix(data, utf8BOM) {
		t.bom = true
		data = data[len(utf8BOM):]
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	// prompt text often carries unescaped quotes
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	t.Header = records[0]
	t.Rows = records[1:]
	for i, row := range t.Rows {
		if len(row) < len(t.Header) {
			padded := make([]string, len(t.Header))
			copy(padded, row)
			t.Rows[i] = padded
		}
	}
	return t, nil
}

func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// ColumnIndex returns the index and name of the first alias present in the
// header. Matching is exact and case-sensitive.
func (t *Table) ColumnIndex(aliases ...string) (int, string, bool) {
	for _, alias := range aliases {
		for i, h := range t.Header {
			if h == alias {
				return i, alias, true
			}
		}
	}
	return -1, "", false
}

func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// SetCell writes v at (row, col). Missing rows are appended blank and short
// rows are widened so the write always lands.
func (t *Table) SetCell(row, col int, v string) {
	width := len(t.Header)
	if col >= width {
		width = col + 1
	}
	for len(t.Rows) <= row {
		t.Rows = append(t.Rows, make([]string, width))
	}
	if len(t.Rows[row]) <= col {
		widened := make([]string, col+1)
		copy(widened, t.Rows[row])
		t.Rows[row] = widened
	}
	t.Rows[row][col] = v
}

func (t *Table) Write(w io.Writer) error {
	if t.bom {
		if _, err := w.Write(utf8BOM); err != nil {
			return err
		}
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteFile replaces path with the table contents. The data is written to a
// temporary file in the same directory and renamed over path.
func WriteFile(path string, t *Table) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := t.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
