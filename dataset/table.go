// Package dataset reads uploaded interaction tables, cleans them into labelled
// compound/sequence rows and partitions them for training.
package dataset

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/pharmalnet/dti/pkg/errors"
)

var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "NaN": {}, "nan": {}, "null": {}, "None": {},
}

// IsMissing reports whether a cell holds no value.
func IsMissing(cell string) bool {
	_, ok := missingTokens[strings.TrimSpace(cell)]
	return ok
}

// Table is a raw tabular input: a header and string cells. Cells past the end of a
// short row read as missing through Cell.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ReadCSV parses CSV with a header row.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := gocsv.LazyCSVReader(r)
	if cr, ok := reader.(*csv.Reader); ok {
		cr.FieldsPerRecord = -1
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewValueError("ReadCSV", "malformed CSV: "+err.Error())
	}
	if len(records) == 0 {
		return nil, errors.NewValueError("ReadCSV", "CSV has no header row")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = h
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(header))
		copy(row, rec)
		rows = append(rows, row)
	}
	return &Table{Columns: header, Rows: rows}, nil
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()
	return ReadCSV(f)
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Cell returns the cell at (row, col), or "" when either is out of range.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// Index returns the position of col in the header, or -1.
func (t *Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Require returns the positions of cols, or a MissingColumnError naming every absent one.
func (t *Table) Require(cols ...string) ([]int, error) {
	idx := make([]int, len(cols))
	var missing []string
	for i, c := range cols {
		idx[i] = t.Index(c)
		if idx[i] < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewMissingColumnError(missing, append([]string(nil), t.Columns...))
	}
	return idx, nil
}

// WithColumn returns a copy of t restricted to rows (by index) with one extra column appended.
func (t *Table) WithColumn(name string, rows []int, values []string) (*Table, error) {
	if len(rows) != len(values) {
		return nil, errors.NewDimensionError("Table.WithColumn", len(rows), len(values), 0)
	}
	out := &Table{Columns: append(append([]string(nil), t.Columns...), name)}
	out.Rows = make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, 0, len(t.Columns)+1)
		row = append(row, t.Rows[r]...)
		out.Rows[i] = append(row, values[i])
	}
	return out, nil
}

// WriteCSV writes the header and rows.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := gocsv.DefaultCSVWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "flush csv")
}

// Bytes renders the table as CSV.
func (t *Table) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
