package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/pharmalnet/dti/pkg/errors"
	"github.com/pharmalnet/dti/pkg/log"
)

// Row is one labelled compound/sequence pair.
type Row struct {
	Compound   string
	Sequence   string
	Label      float64 // raw affinity, always > 0
	Normalized float64 // log10(Label), always finite
}

// SeqLen is the length of the protein sequence.
func (r Row) SeqLen() int { return len(r.Sequence) }

// Cleaned is the validated dataset. Rows keep their input order.
type Cleaned struct {
	Rows           []Row
	OriginalRows   int
	DroppedMissing int
	DroppedLabel   int
}

// Len returns the number of surviving rows.
func (c *Cleaned) Len() int { return len(c.Rows) }

// SeqLenStats summarizes protein sequence lengths.
type SeqLenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
}

// SeqLenStats returns min, max and mean sequence length.
func (c *Cleaned) SeqLenStats() SeqLenStats {
	if len(c.Rows) == 0 {
		return SeqLenStats{}
	}
	lens := make([]float64, len(c.Rows))
	s := SeqLenStats{Min: math.MaxInt, Max: 0}
	for i, r := range c.Rows {
		n := r.SeqLen()
		lens[i] = float64(n)
		s.Min = min(s.Min, n)
		s.Max = max(s.Max, n)
	}
	s.Mean = stat.Mean(lens, nil)
	return s
}

// Clean validates the three named columns and keeps the rows usable for training.
//
// A row is kept when none of the three cells is missing and the label parses as a
// strictly positive number whose log10 is finite. Normalized holds log10(Label).
// The input table is not modified.
func Clean(t *Table, compoundCol, sequenceCol, labelCol string) (*Cleaned, error) {
	idx, err := t.Require(compoundCol, sequenceCol, labelCol)
	if err != nil {
		return nil, err
	}
	ci, si, li := idx[0], idx[1], idx[2]

	out := &Cleaned{OriginalRows: t.Len(), Rows: make([]Row, 0, t.Len())}
	for r := range t.Rows {
		compound, sequence, raw := t.Cell(r, ci), t.Cell(r, si), t.Cell(r, li)
		if IsMissing(compound) || IsMissing(sequence) || IsMissing(raw) {
			out.DroppedMissing++
			continue
		}
		label, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || !(label > 0) {
			out.DroppedLabel++
			continue
		}
		norm := math.Log10(label)
		if math.IsNaN(norm) || math.IsInf(norm, 0) {
			out.DroppedLabel++
			continue
		}
		out.Rows = append(out.Rows, Row{
			Compound:   strings.TrimSpace(compound),
			Sequence:   strings.TrimSpace(sequence),
			Label:      label,
			Normalized: norm,
		})
	}

	if out.DroppedLabel > 0 {
		errors.Warn(errors.NewDataConversionWarning("string", "log10 label",
			fmt.Sprintf("%d rows dropped from column %q: label is not a positive number", out.DroppedLabel, labelCol)))
	}

	logger := log.GetLoggerWithName("dataset")
	stats := out.SeqLenStats()
	logger.Debug("Dataset cleaned",
		log.OriginalRowsKey, out.OriginalRows,
		log.SamplesKey, out.Len(),
		log.DroppedRowsKey, out.DroppedMissing+out.DroppedLabel,
		log.SeqLenKey, stats,
	)

	if out.Len() == 0 {
		return nil, errors.NewEmptyDatasetError(out.OriginalRows)
	}
	return out, nil
}
