// Package featurize turns compound SMILES strings and protein sequences into fixed-length
// numeric vectors. Encoders are looked up by the names stored in a model's configuration,
// so a model is always re-encoded at inference time the way it was encoded for training.
package featurize

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/pharmalnet/dti/core/parallel"
	"github.com/pharmalnet/dti/pkg/errors"
)

// Encoder maps one input string to a vector of length Dim.
type Encoder interface {
	Name() string
	Dim() int
	Encode(s string) ([]float64, error)
}

// Modality names used in UnknownEncodingError.
const (
	ModalityDrug   = "drug"
	ModalityTarget = "target"
)

var (
	drugEncoders = map[string]func() Encoder{
		MorganName: func() Encoder { return NewMorgan(MorganBits, MorganRadius) },
	}
	targetEncoders = map[string]func() Encoder{
		ConjointTriadName: func() Encoder { return ConjointTriad{} },
		AACName:           func() Encoder { return AAC{} },
	}
)

// 並列処理の閾値
const parallelThreshold = 64

func known(registry map[string]func() Encoder) []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DrugEncodings lists the registered compound encodings.
func DrugEncodings() []string { return known(drugEncoders) }

// TargetEncodings lists the registered protein encodings.
func TargetEncodings() []string { return known(targetEncoders) }

// Drug returns the compound encoder registered under name.
func Drug(name string) (Encoder, error) {
	f, ok := drugEncoders[name]
	if !ok {
		return nil, errors.NewUnknownEncodingError(ModalityDrug, name, DrugEncodings())
	}
	return f(), nil
}

// Target returns the protein encoder registered under name.
func Target(name string) (Encoder, error) {
	f, ok := targetEncoders[name]
	if !ok {
		return nil, errors.NewUnknownEncodingError(ModalityTarget, name, TargetEncodings())
	}
	return f(), nil
}

// Pair concatenates a drug and a target encoding into one feature row.
type Pair struct {
	Drug   Encoder
	Target Encoder
}

// NewPair resolves both encoder names.
func NewPair(drugName, targetName string) (*Pair, error) {
	d, err := Drug(drugName)
	if err != nil {
		return nil, err
	}
	t, err := Target(targetName)
	if err != nil {
		return nil, err
	}
	return &Pair{Drug: d, Target: t}, nil
}

// Dim is the width of an encoded row.
func (p *Pair) Dim() int { return p.Drug.Dim() + p.Target.Dim() }

// Encode builds the n×Dim feature matrix for aligned compound and sequence slices.
// The error of the first row that fails to encode is returned, wrapped with its index.
func (p *Pair) Encode(compounds, sequences []string) (*mat.Dense, error) {
	if len(compounds) != len(sequences) {
		return nil, errors.NewDimensionError("Pair.Encode", len(compounds), len(sequences), 0)
	}
	n := len(compounds)
	if n == 0 {
		return nil, errors.NewValueError("Pair.Encode", "no rows to encode")
	}

	dDim := p.Drug.Dim()
	X := mat.NewDense(n, p.Dim(), nil)
	err := parallel.ForEach(n, parallelThreshold, func(i int) error {
		dv, err := p.Drug.Encode(compounds[i])
		if err != nil {
			return errors.Wrapf(err, "row %d", i)
		}
		tv, err := p.Target.Encode(sequences[i])
		if err != nil {
			return errors.Wrapf(err, "row %d", i)
		}
		row := X.RawRowView(i)
		copy(row, dv)
		copy(row[dDim:], tv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return X, nil
}
