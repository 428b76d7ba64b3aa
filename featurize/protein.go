package featurize

import (
	"strings"

	"github.com/pharmalnet/dti/pkg/errors"
)

const (
	ConjointTriadName = "Conjoint_triad"
	AACName           = "AAC"
)

// conjoint triad residue classes, grouped by dipole and side chain volume
var triadClass = func() [256]int8 {
	var c [256]int8
	groups := []string{"AGV", "ILFP", "YMTS", "HNQW", "RK", "DE", "C"}
	for g, residues := range groups {
		for _, r := range residues {
			c[r] = int8(g + 1)
		}
	}
	return c
}()

const aminoAcids = "ACDEFGHIKLMNPQRSTVWY"

func normalizeSequence(op, seq string) (string, error) {
	seq = strings.ToUpper(strings.TrimSpace(seq))
	if seq == "" {
		return "", errors.NewValueError(op, "empty protein sequence")
	}
	return seq, nil
}

// ConjointTriad counts every triple of consecutive residue classes (7³ = 343 features)
// and min–max normalises the counts of one sequence. Residues outside the 20 standard
// amino acids break the triads they fall into.
type ConjointTriad struct{}

func (ConjointTriad) Name() string { return ConjointTriadName }
func (ConjointTriad) Dim() int     { return 343 }

func (ct ConjointTriad) Encode(seq string) ([]float64, error) {
	seq, err := normalizeSequence(ct.Name(), seq)
	if err != nil {
		return nil, err
	}
	v := make([]float64, ct.Dim())
	for i := 0; i+2 < len(seq); i++ {
		a, b, c := triadClass[seq[i]], triadClass[seq[i+1]], triadClass[seq[i+2]]
		if a == 0 || b == 0 || c == 0 {
			continue
		}
		v[int(a-1)*49+int(b-1)*7+int(c-1)]++
	}

	lo, hi := v[0], v[0]
	for _, x := range v {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	if hi == lo {
		return make([]float64, ct.Dim()), nil
	}
	for i := range v {
		v[i] = (v[i] - lo) / (hi - lo)
	}
	return v, nil
}

// AAC is the amino acid composition: the fraction of each standard residue.
type AAC struct{}

func (AAC) Name() string { return AACName }
func (AAC) Dim() int     { return len(aminoAcids) }

func (a AAC) Encode(seq string) ([]float64, error) {
	seq, err := normalizeSequence(a.Name(), seq)
	if err != nil {
		return nil, err
	}
	v := make([]float64, a.Dim())
	total := 0
	for i := 0; i < len(seq); i++ {
		if idx := strings.IndexByte(aminoAcids, seq[i]); idx >= 0 {
			v[idx]++
			total++
		}
	}
	if total == 0 {
		return nil, errors.NewValueError(a.Name(), "sequence has no standard amino acids")
	}
	for i := range v {
		v[i] /= float64(total)
	}
	return v, nil
}
