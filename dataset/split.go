package dataset

import (
	"math"
	"math/rand"
	randv2 "math/rand/v2"

	"github.com/pharmalnet/dti/pkg/errors"
	"github.com/pharmalnet/dti/pkg/log"
)

// fractionTolerance bounds how far the three fractions may sum away from 1.
const fractionTolerance = 1e-6

// Fractions are the train/validation/test proportions of a split.
type Fractions struct {
	Train      float64 `json:"train" yaml:"train" mapstructure:"train"`
	Validation float64 `json:"validation" yaml:"validation" mapstructure:"validation"`
	Test       float64 `json:"test" yaml:"test" mapstructure:"test"`
}

// DefaultFractions is the 70/10/20 split.
var DefaultFractions = Fractions{Train: 0.7, Validation: 0.1, Test: 0.2}

// Slice returns the fractions as [train, validation, test].
func (f Fractions) Slice() []float64 {
	return []float64{f.Train, f.Validation, f.Test}
}

// Validate checks that every fraction is positive and that they sum to 1.
func (f Fractions) Validate() error {
	var sum float64
	for _, v := range f.Slice() {
		if !(v > 0) || math.IsInf(v, 0) {
			return errors.NewInvalidSplitError(f.Slice(), "every fraction must be positive")
		}
		sum += v
	}
	if math.Abs(sum-1) > fractionTolerance {
		return errors.NewInvalidSplitError(f.Slice(), "fractions must sum to 1.0")
	}
	return nil
}

// SplitSpec holds three disjoint partitions that together contain every cleaned row.
type SplitSpec struct {
	Train      []Row
	Validation []Row
	Test       []Row
	Seed       int64
	Fractions  Fractions
}

// Sizes returns the partition sizes.
func (s *SplitSpec) Sizes() (train, validation, test int) {
	return len(s.Train), len(s.Validation), len(s.Test)
}

// RandomSeed draws a fresh seed in [1, 9999].
func RandomSeed() int64 {
	return randv2.Int64N(9999) + 1
}

// Split shuffles the cleaned rows with a generator seeded by seed and cuts them into
// train, validation and test partitions. The same seed and input always give the same split.
//
// Sizes are round(n*train) and round(n*validation); test receives the remainder. When
// rounding overshoots n, validation and then train are shrunk.
func Split(c *Cleaned, f Fractions, seed int64) (*SplitSpec, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	n := c.Len()
	if n == 0 {
		return nil, errors.NewEmptyDatasetError(c.OriginalRows)
	}

	nTrain := int(math.Round(float64(n) * f.Train))
	nVal := int(math.Round(float64(n) * f.Validation))
	if over := nTrain + nVal - n; over > 0 {
		cut := min(over, nVal)
		nVal -= cut
		nTrain -= over - cut
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	pick := func(idx []int) []Row {
		rows := make([]Row, len(idx))
		for i, p := range idx {
			rows[i] = c.Rows[p]
		}
		return rows
	}

	spec := &SplitSpec{
		Train:      pick(perm[:nTrain]),
		Validation: pick(perm[nTrain : nTrain+nVal]),
		Test:       pick(perm[nTrain+nVal:]),
		Seed:       seed,
		Fractions:  f,
	}

	log.GetLoggerWithName("dataset").Debug("Dataset split",
		log.RandomSeedKey, seed,
		log.TrainSizeKey, len(spec.Train),
		log.ValidationSizeKey, len(spec.Validation),
		log.TestSizeKey, len(spec.Test),
	)
	return spec, nil
}
