package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Kind classifies a failure by who is at fault.
type Kind int

const (
	// KindInternal is a pipeline failure: training, discovery, encoding or scoring.
	KindInternal Kind = iota
	// KindClient is a caller input failure: columns, empty data, split fractions, encodings.
	KindClient
)

func (k Kind) String() string {
	if k == KindClient {
		return "client"
	}
	return "internal"
}

// classifier is implemented by every pipeline error type.
type classifier interface {
	Kind() Kind
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	var c classifier
	if errors.As(err, &c) {
		return c.Kind()
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return KindClient
	}
	return KindInternal
}

// HTTPStatus maps err to the status code reported to callers.
func HTTPStatus(err error) int {
	if KindOf(err) == KindClient {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// MissingColumnError is returned when a requested column is absent from an input table.
type MissingColumnError struct {
	Missing   []string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required columns (%s); available columns: [%s]",
		strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

func (e *MissingColumnError) Kind() Kind { return KindClient }

// MarshalZerologObject adds the column lists to a log event.
func (e *MissingColumnError) MarshalZerologObject(event *zerolog.Event) {
	event.Strs("missing", e.Missing).
		Strs("available", e.Available).
		Str("type", "MissingColumnError")
}

// NewMissingColumnError returns a MissingColumnError with a stack trace.
func NewMissingColumnError(missing, available []string) error {
	return errors.WithStack(&MissingColumnError{Missing: missing, Available: available})
}

// EmptyDatasetError is returned when no row survives cleaning.
type EmptyDatasetError struct {
	OriginalRows int
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("dataset is empty after cleaning (%d rows read); labels must be positive numbers and all required columns filled", e.OriginalRows)
}

func (e *EmptyDatasetError) Kind() Kind { return KindClient }

// NewEmptyDatasetError returns an EmptyDatasetError with a stack trace.
func NewEmptyDatasetError(originalRows int) error {
	return errors.WithStack(&EmptyDatasetError{OriginalRows: originalRows})
}

// InvalidSplitError is returned for non-positive fractions or fractions not summing to one.
type InvalidSplitError struct {
	Fractions []float64
	Reason    string
}

func (e *InvalidSplitError) Error() string {
	return fmt.Sprintf("invalid split fractions %v: %s", e.Fractions, e.Reason)
}

func (e *InvalidSplitError) Kind() Kind { return KindClient }

// NewInvalidSplitError returns an InvalidSplitError with a stack trace.
func NewInvalidSplitError(fractions []float64, reason string) error {
	return errors.WithStack(&InvalidSplitError{Fractions: fractions, Reason: reason})
}

// EmptyInputError is returned when an inference request has nothing left to score.
type EmptyInputError struct {
	Reason string
}

func (e *EmptyInputError) Error() string {
	return "empty compound or sequence input: " + e.Reason
}

func (e *EmptyInputError) Kind() Kind { return KindClient }

// NewEmptyInputError returns an EmptyInputError with a stack trace.
func NewEmptyInputError(reason string) error {
	return errors.WithStack(&EmptyInputError{Reason: reason})
}

// UnknownEncodingError is returned for an encoding name that is not registered.
type UnknownEncodingError struct {
	Modality string // "drug" or "target"
	Name     string
	Known    []string
}

func (e *UnknownEncodingError) Error() string {
	return fmt.Sprintf("unknown %s encoding %q (known: %s)", e.Modality, e.Name, strings.Join(e.Known, ", "))
}

func (e *UnknownEncodingError) Kind() Kind { return KindClient }

// NewUnknownEncodingError returns an UnknownEncodingError with a stack trace.
func NewUnknownEncodingError(modality, name string, known []string) error {
	return errors.WithStack(&UnknownEncodingError{Modality: modality, Name: name, Known: known})
}

// TrainingError wraps any failure raised while configuring or fitting a model.
type TrainingError struct {
	Err error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training failed: %v", e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }

func (e *TrainingError) Kind() Kind { return KindInternal }

// NewTrainingError returns a TrainingError with a stack trace.
func NewTrainingError(err error) error {
	return errors.WithStack(&TrainingError{Err: err})
}

// EmptyTestSetError is returned when evaluation is asked to score an empty partition.
type EmptyTestSetError struct{}

func (e *EmptyTestSetError) Error() string {
	return "test partition is empty; cannot compute evaluation metrics"
}

func (e *EmptyTestSetError) Kind() Kind { return KindInternal }

// NewEmptyTestSetError returns an EmptyTestSetError with a stack trace.
func NewEmptyTestSetError() error {
	return errors.WithStack(&EmptyTestSetError{})
}

// ModelFilesNotFoundError is returned when no directory holds both a weights and a config file.
type ModelFilesNotFoundError struct {
	Root       string
	WeightsExt string
	ConfigExt  string
}

func (e *ModelFilesNotFoundError) Error() string {
	return fmt.Sprintf("could not find model files (%s / %s) in %s", e.WeightsExt, e.ConfigExt, e.Root)
}

func (e *ModelFilesNotFoundError) Kind() Kind { return KindInternal }

// NewModelFilesNotFoundError returns a ModelFilesNotFoundError with a stack trace.
func NewModelFilesNotFoundError(root, weightsExt, configExt string) error {
	return errors.WithStack(&ModelFilesNotFoundError{Root: root, WeightsExt: weightsExt, ConfigExt: configExt})
}

// InferenceError wraps an encoding or scoring failure during prediction.
type InferenceError struct {
	Stage string // "encode" or "predict"
	Err   error
}

func (e *InferenceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("inference failed during %s", e.Stage)
	}
	return fmt.Sprintf("inference failed during %s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

func (e *InferenceError) Kind() Kind { return KindInternal }

// NewInferenceError returns an InferenceError with a stack trace.
func NewInferenceError(stage string, err error) error {
	return errors.WithStack(&InferenceError{Stage: stage, Err: err})
}
