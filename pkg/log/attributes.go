package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model or component, e.g. "MLPRegressor", "StandardScaler".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed: "fit", "predict", "transform", "score".
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging, e.g. "dataset", "archive".
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the job: "training", "inference", "validation".
	PhaseKey = "ml.phase"

	// JobIDKey is the unique identifier of a training or inference job.
	JobIDKey = "job.id"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) of an encoded matrix.
	FeaturesKey = "data.features"

	// OriginalRowsKey is the number of rows read from an uploaded table.
	OriginalRowsKey = "data.original_rows"

	// DroppedRowsKey is the number of rows removed by cleaning.
	DroppedRowsKey = "data.dropped_rows"

	// BatchSizeKey indicates the mini-batch size.
	BatchSizeKey = "data.batch_size"

	// SeqLenKey carries protein sequence length statistics.
	SeqLenKey = "data.seq_len"
)

// Split
const (
	TrainSizeKey      = "split.train"
	ValidationSizeKey = "split.validation"
	TestSizeKey       = "split.test"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	LossKey    = "metrics.loss"
	MSEKey     = "metrics.mse"
	R2ScoreKey = "metrics.r2_score"
	CorrKey    = "metrics.corr"

	// EpochKey records the current epoch number during training.
	EpochKey = "training.epoch"
)

// Prediction and Output Context
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"
)

// Error Context
const (
	// ErrorTypeKey categorizes the error: "client" or "internal".
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters and Configuration
const (
	LearningRateKey   = "hyperparams.learning_rate"
	HiddenDimsKey     = "hyperparams.hidden_dims"
	EpochsKey         = "hyperparams.epochs"
	DrugEncodingKey   = "hyperparams.drug_encoding"
	TargetEncodingKey = "hyperparams.target_encoding"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Filesystem
const (
	PathKey    = "fs.path"
	ArchiveKey = "fs.archive"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationPackage   = "package"
	OperationLocate    = "locate"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseTesting    = "testing"
	PhaseInference  = "inference"
)
