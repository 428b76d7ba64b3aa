package config

import (
	"github.com/pharmalnet/dti/archive"
	"github.com/pharmalnet/dti/featurize"
)

const (
	// DefaultServerHost is the listen host.
	DefaultServerHost = "0.0.0.0"

	// DefaultServerPort is the listen port.
	DefaultServerPort = 8000

	// DefaultMaxUploadMB limits multipart request bodies.
	DefaultMaxUploadMB = 256

	// DefaultMediaURL prefixes download links.
	DefaultMediaURL = "/media/"

	// DefaultLogLevel is the minimum log level.
	DefaultLogLevel = "info"

	// EnvPrefix is the prefix of environment overrides, e.g. PHARMALNET_SERVER_PORT.
	EnvPrefix = "PHARMALNET"
)

var (
	// DefaultDrugEncoding is the compound encoding.
	DefaultDrugEncoding = featurize.MorganName

	// DefaultTargetEncoding is the protein encoding.
	DefaultTargetEncoding = featurize.ConjointTriadName

	// DefaultHiddenDims are the hidden layer widths.
	DefaultHiddenDims = []int{512, 256}

	// DefaultWeightsExt and DefaultConfigExt identify a model directory.
	DefaultWeightsExt = archive.DefaultWeightsExt
	DefaultConfigExt  = archive.DefaultConfigExt
)

const (
	DefaultLearningRate = 5e-4
	DefaultBatchSize    = 32
	DefaultEpochs       = 10
	DefaultTrainFrac    = 0.7
	DefaultValFrac      = 0.1
	DefaultTestFrac     = 0.2
)
