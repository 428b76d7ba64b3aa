package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pharmalnet/dti/dataset"
	"github.com/pharmalnet/dti/pipeline"
	"github.com/pharmalnet/dti/pkg/errors"
)

var predictFlags struct {
	model       string
	dataset     string
	compoundCol string
	sequenceCol string
	compound    string
	sequence    string
}

var predictCmd = &cobra.Command{
	Use:               "predict",
	Short:             "score a CSV dataset or a single compound/protein pair with a trained model",
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.EnsureDirs(); err != nil {
			return err
		}
		predictor := pipeline.NewPredictor(cfg.Storage.WorkDir)
		predictor.Inspector.WeightsExt = cfg.Archive.WeightsExt
		predictor.Inspector.ConfigExt = cfg.Archive.ConfigExt

		if predictFlags.dataset != "" {
			f, err := os.Open(predictFlags.dataset)
			if err != nil {
				return err
			}
			table, err := dataset.ReadCSV(f)
			f.Close()
			if err != nil {
				return err
			}
			res, err := predictor.PredictBatch(cmd.Context(), predictFlags.model, pipeline.BatchRequest{
				Table:       table,
				CompoundCol: predictFlags.compoundCol,
				SequenceCol: predictFlags.sequenceCol,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}

		if predictFlags.compound == "" || predictFlags.sequence == "" {
			return errors.New("either --dataset or both --smiles and --protein are required")
		}
		v, err := predictor.PredictOne(cmd.Context(), predictFlags.model, pipeline.SingleRequest{
			Compound: predictFlags.compound,
			Sequence: predictFlags.sequence,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{"prediction": v})
	},
}

func init() {
	flags := predictCmd.Flags()
	flags.StringVar(&predictFlags.model, "model", "", "model archive (.zip), model directory or model file")
	flags.StringVar(&predictFlags.dataset, "dataset", "", "CSV file to score")
	flags.StringVar(&predictFlags.compoundCol, "smiles-col", pipeline.DefaultCompoundCol, "compound SMILES column of --dataset")
	flags.StringVar(&predictFlags.sequenceCol, "protein-col", pipeline.DefaultSequenceCol, "protein sequence column of --dataset")
	flags.StringVar(&predictFlags.compound, "smiles", "", "compound SMILES for a single prediction")
	flags.StringVar(&predictFlags.sequence, "protein", "", "protein sequence for a single prediction")
	_ = predictCmd.MarkFlagRequired("model")
	predictCmd.MarkFlagsMutuallyExclusive("dataset", "smiles")
}
