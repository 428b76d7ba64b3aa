package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pharmalnet/dti/archive"
	"github.com/pharmalnet/dti/dataset"
	"github.com/pharmalnet/dti/pipeline"
	"github.com/pharmalnet/dti/serialize"
	"github.com/pharmalnet/dti/storage"
)

var trainFlags struct {
	dataset     string
	modelName   string
	compoundCol string
	sequenceCol string
	labelCol    string
	epochs      int
	seed        int64
	out         string
}

var trainCmd = &cobra.Command{
	Use:               "train",
	Short:             "train a model from a CSV dataset and store its archive",
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(trainFlags.dataset)
		if err != nil {
			return err
		}
		table, err := dataset.ReadCSV(f)
		f.Close()
		if err != nil {
			return err
		}

		job := cfg.Training.JobConfig()
		if cmd.Flags().Changed("epochs") {
			job.Epochs = trainFlags.epochs
		}
		if cmd.Flags().Changed("seed") {
			job.Seed = trainFlags.seed
		}

		if err := cfg.EnsureDirs(); err != nil {
			return err
		}
		out, err := pipeline.NewTrainer(cfg.Storage.WorkDir, nil).Run(cmd.Context(), pipeline.TrainRequest{
			Table:       table,
			CompoundCol: trainFlags.compoundCol,
			SequenceCol: trainFlags.sequenceCol,
			LabelCol:    trainFlags.labelCol,
			ModelName:   trainFlags.modelName,
			Config:      job,
		})
		if err != nil {
			return err
		}
		defer out.Cleanup()

		root := cfg.Storage.MediaRoot
		if trainFlags.out != "" {
			root = trainFlags.out
		}
		st, err := storage.New(root, cfg.Storage.MediaURL)
		if err != nil {
			return err
		}
		entry, err := st.SaveModel(out.JobID, out.Archive.ArchivePath, filepath.Base(out.Archive.ArchivePath))
		if err != nil {
			return err
		}
		graph, err := st.SaveGraph(out.JobID, out.Evaluation.GraphPath, archive.SanitizeName(trainFlags.modelName))
		if err != nil {
			return err
		}
		modelPath, err := st.Path(storage.KindModel, entry.Name)
		if err != nil {
			return err
		}
		graphPath, err := st.Path(storage.KindGraph, graph.Name)
		if err != nil {
			return err
		}

		return printJSON(cmd.OutOrStdout(), map[string]any{
			"job_id": out.JobID,
			"seed":   out.Config.Seed,
			"metrics": map[string]any{
				"R2":   serialize.ToTransportSafe(out.Evaluation.R2),
				"MSE":  serialize.ToTransportSafe(out.Evaluation.MSE),
				"Corr": serialize.ToTransportSafe(out.Evaluation.Corr),
			},
			"model_zip": modelPath,
			"graph":     graphPath,
		})
	},
}

func init() {
	flags := trainCmd.Flags()
	flags.StringVar(&trainFlags.dataset, "dataset", "", "CSV file with compound, sequence and label columns")
	flags.StringVar(&trainFlags.modelName, "model-name", archive.DefaultName, "name of the model archive")
	flags.StringVar(&trainFlags.compoundCol, "smiles-col", pipeline.DefaultCompoundCol, "compound SMILES column")
	flags.StringVar(&trainFlags.sequenceCol, "protein-col", pipeline.DefaultSequenceCol, "protein sequence column")
	flags.StringVar(&trainFlags.labelCol, "value-col", "Value", "IC50 label column")
	flags.IntVar(&trainFlags.epochs, "epochs", 0, "override the configured number of epochs")
	flags.Int64Var(&trainFlags.seed, "seed", 0, "override the configured random seed")
	flags.StringVar(&trainFlags.out, "out", "", "store artifacts here instead of storage.mediaRoot")
	_ = trainCmd.MarkFlagRequired("dataset")
}
