// Package dti trains and serves drug–target interaction regressors.
//
// A model predicts the binding affinity (log10 IC50) of a compound, given as a SMILES
// string, against a protein, given as an amino-acid sequence. Training cleans a labelled
// table, splits it into train, validation and test partitions, fits an MLP on encoded
// compound/protein pairs, evaluates it on the test partition and packages everything into a
// flat zip archive. Inference accepts that archive (or a model directory) and scores a CSV
// table or a single pair.
//
// # Quick Start
//
// Train from the command line:
//
//	pharmalnet train --dataset bindings.csv --smiles-col Smiles --protein-col seq1 \
//	    --value-col Value --model-name kinase
//
// Score one pair with the resulting archive:
//
//	pharmalnet predict --model media/pharmalnet_models/kinase_trained_model.zip \
//	    --smiles CCO --protein MKTAYIAK
//
// Or serve the HTTP API:
//
//	pharmalnet serve --config pharmalnet.yaml
//
// The same pipeline is available as a library:
//
//	trainer := pipeline.NewTrainer(os.TempDir(), nil)
//	out, err := trainer.Run(ctx, pipeline.TrainRequest{
//	    Table:       table,
//	    CompoundCol: "Smiles",
//	    SequenceCol: "seq1",
//	    LabelCol:    "Value",
//	    ModelName:   "kinase",
//	    Config:      dti.DefaultJobConfig(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer out.Cleanup()
//	fmt.Println(out.Evaluation.R2, out.Archive.ArchivePath)
//
// # Packages
//
//   - dataset: CSV tables, cleaning and seeded splitting
//   - featurize: compound (Morgan) and protein (Conjoint_triad, AAC) encodings
//   - dti: model configuration, training, persistence and reconstruction
//   - pipeline: orchestration, evaluation, inference and end-to-end jobs
//   - archive: packaging and model discovery in archives
//   - serialize: JSON-safe values and records
//   - storage: durable archive and graph store
//   - server: gin HTTP API and Prometheus metrics
//   - sklearn/neural_network, preprocessing, linear, metrics: numeric building blocks
//   - config, pkg/log, pkg/errors: configuration, logging and typed errors
package dti
