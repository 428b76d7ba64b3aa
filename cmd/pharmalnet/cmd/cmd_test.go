package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
storage:
  workDir: %s
  mediaRoot: %s
training:
  drugEncoding: Morgan
  targetEncoding: AAC
  hiddenDims: [8]
  epochs: 2
  batchSize: 8
  seed: 3
metrics:
  enable: false
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "pharmalnet "))
}

func TestTrainThenPredict(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	work := filepath.Join(dir, "work")
	media := filepath.Join(dir, "media")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(testConfig, work, media)), 0o644))

	var csv strings.Builder
	csv.WriteString("Smiles,seq1,Value\n")
	smiles := []string{"CCO", "CCN", "CC(=O)O", "c1ccccc1", "CCCl"}
	seqs := []string{"MKTAYIAK", "ACDEFGHIK", "LMNPQRSTVWY", "KRHKRH"}
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&csv, "%s,%s,%d\n", smiles[i%len(smiles)], seqs[i%len(seqs)], 3*(i+1))
	}
	dataPath := filepath.Join(dir, "train.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte(csv.String()), 0o644))

	out, err := run(t, "train", "--config", cfgPath, "--dataset", dataPath, "--model-name", "cli")
	require.NoError(t, err, out)

	var trained map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &trained))
	zipPath, ok := trained["model_zip"].(string)
	require.True(t, ok)
	assert.Regexp(t, `^cli_trained_model_[0-9a-f]{8}\.zip$`, filepath.Base(zipPath))
	assert.FileExists(t, zipPath)
	assert.EqualValues(t, 3, trained["seed"])

	out, err = run(t, "predict", "--config", cfgPath, "--model", zipPath, "--smiles", "CCO", "--protein", "MKTAYIAK")
	require.NoError(t, err, out)
	var predicted map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &predicted))
	_, isNumber := predicted["prediction"].(float64)
	assert.True(t, isNumber)
}
