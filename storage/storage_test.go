package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmalnet/dti/pkg/errors"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestSaveModelAndOpen(t *testing.T) {
	root := t.TempDir()
	s, err := New(root, "/media/")
	require.NoError(t, err)

	jobID := NewJobID()
	entry, err := s.SaveModel(jobID, writeTemp(t, "a.zip", "archive-v1"), "kinase_trained_model.zip")
	require.NoError(t, err)
	assert.Equal(t, KindModel, entry.Kind)
	assert.Equal(t, "kinase_trained_model_"+jobID[:8]+".zip", entry.Name)
	assert.Equal(t, int64(10), entry.Size)
	assert.Equal(t, jobID, entry.JobID)
	assert.Equal(t, "/media/pharmalnet_models/"+entry.Name, s.URL(KindModel, entry.Name))

	rc, err := s.Open(KindModel, entry.Name)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "archive-v1", string(body))

	// 同じモデル名でもジョブごとに別ファイル
	second, err := s.SaveModel(NewJobID(), writeTemp(t, "b.zip", "archive-v2"), "kinase_trained_model.zip")
	require.NoError(t, err)
	assert.NotEqual(t, entry.Name, second.Name)
	p, err := s.Path(KindModel, entry.Name)
	require.NoError(t, err)
	body, err = os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "archive-v1", string(body))

	entries, err := s.List(KindModel)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entry.Name, entries[0].Name)
	assert.Equal(t, second.Name, entries[1].Name)
}

func TestSaveGraphAndList(t *testing.T) {
	s, err := New(t.TempDir(), "/media")
	require.NoError(t, err)

	jobID := "0123456789abcdef"
	entry, err := s.SaveGraph(jobID, writeTemp(t, "graph.png", "png"), "kinase")
	require.NoError(t, err)
	assert.Equal(t, "kinase_graph_01234567.png", entry.Name)

	_, err = s.SaveModel(jobID, writeTemp(t, "m.zip", "zip"), "kinase_trained_model.zip")
	require.NoError(t, err)

	graphs, err := s.List(KindGraph)
	require.NoError(t, err)
	require.Len(t, graphs, 1)
	assert.Equal(t, entry.Name, graphs[0].Name)
	assert.Equal(t, jobID, graphs[0].JobID)

	require.NoError(t, s.Delete(KindGraph, entry.Name))
	graphs, err = s.List(KindGraph)
	require.NoError(t, err)
	assert.Empty(t, graphs)
}

func TestPathRejectsTraversal(t *testing.T) {
	s, err := New(t.TempDir(), "")
	require.NoError(t, err)
	for _, name := range []string{"", ".", "..", "../x.zip", "a/b.zip", `a\b.zip`} {
		_, err := s.Path(KindModel, name)
		var v *errors.ValidationError
		assert.True(t, errors.As(err, &v), "name %q", name)
	}
	_, err = s.Path(Kind("other"), "x.zip")
	assert.Error(t, err)

	_, err = s.Open(KindModel, "missing.zip")
	assert.True(t, os.IsNotExist(err))
}
