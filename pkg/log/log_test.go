package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dtierrors "github.com/pharmalnet/dti/pkg/errors"
)

func TestTestLoggerCapturesLevelsAndFields(t *testing.T) {
	logger, buffer := NewTestLogger(LevelDebug)

	logger.Debug("debug message", "key1", "value1", "number", 42)
	logger.Info("info message", OperationKey, OperationFit)
	logger.Warn("warning message")
	logger.Error("error message", fmt.Errorf("boom"), ErrorTypeKey, "internal")

	require.NotEmpty(t, buffer.String())
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		assert.True(t, logger.ContainsMessage(msg), msg)
	}
	assert.True(t, logger.ContainsField("key1", "value1"))
	assert.True(t, logger.ContainsField("number", 42.0))
	assert.True(t, logger.ContainsField(ErrAttrKey, "boom"))
	assert.True(t, logger.ContainsField(ErrorTypeKey, "internal"))
}

func TestTestLoggerWith(t *testing.T) {
	logger, _ := NewTestLogger(LevelInfo)
	jobLogger := logger.With(JobIDKey, "job-1", ModelNameKey, "MLPRegressor")
	jobLogger.Info("Training started", SamplesKey, 100)

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "job-1", entries[0][JobIDKey])
	assert.Equal(t, "MLPRegressor", entries[0][ModelNameKey])
	assert.Equal(t, 100.0, entries[0][SamplesKey])
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level     Level
		wantDebug bool
		wantWarn  bool
	}{
		{LevelDebug, true, true},
		{LevelInfo, false, true},
		{LevelError, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			logger, _ := NewTestLogger(tt.level)
			assert.Equal(t, tt.wantDebug, logger.Enabled(context.Background(), LevelDebug))
			assert.Equal(t, tt.wantWarn, logger.Enabled(context.Background(), LevelWarn))

			logger.Debug("only debug")
			assert.Equal(t, tt.wantDebug, logger.ContainsMessage("only debug"))
		})
	}
}

func TestTestLoggerConcurrent(t *testing.T) {
	logger, _ := NewTestLogger(LevelInfo)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				logger.Info("tick", "worker", id)
			}
		}(i)
	}
	wg.Wait()

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 80)
}

func TestZerologProviderWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo, false)

	logger := p.GetLoggerWithName("dataset")
	logger.Debug("hidden")
	logger.Info("Dataset cleaned", OriginalRowsKey, 10, SamplesKey, 8)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Dataset cleaned", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "dataset", entry[ComponentAttrKey])
	assert.Equal(t, 8.0, entry[SamplesKey])
}

func TestZerologProviderErrorStack(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelDebug, false)

	err := dtierrors.NewEmptyDatasetError(5)
	p.GetLogger().Error("Training failed", err, JobIDKey, "abc")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry["error"], "dataset is empty after cleaning")
	assert.Equal(t, "abc", entry[JobIDKey])
	assert.NotEmpty(t, entry["stack"])
}

func TestZerologProviderSetLevel(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo, false)
	assert.False(t, p.GetLogger().Enabled(context.Background(), LevelDebug))

	p.SetLevel(LevelDebug)
	logger := p.GetLogger()
	assert.True(t, logger.Enabled(context.Background(), LevelDebug))
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestGlobalProviderSwap(t *testing.T) {
	testProvider, captured := NewTestLoggerProvider(LevelDebug)
	SetProvider(testProvider)
	defer SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo, false))

	GetLoggerWithName("archive").Info("Archive written", ArchiveKey, "x.zip")
	assert.True(t, captured.ContainsField(ComponentAttrKey, "archive"))
	assert.True(t, captured.ContainsField(ArchiveKey, "x.zip"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func BenchmarkZerologLogging(b *testing.B) {
	p := NewZerologProvider(&bytes.Buffer{}, LevelInfo, false)
	logger := p.GetLogger().With(ModelNameKey, "MLPRegressor")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("epoch", EpochKey, i, LossKey, 0.5)
	}
}
