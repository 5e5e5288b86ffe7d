package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/arpe/internal/testutil"
	"github.com/RMahshie/arpe/pkg/models"
)

func sweepDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_clean.s2p"), []byte(testutil.Default().Touchstone()), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_broken.s2p"), []byte("# HZ S RI R 50\n1 2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	return dir
}

func TestRunExtract_CSV(t *testing.T) {
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	err := runExtract(context.Background(), &extractOptions{dir: sweepDir(t), format: formatCSV}, &out)
	require.NoError(t, err)

	rows, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.SummaryHeader(), rows[0])
	assert.Equal(t, "a_broken.s2p", rows[1][0])
	assert.Equal(t, string(models.StatusParseError), rows[1][1])
	assert.Equal(t, "b_clean.s2p", rows[2][0])
	assert.Equal(t, string(models.StatusOK), rows[2][1])
	assert.Equal(t, "symmetric", rows[2][6])
}

func TestRunExtract_JSON(t *testing.T) {
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	err := runExtract(context.Background(), &extractOptions{dir: sweepDir(t), format: formatJSON, plot: true}, &out)
	require.NoError(t, err)

	var batch models.Batch
	require.NoError(t, json.Unmarshal(out.Bytes(), &batch))
	require.Len(t, batch.Results, 2)
	assert.Nil(t, batch.Results[0].Plot)
	require.NotNil(t, batch.Results[1].Plot)
	assert.Len(t, batch.Results[1].Plot.Series, models.SeriesCount)

	r, ok := batch.Get("b_clean.s2p")
	require.True(t, ok)
	require.NotNil(t, r.UnloadedQ)
	assert.Less(t, testutil.RelErr(*r.UnloadedQ, 6000), 1e-3)
}

func TestRunExtract_Errors(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := []struct {
		name string
		opts extractOptions
		want string
	}{
		{"bad format", extractOptions{dir: ".", format: "xml"}, "unknown format"},
		{"missing dir", extractOptions{dir: filepath.Join(t.TempDir(), "nope"), format: formatCSV}, "failed to read directory"},
		{"empty dir", extractOptions{dir: t.TempDir(), format: formatCSV}, "no .s2p files"},
		{"prefix without bucket", extractOptions{prefix: "run1/", format: formatCSV}, "S3_BUCKET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runExtract(context.Background(), &tt.opts, &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunExtract_Cancelled(t *testing.T) {
	t.Chdir(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := runExtract(ctx, &extractOptions{dir: sweepDir(t), format: formatCSV}, &out)
	require.ErrorIs(t, err, context.Canceled)

	rows, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, string(models.StatusCancelled), rows[1][1])
}
