package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/colcluster/blobstore"
	"github.com/hupe1980/colcluster/codec"
	"github.com/hupe1980/colcluster/stream"
	"github.com/hupe1980/colcluster/taskpool"
	"github.com/hupe1980/colcluster/testutil"
)

func writeSamples(t *testing.T, dir string, n int) {
	t.Helper()
	samples := testutil.NewRNG(11).Samples(n, testutil.SampleSpec{
		Rows: 120,
		Columns: []testutil.ColumnSpec{
			{Tag: 0, Kind: testutil.KindCounter},
			{Tag: 1, Kind: testutil.KindCategory},
			{Tag: 2, Kind: testutil.KindWords},
			{Tag: 3, Kind: testutil.KindText},
		},
	})
	for i, s := range samples {
		data, err := stream.EncodeSample(codec.Default, s)
		require.NoError(t, err)
		name := filepath.Join(dir, fmt.Sprintf("%02d%s", i, stream.SampleExt))
		require.NoError(t, os.WriteFile(name, data, 0o644))
	}
}

func run(args ...string) (string, string, error) {
	var out, logs bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &logs
	err := app.Run(append([]string{"colcluster"}, args...))
	return out.String(), logs.String(), err
}

func parseReport(t *testing.T, out string) report {
	t.Helper()
	var rep report
	require.NoError(t, yaml.Unmarshal([]byte(out), &rep))
	return rep
}

func TestTrain(t *testing.T) {
	dir := t.TempDir()
	writeSamples(t, dir, 3)

	out, logs, err := run("train", "--samples", dir, "--trainer", "full-split", "--threads", "2", "--use-all-samples")
	require.NoError(t, err)

	rep := parseReport(t, out)
	assert.Equal(t, "full-split", rep.Trainer)
	assert.Len(t, rep.Config.Clusters, 4)
	assert.Equal(t, []string{"00.ccs", "01.ccs", "02.ccs"}, rep.Samples)
	assert.Positive(t, rep.SampleBytes)
	assert.Positive(t, rep.CompressedSize)
	assert.Positive(t, rep.BaselineSize)
	assert.NotEmpty(t, rep.RunID)
	assert.True(t, strings.HasPrefix(rep.Graph, "clustering#"))
	assert.GreaterOrEqual(t, len(rep.Successors), len(rep.Config.Clusters))
	for _, cl := range rep.Config.Clusters {
		assert.Less(t, cl.SuccessorIdx, len(rep.Successors))
		assert.Less(t, cl.ClusteringCodecIdx, len(rep.Codecs))
	}

	assert.Contains(t, logs, "training completed")
	assert.Contains(t, logs, rep.RunID)
}

func TestTrain_Output(t *testing.T) {
	dir := t.TempDir()
	writeSamples(t, dir, 2)
	dst := filepath.Join(t.TempDir(), "config.yaml")

	out, _, err := run("train", "--samples", dir, "--trainer", "full-split", "--output", dst)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "full-split", parseReport(t, string(data)).Trainer)

	_, _, err = run("train", "--samples", dir, "--trainer", "full-split", "--output", dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, _, err = run("train", "--samples", dir, "--trainer", "full-split", "--output", dst, "--force")
	require.NoError(t, err)
}

func TestTrain_Publish(t *testing.T) {
	dir := t.TempDir()
	writeSamples(t, dir, 2)

	out, _, err := run("train", "--samples", dir, "--trainer", "full-split", "--publish")
	require.NoError(t, err)
	rep := parseReport(t, out)

	name, data, err := blobstore.Current(t.Context(), blobstore.NewLocalStore(dir))
	require.NoError(t, err)
	assert.Equal(t, "configs/"+rep.RunID+".yaml", name)
	assert.Equal(t, out, string(data))

	// published configs do not count as samples
	out, _, err = run("train", "--samples", dir, "--trainer", "full-split")
	require.NoError(t, err)
	assert.Len(t, parseReport(t, out).Samples, 2)
}

func TestTrain_NoClustering(t *testing.T) {
	out, _, err := run("train", "--samples", t.TempDir(), "--no-clustering")
	require.NoError(t, err)

	rep := parseReport(t, out)
	assert.Equal(t, "clustering", rep.Graph)
	assert.Empty(t, rep.Trainer)
	assert.Empty(t, rep.Config.Clusters)
	assert.Contains(t, rep.Successors, "zstd")
}

func TestTrain_Params(t *testing.T) {
	dir := t.TempDir()
	writeSamples(t, dir, 2)

	paramsFile := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(paramsFile, []byte(`
trainer: bottom-up
threads: 2
max_time: 1m
max_file_size: 10MiB
seed: 3
successors: [store, zstd, field_lz, compress_generic]
type_defaults:
  - {type: serial, width: 1, successor: zstd}
  - {type: numeric, width: 8, successor: field_lz}
  - {type: string, width: 0, successor: store}
`), 0o644))

	out, _, err := run("train", "--samples", dir, "--params", paramsFile)
	require.NoError(t, err)

	rep := parseReport(t, out)
	assert.Equal(t, "bottom-up", rep.Trainer)
	for _, s := range rep.Successors {
		assert.Contains(t, []string{"store", "zstd", "field_lz", "compress_generic"}, s)
	}

	// the flag wins over the file
	out, _, err = run("train", "--samples", dir, "--params", paramsFile, "--trainer", "full-split")
	require.NoError(t, err)
	assert.Equal(t, "full-split", parseReport(t, out).Trainer)
}

func TestTrain_Errors(t *testing.T) {
	dir := t.TempDir()
	writeSamples(t, dir, 2)

	t.Run("size and count", func(t *testing.T) {
		_, _, err := run("train", "--samples", dir, "--num-samples", "1", "--max-total-size-mb", "10")
		assert.ErrorIs(t, err, errSizeAndCount)
	})

	t.Run("unknown trainer", func(t *testing.T) {
		_, _, err := run("train", "--samples", dir, "--trainer", "simulated-annealing")
		assert.Error(t, err)
	})

	t.Run("unknown successor", func(t *testing.T) {
		paramsFile := filepath.Join(t.TempDir(), "params.yaml")
		require.NoError(t, os.WriteFile(paramsFile, []byte("successors: [brotli]\n"), 0o644))
		_, _, err := run("train", "--samples", dir, "--params", paramsFile)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "brotli")
	})

	t.Run("no samples", func(t *testing.T) {
		_, _, err := run("train", "--samples", t.TempDir())
		assert.Error(t, err)
	})

	t.Run("zero threads", func(t *testing.T) {
		_, _, err := run("train", "--samples", dir, "--trainer", "full-split", "--threads", "0")
		assert.ErrorIs(t, err, taskpool.ErrZeroWorkers)
	})

	t.Run("bad scheme", func(t *testing.T) {
		_, _, err := run("train", "--samples", "ftp://host/samples")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported scheme")
	})

	t.Run("bad log level", func(t *testing.T) {
		_, _, err := run("--log-level", "chatty", "train", "--samples", dir)
		assert.Error(t, err)
	})
}

func TestTrain_UseAllSamplesOverridesCount(t *testing.T) {
	dir := t.TempDir()
	writeSamples(t, dir, 3)

	out, logs, err := run("train", "--samples", dir, "--trainer", "full-split", "--num-samples", "1", "--use-all-samples")
	require.NoError(t, err)
	assert.Len(t, parseReport(t, out).Samples, 3)
	assert.Contains(t, logs, "overrides the requested sample count")
}

func TestTrain_MetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	writeSamples(t, dir, 2)
	metricsFile := filepath.Join(t.TempDir(), "colcluster.prom")

	_, _, err := run("train", "--samples", dir, "--trainer", "greedy", "--metrics-textfile", metricsFile)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "colcluster_candidates_evaluated_total")
	assert.Contains(t, string(data), `trainer="greedy"`)
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	writeSamples(t, dir, 2)

	out, _, err := run("inspect", "--samples", dir)
	require.NoError(t, err)

	var sums []sampleSummary
	require.NoError(t, yaml.Unmarshal([]byte(out), &sums))
	require.Len(t, sums, 2)
	assert.Equal(t, "00.ccs", sums[0].Name)
	require.Len(t, sums[0].Columns, 4)

	var tags []int32
	for _, col := range sums[0].Columns {
		tags = append(tags, col.Tag)
		assert.Equal(t, 1, col.Streams)
		assert.Positive(t, col.Elts)
	}
	assert.ElementsMatch(t, []int32{0, 1, 2, 3}, tags)

	out, _, err = run("inspect", "--samples", dir, "01.ccs")
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal([]byte(out), &sums))
	require.Len(t, sums, 1)
	assert.Equal(t, "01.ccs", sums[0].Name)
}

func TestInspect_Empty(t *testing.T) {
	_, _, err := run("inspect", "--samples", t.TempDir())
	assert.Error(t, err)
}
