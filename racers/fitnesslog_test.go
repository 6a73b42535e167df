package racers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSinkAppendsLines(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fitness.log")

	sink, err := OpenFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Append(ctx, FitnessRecord{Generation: 0, Best: 123.9, Mean: 50}))
	require.NoError(t, sink.Append(ctx, FitnessRecord{Generation: 1, Best: 130}))
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	assert.Error(t, sink.Append(ctx, FitnessRecord{}))

	// reopening keeps what is already there
	sink, err = OpenFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Append(ctx, FitnessRecord{Generation: 2, Best: 1402}))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0,123\n1,130\n2,1402\n", string(data))
}

func TestFileSinkNeedsPath(t *testing.T) {
	_, err := OpenFileSink("")
	assert.Error(t, err)

	_, err = OpenFileSink(filepath.Join(t.TempDir(), "missing", "fitness.log"))
	assert.Error(t, err)
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	require.NoError(t, sink.Append(context.Background(), FitnessRecord{Generation: 0, Best: 4}))
	require.NoError(t, sink.Append(context.Background(), FitnessRecord{Generation: 1, Best: 8}))

	records := sink.Records()
	assert.Equal(t, []FitnessRecord{{Generation: 0, Best: 4}, {Generation: 1, Best: 8}}, records)

	records[0].Best = 99
	assert.Equal(t, 4.0, sink.Records()[0].Best)
	assert.NoError(t, sink.Close())
}

func TestSQLiteSinkStoresRunsSeparately(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fitness.db")

	first, err := OpenSQLiteSink(ctx, path)
	require.NoError(t, err)
	defer first.Close()
	second, err := OpenSQLiteSink(ctx, path)
	require.NoError(t, err)
	defer second.Close()
	assert.NotEqual(t, first.RunID(), second.RunID())

	want := []FitnessRecord{
		{Generation: 0, Best: 12, Mean: 4.5},
		{Generation: 1, Best: 40, Mean: 10.25},
		{Generation: 2, Best: 139, Mean: 33},
	}
	for _, rec := range want {
		require.NoError(t, first.Append(ctx, rec))
	}
	require.NoError(t, second.Append(ctx, FitnessRecord{Generation: 0, Best: 1}))

	got, err := first.History(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = second.History(ctx)
	require.NoError(t, err)
	assert.Equal(t, []FitnessRecord{{Generation: 0, Best: 1}}, got)

	// a generation is logged once per run
	assert.Error(t, first.Append(ctx, FitnessRecord{Generation: 1, Best: 41}))

	require.NoError(t, first.Close())
	assert.Error(t, first.Append(ctx, FitnessRecord{Generation: 3}))
	_, err = first.History(ctx)
	assert.Error(t, err)
}

func TestNewFitnessSink(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	sink, err := NewFitnessSink(ctx, "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemorySink{}, sink)

	sink, err = NewFitnessSink(ctx, "file", filepath.Join(dir, "fitness.log"))
	require.NoError(t, err)
	assert.IsType(t, &FileSink{}, sink)
	require.NoError(t, sink.Close())

	sink, err = NewFitnessSink(ctx, "sqlite", filepath.Join(dir, "fitness.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteSink{}, sink)
	require.NoError(t, sink.Close())

	_, err = NewFitnessSink(ctx, "kafka", "")
	assert.Error(t, err)
}
