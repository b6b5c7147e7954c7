package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pasket/internal/accessor"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, started time.Time) *Run {
	return &Run{
		ID:       id,
		Started:  started,
		Finished: started.Add(2 * time.Second),
		Aux:      "AuxAccessor1",
		Mode:     accessor.MaterializeIfInvoked.String(),
		Status:   StatusOK,
		Inputs:   []string{"Widget.java", "Main.java"},
		Invoked:  4,
		Roles: accessor.RoleTable{
			{Kind: "widget", Category: accessor.Getter}:     3,
			{Kind: "widget", Category: accessor.Slot}:       0,
			{Category: accessor.Adaptee}:                    10,
			{Kind: "widget", Category: accessor.Setter}:     -1,
			{Kind: "k", Category: accessor.Getter, Slot: 1}: 7,
		},
	}
}

func TestRecordAndGet(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := sampleRun("run-1", started)
	require.NoError(t, s.Record(ctx, run))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("run mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordReplaces(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	run := sampleRun("run-1", time.Now().UTC())
	require.NoError(t, s.Record(ctx, run))

	run.Status = StatusFailed
	run.Error = "solver timed out"
	run.Roles = accessor.RoleTable{{Kind: "k", Category: accessor.Setter}: 2}
	require.NoError(t, s.Record(ctx, run))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "solver timed out", got.Error)
	assert.Equal(t, run.Roles, got.Roles)

	runs, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunsNewestFirst(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Record(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := s.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Nil(t, runs[0].Roles)
	assert.Equal(t, []string{"Widget.java", "Main.java"}, runs[0].Inputs)

	all, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetMissing(t *testing.T) {
	s := open(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordRequiresID(t *testing.T) {
	s := open(t)
	assert.Error(t, s.Record(context.Background(), &Run{}))
}

func TestOpenFilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), sampleRun("keep", time.Now().UTC())))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), "keep")
	require.NoError(t, err)
	assert.Len(t, got.Roles, 5)
}
