package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrota/rotaplan/core/model"
)

func sampleEntries() []Entry {
	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	e1 := NewEntry("scheduler", ActionResolve)
	e1.Timestamp = base
	e1.Outcome = "valid"
	e2 := NewEntry("dr-cohen", ActionOverride)
	e2.Timestamp = base.Add(time.Hour)
	e2.TraineeID = "t1"
	e2.Month = model.MonthOf(2026, time.June)
	e2.Prior = 3
	e2.Next = 5
	e2.Justification = "department request"
	return []Entry{e1, e2}
}

func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	for _, e := range sampleEntries() {
		require.NoError(t, s.Append(ctx, e))
	}

	all, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	overrides, err := s.Query(ctx, Query{Action: ActionOverride})
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, "dr-cohen", overrides[0].Actor)
	assert.Equal(t, "department request", overrides[0].Justification)
	assert.Equal(t, model.MonthOf(2026, time.June), overrides[0].Month)

	byTrainee, err := s.Query(ctx, Query{TraineeID: "t1"})
	require.NoError(t, err)
	require.Len(t, byTrainee, 1)

	late, err := s.Query(ctx, Query{Start: time.Date(2026, time.March, 1, 10, 30, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, ActionOverride, late[0].Action)

	require.NoError(t, s.Close())
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestJSONLStore(t *testing.T) {
	s, err := NewJSONLStore(filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)
	runStoreContract(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	runStoreContract(t, s)
}

func TestNewEntryStamps(t *testing.T) {
	e := NewEntry("scheduler", ActionMove)
	assert.NotEmpty(t, e.ID)
	assert.WithinDuration(t, time.Now().UTC(), e.Timestamp, time.Minute)
	assert.Equal(t, ActionMove, e.Action)
}
