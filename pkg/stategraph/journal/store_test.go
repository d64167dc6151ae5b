package journal_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) journal.Store

func record(runID string, step int, frontier ...string) journal.Record {
	rec := journal.New(runID, step, frontier)
	rec.Outcome = journal.OutcomeMerged
	rec.Duration = 3 * time.Millisecond
	return rec
}

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	t.Run(name+"/Append_and_List", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		first := record("run-1", 1, "intake")
		first.Next = []string{"auto", "info"}
		second := record("run-1", 2, "auto", "info")
		second.Outcome = journal.OutcomeTerminated

		// Out of order on purpose; List sorts by step.
		require.NoError(t, store.Append(second))
		require.NoError(t, store.Append(first))

		got, err := store.List("run-1")
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, 1, got[0].Step)
		assert.Equal(t, []string{"intake"}, got[0].Frontier)
		assert.Equal(t, []string{"auto", "info"}, got[0].Next)
		assert.Equal(t, journal.OutcomeMerged, got[0].Outcome)
		assert.Equal(t, 3*time.Millisecond, got[0].Duration)
		assert.Equal(t, journal.Version, got[0].Version)
		assert.WithinDuration(t, first.Timestamp, got[0].Timestamp, time.Millisecond)

		assert.Equal(t, 2, got[1].Step)
		assert.Nil(t, got[1].Next)
		assert.Equal(t, journal.OutcomeTerminated, got[1].Outcome)
	})

	t.Run(name+"/List_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		got, err := store.List("missing")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run(name+"/Duplicate_Step", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(record("run-1", 1, "a")))
		err := store.Append(record("run-1", 1, "b"))
		assert.ErrorIs(t, err, journal.ErrDuplicateStep)

		// Same step in another run is fine.
		require.NoError(t, store.Append(record("run-2", 1, "a")))
	})

	t.Run(name+"/Invalid_Record", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		assert.ErrorIs(t, store.Append(record("", 1, "a")), journal.ErrInvalidRecord)
		assert.ErrorIs(t, store.Append(record("run", 0, "a")), journal.ErrInvalidRecord)
	})

	t.Run(name+"/Error_Text", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		rec := record("run-1", 1, "writer")
		rec.Outcome = journal.OutcomeFailed
		rec.Error = "node writer: execute: boom"
		require.NoError(t, store.Append(rec))

		got, err := store.List("run-1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, journal.OutcomeFailed, got[0].Outcome)
		assert.Equal(t, "node writer: execute: boom", got[0].Error)
	})

	t.Run(name+"/Runs_and_DeleteRun", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(record("run-b", 1, "a")))
		require.NoError(t, store.Append(record("run-a", 1, "a")))
		require.NoError(t, store.Append(record("run-a", 2, "b")))

		runs, err := store.Runs()
		require.NoError(t, err)
		assert.Equal(t, []string{"run-a", "run-b"}, runs)

		require.NoError(t, store.DeleteRun("run-a"))
		require.NoError(t, store.DeleteRun("never-existed"))

		got, err := store.List("run-a")
		require.NoError(t, err)
		assert.Empty(t, got)

		runs, err = store.Runs()
		require.NoError(t, err)
		assert.Equal(t, []string{"run-b"}, runs)
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		assert.ErrorIs(t, store.Append(record("run-1", 1, "a")), journal.ErrStoreClosed)
		_, err := store.List("run-1")
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
		_, err = store.Runs()
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
		assert.ErrorIs(t, store.DeleteRun("run-1"), journal.ErrStoreClosed)
	})

	t.Run(name+"/Concurrent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		const runs, steps = 8, 10
		var wg sync.WaitGroup
		errs := make(chan error, runs*steps)
		for r := 0; r < runs; r++ {
			wg.Add(1)
			go func(r int) {
				defer wg.Done()
				for s := 1; s <= steps; s++ {
					if err := store.Append(record(fmt.Sprintf("run-%d", r), s, "n")); err != nil {
						errs <- err
					}
				}
			}(r)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}

		for r := 0; r < runs; r++ {
			got, err := store.List(fmt.Sprintf("run-%d", r))
			require.NoError(t, err)
			assert.Len(t, got, steps)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	storeContractTest(t, "MemoryStore", func(t *testing.T) journal.Store {
		return journal.NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	storeContractTest(t, "SQLiteStore", func(t *testing.T) journal.Store {
		store, err := journal.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	})
}

func TestMemoryStore_Len(t *testing.T) {
	store := journal.NewMemoryStore()
	require.NoError(t, store.Append(record("a", 1, "x")))
	require.NoError(t, store.Append(record("a", 2, "x")))
	require.NoError(t, store.Append(record("b", 1, "x")))
	assert.Equal(t, 3, store.Len())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := journal.NewMemoryStore()
	rec := record("a", 1, "x")
	require.NoError(t, store.Append(rec))
	rec.Frontier[0] = "mutated"

	got, err := store.List("a")
	require.NoError(t, err)
	got[0].Frontier[0] = "also mutated"

	again, err := store.List("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, again[0].Frontier)
}

func TestSQLiteStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	store1, err := journal.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store1.Append(record("run-1", 1, "a")))
	require.NoError(t, store1.Close())

	store2, err := journal.NewSQLiteStore(path)
	require.NoError(t, err)
	defer store2.Close()

	got, err := store2.List("run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"a"}, got[0].Frontier)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := journal.NewSQLiteStore("/nonexistent/path/journal.db")
	assert.Error(t, err)
}

func TestRecord_MarshalUnmarshal(t *testing.T) {
	rec := record("run-1", 4, "b", "a")
	rec.Next = []string{"join"}
	rec.Error = "x"

	data, err := rec.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id":"run-1"`)

	got, err := journal.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, rec.Frontier, got.Frontier)
	assert.Equal(t, rec.Next, got.Next)
	assert.True(t, rec.Timestamp.Equal(got.Timestamp))

	_, err = journal.Unmarshal([]byte("{"))
	assert.Error(t, err)
}

func TestRecord_New_CopiesFrontier(t *testing.T) {
	frontier := []string{"a"}
	rec := journal.New("r", 1, frontier)
	frontier[0] = "b"
	assert.Equal(t, []string{"a"}, rec.Frontier)
	assert.False(t, errors.Is(rec.Validate(), journal.ErrInvalidRecord))
}
