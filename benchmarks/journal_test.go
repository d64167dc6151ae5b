package benchmarks

import (
	"path/filepath"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/journal"
)

// BenchmarkMemoryStore_Append measures in-memory journal appends.
func BenchmarkMemoryStore_Append(b *testing.B) {
	store := journal.NewMemoryStore()
	rec := createRecord()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec.Step = i + 1
		_ = store.Append(rec)
	}
}

// BenchmarkMemoryStore_List measures listing a 100-step run.
func BenchmarkMemoryStore_List(b *testing.B) {
	store := journal.NewMemoryStore()
	fillStore(b, store, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.List("run-1")
	}
}

// BenchmarkSQLiteStore_Append measures SQLite journal appends.
func BenchmarkSQLiteStore_Append(b *testing.B) {
	store := createSQLiteStore(b)
	rec := createRecord()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec.Step = i + 1
		_ = store.Append(rec)
	}
}

// BenchmarkSQLiteStore_List measures listing a 100-step run from SQLite.
func BenchmarkSQLiteStore_List(b *testing.B) {
	store := createSQLiteStore(b)
	fillStore(b, store, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.List("run-1")
	}
}

// BenchmarkInvoke_WithJournal measures execution with journalling enabled.
func BenchmarkInvoke_WithJournal(b *testing.B) {
	store := journal.NewMemoryStore()
	benchInvoke(b, mustCompile(buildLinearGraph(5)), nil,
		stategraph.NewOptions(10, stategraph.WithJournal(store)))
}

// BenchmarkInvoke_WithoutJournal is the baseline for BenchmarkInvoke_WithJournal.
func BenchmarkInvoke_WithoutJournal(b *testing.B) {
	benchInvoke(b, mustCompile(buildLinearGraph(5)), nil, stategraph.NewOptions(10))
}

// BenchmarkRecordMarshal measures record serialization overhead.
func BenchmarkRecordMarshal(b *testing.B) {
	rec := createRecord()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = rec.Marshal()
	}
}

// Helper functions

func createRecord() journal.Record {
	rec := journal.New("run-1", 1, []string{"collect_instagram", "collect_reddit", "collect_twitter"})
	rec.Next = []string{"analyze_instagram", "analyze_reddit", "analyze_twitter"}
	rec.Outcome = journal.OutcomeMerged
	return rec
}

func fillStore(b *testing.B, store journal.Store, steps int) {
	b.Helper()
	rec := createRecord()
	for i := 1; i <= steps; i++ {
		rec.Step = i
		if err := store.Append(rec); err != nil {
			b.Fatal(err)
		}
	}
}

func createSQLiteStore(b *testing.B) *journal.SQLiteStore {
	b.Helper()
	store, err := journal.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { store.Close() })
	return store
}
