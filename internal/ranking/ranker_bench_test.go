package ranking

import (
	"testing"
)

func BenchmarkRank(b *testing.B) {
	store := randomStore(b, 20000, 64, 1)
	r := NewRanker(store)
	q := store.IDAt(123)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.Rank(q, 9)
	}
}

func BenchmarkRank_Parallel(b *testing.B) {
	store := randomStore(b, 20000, 64, 1)
	r := NewRanker(store)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = r.Rank(store.IDAt(i%store.Len()), 9)
			i++
		}
	})
}
