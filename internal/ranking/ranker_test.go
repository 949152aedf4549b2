package ranking

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	"github.com/hyperjump/ruiji/internal/embedding"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	idA embedding.ID = 1
	idB embedding.ID = 2
	idC embedding.ID = 3
	idD embedding.ID = 4
)

func mustStore(t testing.TB, ids []embedding.ID, vecs [][]float32) *embedding.Store {
	t.Helper()
	s, err := embedding.New(ids, vecs)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func abcdStore(t testing.TB) *embedding.Store {
	return mustStore(t,
		[]embedding.ID{idA, idB, idC, idD},
		[][]float32{{1, 0}, {0, 1}, {0.9999, 0.0002}, {-1, 0}},
	)
}

func ids(results []Result) []embedding.ID {
	out := make([]embedding.ID, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestRanker_Scenario(t *testing.T) {
	r := NewRanker(abcdStore(t))

	got, err := r.Rank(idA, 2)
	if err != nil {
		t.Fatal(err)
	}
	if want := []embedding.ID{idC, idB}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("Rank(A, 2) = %v, want %v", ids(got), want)
	}
	if got[0].Score < 0.999 {
		t.Errorf("C should be nearly identical to A, score %f", got[0].Score)
	}
	if math.Abs(got[1].Score) > 1e-6 {
		t.Errorf("B should be orthogonal to A, score %f", got[1].Score)
	}

	all, err := r.Rank(idA, 3)
	if err != nil {
		t.Fatal(err)
	}
	if want := []embedding.ID{idC, idB, idD}; !reflect.DeepEqual(ids(all), want) {
		t.Errorf("Rank(A, 3) = %v, want %v", ids(all), want)
	}
	if math.Abs(all[2].Score+1) > 1e-6 {
		t.Errorf("D should be opposite to A, score %f", all[2].Score)
	}
}

func TestRanker_KLargerThanCorpus(t *testing.T) {
	r := NewRanker(abcdStore(t))
	got, err := r.Rank(idB, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for _, res := range got {
		if res.ID == idB {
			t.Error("query item present in results")
		}
	}
}

func TestRanker_NonPositiveK(t *testing.T) {
	r := NewRanker(abcdStore(t))
	for _, k := range []int{0, -1} {
		got, err := r.Rank(idA, k)
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("k=%d: got %v, want empty non-nil list", k, got)
		}
	}
}

func TestRanker_SingleItemCorpus(t *testing.T) {
	r := NewRanker(mustStore(t, []embedding.ID{7}, [][]float32{{1, 2, 3}}))
	got, err := r.Rank(7, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestRanker_UnknownItem(t *testing.T) {
	r := NewRanker(abcdStore(t))
	got, err := r.Rank(99, 3)
	if !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("error = %v, want ErrUnknownItem", err)
	}
	if got != nil {
		t.Errorf("expected no partial result, got %v", got)
	}
}

func TestRanker_TiesKeepCorpusOrder(t *testing.T) {
	// 20, 10 and 30 share a vector; corpus order is 20, 10, 30.
	store := mustStore(t,
		[]embedding.ID{5, 20, 10, 30, 40},
		[][]float32{{1, 0}, {0.6, 0.8}, {0.6, 0.8}, {0.6, 0.8}, {0, 1}},
	)
	r := NewRanker(store)
	want := []embedding.ID{20, 10, 30, 40}
	for i := 0; i < 5; i++ {
		got, err := r.Rank(5, 4)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(ids(got), want) {
			t.Fatalf("run %d: Rank = %v, want %v", i, ids(got), want)
		}
	}

	// Truncating inside the tie keeps the earliest entries.
	got, err := r.Rank(5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if want := []embedding.ID{20, 10}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("Rank(k=2) = %v, want %v", ids(got), want)
	}
}

func TestRanker_NaNRanksLast(t *testing.T) {
	nan := float32(math.NaN())
	store := mustStore(t,
		[]embedding.ID{1, 2, 3, 4},
		[][]float32{{1, 0}, {nan, 1}, {-1, 0}, {0, 1}},
	)
	r := NewRanker(store)
	got, err := r.Rank(1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if want := []embedding.ID{4, 3, 2}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("Rank = %v, want %v", ids(got), want)
	}
	if !math.IsNaN(got[2].Score) {
		t.Errorf("last score = %f, want NaN", got[2].Score)
	}

	top, err := r.Rank(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if want := []embedding.ID{4, 3}; !reflect.DeepEqual(ids(top), want) {
		t.Errorf("NaN item should not displace finite scores: %v", ids(top))
	}
}

func randomStore(t testing.TB, n, dim int, seed int64) *embedding.Store {
	rng := rand.New(rand.NewSource(seed))
	storeIDs := make([]embedding.ID, n)
	vecs := make([][]float32, n)
	for i := range vecs {
		storeIDs[i] = embedding.ID(1000 + i)
		vec := make([]float32, dim)
		for j := range vec {
			// Coarse values make exact ties likely.
			vec[j] = float32(rng.Intn(3) - 1)
		}
		vec[0] += 0.5
		vecs[i] = vec
	}
	return mustStore(t, storeIDs, vecs)
}

func TestRanker_Properties(t *testing.T) {
	store := randomStore(t, 300, 4, 42)
	r := NewRanker(store)
	for _, q := range []embedding.ID{1000, 1150, 1299} {
		for _, k := range []int{1, 10, 299, 500} {
			t.Run(fmt.Sprintf("q=%d/k=%d", q, k), func(t *testing.T) {
				got, err := r.Rank(q, k)
				if err != nil {
					t.Fatal(err)
				}
				if want := min(k, store.Len()-1); len(got) != want {
					t.Fatalf("len = %d, want %d", len(got), want)
				}
				seen := make(map[embedding.ID]bool)
				for i, res := range got {
					if res.ID == q {
						t.Fatal("query item in output")
					}
					if seen[res.ID] {
						t.Fatalf("duplicate id %d", res.ID)
					}
					seen[res.ID] = true
					if i > 0 {
						prev := got[i-1]
						if prev.Score < res.Score {
							t.Fatalf("not descending at %d: %f < %f", i, prev.Score, res.Score)
						}
						if prev.Score == res.Score {
							pp, _ := store.Position(prev.ID)
							cp, _ := store.Position(res.ID)
							if pp > cp {
								t.Fatalf("tie at %d not in corpus order", i)
							}
						}
					}
				}
				again, _ := r.Rank(q, k)
				if !reflect.DeepEqual(got, again) {
					t.Error("repeated call returned different output")
				}
			})
		}
	}
}

// The bounded selection must agree with a full stable sort of the corpus.
func TestRanker_MatchesFullSort(t *testing.T) {
	store := randomStore(t, 200, 3, 7)
	r := NewRanker(store)
	q := store.IDAt(17)
	full, err := r.Rank(q, store.Len())
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []int{1, 5, 50, 150} {
		got, err := r.Rank(q, k)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, full[:k]) {
			t.Errorf("k=%d: prefix mismatch", k)
		}
	}
}

func TestRanker_Concurrent(t *testing.T) {
	store := randomStore(t, 500, 8, 3)
	r := NewRanker(store)
	want, err := r.Rank(1010, 10)
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Rank(1010, 10)
			if err != nil {
				errs <- err
				return
			}
			if !reflect.DeepEqual(got, want) {
				errs <- errors.New("concurrent result differs")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// brokenCorpus wraps a valid store and corrupts what the ranker reads from it.
type brokenCorpus struct {
	*embedding.Store
	query  []float32
	matrix []float32
}

func (c brokenCorpus) Get(id embedding.ID) ([]float32, error) {
	if c.query != nil {
		return c.query, nil
	}
	return c.Store.Get(id)
}

func (c brokenCorpus) Matrix() []float32 {
	if c.matrix != nil {
		return c.matrix
	}
	return c.Store.Matrix()
}

func TestRanker_RankReportsCorpusError(t *testing.T) {
	store := abcdStore(t)
	tests := []struct {
		name   string
		corpus Corpus
	}{
		{"query dimension mismatch", brokenCorpus{Store: store, query: []float32{1, 0, 0}}},
		{"truncated matrix", brokenCorpus{Store: store, matrix: store.Matrix()[:5]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.ErrorLevel)
			r := NewRanker(tt.corpus, WithLogger(zap.New(core)))

			got, err := r.Rank(idA, 2)
			if got != nil {
				t.Errorf("expected no results, got %v", got)
			}
			var cerr *CorpusError
			if !errors.As(err, &cerr) {
				t.Fatalf("error = %v, want *CorpusError", err)
			}
			if cerr.QueryID != idA || cerr.Err == nil {
				t.Errorf("CorpusError = %+v", cerr)
			}
			if errors.Is(err, ErrUnknownItem) {
				t.Error("corpus error must not match ErrUnknownItem")
			}

			entries := logs.FilterMessage("ranking failed").All()
			if len(entries) != 1 {
				t.Fatalf("logged %d ranking failures, want 1", len(entries))
			}
			if id, ok := entries[0].ContextMap()["id"]; !ok || id != int64(idA) {
				t.Errorf("logged id = %v", id)
			}
		})
	}
}

func TestCompareScores(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)
	tests := []struct {
		a, b float64
		want int
	}{
		{1, 0, -1},
		{0, 1, 1},
		{0.5, 0.5, 0},
		{-inf, nan, -1},
		{nan, -inf, 1},
		{nan, nan, 0},
		{inf, 1, -1},
	}
	for _, tt := range tests {
		if got := compareScores(tt.a, tt.b); got != tt.want {
			t.Errorf("compareScores(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRanker_Accessors(t *testing.T) {
	r := NewRanker(abcdStore(t))
	if r.Size() != 4 || r.Dimensions() != 2 {
		t.Errorf("Size=%d Dimensions=%d", r.Size(), r.Dimensions())
	}
	if !r.Contains(idC) || r.Contains(42) {
		t.Error("Contains mismatch")
	}
}
