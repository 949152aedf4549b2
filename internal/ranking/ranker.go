package ranking

import (
	"container/heap"
	"fmt"
	"math"
	"slices"

	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/vector"
	"github.com/hyperjump/ruiji/pkg/utils"
	"go.uber.org/zap"
)

// Ranker scores the whole corpus against a query item and returns the top K.
// It holds no mutable state; one Ranker serves concurrent requests.
type Ranker struct {
	store  Corpus
	logger *zap.Logger
}

// RankerOption configures a Ranker.
type RankerOption func(*Ranker)

// WithLogger sets the logger used to report corpus errors.
func WithLogger(l *zap.Logger) RankerOption {
	return func(r *Ranker) { r.logger = l }
}

// NewRanker creates a ranker over store.
func NewRanker(store Corpus, opts ...RankerOption) *Ranker {
	r := &Ranker{store: store}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.LoggerOrNop(r.logger)
	return r
}

// Size returns the number of items in the corpus.
func (r *Ranker) Size() int {
	return r.store.Len()
}

// Dimensions returns the embedding dimensionality.
func (r *Ranker) Dimensions() int {
	return r.store.Dimensions()
}

// Contains reports whether id can be ranked.
func (r *Ranker) Contains(id embedding.ID) bool {
	return r.store.Contains(id)
}

// Rank returns up to k items most similar to id, by descending score. The query
// item never appears in the output. Items with bit-identical scores keep the
// store's enumeration order. NaN scores rank after every number.
func (r *Ranker) Rank(id embedding.ID, k int) ([]Result, error) {
	query, err := r.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownItem, id)
	}
	self, _ := r.store.Position(id)
	results, err := r.rank(query, k, self)
	if err != nil {
		cerr := &CorpusError{QueryID: id, Err: err}
		r.logger.Error("ranking failed", zap.Int64("id", int64(id)), zap.Error(cerr))
		return nil, cerr
	}
	return results, nil
}

func (r *Ranker) rank(query []float32, k, exclude int) ([]Result, error) {
	n, dim := r.store.Len(), r.store.Dimensions()
	matrix := r.store.Matrix()
	if len(matrix) != n*dim {
		return nil, fmt.Errorf("matrix has %d values, expected %d×%d", len(matrix), n, dim)
	}
	if k <= 0 {
		return []Result{}, nil
	}
	scores := make([]float64, n)
	if err := vector.MatVec(matrix, dim, query, scores); err != nil {
		return nil, err
	}

	top := make(candidateHeap, 0, min(k, n))
	for pos, score := range scores {
		if pos == exclude {
			continue
		}
		c := candidate{pos: pos, score: score}
		if len(top) < k {
			heap.Push(&top, c)
			continue
		}
		if c.better(top[0]) {
			top[0] = c
			heap.Fix(&top, 0)
		}
	}

	slices.SortFunc(top, func(a, b candidate) int {
		if a.better(b) {
			return -1
		}
		if b.better(a) {
			return 1
		}
		return 0
	})
	results := make([]Result, len(top))
	for i, c := range top {
		results[i] = Result{ID: r.store.IDAt(c.pos), Score: c.score}
	}
	return results, nil
}

// compareScores orders scores descending with NaN after everything else.
func compareScores(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}

type candidate struct {
	pos   int
	score float64
}

// better reports whether c ranks ahead of o: higher score first, then lower
// enumeration position.
func (c candidate) better(o candidate) bool {
	if cmp := compareScores(c.score, o.score); cmp != 0 {
		return cmp < 0
	}
	return c.pos < o.pos
}

// candidateHeap keeps the worst retained candidate at the root.
type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return h[j].better(h[i]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}
