// Package ranking ranks stored items by cosine similarity to a query item.
package ranking

import (
	"errors"
	"fmt"

	"github.com/hyperjump/ruiji/internal/embedding"
)

// ErrUnknownItem is returned when the query id is not in the embedding store.
var ErrUnknownItem = errors.New("unknown item")

// Corpus is the read-only view of the embedding store that a Ranker scores.
// *embedding.Store implements it.
type Corpus interface {
	Get(id embedding.ID) ([]float32, error)
	Position(id embedding.ID) (int, bool)
	Contains(id embedding.ID) bool
	IDAt(pos int) embedding.ID
	Matrix() []float32
	Len() int
	Dimensions() int
}

// Result is one ranked neighbour of the query item.
type Result struct {
	ID    embedding.ID `json:"id"`
	Score float64      `json:"similarity"`
}

// CorpusError reports an inconsistency found while scoring the corpus.
// It fails the request that hit it, not the process.
type CorpusError struct {
	QueryID embedding.ID
	Err     error
}

func (e *CorpusError) Error() string {
	return fmt.Sprintf("corpus error scoring item %d: %v", e.QueryID, e.Err)
}

func (e *CorpusError) Unwrap() error { return e.Err }
