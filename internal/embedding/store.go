// Package embedding provides the immutable store of precomputed item embeddings.
package embedding

import (
	"errors"
	"fmt"

	"github.com/hyperjump/ruiji/pkg/utils"
)

// ID identifies a catalog item (the catalog's numeric anime id).
type ID int64

var (
	// ErrLoad is matched by every error returned from Load and New.
	ErrLoad = errors.New("embedding artifact load failed")
	// ErrNotFound is returned by Get for an id absent from the store.
	ErrNotFound = errors.New("embedding not found")
)

// LoadError describes why an artifact could not be turned into a Store.
// errors.Is(err, ErrLoad) holds for every LoadError; Unwrap exposes the cause.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load embeddings: %v", e.Err)
	}
	return fmt.Sprintf("load embeddings from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is reports true for ErrLoad.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// Store maps item ids to unit-length vectors. It is built once and never
// mutated, so it is safe for concurrent use without locking.
type Store struct {
	dimensions int
	ids        []ID
	matrix     []float32 // row-major, len(ids)*dimensions
	positions  map[ID]int
	degenerate int // zero or non-finite vectors seen at build time
}

// New builds a Store from parallel ids and vectors. Vectors are copied and
// L2-normalized; the caller's slices are not modified. Enumeration order is
// the order of ids.
func New(ids []ID, vectors [][]float32) (*Store, error) {
	if len(ids) != len(vectors) {
		return nil, &LoadError{Err: fmt.Errorf("ids and vectors length mismatch: %d != %d", len(ids), len(vectors))}
	}
	if len(ids) == 0 {
		return nil, &LoadError{Err: errors.New("artifact contains no vectors")}
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, &LoadError{Err: errors.New("vectors have zero dimensions")}
	}
	s := &Store{
		dimensions: dim,
		ids:        make([]ID, len(ids)),
		matrix:     make([]float32, len(ids)*dim),
		positions:  make(map[ID]int, len(ids)),
	}
	for i, id := range ids {
		vec := vectors[i]
		if len(vec) != dim {
			return nil, &LoadError{Err: fmt.Errorf("vector dimension mismatch for id %d: got %d, expected %d", id, len(vec), dim)}
		}
		if _, dup := s.positions[id]; dup {
			return nil, &LoadError{Err: fmt.Errorf("duplicate id %d", id)}
		}
		row := s.matrix[i*dim : (i+1)*dim]
		copy(row, vec)
		utils.NormalizeL2(row)
		if !utils.IsFinite(row) || isZero(row) {
			s.degenerate++
		}
		s.ids[i] = id
		s.positions[id] = i
	}
	return s, nil
}

func isZero(x []float32) bool {
	for _, v := range x {
		if v != 0 {
			return false
		}
	}
	return true
}

// Get returns a copy of the vector for id, or ErrNotFound.
func (s *Store) Get(id ID) ([]float32, error) {
	pos, ok := s.positions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	out := make([]float32, s.dimensions)
	copy(out, s.matrix[pos*s.dimensions:(pos+1)*s.dimensions])
	return out, nil
}

// Contains reports whether id is in the store.
func (s *Store) Contains(id ID) bool {
	_, ok := s.positions[id]
	return ok
}

// Position returns the enumeration index of id.
func (s *Store) Position(id ID) (int, bool) {
	pos, ok := s.positions[id]
	return pos, ok
}

// IDAt returns the id at enumeration index pos.
func (s *Store) IDAt(pos int) ID {
	return s.ids[pos]
}

// IDs returns all ids in load order.
func (s *Store) IDs() []ID {
	return append([]ID(nil), s.ids...)
}

// Vectors returns copies of all vectors, in the same order as IDs.
func (s *Store) Vectors() [][]float32 {
	out := make([][]float32, len(s.ids))
	for i := range s.ids {
		vec := make([]float32, s.dimensions)
		copy(vec, s.matrix[i*s.dimensions:(i+1)*s.dimensions])
		out[i] = vec
	}
	return out
}

// Matrix returns the contiguous row-major corpus (row i belongs to IDAt(i)).
// The slice is shared and must not be modified.
func (s *Store) Matrix() []float32 {
	return s.matrix
}

// Len returns the number of items.
func (s *Store) Len() int {
	return len(s.ids)
}

// Dimensions returns the vector dimensionality.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Degenerate returns how many vectors were zero or contained NaN/Inf at load.
func (s *Store) Degenerate() int {
	return s.degenerate
}
