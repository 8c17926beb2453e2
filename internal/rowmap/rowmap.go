// Package rowmap implements the sparse partial function from a base row
// index to an overlay row index used by every non-base (scenario, field)
// column, plus the identity variant used by the base scenario.
package rowmap

import "errors"

var (
	// ErrIdentityImmutable is returned by Identity.Map: the base scenario's
	// row mapping is the identity function and cannot record overlay rows.
	ErrIdentityImmutable = errors.New("rowmap: identity mapping cannot be mutated")

	// ErrConflictingMapping is returned by Sparse.Map when base row is
	// already mapped to a different overlay row: a base row has at most one
	// overlay row.
	ErrConflictingMapping = errors.New("rowmap: base row already mapped to a different overlay row")
)

// Mapping is a partial function from a base row index to an overlay row
// index.
type Mapping interface {
	// Get returns the overlay row mapped to base row, if present.
	Get(row uint32) (uint32, bool)

	// Map records that base row maps to target. Returns an error if the
	// mapping cannot record the pair (see Identity and Sparse).
	Map(row, target uint32) error

	// Len returns the number of recorded pairs.
	Len() int
}

// Identity is the row mapping used by the base scenario: every row maps to
// itself, and it does not accept new entries.
type Identity struct{}

// NewIdentity returns the identity mapping.
func NewIdentity() Identity { return Identity{} }

// Get always returns (row, true).
func (Identity) Get(row uint32) (uint32, bool) { return row, true }

// Map always fails: the identity mapping is immutable.
func (Identity) Map(uint32, uint32) error { return ErrIdentityImmutable }

// Len is meaningless for an identity mapping; it reports 0.
func (Identity) Len() int { return 0 }

// Sparse stores only the base rows that differ from the identity, keyed by
// base row index.
type Sparse struct {
	targets map[uint32]uint32
}

// NewSparse returns an empty Sparse mapping.
func NewSparse() *Sparse {
	return &Sparse{targets: make(map[uint32]uint32)}
}

// Get returns the overlay row recorded for base row, if any.
func (s *Sparse) Get(row uint32) (uint32, bool) {
	target, ok := s.targets[row]
	return target, ok
}

// Map records row -> target. A second call for the same row with a
// different target is rejected. Map does not check whether target is
// already recorded for another base row.
func (s *Sparse) Map(row, target uint32) error {
	if existing, ok := s.targets[row]; ok {
		if existing != target {
			return ErrConflictingMapping
		}
		return nil
	}
	s.targets[row] = target
	return nil
}

// Len returns the number of recorded (row, target) pairs.
func (s *Sparse) Len() int {
	return len(s.targets)
}
