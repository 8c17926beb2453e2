// Package pointdict implements the bijection between a group-key tuple
// (a fixed-arity vector of dictionary codes) and a dense slot number, used
// by the query engine as the group-key -> result-row mapping.
package pointdict

import (
	"encoding/binary"
	"errors"
)

// ErrArityMismatch is returned when a point's length does not match the
// arity fixed at construction.
var ErrArityMismatch = errors.New("pointdict: point arity mismatch")

// Dictionary is an insertion-ordered bijection between a fixed-length
// []uint32 point and a dense uint32 slot.
type Dictionary struct {
	arity  int
	slots  map[string]uint32
	points [][]uint32
}

// New returns an empty Dictionary whose points all have the given arity.
func New(arity int) *Dictionary {
	return &Dictionary{
		arity: arity,
		slots: make(map[string]uint32),
	}
}

// Arity returns the fixed point length this dictionary accepts.
func (d *Dictionary) Arity() int { return d.arity }

func (d *Dictionary) key(point []uint32) (string, error) {
	if len(point) != d.arity {
		return "", ErrArityMismatch
	}
	buf := make([]byte, 4*len(point))
	for i, c := range point {
		binary.LittleEndian.PutUint32(buf[i*4:], c)
	}
	return string(buf), nil
}

// Map inserts point if absent and returns its slot. Repeated calls with an
// equal point always return the same slot.
func (d *Dictionary) Map(point []uint32) (uint32, error) {
	key, err := d.key(point)
	if err != nil {
		return 0, err
	}
	if slot, ok := d.slots[key]; ok {
		return slot, nil
	}
	slot := uint32(len(d.points))
	stored := make([]uint32, len(point))
	copy(stored, point)
	d.slots[key] = slot
	d.points = append(d.points, stored)
	return slot, nil
}

// GetPosition returns the slot assigned to point, if any.
func (d *Dictionary) GetPosition(point []uint32) (uint32, bool) {
	key, err := d.key(point)
	if err != nil {
		return 0, false
	}
	slot, ok := d.slots[key]
	return slot, ok
}

// Read returns the point assigned to slot, if any. The returned slice must
// not be mutated by the caller.
func (d *Dictionary) Read(slot uint32) ([]uint32, bool) {
	if int(slot) >= len(d.points) {
		return nil, false
	}
	return d.points[slot], true
}

// Size returns the number of distinct points mapped so far.
func (d *Dictionary) Size() int {
	return len(d.points)
}
