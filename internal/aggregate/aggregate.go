// Package aggregate implements the typed accumulators driven by the query
// engine's scenario-by-scenario loop: SUM over a Uint32 source into a
// Uint64 destination, and SUM over a Float64 source into a Float64
// destination. Factory.CreateWithDestination lets later scenarios share an
// earlier scenario's destination buffer, since the scenario coordinate is
// part of the group key and a slot is specific to (scenario_code, other
// coords...).
package aggregate

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paulbares/scenariodb/internal/chunk"
)

var (
	// ErrUnsupportedFunction is returned for any aggregation function other
	// than "sum" (the only one required by the spec's Non-goals: "no
	// user-defined aggregations beyond SUM").
	ErrUnsupportedFunction = errors.New("aggregate: unsupported aggregation function")

	// ErrUnsupportedSourceKind is returned when a measure's source column
	// has a physical kind with no defined SUM destination width.
	ErrUnsupportedSourceKind = errors.New("aggregate: unsupported source kind for sum")
)

// Aggregator reads one source row and adds its value into a destination
// slot, growing the destination as needed.
type Aggregator interface {
	// Aggregate reads source[sourceRow] and adds it into destination[slot].
	Aggregate(sourceRow, slot uint32)

	// EnsureCapacity grows the destination to cover slot, zero-filling new
	// entries. Mandatory before every Aggregate call.
	EnsureCapacity(slot uint32)

	// Finish freezes the destination into an immutable typed array.
	// Idempotent across aggregators that share a Destination.
	Finish()

	// Destination returns the (possibly still mutable) destination buffer.
	Destination() *Destination

	// Alias is the result column name, "fn(field)".
	Alias() string
}

// Destination is the shared, growable accumulation buffer for one measure.
// Several Aggregators (one per queried scenario) can point at the same
// Destination so that scenario-distinct rows of the same measure land in
// one output column.
type Destination struct {
	kind   chunk.Kind // chunk.KindUint64 or chunk.KindFloat64
	mem    memory.Allocator
	u64    []uint64
	f64    []float64
	sealed bool
	au64   *array.Uint64
	af64   *array.Float64
}

func (d *Destination) ensureCapacity(slot int) {
	switch d.kind {
	case chunk.KindUint64:
		for len(d.u64) <= slot {
			d.u64 = append(d.u64, 0)
		}
	case chunk.KindFloat64:
		for len(d.f64) <= slot {
			d.f64 = append(d.f64, 0)
		}
	}
}

func (d *Destination) addUint64(slot int, v uint64) { d.u64[slot] += v } // two's-complement wraparound on overflow
func (d *Destination) addFloat64(slot int, v float64) { d.f64[slot] += v }

func (d *Destination) seal() {
	if d.sealed {
		return
	}
	d.sealed = true
	switch d.kind {
	case chunk.KindUint64:
		b := array.NewUint64Builder(d.mem)
		defer b.Release()
		b.AppendValues(d.u64, nil)
		d.au64 = b.NewUint64Array()
	case chunk.KindFloat64:
		b := array.NewFloat64Builder(d.mem)
		defer b.Release()
		b.AppendValues(d.f64, nil)
		d.af64 = b.NewFloat64Array()
	}
}

// Kind reports the destination's physical storage type.
func (d *Destination) Kind() chunk.Kind { return d.kind }

// Len returns the number of slots in the destination.
func (d *Destination) Len() int {
	switch d.kind {
	case chunk.KindUint64:
		return len(d.u64)
	default:
		return len(d.f64)
	}
}

// ReadUint64 returns the sealed value at slot. Only valid for a KindUint64
// destination after Finish.
func (d *Destination) ReadUint64(slot int) uint64 { return d.au64.Value(slot) }

// ReadFloat64 returns the sealed value at slot. Only valid for a
// KindFloat64 destination after Finish.
func (d *Destination) ReadFloat64(slot int) float64 { return d.af64.Value(slot) }

// Release frees the sealed Arrow buffer, if any.
func (d *Destination) Release() {
	if !d.sealed {
		return
	}
	switch d.kind {
	case chunk.KindUint64:
		d.au64.Release()
	case chunk.KindFloat64:
		d.af64.Release()
	}
}

// SumUint64Aggregator sums a Uint32 source column into a Uint64 destination.
type SumUint64Aggregator struct {
	source *chunk.Reader
	dest   *Destination
	alias  string
}

func (a *SumUint64Aggregator) Aggregate(sourceRow, slot uint32) {
	a.dest.addUint64(int(slot), uint64(a.source.ReadUint32(sourceRow)))
}
func (a *SumUint64Aggregator) EnsureCapacity(slot uint32) { a.dest.ensureCapacity(int(slot)) }
func (a *SumUint64Aggregator) Finish()                    { a.dest.seal() }
func (a *SumUint64Aggregator) Destination() *Destination  { return a.dest }
func (a *SumUint64Aggregator) Alias() string              { return a.alias }

// SumFloat64Aggregator sums a Float64 source column into a Float64
// destination. Sums are ordinary IEEE-754 addition in iteration order:
// deterministic for a fixed row order, not commutative-associative across
// runs with a different one.
type SumFloat64Aggregator struct {
	source *chunk.Reader
	dest   *Destination
	alias  string
}

func (a *SumFloat64Aggregator) Aggregate(sourceRow, slot uint32) {
	a.dest.addFloat64(int(slot), a.source.ReadFloat64(sourceRow))
}
func (a *SumFloat64Aggregator) EnsureCapacity(slot uint32) { a.dest.ensureCapacity(int(slot)) }
func (a *SumFloat64Aggregator) Finish()                    { a.dest.seal() }
func (a *SumFloat64Aggregator) Destination() *Destination  { return a.dest }
func (a *SumFloat64Aggregator) Alias() string              { return a.alias }

// Factory builds Aggregators bound to a source reader and an aggregation
// function.
type Factory struct {
	mem memory.Allocator
}

// NewFactory returns a Factory that allocates destination buffers with mem.
// A nil mem falls back to memory.DefaultAllocator.
func NewFactory(mem memory.Allocator) *Factory {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Factory{mem: mem}
}

// Create allocates a fresh destination buffer for the first queried
// scenario.
func (f *Factory) Create(source *chunk.Reader, fn, alias string) (Aggregator, error) {
	if fn != "sum" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFunction, fn)
	}
	switch source.Kind() {
	case chunk.KindUint32:
		dest := &Destination{kind: chunk.KindUint64, mem: f.mem}
		return &SumUint64Aggregator{source: source, dest: dest, alias: alias}, nil
	case chunk.KindFloat64:
		dest := &Destination{kind: chunk.KindFloat64, mem: f.mem}
		return &SumFloat64Aggregator{source: source, dest: dest, alias: alias}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSourceKind, source.Kind())
	}
}

// CreateWithDestination builds an Aggregator for a subsequent scenario that
// shares sibling's destination buffer, so scenario-distinct rows of the
// same measure accumulate into the same output column.
func (f *Factory) CreateWithDestination(source *chunk.Reader, sibling Aggregator, fn string) (Aggregator, error) {
	if fn != "sum" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFunction, fn)
	}
	switch s := sibling.(type) {
	case *SumUint64Aggregator:
		return &SumUint64Aggregator{source: source, dest: s.dest, alias: s.alias}, nil
	case *SumFloat64Aggregator:
		return &SumFloat64Aggregator{source: source, dest: s.dest, alias: s.alias}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized sibling aggregator", ErrUnsupportedSourceKind)
	}
}
