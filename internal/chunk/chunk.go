// Package chunk implements the typed, build-then-seal columnar buffer used
// for every (scenario, field) pair, and the scenario-aware reader that
// resolves a logical (scenario, field, row) read to either the overlay cell
// or the fall-through base cell.
//
// Utf8 fields are stored dictionary-encoded as Uint32 codes; numeric fields
// keep their declared primitive type. This package only ever sees the
// physical representation (one of four kinds below) — the Utf8-vs-UInt32
// distinction is resolved by the caller before values reach here.
package chunk

import (
	"errors"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paulbares/scenariodb/internal/rowmap"
)

// ErrAlreadySealed is returned by Builder.Seal when called a second time on
// the same builder. A ChunkArray is immutable after its buffer is installed.
var ErrAlreadySealed = errors.New("chunk: builder already sealed")

// Kind identifies the physical storage type of a ChunkArray.
type Kind uint8

const (
	KindUint32 Kind = iota
	KindUint64
	KindInt64
	KindFloat64
)

// Builder accumulates values for one (scenario, field) column before it is
// sealed into an immutable Array. Deferred initialisation: the underlying
// Arrow builder is only materialised into an array on Seal.
type Builder struct {
	kind   Kind
	mem    memory.Allocator
	u32    *array.Uint32Builder
	u64    *array.Uint64Builder
	i64    *array.Int64Builder
	f64    *array.Float64Builder
	sealed bool
}

// NewBuilder returns a Builder for the given physical kind.
func NewBuilder(kind Kind, mem memory.Allocator) *Builder {
	b := &Builder{kind: kind, mem: mem}
	switch kind {
	case KindUint32:
		b.u32 = array.NewUint32Builder(mem)
	case KindUint64:
		b.u64 = array.NewUint64Builder(mem)
	case KindInt64:
		b.i64 = array.NewInt64Builder(mem)
	case KindFloat64:
		b.f64 = array.NewFloat64Builder(mem)
	}
	return b
}

func (b *Builder) AppendUint32(v uint32) { b.u32.Append(v) }
func (b *Builder) AppendUint64(v uint64) { b.u64.Append(v) }
func (b *Builder) AppendInt64(v int64)   { b.i64.Append(v) }
func (b *Builder) AppendFloat64(v float64) { b.f64.Append(v) }

// Len returns the number of values appended so far.
func (b *Builder) Len() int {
	switch b.kind {
	case KindUint32:
		return b.u32.Len()
	case KindUint64:
		return b.u64.Len()
	case KindInt64:
		return b.i64.Len()
	default:
		return b.f64.Len()
	}
}

// Seal installs the accumulated buffer and returns the immutable Array.
// Calling Seal twice on the same Builder is an error.
func (b *Builder) Seal() (*Array, error) {
	if b.sealed {
		return nil, ErrAlreadySealed
	}
	b.sealed = true

	a := &Array{kind: b.kind}
	switch b.kind {
	case KindUint32:
		a.u32 = b.u32.NewUint32Array()
	case KindUint64:
		a.u64 = b.u64.NewUint64Array()
	case KindInt64:
		a.i64 = b.i64.NewInt64Array()
	case KindFloat64:
		a.f64 = b.f64.NewFloat64Array()
	}
	return a, nil
}

// Release discards the builder without sealing it. Used when an overlay
// builder turns out empty (zero differing rows): per the store-load spec,
// no column or mapping is installed in that case.
func (b *Builder) Release() {
	switch b.kind {
	case KindUint32:
		b.u32.Release()
	case KindUint64:
		b.u64.Release()
	case KindInt64:
		b.i64.Release()
	case KindFloat64:
		b.f64.Release()
	}
}

// Array is an immutable, sealed typed column.
type Array struct {
	kind Kind
	u32  *array.Uint32
	u64  *array.Uint64
	i64  *array.Int64
	f64  *array.Float64
}

// Kind reports the physical storage type.
func (a *Array) Kind() Kind { return a.kind }

// Len returns the number of rows in the buffer.
func (a *Array) Len() int {
	switch a.kind {
	case KindUint32:
		return a.u32.Len()
	case KindUint64:
		return a.u64.Len()
	case KindInt64:
		return a.i64.Len()
	default:
		return a.f64.Len()
	}
}

// ReadUint32 returns the value at index, unchecked.
func (a *Array) ReadUint32(index uint32) uint32 { return a.u32.Value(int(index)) }

// ReadUint64 returns the value at index, unchecked.
func (a *Array) ReadUint64(index uint32) uint64 { return a.u64.Value(int(index)) }

// ReadInt64 returns the value at index, unchecked.
func (a *Array) ReadInt64(index uint32) int64 { return a.i64.Value(int(index)) }

// ReadFloat64 returns the value at index, unchecked.
func (a *Array) ReadFloat64(index uint32) float64 { return a.f64.Value(int(index)) }

// Release frees the underlying Arrow buffer. Safe to call once per Array.
func (a *Array) Release() {
	switch a.kind {
	case KindUint32:
		a.u32.Release()
	case KindUint64:
		a.u64.Release()
	case KindInt64:
		a.i64.Release()
	case KindFloat64:
		a.f64.Release()
	}
}

// Reader resolves a logical (scenario, field, row) read to either the
// overlay cell or the fall-through base cell. This is the single point at
// which overlay semantics are enforced for queries.
type Reader struct {
	base    *Array
	overlay *Array         // nil for the base reader variant
	mapping rowmap.Mapping // nil for the base reader variant
}

// NewBaseReader wraps a base column: every read is answered directly by base.
func NewBaseReader(base *Array) *Reader {
	return &Reader{base: base}
}

// NewScenarioReader wraps a base column, an overlay column, and the
// (scenario, field) row mapping between them. Reads fall through to base
// whenever the mapping has no entry for the requested row.
func NewScenarioReader(base, overlay *Array, mapping rowmap.Mapping) *Reader {
	return &Reader{base: base, overlay: overlay, mapping: mapping}
}

// Kind reports the physical storage type, taken from the base column (the
// overlay, when present, always shares the same kind).
func (r *Reader) Kind() Kind { return r.base.Kind() }

func (r *Reader) overlayRow(row uint32) (uint32, bool) {
	if r.mapping == nil {
		return 0, false
	}
	return r.mapping.Get(row)
}

// ReadUint32 resolves row through the overlay, falling through to base.
func (r *Reader) ReadUint32(row uint32) uint32 {
	if overlayRow, ok := r.overlayRow(row); ok {
		return r.overlay.ReadUint32(overlayRow)
	}
	return r.base.ReadUint32(row)
}

// ReadUint64 resolves row through the overlay, falling through to base.
func (r *Reader) ReadUint64(row uint32) uint64 {
	if overlayRow, ok := r.overlayRow(row); ok {
		return r.overlay.ReadUint64(overlayRow)
	}
	return r.base.ReadUint64(row)
}

// ReadInt64 resolves row through the overlay, falling through to base.
func (r *Reader) ReadInt64(row uint32) int64 {
	if overlayRow, ok := r.overlayRow(row); ok {
		return r.overlay.ReadInt64(overlayRow)
	}
	return r.base.ReadInt64(row)
}

// ReadFloat64 resolves row through the overlay, falling through to base.
func (r *Reader) ReadFloat64(row uint32) float64 {
	if overlayRow, ok := r.overlayRow(row); ok {
		return r.overlay.ReadFloat64(overlayRow)
	}
	return r.base.ReadFloat64(row)
}
