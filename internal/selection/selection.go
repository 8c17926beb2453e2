// Package selection implements the bitmap-based row-iterable provider: it
// turns a set of per-field accepted-value predicates into the rows a query
// must visit for a given scenario, honouring overlay cells along the way.
package selection

import (
	"errors"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/paulbares/scenariodb/internal/chunk"
)

// ErrScenarioPredicate is returned when the virtual scenario field appears
// in an accepted-values map passed to NewProvider: the engine handles the
// scenario coordinate separately, so seeing it here is a programmer error.
var ErrScenarioPredicate = errors.New("selection: scenario field cannot be used as a row predicate")

// ScenarioFieldName is the reserved virtual field name the engine resolves
// outside of the predicate machinery.
const ScenarioFieldName = "scenario"

// FieldSource is the subset of Store the selection layer needs: dictionary-
// coded readers per scenario, the base row count, and whether a field has
// ever had an overlay column in any non-base scenario.
type FieldSource interface {
	// ScenarioReader returns a Uint32-valued reader for field resolved
	// against scenario, falling through to base for rows without an
	// overlay cell. Returns false if field is unknown.
	ScenarioReader(scenario, field string) (*chunk.Reader, bool)

	// HasOverlay reports whether at least one non-base scenario has a
	// column for field.
	HasOverlay(field string) bool

	// RowCount is the number of rows in the base scenario.
	RowCount() uint32
}

// RowIterable is a forward, finite, single-pass sequence of base row
// indices, either a half-open range or a RoaringBitmap.
type RowIterable struct {
	isRange    bool
	start, end uint32
	bitmap     *roaring.Bitmap
}

// NewRange returns a RowIterable over [start, end).
func NewRange(start, end uint32) RowIterable {
	return RowIterable{isRange: true, start: start, end: end}
}

// NewBitmap returns a RowIterable over bitmap's set bits, in ascending order.
func NewBitmap(bitmap *roaring.Bitmap) RowIterable {
	return RowIterable{bitmap: bitmap}
}

// ForEach visits every row in ascending order.
func (it RowIterable) ForEach(fn func(row uint32)) {
	if it.isRange {
		for r := it.start; r < it.end; r++ {
			fn(r)
		}
		return
	}
	i := it.bitmap.Iterator()
	for i.HasNext() {
		fn(i.Next())
	}
}

// Provider produces the RowIterable to visit for a given scenario.
type Provider interface {
	Get(scenario string) RowIterable
}

// RangeProvider is used when there are no active predicates: every base row
// is visited for every scenario.
type RangeProvider struct {
	RowCount uint32
}

// Get always returns the full [0, RowCount) range, regardless of scenario.
func (p RangeProvider) Get(string) RowIterable {
	return NewRange(0, p.RowCount)
}

// BaseScenarioName is the reserved name for the main scenario, duplicated
// here (rather than imported from the store package) to keep selection
// free of a dependency on its caller.
const BaseScenarioName = "base"

// BitmapProvider is used when at least one predicate is active. It
// precomputes a scenario-independent initial bitmap from predicates on
// fields with no overlay anywhere in the store, then AND-intersects
// per-scenario predicates on fields that do have an overlay, at Get time.
type BitmapProvider struct {
	fields            FieldSource
	accepted          map[string]map[uint32]struct{}
	fieldsWithOverlay []string
	initial           *roaring.Bitmap
}

// NewBitmapProvider builds the scenario-independent initial bitmap and
// returns a provider ready to answer Get per scenario.
func NewBitmapProvider(fields FieldSource, accepted map[string]map[uint32]struct{}) (*BitmapProvider, error) {
	if _, ok := accepted[ScenarioFieldName]; ok {
		return nil, ErrScenarioPredicate
	}

	var withoutOverlay, withOverlay []string
	for field := range accepted {
		if fields.HasOverlay(field) {
			withOverlay = append(withOverlay, field)
		} else {
			withoutOverlay = append(withoutOverlay, field)
		}
	}
	// Lexical sort keeps bitmap construction deterministic across runs.
	sort.Strings(withoutOverlay)
	sort.Strings(withOverlay)

	var initial *roaring.Bitmap
	if len(withoutOverlay) == 0 {
		initial = roaring.New()
		initial.AddRange(0, uint64(fields.RowCount()))
	} else {
		initial = initializeBitmap(fields, withoutOverlay[0], accepted[withoutOverlay[0]])
		for _, field := range withoutOverlay[1:] {
			reader, ok := fields.ScenarioReader(BaseScenarioName, field)
			if !ok {
				continue
			}
			applyCondition(initial, reader, accepted[field])
		}
	}

	return &BitmapProvider{
		fields:            fields,
		accepted:          accepted,
		fieldsWithOverlay: withOverlay,
		initial:           initial,
	}, nil
}

func initializeBitmap(fields FieldSource, field string, accepted map[uint32]struct{}) *roaring.Bitmap {
	bitmap := roaring.New()
	reader, ok := fields.ScenarioReader(BaseScenarioName, field)
	if !ok {
		return bitmap
	}
	for row := uint32(0); row < fields.RowCount(); row++ {
		if _, ok := accepted[reader.ReadUint32(row)]; ok {
			bitmap.Add(row)
		}
	}
	return bitmap
}

func applyCondition(bitmap *roaring.Bitmap, reader *chunk.Reader, accepted map[uint32]struct{}) {
	keep := roaring.New()
	it := bitmap.Iterator()
	for it.HasNext() {
		row := it.Next()
		if _, ok := accepted[reader.ReadUint32(row)]; ok {
			keep.Add(row)
		}
	}
	bitmap.And(keep)
}

// Get clones the initial bitmap and AND-intersects every field-with-overlay
// predicate evaluated against scenario's reader, so overlay cells are
// honoured.
func (p *BitmapProvider) Get(scenario string) RowIterable {
	bitmap := p.initial.Clone()
	for _, field := range p.fieldsWithOverlay {
		reader, ok := p.fields.ScenarioReader(scenario, field)
		if !ok {
			continue
		}
		applyCondition(bitmap, reader, p.accepted[field])
	}
	return NewBitmap(bitmap)
}

// NewProvider picks RangeProvider when accepted is empty, BitmapProvider
// otherwise.
func NewProvider(fields FieldSource, accepted map[string]map[uint32]struct{}) (Provider, error) {
	if len(accepted) == 0 {
		return RangeProvider{RowCount: fields.RowCount()}, nil
	}
	return NewBitmapProvider(fields, accepted)
}
