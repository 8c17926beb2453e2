package selection

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paulbares/scenariodb/internal/chunk"
	"github.com/paulbares/scenariodb/internal/rowmap"
)

// fakeStore is a minimal FieldSource backing one field, "product", with a
// base column and optionally one scenario overlay.
type fakeStore struct {
	rowCount uint32
	base     *chunk.Array
	overlay  *chunk.Array
	mapping  rowmap.Mapping
	scenario string
}

func newFakeStore(t *testing.T, base []uint32) *fakeStore {
	t.Helper()
	b := chunk.NewBuilder(chunk.KindUint32, memory.DefaultAllocator)
	for _, v := range base {
		b.AppendUint32(v)
	}
	arr, err := b.Seal()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(arr.Release)
	return &fakeStore{rowCount: uint32(len(base)), base: arr}
}

func (s *fakeStore) withOverlay(t *testing.T, scenario string, overlay []uint32, mapping rowmap.Mapping) *fakeStore {
	t.Helper()
	b := chunk.NewBuilder(chunk.KindUint32, memory.DefaultAllocator)
	for _, v := range overlay {
		b.AppendUint32(v)
	}
	arr, err := b.Seal()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(arr.Release)
	s.overlay = arr
	s.mapping = mapping
	s.scenario = scenario
	return s
}

func (s *fakeStore) ScenarioReader(scenario, field string) (*chunk.Reader, bool) {
	if field != "product" {
		return nil, false
	}
	if scenario == s.scenario && s.overlay != nil {
		return chunk.NewScenarioReader(s.base, s.overlay, s.mapping), true
	}
	return chunk.NewBaseReader(s.base), true
}

func (s *fakeStore) HasOverlay(field string) bool {
	return field == "product" && s.overlay != nil
}

func (s *fakeStore) RowCount() uint32 { return s.rowCount }

func TestRangeProviderIgnoresScenario(t *testing.T) {
	p := RangeProvider{RowCount: 3}
	var rows []uint32
	p.Get("whatever").ForEach(func(row uint32) { rows = append(rows, row) })
	if len(rows) != 3 || rows[0] != 0 || rows[2] != 2 {
		t.Fatalf("rows = %v, want [0 1 2]", rows)
	}
}

func TestNewProviderPicksRangeWhenNoPredicates(t *testing.T) {
	store := newFakeStore(t, []uint32{1, 2, 3})
	p, err := NewProvider(store, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(RangeProvider); !ok {
		t.Fatalf("expected RangeProvider, got %T", p)
	}
}

func TestBitmapProviderFiltersByAcceptedValues(t *testing.T) {
	store := newFakeStore(t, []uint32{10, 20, 10, 30})
	accepted := map[string]map[uint32]struct{}{
		"product": {10: {}},
	}
	p, err := NewProvider(store, accepted)
	if err != nil {
		t.Fatal(err)
	}

	var rows []uint32
	p.Get("base").ForEach(func(row uint32) { rows = append(rows, row) })
	if len(rows) != 2 || rows[0] != 0 || rows[1] != 2 {
		t.Fatalf("rows = %v, want [0 2]", rows)
	}
}

func TestBitmapProviderHonoursOverlayPerScenario(t *testing.T) {
	// base: rows 0,1,2 have product codes 10,20,10
	store := newFakeStore(t, []uint32{10, 20, 10})
	mapping := rowmap.NewSparse()
	if err := mapping.Map(1, 0); err != nil {
		t.Fatal(err)
	}
	// scenario "up" overlays base row 1 with overlay row 0, whose value is 10.
	store.withOverlay(t, "up", []uint32{10}, mapping)

	accepted := map[string]map[uint32]struct{}{
		"product": {10: {}},
	}
	p, err := NewProvider(store, accepted)
	if err != nil {
		t.Fatal(err)
	}
	bp, ok := p.(*BitmapProvider)
	if !ok {
		t.Fatalf("expected *BitmapProvider, got %T", p)
	}

	var baseRows []uint32
	bp.Get("base").ForEach(func(row uint32) { baseRows = append(baseRows, row) })
	if len(baseRows) != 2 || baseRows[0] != 0 || baseRows[1] != 2 {
		t.Fatalf("base rows = %v, want [0 2]", baseRows)
	}

	var scenarioRows []uint32
	bp.Get("up").ForEach(func(row uint32) { scenarioRows = append(scenarioRows, row) })
	if len(scenarioRows) != 3 {
		t.Fatalf("scenario rows = %v, want [0 1 2]", scenarioRows)
	}
}

// TestBitmapProviderAllPredicateFieldsHaveOverlay covers the case where
// every predicate field has an overlay somewhere, leaving no field to seed
// the scenario-independent initial bitmap from.
func TestBitmapProviderAllPredicateFieldsHaveOverlay(t *testing.T) {
	store := newFakeStore(t, []uint32{10, 20, 10})
	mapping := rowmap.NewSparse()
	if err := mapping.Map(1, 0); err != nil {
		t.Fatal(err)
	}
	store.withOverlay(t, "up", []uint32{10}, mapping)

	accepted := map[string]map[uint32]struct{}{
		"product": {10: {}},
	}
	p, err := NewProvider(store, accepted)
	if err != nil {
		t.Fatal(err)
	}

	var baseRows []uint32
	p.Get("base").ForEach(func(row uint32) { baseRows = append(baseRows, row) })
	if len(baseRows) != 2 || baseRows[0] != 0 || baseRows[1] != 2 {
		t.Fatalf("base rows = %v, want [0 2]", baseRows)
	}
}

func TestNewBitmapProviderRejectsScenarioPredicate(t *testing.T) {
	store := newFakeStore(t, []uint32{1})
	accepted := map[string]map[uint32]struct{}{
		ScenarioFieldName: {0: {}},
	}
	if _, err := NewProvider(store, accepted); err != ErrScenarioPredicate {
		t.Fatalf("expected ErrScenarioPredicate, got %v", err)
	}
}
