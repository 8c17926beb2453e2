package scenariodb

import (
	"errors"
	"testing"
)

func TestLoadBaseThenOverlaysRecordsRowCountAndScenarios(t *testing.T) {
	store := newLoadedStore(t)

	if store.RowCount() != 3 {
		t.Fatalf("RowCount() = %d, want 3", store.RowCount())
	}

	scenarios := store.Scenarios()
	if len(scenarios) != 3 || scenarios[0] != BaseScenarioName || scenarios[1] != "s1" || scenarios[2] != "s2" {
		t.Fatalf("Scenarios() = %v, want [base s1 s2] in that order", scenarios)
	}
}

func TestOverlayBeforeBaseRejected(t *testing.T) {
	schema := testSchema(t)
	store, err := NewStore(schema, 1024)
	if err != nil {
		t.Fatal(err)
	}
	err = store.Load("s1", buildBatch(t, schema, s1Rows()))
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || !errors.Is(storeErr.Err, ErrOverlayBeforeBase) {
		t.Fatalf("expected ErrOverlayBeforeBase, got %v", err)
	}
}

func TestDoubleBaseLoadRejected(t *testing.T) {
	schema := testSchema(t)
	store, err := NewStore(schema, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Load(BaseScenarioName, buildBatch(t, schema, baseRows())); err != nil {
		t.Fatal(err)
	}
	err = store.Load(BaseScenarioName, buildBatch(t, schema, baseRows()))
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || !errors.Is(storeErr.Err, ErrBaseAlreadyLoaded) {
		t.Fatalf("expected ErrBaseAlreadyLoaded, got %v", err)
	}
}

func TestDuplicateKeyInBaseRejected(t *testing.T) {
	schema := testSchema(t)
	store, err := NewStore(schema, 1024)
	if err != nil {
		t.Fatal(err)
	}
	rows := []row{
		{id: 0, product: "a", category: "c", price: 1, quantity: 1},
		{id: 0, product: "b", category: "c", price: 2, quantity: 1},
	}
	err = store.Load(BaseScenarioName, buildBatch(t, schema, rows))
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || !errors.Is(storeErr.Err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestUnknownKeyInOverlayRejected(t *testing.T) {
	schema := testSchema(t)
	store, err := NewStore(schema, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Load(BaseScenarioName, buildBatch(t, schema, baseRows())); err != nil {
		t.Fatal(err)
	}
	badOverlay := []row{{id: 99, product: "ghost", category: "c", price: 1, quantity: 1}}
	err = store.Load("s1", buildBatch(t, schema, badOverlay))
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || !errors.Is(storeErr.Err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

// TestZeroDiffOverlayAddsNoColumns covers spec.md §8's boundary behaviour:
// an overlay batch identical to base in every cell installs no columns or
// mappings for that scenario.
func TestZeroDiffOverlayAddsNoColumns(t *testing.T) {
	schema := testSchema(t)
	store, err := NewStore(schema, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Load(BaseScenarioName, buildBatch(t, schema, baseRows())); err != nil {
		t.Fatal(err)
	}
	if err := store.Load("identical", buildBatch(t, schema, baseRows())); err != nil {
		t.Fatal(err)
	}

	if store.HasOverlay("product") {
		t.Fatal("expected no field to report HasOverlay after a zero-diff overlay load")
	}

	reader, ok := store.ScenarioReader("identical", "product")
	if !ok {
		t.Fatal("expected ScenarioReader to fall through to base")
	}
	if reader.ReadUint32(0) != mustBaseReader(t, store, "product").ReadUint32(0) {
		t.Fatal("scenario reader with no overlay column should read identically to base")
	}
}

func mustBaseReader(t *testing.T, store *Store, field string) interface {
	ReadUint32(row uint32) uint32
} {
	t.Helper()
	r, ok := store.ScenarioReader(BaseScenarioName, field)
	if !ok {
		t.Fatalf("no base reader for field %q", field)
	}
	return r
}

func TestSelectionCacheInvalidatedByLoad(t *testing.T) {
	schema := testSchema(t)
	store, err := NewStore(schema, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Load(BaseScenarioName, buildBatch(t, schema, baseRows())); err != nil {
		t.Fatal(err)
	}
	if store.HasOverlay("price") {
		t.Fatal("price should have no overlay before any overlay load")
	}
	if err := store.Load("s1", buildBatch(t, schema, s1Rows())); err != nil {
		t.Fatal(err)
	}
	if !store.HasOverlay("price") {
		t.Fatal("price should have an overlay after s1's load, cache must have been invalidated")
	}
}
