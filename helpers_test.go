package scenariodb

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// testSchema returns the schema used throughout spec.md's end-to-end
// scenarios: id:Int64, product:Utf8, category:Utf8, price:Float64,
// quantity:UInt32, keyed on id.
func testSchema(t *testing.T) *Schema {
	t.Helper()
	schema, err := NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "product", Type: arrow.BinaryTypes.String},
		{Name: "category", Type: arrow.BinaryTypes.String},
		{Name: "price", Type: arrow.PrimitiveTypes.Float64},
		{Name: "quantity", Type: arrow.PrimitiveTypes.Uint32},
	}, "id")
	if err != nil {
		t.Fatal(err)
	}
	return schema
}

type row struct {
	id       int64
	product  string
	category string
	price    float64
	quantity uint32
}

func buildBatch(t *testing.T, schema *Schema, rows []row) arrow.Record {
	t.Helper()
	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema.Arrow())
	defer builder.Release()

	for _, r := range rows {
		builder.Field(0).(*array.Int64Builder).Append(r.id)
		builder.Field(1).(*array.StringBuilder).Append(r.product)
		builder.Field(2).(*array.StringBuilder).Append(r.category)
		builder.Field(3).(*array.Float64Builder).Append(r.price)
		builder.Field(4).(*array.Uint32Builder).Append(r.quantity)
	}

	rec := builder.NewRecord()
	t.Cleanup(rec.Release)
	return rec
}

// baseRows is spec.md's §8 base batch.
func baseRows() []row {
	return []row{
		{id: 0, product: "syrup", category: "condiment", price: 2, quantity: 5},
		{id: 1, product: "tofu", category: "milk", price: 8, quantity: 3},
		{id: 2, product: "mozzarella", category: "milk", price: 4, quantity: 4},
	}
}

// s1Rows is spec.md's §8 overlay scenario "s1".
func s1Rows() []row {
	return []row{
		{id: 0, product: "syrup", category: "condiment", price: 3, quantity: 5},
		{id: 1, product: "tofu", category: "milk", price: 6, quantity: 3},
	}
}

// s2Rows is spec.md's §8 overlay scenario "s2".
func s2Rows() []row {
	return []row{
		{id: 0, product: "syrup", category: "condiment", price: 4, quantity: 5},
		{id: 2, product: "mozzarella", category: "milk", price: 5, quantity: 4},
	}
}

func newLoadedStore(t *testing.T) *Store {
	t.Helper()
	schema := testSchema(t)
	store, err := NewStore(schema, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Load(BaseScenarioName, buildBatch(t, schema, baseRows())); err != nil {
		t.Fatal(err)
	}
	if err := store.Load("s1", buildBatch(t, schema, s1Rows())); err != nil {
		t.Fatal(err)
	}
	if err := store.Load("s2", buildBatch(t, schema, s2Rows())); err != nil {
		t.Fatal(err)
	}
	return store
}
