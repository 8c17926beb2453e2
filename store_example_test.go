package scenariodb_test

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paulbares/scenariodb"
)

// Example_basic builds a store with one overlay scenario and runs a
// wildcard-product SUM query, the Go equivalent of the Rust source's
// main.rs CLI harness.
func Example_basic() {
	schema, err := scenariodb.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "product", Type: arrow.BinaryTypes.String},
		{Name: "price", Type: arrow.PrimitiveTypes.Float64},
	}, "id")
	if err != nil {
		panic(err)
	}

	store, err := scenariodb.NewStore(schema, 1024)
	if err != nil {
		panic(err)
	}

	base := buildExampleBatch(schema, []int64{0, 1}, []string{"syrup", "tofu"}, []float64{2, 8})
	defer base.Release()
	if err := store.Load(scenariodb.BaseScenarioName, base); err != nil {
		panic(err)
	}

	s1 := buildExampleBatch(schema, []int64{0, 1}, []string{"syrup", "tofu"}, []float64{3, 6})
	defer s1.Release()
	if err := store.Load("s1", s1); err != nil {
		panic(err)
	}

	engine := scenariodb.NewQueryEngine(store)
	result, err := engine.Execute(context.Background(), scenariodb.NewQuery().
		AddWildcardCoordinate(scenariodb.ScenarioFieldName).
		AddAggregatedMeasure("price", "sum"))
	if err != nil {
		panic(err)
	}

	fmt.Println(result.Size())
	if err := result.AssertAggregate(map[string]string{"scenario": "base"}, 10.0); err == nil {
		fmt.Println("base total matches")
	}
	if err := result.AssertAggregate(map[string]string{"scenario": "s1"}, 9.0); err == nil {
		fmt.Println("s1 total matches")
	}

	// Output:
	// 2
	// base total matches
	// s1 total matches
}

func buildExampleBatch(schema *scenariodb.Schema, ids []int64, products []string, prices []float64) arrow.Record {
	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema.Arrow())
	defer builder.Release()
	builder.Field(0).(*array.Int64Builder).AppendValues(ids, nil)
	builder.Field(1).(*array.StringBuilder).AppendValues(products, nil)
	builder.Field(2).(*array.Float64Builder).AppendValues(prices, nil)
	return builder.NewRecord()
}
