// Package scenariodb is an in-memory, column-oriented analytical store
// with scenario overlays: a base dataset plus named derivative scenarios
// that store only the cells differing from the base. A QueryEngine answers
// GROUP-BY / aggregation queries whose grouping set may include a virtual
// "scenario" dimension, computing aggregates against the base and against
// each overlay without ever materializing a scenario in full.
//
// # Quick Start
//
//	schema, _ := scenariodb.NewSchema([]arrow.Field{
//	    {Name: "id", Type: arrow.PrimitiveTypes.Int64},
//	    {Name: "product", Type: arrow.BinaryTypes.String},
//	    {Name: "category", Type: arrow.BinaryTypes.String},
//	    {Name: "price", Type: arrow.PrimitiveTypes.Float64},
//	    {Name: "quantity", Type: arrow.PrimitiveTypes.Uint32},
//	}, "id")
//
//	store, _ := scenariodb.NewStore(schema, 1024)
//	store.Load(scenariodb.BaseScenarioName, baseBatch)
//	store.Load("s1", overlayBatch)
//
//	engine := scenariodb.NewQueryEngine(store)
//	result, _ := engine.Execute(ctx, scenariodb.NewQuery().
//	    AddWildcardCoordinate("product").
//	    AddAggregatedMeasure("price", "sum"))
//
// # Architecture
//
// The store follows a leaves-first dependency chain:
//
//   - Dictionary / DictionaryProvider: a bijection between a string value
//     and a dense 32-bit code, per field.
//   - RowMapping: a sparse partial function from a base row to an overlay
//     row, with an identity variant for the base scenario itself.
//   - ChunkArray / ChunkArrayReader: typed columnar storage, resolved
//     scenario-aware (falling through to base when an overlay has no
//     cell for a row).
//   - PointDictionary: a bijection between a group-key tuple of dictionary
//     codes and a dense result-row slot.
//   - Aggregator / Factory: typed SUM accumulators sharing a destination
//     buffer across scenarios that contribute to the same measure.
//   - Selection: a RoaringBitmap-backed row-iterable provider that
//     resolves predicates per scenario.
//   - Query / QueryEngine: the builder and the driving loop tying all of
//     the above together.
//
// # Logging
//
// The package uses log/slog.Default() for internal diagnostics unless a
// logger is supplied via WithLogger / WithEngineLogger.
//
// # Concurrency
//
// Store is exclusively mutated during Load calls and is read-only
// thereafter. Multiple QueryEngine.Execute calls may run concurrently
// against a Store that is not currently loading; each call owns its own
// PointDictionary, Aggregators, and selection bitmap.
//
// # Memory Management
//
// Arrow uses manual reference counting. Callers MUST call Release() on
// chunk.Array and aggregate.Destination values they obtain directly, and
// on any arrow.Record passed into Store.Load once the load returns.
//
// # Scope
//
// Persistence, crash recovery, transactional isolation, concurrent
// writers, distributed execution, joins across stores, user-defined
// aggregations beyond SUM, non-equality predicates, and nullability are
// out of scope for the core store. An optional network facade built on
// gRPC and Arrow Flight lives in the rpc subpackage.
package scenariodb
