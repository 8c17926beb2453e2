package scenariodb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paulbares/scenariodb/internal/aggregate"
	"github.com/paulbares/scenariodb/internal/chunk"
	"github.com/paulbares/scenariodb/internal/dictionary"
	"github.com/paulbares/scenariodb/internal/pointdict"
	"github.com/paulbares/scenariodb/internal/selection"
)

// QueryEngine drives the scenario-by-scenario loop over a Store: for every
// queried scenario it resolves the row selection, maps each selected row's
// group key to a slot via a PointDictionary, and feeds slot-indexed
// Aggregators. It never mutates the Store.
type QueryEngine struct {
	store  *Store
	mem    memory.Allocator
	logger *slog.Logger
}

// EngineOption configures optional QueryEngine behaviour.
type EngineOption func(*QueryEngine)

// WithEngineAllocator sets the Arrow memory allocator used for aggregate
// destination buffers. OPTIONAL: defaults to memory.DefaultAllocator.
func WithEngineAllocator(mem memory.Allocator) EngineOption {
	return func(e *QueryEngine) { e.mem = mem }
}

// WithEngineLogger sets the structured logger used for execution
// diagnostics. OPTIONAL: defaults to slog.Default().
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *QueryEngine) { e.logger = logger }
}

// NewQueryEngine returns a QueryEngine bound to store.
func NewQueryEngine(store *Store, opts ...EngineOption) *QueryEngine {
	e := &QueryEngine{store: store, mem: memory.DefaultAllocator}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Execute runs q against the engine's store and returns the result table.
// ctx is checked between scenarios so a caller can cancel a long-running
// wildcard-scenario query; this is additive to the single-threaded
// cooperative execution model, not a concurrency mechanism.
func (e *QueryEngine) Execute(ctx context.Context, q *Query) (*Result, error) {
	scenarioIndex := -1
	for i, c := range q.coordinates {
		if c.field == ScenarioFieldName {
			scenarioIndex = i
			break
		}
	}

	accepted, err := e.acceptedValues(q, scenarioIndex)
	if err != nil {
		return nil, err
	}

	scenarios := e.queriedScenarios(q, scenarioIndex)

	provider, err := selection.NewProvider(e.store, accepted)
	if err != nil {
		return nil, &QueryError{Kind: KindUsage, Op: "Execute", Err: err}
	}

	coordDicts, err := e.coordinateDictionaries(q.coordinates)
	if err != nil {
		return nil, err
	}

	points := pointdict.New(len(q.coordinates))
	factory := aggregate.NewFactory(e.mem)

	// A scenario coordinate restricted to an explicit list of names that are
	// all unknown to the store resolves to zero scenarios: there is no row
	// to drive aggregator construction from, but the result still needs a
	// typed, empty measure column per requested measure. probeAggregators
	// builds one sealed, empty Aggregator per measure against the base
	// reader purely to carry that type and an empty Destination.
	var probeAggregators []aggregate.Aggregator
	if len(scenarios) == 0 {
		probeAggregators = make([]aggregate.Aggregator, len(q.measures))
		for mi, m := range q.measures {
			reader, ok := e.store.ScenarioReader(BaseScenarioName, m.field)
			if !ok {
				return nil, &QueryError{Kind: KindSchema, Op: "Execute", Err: fmt.Errorf("unknown measure field %q", m.field)}
			}
			agg, err := factory.Create(reader, m.fn, m.Alias())
			if err != nil {
				return nil, &QueryError{Kind: KindUsage, Op: "Execute", Err: err}
			}
			agg.Finish()
			probeAggregators[mi] = agg
		}
	}

	aggregators := make([][]aggregate.Aggregator, len(scenarios))
	for si, scenario := range scenarios {
		aggregators[si] = make([]aggregate.Aggregator, len(q.measures))
		for mi, m := range q.measures {
			reader, ok := e.store.ScenarioReader(scenario, m.field)
			if !ok {
				return nil, &QueryError{Kind: KindSchema, Op: "Execute", Err: fmt.Errorf("unknown measure field %q", m.field)}
			}
			if si == 0 {
				agg, err := factory.Create(reader, m.fn, m.Alias())
				if err != nil {
					return nil, &QueryError{Kind: KindUsage, Op: "Execute", Err: err}
				}
				aggregators[si][mi] = agg
				continue
			}
			agg, err := factory.CreateWithDestination(reader, aggregators[0][mi], m.fn)
			if err != nil {
				return nil, &QueryError{Kind: KindUsage, Op: "Execute", Err: err}
			}
			aggregators[si][mi] = agg
		}
	}

	scenarioDict, _ := e.store.Dictionary(ScenarioFieldName)

	for si, scenario := range scenarios {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		readers := make([]*chunk.Reader, len(q.coordinates))
		for i, c := range q.coordinates {
			if i == scenarioIndex {
				continue
			}
			reader, ok := e.store.ScenarioReader(scenario, c.field)
			if !ok {
				return nil, &QueryError{Kind: KindSchema, Op: "Execute", Err: fmt.Errorf("unknown coordinate field %q", c.field)}
			}
			readers[i] = reader
		}

		var scenarioCode uint32
		if scenarioIndex != -1 && scenarioDict != nil {
			scenarioCode, _ = scenarioDict.GetPosition(scenario)
		}

		rows := provider.Get(scenario)
		rows.ForEach(func(row uint32) {
			point := make([]uint32, len(q.coordinates))
			for i := range q.coordinates {
				if i == scenarioIndex {
					point[i] = scenarioCode
					continue
				}
				point[i] = readers[i].ReadUint32(row)
			}
			slot, _ := points.Map(point)
			for _, agg := range aggregators[si] {
				agg.EnsureCapacity(slot)
				agg.Aggregate(row, slot)
			}
		})
	}

	for _, row := range aggregators {
		for _, agg := range row {
			agg.Finish()
		}
	}

	fields := make([]string, len(q.coordinates))
	for i, c := range q.coordinates {
		fields[i] = c.field
	}

	measureResults := make([]resultMeasure, len(q.measures))
	for mi, m := range q.measures {
		if len(scenarios) == 0 {
			measureResults[mi] = resultMeasure{alias: m.Alias(), agg: probeAggregators[mi]}
			continue
		}
		measureResults[mi] = resultMeasure{alias: m.Alias(), agg: aggregators[0][mi]}
	}

	return &Result{
		points:       points,
		fields:       fields,
		dictionaries: coordDicts,
		measures:     measureResults,
	}, nil
}

// acceptedValues translates every list-kind, non-scenario coordinate's
// values through its field dictionary. Values absent from the dictionary
// are silently dropped, per spec step 1.
func (e *QueryEngine) acceptedValues(q *Query, scenarioIndex int) (map[string]map[uint32]struct{}, error) {
	accepted := make(map[string]map[uint32]struct{})
	for i, c := range q.coordinates {
		if i == scenarioIndex || c.kind != coordinateList {
			continue
		}
		dict, ok := e.store.Dictionary(c.field)
		if !ok {
			accepted[c.field] = map[uint32]struct{}{}
			continue
		}
		codes := make(map[uint32]struct{}, len(c.values))
		for _, v := range c.values {
			if code, ok := dict.GetPosition(v); ok {
				codes[code] = struct{}{}
			}
		}
		accepted[c.field] = codes
	}
	return accepted, nil
}

// queriedScenarios resolves step 2: wildcard means every scenario known to
// the store, a list is filtered to known names, and absence of a scenario
// coordinate means the base scenario only.
func (e *QueryEngine) queriedScenarios(q *Query, scenarioIndex int) []string {
	if scenarioIndex == -1 {
		return []string{BaseScenarioName}
	}
	c := q.coordinates[scenarioIndex]
	if c.kind == coordinateWildcard {
		return e.store.Scenarios()
	}
	dict, ok := e.store.Dictionary(ScenarioFieldName)
	if !ok {
		return nil
	}
	var out []string
	for _, name := range c.values {
		if _, ok := dict.GetPosition(name); ok {
			out = append(out, name)
		}
	}
	return out
}

// coordinateDictionaries snapshots, per coordinate field, the dictionary
// needed to translate a human-readable value back into a code for
// Result.AssertAggregate and Result.String.
func (e *QueryEngine) coordinateDictionaries(coordinates []coordinate) (map[string]*dictionary.Dictionary, error) {
	dicts := make(map[string]*dictionary.Dictionary, len(coordinates))
	for _, c := range coordinates {
		dict, ok := e.store.Dictionary(c.field)
		if !ok {
			return nil, &QueryError{Kind: KindSchema, Op: "Execute", Err: fmt.Errorf("unknown coordinate field %q", c.field)}
		}
		dicts[c.field] = dict
	}
	return dicts, nil
}
