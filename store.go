package scenariodb

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paulbares/scenariodb/internal/chunk"
	"github.com/paulbares/scenariodb/internal/dictionary"
	"github.com/paulbares/scenariodb/internal/rowmap"
)

// loadState tracks the ingest lifecycle: Empty -> BaseLoaded -> OverlaysLoaded.
// There is no terminal "sealed" state; overlays may keep arriving.
type loadState int

const (
	stateEmpty loadState = iota
	stateBaseLoaded
	stateOverlaysLoaded
)

// Store owns the schema, per-field dictionaries, per-(scenario,field)
// columns and row mappings, and the primary-key index. It is exclusively
// mutated during Load calls and is read-only thereafter; a query must never
// mutate Store state.
type Store struct {
	mu sync.RWMutex

	schema    *Schema
	chunkSize int
	mem       memory.Allocator
	logger    *slog.Logger

	dictionaries *dictionary.Provider

	// columns[scenario][field]: present for every field under "base";
	// present only for fields with at least one differing row otherwise.
	columns map[string]map[string]*chunk.Array
	// mappings[scenario][field]: co-indexed with columns.
	mappings map[string]map[string]rowmap.Mapping

	rowCount     uint32
	primaryIndex map[uint64]uint32
	state        loadState

	// overlayFields caches, per field, whether any non-base scenario has
	// a column for it. Invalidated on every Load.
	overlayFields map[string]bool
	cacheDirty    bool
}

// StoreOption configures optional Store behaviour.
type StoreOption func(*Store)

// WithAllocator sets the Arrow memory allocator used to build columns.
// OPTIONAL: defaults to memory.DefaultAllocator.
func WithAllocator(mem memory.Allocator) StoreOption {
	return func(s *Store) { s.mem = mem }
}

// WithLogger sets the structured logger used for load diagnostics.
// OPTIONAL: defaults to slog.Default().
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// NewStore returns an empty Store for schema. chunkSize must be a power of
// two (reserved for a future chunked column layout; the current
// implementation keeps one contiguous buffer per (scenario,field) but
// still validates the contract so callers don't depend on an
// implementation detail that may change).
func NewStore(schema *Schema, chunkSize int, opts ...StoreOption) (*Store, error) {
	if chunkSize <= 0 || chunkSize&(chunkSize-1) != 0 {
		return nil, &StoreError{Kind: KindUsage, Op: "NewStore", Err: fmt.Errorf("chunk_size must be a power of two, got %d", chunkSize)}
	}

	s := &Store{
		schema:       schema,
		chunkSize:    chunkSize,
		mem:          memory.DefaultAllocator,
		dictionaries: dictionary.NewProvider(),
		columns:      make(map[string]map[string]*chunk.Array),
		mappings:     make(map[string]map[string]rowmap.Mapping),
		primaryIndex: make(map[uint64]uint32),
		cacheDirty:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Schema returns the store's schema.
func (s *Store) Schema() *Schema { return s.schema }

// RowCount returns the number of rows in the base scenario.
func (s *Store) RowCount() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rowCount
}

// Dictionary returns the dictionary for field, without creating one if
// absent (unlike the internal Provider.Get, which is reserved for Load).
func (s *Store) Dictionary(field string) (*dictionary.Dictionary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dictionaries.Lookup(field)
}

// Scenarios returns every scenario name ever loaded, in the insertion
// order of the scenario dictionary ("base" is always code 0).
func (s *Store) Scenarios() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dict, ok := s.dictionaries.Lookup(ScenarioFieldName)
	if !ok {
		return nil
	}
	names := make([]string, dict.Size())
	for i := range names {
		v, _ := dict.Read(uint32(i))
		names[i] = v
	}
	return names
}

// ScenarioReader implements selection.FieldSource: it resolves field
// against scenario, falling through to base when scenario has no overlay
// column for field at all, or cell-by-cell when it does.
func (s *Store) ScenarioReader(scenario, field string) (*chunk.Reader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scenarioReaderLocked(scenario, field)
}

func (s *Store) scenarioReaderLocked(scenario, field string) (*chunk.Reader, bool) {
	base, ok := s.columns[BaseScenarioName][field]
	if !ok {
		return nil, false
	}
	if scenario == BaseScenarioName {
		return chunk.NewBaseReader(base), true
	}
	overlay, ok := s.columns[scenario][field]
	if !ok {
		return chunk.NewBaseReader(base), true
	}
	mapping := s.mappings[scenario][field]
	return chunk.NewScenarioReader(base, overlay, mapping), true
}

// HasOverlay implements selection.FieldSource: it reports whether at least
// one non-base scenario has ever had a column for field. The result is
// cached and invalidated by Load.
func (s *Store) HasOverlay(field string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cacheDirty {
		s.rebuildOverlayFieldsLocked()
	}
	return s.overlayFields[field]
}

// InvalidateSelectionCache forces the with/without-overlay classification
// to be recomputed on the next HasOverlay call. Load already invalidates
// this cache automatically; this is exposed for callers that hold a
// selection.Provider across a Load and want the next Provider they build
// to see fresh classification explicitly, rather than relying on the
// implicit invalidation.
func (s *Store) InvalidateSelectionCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheDirty = true
}

func (s *Store) rebuildOverlayFieldsLocked() {
	fields := make(map[string]bool, s.schema.Len())
	for scenario, byField := range s.columns {
		if scenario == BaseScenarioName {
			continue
		}
		for field := range byField {
			fields[field] = true
		}
	}
	s.overlayFields = fields
	s.cacheDirty = false
}

// Load ingests batch under scenario. The first call for a Store must use
// BaseScenarioName; every later call is an overlay and is resolved against
// the primary index built by the base load.
func (s *Store) Load(scenario string, batch arrow.Record) error {
	if scenario == "" {
		return &StoreError{Kind: KindUsage, Op: "Load", Err: fmt.Errorf("scenario name must not be empty")}
	}
	if err := s.validateBatchSchema(batch); err != nil {
		return &StoreError{Kind: KindSchema, Op: "Load", Scenario: scenario, Err: err}
	}
	for i := 0; i < int(batch.NumCols()); i++ {
		if batch.Column(i).NullN() != 0 {
			return &StoreError{Kind: KindSchema, Op: "Load", Scenario: scenario, Err: fmt.Errorf("%w: field %q", ErrNullValue, s.schema.Field(i).Name)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if scenario == BaseScenarioName {
		return s.loadBaseLocked(batch)
	}
	return s.loadOverlayLocked(scenario, batch)
}

func (s *Store) validateBatchSchema(batch arrow.Record) error {
	if !s.schema.Arrow().Equal(batch.Schema()) {
		return ErrSchemaMismatch
	}
	return nil
}

func (s *Store) loadBaseLocked(batch arrow.Record) error {
	if s.state != stateEmpty {
		return &StoreError{Kind: KindState, Op: "Load", Scenario: BaseScenarioName, Err: ErrBaseAlreadyLoaded}
	}

	numRows := int(batch.NumRows())
	keyIdx := s.schema.KeyIndex()
	keyKind := s.schema.KeyKind()
	keyCol := batch.Column(keyIdx)

	primaryIndex := make(map[uint64]uint32, numRows)
	for row := 0; row < numRows; row++ {
		bits, err := readKeyBits(keyCol, row, keyKind)
		if err != nil {
			return &StoreError{Kind: KindSchema, Op: "Load", Scenario: BaseScenarioName, Err: err}
		}
		if _, dup := primaryIndex[bits]; dup {
			return &StoreError{Kind: KindKey, Op: "Load", Scenario: BaseScenarioName, Err: ErrDuplicateKey}
		}
		primaryIndex[bits] = uint32(row)
	}

	byField := make(map[string]*chunk.Array, s.schema.Len())
	mappingByField := make(map[string]rowmap.Mapping, s.schema.Len())
	for i := 0; i < s.schema.Len(); i++ {
		name := s.schema.Field(i).Name
		col, err := s.buildBaseColumn(name, batch.Column(i))
		if err != nil {
			return &StoreError{Kind: KindSchema, Op: "Load", Scenario: BaseScenarioName, Err: err}
		}
		byField[name] = col
		mappingByField[name] = rowmap.Identity{}
	}

	s.dictionaries.Get(ScenarioFieldName).Map(BaseScenarioName)

	s.columns[BaseScenarioName] = byField
	s.mappings[BaseScenarioName] = mappingByField
	s.primaryIndex = primaryIndex
	s.rowCount = uint32(numRows)
	s.state = stateBaseLoaded
	s.cacheDirty = true

	s.logger.Info("scenariodb: base scenario loaded", "rows", numRows, "fields", s.schema.Len())
	return nil
}

func (s *Store) loadOverlayLocked(scenario string, batch arrow.Record) error {
	if s.state == stateEmpty {
		return &StoreError{Kind: KindState, Op: "Load", Scenario: scenario, Err: ErrOverlayBeforeBase}
	}

	numRows := int(batch.NumRows())
	keyIdx := s.schema.KeyIndex()
	keyKind := s.schema.KeyKind()
	keyCol := batch.Column(keyIdx)
	keyName := s.schema.KeyName()

	baseRows := make([]uint32, numRows)
	for row := 0; row < numRows; row++ {
		bits, err := readKeyBits(keyCol, row, keyKind)
		if err != nil {
			return &StoreError{Kind: KindSchema, Op: "Load", Scenario: scenario, Err: err}
		}
		baseRow, ok := s.primaryIndex[bits]
		if !ok {
			return &StoreError{Kind: KindKey, Op: "Load", Scenario: scenario, Err: ErrUnknownKey}
		}
		baseRows[row] = baseRow
	}

	byField := make(map[string]*chunk.Array)
	mappingByField := make(map[string]rowmap.Mapping)
	for i := 0; i < s.schema.Len(); i++ {
		name := s.schema.Field(i).Name
		if name == keyName {
			continue
		}
		col, mapping, err := s.loadOverlayColumn(name, batch.Column(i), baseRows)
		if err != nil {
			return &StoreError{Kind: KindSchema, Op: "Load", Scenario: scenario, Err: err}
		}
		if col == nil {
			continue
		}
		byField[name] = col
		mappingByField[name] = mapping
	}

	s.dictionaries.Get(ScenarioFieldName).Map(scenario)

	if len(byField) > 0 {
		s.columns[scenario] = byField
		s.mappings[scenario] = mappingByField
	}
	s.state = stateOverlaysLoaded
	s.cacheDirty = true

	s.logger.Info("scenariodb: overlay scenario loaded", "scenario", scenario, "rows", numRows, "changed_fields", len(byField))
	return nil
}

// loadOverlayColumn appends only the rows of col that differ from the base
// value at the corresponding base row, returning (nil, nil, nil) when
// every row agrees with base.
func (s *Store) loadOverlayColumn(name string, col arrow.Array, baseRows []uint32) (*chunk.Array, rowmap.Mapping, error) {
	base := s.columns[BaseScenarioName][name]
	mapping := rowmap.NewSparse()

	if s.schema.IsUtf8(name) {
		strs, ok := col.(*array.String)
		if !ok {
			return nil, nil, fmt.Errorf("field %q: expected Utf8 column", name)
		}
		dict := s.dictionaries.Get(name)
		builder := chunk.NewBuilder(chunk.KindUint32, s.mem)
		cursor := uint32(0)
		for row := 0; row < strs.Len(); row++ {
			code := dict.Map(strs.Value(row))
			baseRow := baseRows[row]
			if code != base.ReadUint32(baseRow) {
				builder.AppendUint32(code)
				if err := mapping.Map(baseRow, cursor); err != nil {
					return nil, nil, err
				}
				cursor++
			}
		}
		if cursor == 0 {
			builder.Release()
			return nil, nil, nil
		}
		arr, err := builder.Seal()
		return arr, mapping, err
	}

	kind, _ := s.schema.Kind(name)
	builder := chunk.NewBuilder(kind, s.mem)
	cursor := uint32(0)
	switch kind {
	case chunk.KindUint32:
		typed, ok := col.(*array.Uint32)
		if !ok {
			return nil, nil, fmt.Errorf("field %q: expected Uint32 column", name)
		}
		for row := 0; row < typed.Len(); row++ {
			baseRow := baseRows[row]
			v := typed.Value(row)
			if v != base.ReadUint32(baseRow) {
				builder.AppendUint32(v)
				if err := mapping.Map(baseRow, cursor); err != nil {
					return nil, nil, err
				}
				cursor++
			}
		}
	case chunk.KindUint64:
		typed, ok := col.(*array.Uint64)
		if !ok {
			return nil, nil, fmt.Errorf("field %q: expected Uint64 column", name)
		}
		for row := 0; row < typed.Len(); row++ {
			baseRow := baseRows[row]
			v := typed.Value(row)
			if v != base.ReadUint64(baseRow) {
				builder.AppendUint64(v)
				if err := mapping.Map(baseRow, cursor); err != nil {
					return nil, nil, err
				}
				cursor++
			}
		}
	case chunk.KindInt64:
		typed, ok := col.(*array.Int64)
		if !ok {
			return nil, nil, fmt.Errorf("field %q: expected Int64 column", name)
		}
		for row := 0; row < typed.Len(); row++ {
			baseRow := baseRows[row]
			v := typed.Value(row)
			if v != base.ReadInt64(baseRow) {
				builder.AppendInt64(v)
				if err := mapping.Map(baseRow, cursor); err != nil {
					return nil, nil, err
				}
				cursor++
			}
		}
	case chunk.KindFloat64:
		typed, ok := col.(*array.Float64)
		if !ok {
			return nil, nil, fmt.Errorf("field %q: expected Float64 column", name)
		}
		for row := 0; row < typed.Len(); row++ {
			baseRow := baseRows[row]
			v := typed.Value(row)
			if v != base.ReadFloat64(baseRow) {
				builder.AppendFloat64(v)
				if err := mapping.Map(baseRow, cursor); err != nil {
					return nil, nil, err
				}
				cursor++
			}
		}
	default:
		return nil, nil, fmt.Errorf("%w: field %q", ErrUnsupportedType, name)
	}

	if cursor == 0 {
		builder.Release()
		return nil, nil, nil
	}
	arr, err := builder.Seal()
	return arr, mapping, err
}

func (s *Store) buildBaseColumn(name string, col arrow.Array) (*chunk.Array, error) {
	if s.schema.IsUtf8(name) {
		strs, ok := col.(*array.String)
		if !ok {
			return nil, fmt.Errorf("field %q: expected Utf8 column", name)
		}
		dict := s.dictionaries.Get(name)
		builder := chunk.NewBuilder(chunk.KindUint32, s.mem)
		for row := 0; row < strs.Len(); row++ {
			builder.AppendUint32(dict.Map(strs.Value(row)))
		}
		return builder.Seal()
	}

	kind, ok := s.schema.Kind(name)
	if !ok {
		return nil, fmt.Errorf("%w: field %q", ErrUnsupportedType, name)
	}
	builder := chunk.NewBuilder(kind, s.mem)
	switch kind {
	case chunk.KindUint32:
		typed, ok := col.(*array.Uint32)
		if !ok {
			return nil, fmt.Errorf("field %q: expected Uint32 column", name)
		}
		for row := 0; row < typed.Len(); row++ {
			builder.AppendUint32(typed.Value(row))
		}
	case chunk.KindUint64:
		typed, ok := col.(*array.Uint64)
		if !ok {
			return nil, fmt.Errorf("field %q: expected Uint64 column", name)
		}
		for row := 0; row < typed.Len(); row++ {
			builder.AppendUint64(typed.Value(row))
		}
	case chunk.KindInt64:
		typed, ok := col.(*array.Int64)
		if !ok {
			return nil, fmt.Errorf("field %q: expected Int64 column", name)
		}
		for row := 0; row < typed.Len(); row++ {
			builder.AppendInt64(typed.Value(row))
		}
	case chunk.KindFloat64:
		typed, ok := col.(*array.Float64)
		if !ok {
			return nil, fmt.Errorf("field %q: expected Float64 column", name)
		}
		for row := 0; row < typed.Len(); row++ {
			builder.AppendFloat64(typed.Value(row))
		}
	}
	return builder.Seal()
}

// readKeyBits reads the key column at row and returns its value reinterpreted
// as uint64 bits, so an Int64 and a Uint64 primary index can share one map
// type. The conversion is applied consistently on every lookup, so it never
// changes which rows compare equal.
func readKeyBits(col arrow.Array, row int, kind chunk.Kind) (uint64, error) {
	switch kind {
	case chunk.KindInt64:
		typed, ok := col.(*array.Int64)
		if !ok {
			return 0, fmt.Errorf("key column: expected Int64")
		}
		return uint64(typed.Value(row)), nil
	case chunk.KindUint64:
		typed, ok := col.(*array.Uint64)
		if !ok {
			return 0, fmt.Errorf("key column: expected Uint64")
		}
		return typed.Value(row), nil
	default:
		return 0, fmt.Errorf("key column: unsupported key kind %v", kind)
	}
}
