package scenariodb

import (
	"errors"
	"fmt"
)

// ErrKind classifies a StoreError or QueryError so callers can branch on the
// category of failure without depending on the exact wrapped sentinel.
type ErrKind int

const (
	// KindSchema covers an unsupported column type or an overlay batch
	// whose schema does not match the store's schema.
	KindSchema ErrKind = iota
	// KindKey covers a duplicate primary key during a base load, or an
	// unknown primary key during an overlay load.
	KindKey
	// KindState covers an overlay loaded before a base load, a second
	// base load, or any other out-of-order lifecycle call.
	KindState
	// KindUsage covers programmer errors: scenario used as a predicate
	// field, a point whose arity doesn't match the PointDictionary.
	KindUsage
	// KindLookup covers a query-time lookup of a coordinate tuple that
	// was never produced by Execute.
	KindLookup
)

func (k ErrKind) String() string {
	switch k {
	case KindSchema:
		return "schema"
	case KindKey:
		return "key"
	case KindState:
		return "state"
	case KindUsage:
		return "usage"
	case KindLookup:
		return "lookup"
	default:
		return "unknown"
	}
}

// Standard errors returned by the scenariodb package.
var (
	// ErrUnsupportedType indicates a schema field declares a data type
	// the store does not know how to store.
	ErrUnsupportedType = errors.New("scenariodb: unsupported column type")

	// ErrSchemaMismatch indicates a batch's schema does not match the
	// store's schema (field count, names, order, or types).
	ErrSchemaMismatch = errors.New("scenariodb: batch schema does not match store schema")

	// ErrNullValue indicates a batch column contains a null, which the
	// store never accepts (see spec Non-goals: no nullability semantics).
	ErrNullValue = errors.New("scenariodb: null values are not supported")

	// ErrDuplicateKey indicates the base batch has two rows sharing a
	// primary key value.
	ErrDuplicateKey = errors.New("scenariodb: duplicate primary key in base load")

	// ErrUnknownKey indicates an overlay batch references a primary key
	// absent from the base scenario's primary index.
	ErrUnknownKey = errors.New("scenariodb: unknown primary key in overlay load")

	// ErrOverlayBeforeBase indicates Load was called with a non-base
	// scenario name before the base scenario was ever loaded.
	ErrOverlayBeforeBase = errors.New("scenariodb: overlay loaded before base")

	// ErrBaseAlreadyLoaded indicates Load was called a second time with
	// the base scenario name.
	ErrBaseAlreadyLoaded = errors.New("scenariodb: base scenario already loaded")

	// ErrReservedFieldName indicates a schema reuses the reserved
	// "scenario" field name or the reserved "base" scenario name where a
	// user-chosen name is required.
	ErrReservedFieldName = errors.New("scenariodb: \"scenario\" and \"base\" are reserved names")

	// ErrCoordinateNotFound indicates Result.AssertAggregate was given a
	// coordinate tuple the query never produced.
	ErrCoordinateNotFound = errors.New("scenariodb: coordinate tuple not found in result")

	// ErrAggregateMismatch indicates Result.AssertAggregate's expected
	// value did not equal the stored aggregate.
	ErrAggregateMismatch = errors.New("scenariodb: aggregate value mismatch")
)

// StoreError wraps a load-time failure with its kind, the offending
// operation, and the scenario being loaded.
type StoreError struct {
	Kind     ErrKind
	Op       string
	Scenario string
	Err      error
}

func (e *StoreError) Error() string {
	if e.Scenario != "" {
		return fmt.Sprintf("scenariodb: %s(%s): %s: %v", e.Op, e.Scenario, e.Kind, e.Err)
	}
	return fmt.Sprintf("scenariodb: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// QueryError wraps a query-time failure with its kind and the offending
// operation.
type QueryError struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("scenariodb: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
