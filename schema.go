package scenariodb

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/paulbares/scenariodb/internal/chunk"
)

// ScenarioFieldName is the reserved virtual field name denoting the
// scenario-coordinate dimension. No user schema may declare a field with
// this name.
const ScenarioFieldName = "scenario"

// BaseScenarioName is the reserved name for the main scenario, the dataset
// every overlay is a sparse delta against.
const BaseScenarioName = "base"

// Schema is an ordered sequence of fields plus the designated primary-key
// field, built directly on arrow.Schema so a Store's "oracle" record
// batches can be validated against it with no translation layer.
type Schema struct {
	arrow    *arrow.Schema
	byName   map[string]int
	keyIndex int
}

// NewSchema validates fields and the key field, then returns a Schema.
// Supported field types are Uint32, Uint64, Int64, Float64, and Utf8
// (stored dictionary-encoded). keyField must name a field of type Int64 or
// Uint64.
func NewSchema(fields []arrow.Field, keyField string) (*Schema, error) {
	byName := make(map[string]int, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, &StoreError{Kind: KindSchema, Op: "NewSchema", Err: fmt.Errorf("field %d has an empty name", i)}
		}
		if f.Name == ScenarioFieldName || f.Name == BaseScenarioName {
			return nil, &StoreError{Kind: KindSchema, Op: "NewSchema", Err: ErrReservedFieldName}
		}
		if _, dup := byName[f.Name]; dup {
			return nil, &StoreError{Kind: KindSchema, Op: "NewSchema", Err: fmt.Errorf("duplicate field name %q", f.Name)}
		}
		if _, err := kindOf(f.Type); err != nil {
			return nil, &StoreError{Kind: KindSchema, Op: "NewSchema", Err: fmt.Errorf("field %q: %w", f.Name, err)}
		}
		byName[f.Name] = i
	}

	keyIdx, ok := byName[keyField]
	if !ok {
		return nil, &StoreError{Kind: KindSchema, Op: "NewSchema", Err: fmt.Errorf("key field %q not found in schema", keyField)}
	}
	switch fields[keyIdx].Type.ID() {
	case arrow.INT64, arrow.UINT64:
	default:
		return nil, &StoreError{Kind: KindSchema, Op: "NewSchema", Err: fmt.Errorf("key field %q must be Int64 or Uint64, got %s", keyField, fields[keyIdx].Type)}
	}

	return &Schema{
		arrow:    arrow.NewSchema(fields, nil),
		byName:   byName,
		keyIndex: keyIdx,
	}, nil
}

// Arrow returns the underlying arrow.Schema, for callers (such as the rpc
// facade) that need to validate or build record batches directly.
func (s *Schema) Arrow() *arrow.Schema { return s.arrow }

// Len returns the number of fields in the schema.
func (s *Schema) Len() int { return len(s.arrow.Fields()) }

// Field returns the field at position i.
func (s *Schema) Field(i int) arrow.Field { return s.arrow.Field(i) }

// IndexOf returns the position of a field by name.
func (s *Schema) IndexOf(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}

// KeyIndex returns the position of the primary-key field.
func (s *Schema) KeyIndex() int { return s.keyIndex }

// KeyName returns the name of the primary-key field.
func (s *Schema) KeyName() string { return s.arrow.Field(s.keyIndex).Name }

// KeyKind returns the physical storage kind of the primary-key field,
// either chunk.KindInt64 or chunk.KindUint64.
func (s *Schema) KeyKind() chunk.Kind {
	k, _ := kindOf(s.arrow.Field(s.keyIndex).Type)
	return k
}

// IsUtf8 reports whether the named field is dictionary-encoded string
// data, as opposed to a primitive numeric field.
func (s *Schema) IsUtf8(name string) bool {
	i, ok := s.byName[name]
	if !ok {
		return false
	}
	return s.arrow.Field(i).Type.ID() == arrow.STRING
}

// Kind returns the physical storage kind a field is held as: for Utf8
// fields this is always chunk.KindUint32 (the dictionary code width).
func (s *Schema) Kind(name string) (chunk.Kind, bool) {
	i, ok := s.byName[name]
	if !ok {
		return 0, false
	}
	k, err := kindOf(s.arrow.Field(i).Type)
	if err != nil {
		return 0, false
	}
	return k, true
}

// kindOf maps an arrow.DataType to the physical storage kind scenariodb
// keeps columns in. Utf8 values are always stored as Uint32 dictionary
// codes.
func kindOf(t arrow.DataType) (chunk.Kind, error) {
	switch t.ID() {
	case arrow.UINT32:
		return chunk.KindUint32, nil
	case arrow.UINT64:
		return chunk.KindUint64, nil
	case arrow.INT64:
		return chunk.KindInt64, nil
	case arrow.FLOAT64:
		return chunk.KindFloat64, nil
	case arrow.STRING:
		return chunk.KindUint32, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
}
