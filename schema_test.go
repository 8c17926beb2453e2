package scenariodb

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
)

func TestNewSchemaRejectsReservedFieldName(t *testing.T) {
	_, err := NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: ScenarioFieldName, Type: arrow.BinaryTypes.String},
	}, "id")
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || !errors.Is(storeErr.Err, ErrReservedFieldName) {
		t.Fatalf("expected ErrReservedFieldName, got %v", err)
	}
}

func TestNewSchemaRejectsDuplicateFieldName(t *testing.T) {
	_, err := NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "id", Type: arrow.BinaryTypes.String},
	}, "id")
	if err == nil {
		t.Fatal("expected error for duplicate field name")
	}
}

func TestNewSchemaRejectsUnsupportedType(t *testing.T) {
	_, err := NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "when", Type: arrow.FixedWidthTypes.Timestamp_s},
	}, "id")
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || !errors.Is(storeErr.Err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestNewSchemaRejectsNonIntegerKey(t *testing.T) {
	_, err := NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String},
	}, "id")
	if err == nil {
		t.Fatal("expected error for non-integer key field")
	}
}

func TestNewSchemaRejectsUnknownKeyField(t *testing.T) {
	_, err := NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	}, "missing")
	if err == nil {
		t.Fatal("expected error for unknown key field")
	}
}

func TestSchemaFieldLookups(t *testing.T) {
	schema := testSchema(t)
	if schema.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", schema.Len())
	}
	if idx, ok := schema.IndexOf("product"); !ok || idx != 1 {
		t.Fatalf("IndexOf(product) = %d,%v want 1,true", idx, ok)
	}
	if !schema.IsUtf8("product") || schema.IsUtf8("price") {
		t.Fatal("IsUtf8 classification wrong")
	}
	if schema.KeyName() != "id" || schema.KeyIndex() != 0 {
		t.Fatalf("key field resolved incorrectly: name=%s index=%d", schema.KeyName(), schema.KeyIndex())
	}
}
