package scenariodb

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paulbares/scenariodb/internal/aggregate"
	"github.com/paulbares/scenariodb/internal/chunk"
	"github.com/paulbares/scenariodb/internal/dictionary"
	"github.com/paulbares/scenariodb/internal/pointdict"
)

type resultMeasure struct {
	alias string
	agg   aggregate.Aggregator
}

// Result is the tabular output of QueryEngine.Execute: a point dictionary
// (one row per distinct group key), the coordinate field names in column
// order, the dictionaries needed to translate a coordinate value to a
// dictionary code, and the measures' aggregated destinations.
type Result struct {
	points       *pointdict.Dictionary
	fields       []string
	dictionaries map[string]*dictionary.Dictionary
	measures     []resultMeasure
}

// Size returns the number of distinct group-key rows in the result.
func (r *Result) Size() int { return r.points.Size() }

// AssertAggregate translates coords through each coordinate field's
// dictionary, looks up the resulting point in the result's PointDictionary,
// and compares expected against every measure's destination at that slot
// with exact equality. Returns ErrCoordinateNotFound if coords was never
// produced by the query, or ErrAggregateMismatch if a value differs.
func (r *Result) AssertAggregate(coords map[string]string, expected any) error {
	point := make([]uint32, len(r.fields))
	for i, field := range r.fields {
		value, ok := coords[field]
		if !ok {
			return &QueryError{Kind: KindUsage, Op: "AssertAggregate", Err: fmt.Errorf("missing coordinate value for field %q", field)}
		}
		dict, ok := r.dictionaries[field]
		if !ok {
			return &QueryError{Kind: KindLookup, Op: "AssertAggregate", Err: ErrCoordinateNotFound}
		}
		code, ok := dict.GetPosition(value)
		if !ok {
			return &QueryError{Kind: KindLookup, Op: "AssertAggregate", Err: fmt.Errorf("%w: %s=%q", ErrCoordinateNotFound, field, value)}
		}
		point[i] = code
	}

	slot, ok := r.points.GetPosition(point)
	if !ok {
		return &QueryError{Kind: KindLookup, Op: "AssertAggregate", Err: ErrCoordinateNotFound}
	}

	for _, m := range r.measures {
		equal, err := compareAggregateValue(m.agg.Destination(), int(slot), expected)
		if err != nil {
			return &QueryError{Kind: KindUsage, Op: "AssertAggregate", Err: err}
		}
		if !equal {
			return &QueryError{Kind: KindLookup, Op: "AssertAggregate", Err: fmt.Errorf("%w: %s at slot %d", ErrAggregateMismatch, m.alias, slot)}
		}
	}
	return nil
}

func compareAggregateValue(dest *aggregate.Destination, slot int, expected any) (bool, error) {
	switch dest.Kind() {
	case chunk.KindUint64:
		want, err := toUint64(expected)
		if err != nil {
			return false, err
		}
		return dest.ReadUint64(slot) == want, nil
	case chunk.KindFloat64:
		want, err := toFloat64(expected)
		if err != nil {
			return false, err
		}
		return dest.ReadFloat64(slot) == want, nil
	default:
		return false, fmt.Errorf("unsupported destination kind %v", dest.Kind())
	}
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case int:
		return uint64(n), nil
	case int64:
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("expected value %v (%T) is not an integer", v, v)
	}
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected value %v (%T) is not a number", v, v)
	}
}

// String renders the result as a point-columns-then-aggregate-columns
// table, one row per slot, in the layout of the Rust source's
// comfy-table-based Display implementation.
func (r *Result) String() string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 2, 2, ' ', 0)

	header := make([]string, 0, len(r.fields)+len(r.measures))
	header = append(header, r.fields...)
	for _, m := range r.measures {
		header = append(header, m.alias)
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for slot := uint32(0); slot < uint32(r.points.Size()); slot++ {
		point, _ := r.points.Read(slot)
		row := make([]string, 0, len(header))
		for i, field := range r.fields {
			value, _ := r.dictionaries[field].Read(point[i])
			row = append(row, value)
		}
		for _, m := range r.measures {
			row = append(row, formatAggregateValue(m.agg.Destination(), int(slot)))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	w.Flush()
	return buf.String()
}

// ToRecord renders the result as an Arrow record: one Utf8 column per
// coordinate field, dictionary-translated back to its string value,
// followed by one column per measure (Uint64 or Float64, matching its
// destination kind). This is what the rpc query facade streams back to
// Flight clients from DoGet.
func (r *Result) ToRecord(mem memory.Allocator) (arrow.Record, error) {
	fields := make([]arrow.Field, 0, len(r.fields)+len(r.measures))
	builders := make([]array.Builder, 0, cap(fields))
	for _, field := range r.fields {
		fields = append(fields, arrow.Field{Name: field, Type: arrow.BinaryTypes.String})
		builders = append(builders, array.NewStringBuilder(mem))
	}
	for _, m := range r.measures {
		switch m.agg.Destination().Kind() {
		case chunk.KindUint64:
			fields = append(fields, arrow.Field{Name: m.alias, Type: arrow.PrimitiveTypes.Uint64})
			builders = append(builders, array.NewUint64Builder(mem))
		case chunk.KindFloat64:
			fields = append(fields, arrow.Field{Name: m.alias, Type: arrow.PrimitiveTypes.Float64})
			builders = append(builders, array.NewFloat64Builder(mem))
		default:
			return nil, fmt.Errorf("unsupported destination kind for measure %q", m.alias)
		}
	}
	defer func() {
		for _, b := range builders {
			b.Release()
		}
	}()

	size := uint32(r.points.Size())
	for slot := uint32(0); slot < size; slot++ {
		point, _ := r.points.Read(slot)
		for i, field := range r.fields {
			value, _ := r.dictionaries[field].Read(point[i])
			builders[i].(*array.StringBuilder).Append(value)
		}
		for i, m := range r.measures {
			dest := m.agg.Destination()
			b := builders[len(r.fields)+i]
			switch dest.Kind() {
			case chunk.KindUint64:
				b.(*array.Uint64Builder).Append(dest.ReadUint64(int(slot)))
			case chunk.KindFloat64:
				b.(*array.Float64Builder).Append(dest.ReadFloat64(int(slot)))
			}
		}
	}

	arrays := make([]arrow.Array, len(builders))
	for i, b := range builders {
		arrays[i] = b.NewArray()
	}
	defer func() {
		for _, a := range arrays {
			a.Release()
		}
	}()

	schema := arrow.NewSchema(fields, nil)
	return array.NewRecord(schema, arrays, int64(size)), nil
}

func formatAggregateValue(dest *aggregate.Destination, slot int) string {
	switch dest.Kind() {
	case chunk.KindUint64:
		return strconv.FormatUint(dest.ReadUint64(slot), 10)
	case chunk.KindFloat64:
		return strconv.FormatFloat(dest.ReadFloat64(slot), 'g', -1, 64)
	default:
		return ""
	}
}
