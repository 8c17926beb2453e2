package scenariodb

// coordinateKind distinguishes a coordinate that ranges over every value
// seen for its field from one restricted to an explicit list of values.
type coordinateKind int

const (
	coordinateWildcard coordinateKind = iota
	coordinateList
)

type coordinate struct {
	field  string
	kind   coordinateKind
	values []string
}

type measure struct {
	field string
	fn    string
}

// Alias returns the result column name for this measure, "fn(field)".
func (m measure) Alias() string { return m.fn + "(" + m.field + ")" }

// Query is a builder for a GROUP-BY/aggregation request: an ordered set of
// coordinates (the grouping set, which may include the virtual "scenario"
// field) and an ordered list of aggregated measures. Call order defines the
// result's point-tuple column order.
type Query struct {
	coordinates []coordinate
	measures    []measure
}

// NewQuery returns an empty Query ready for builder calls.
func NewQuery() *Query {
	return &Query{}
}

// AddWildcardCoordinate adds field to the grouping set with no restriction
// on its values (every scenario known to the store for the virtual
// "scenario" field). The result holds a row only for the group keys that
// occur in the rows the query visits.
func (q *Query) AddWildcardCoordinate(field string) *Query {
	q.coordinates = append(q.coordinates, coordinate{field: field, kind: coordinateWildcard})
	return q
}

// AddCoordinates adds field to the grouping set, restricted to values.
// Values absent from the field's dictionary (or, for "scenario", unknown
// scenario names) are silently dropped rather than rejected.
func (q *Query) AddCoordinates(field string, values ...string) *Query {
	q.coordinates = append(q.coordinates, coordinate{field: field, kind: coordinateList, values: values})
	return q
}

// AddAggregatedMeasure adds a (field, fn) measure to the query. Only "sum"
// is currently a supported aggregation function.
func (q *Query) AddAggregatedMeasure(field, fn string) *Query {
	q.measures = append(q.measures, measure{field: field, fn: fn})
	return q
}
