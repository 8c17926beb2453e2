// Package rpc exposes the store and query engine over Arrow Flight.
// A client encodes a Query as a Ticket, calls DoGet, and receives the
// Result back as a single Arrow record.
package rpc

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/paulbares/scenariodb"
)

type coordinateWire struct {
	Field    string   `msgpack:"field"`
	Wildcard bool     `msgpack:"wildcard"`
	Values   []string `msgpack:"values,omitempty"`
}

type measureWire struct {
	Field string `msgpack:"field"`
	Fn    string `msgpack:"fn"`
}

type ticketData struct {
	Coordinates []coordinateWire `msgpack:"coordinates"`
	Measures    []measureWire    `msgpack:"measures"`
}

// Ticket builds a Query on the client side and encodes it as an opaque
// Flight ticket. It mirrors scenariodb.Query's builder so a Flight client
// never needs to import the core package just to issue a query.
type Ticket struct {
	data ticketData
}

// NewTicket starts an empty ticket builder.
func NewTicket() *Ticket {
	return &Ticket{}
}

// AddWildcardCoordinate groups by every distinct value of field.
func (t *Ticket) AddWildcardCoordinate(field string) *Ticket {
	t.data.Coordinates = append(t.data.Coordinates, coordinateWire{Field: field, Wildcard: true})
	return t
}

// AddCoordinates restricts field to the given values.
func (t *Ticket) AddCoordinates(field string, values ...string) *Ticket {
	t.data.Coordinates = append(t.data.Coordinates, coordinateWire{Field: field, Values: values})
	return t
}

// AddAggregatedMeasure requests fn(field) in the result.
func (t *Ticket) AddAggregatedMeasure(field, fn string) *Ticket {
	t.data.Measures = append(t.data.Measures, measureWire{Field: field, Fn: fn})
	return t
}

// Encode serializes the ticket to MessagePack bytes suitable for a Flight
// Ticket.Ticket field.
func (t *Ticket) Encode() ([]byte, error) {
	if len(t.data.Measures) == 0 {
		return nil, fmt.Errorf("rpc: ticket has no aggregated measures")
	}
	return msgpack.Marshal(t.data)
}

// DecodeQuery parses an opaque Flight ticket back into a scenariodb.Query.
// Used by the server's DoGet handler.
func DecodeQuery(ticketBytes []byte) (*scenariodb.Query, error) {
	var data ticketData
	if err := msgpack.Unmarshal(ticketBytes, &data); err != nil {
		return nil, fmt.Errorf("rpc: invalid ticket: %w", err)
	}
	if len(data.Measures) == 0 {
		return nil, fmt.Errorf("rpc: ticket has no aggregated measures")
	}

	q := scenariodb.NewQuery()
	for _, c := range data.Coordinates {
		if c.Wildcard {
			q.AddWildcardCoordinate(c.Field)
		} else {
			q.AddCoordinates(c.Field, c.Values...)
		}
	}
	for _, m := range data.Measures {
		q.AddAggregatedMeasure(m.Field, m.Fn)
	}
	return q, nil
}
