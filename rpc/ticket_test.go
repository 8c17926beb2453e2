package rpc

import (
	"testing"
)

func TestTicketRoundTrip(t *testing.T) {
	encoded, err := NewTicket().
		AddCoordinates("scenario", "base", "s1").
		AddWildcardCoordinate("product").
		AddAggregatedMeasure("price", "sum").
		Encode()
	if err != nil {
		t.Fatal(err)
	}

	query, err := DecodeQuery(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if query == nil {
		t.Fatal("DecodeQuery returned a nil query")
	}
}

func TestTicketEncodeRejectsNoMeasures(t *testing.T) {
	_, err := NewTicket().AddWildcardCoordinate("product").Encode()
	if err == nil {
		t.Fatal("expected an error encoding a ticket with no measures")
	}
}

func TestDecodeQueryRejectsMalformedTicket(t *testing.T) {
	_, err := DecodeQuery([]byte("not msgpack"))
	if err == nil {
		t.Fatal("expected an error decoding malformed ticket bytes")
	}
}

func TestDecodeQueryRejectsEmptyTicket(t *testing.T) {
	_, err := DecodeQuery(nil)
	if err == nil {
		t.Fatal("expected an error decoding an empty ticket")
	}
}
