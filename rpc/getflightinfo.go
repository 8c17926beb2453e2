package rpc

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GetFlightInfo decodes the ticket carried in the descriptor's command,
// executes it, and returns the schema of the resulting record plus a
// single endpoint carrying the same ticket back for a following DoGet.
// descriptor.Path is ignored: a store has no catalog of named tables to
// address, only the one query encoded in the command.
func (s *Server) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	if desc.GetType() != flight.DescriptorCMD {
		return nil, status.Error(codes.InvalidArgument, "descriptor must be CMD type")
	}

	ticketBytes := desc.GetCmd()
	query, err := DecodeQuery(ticketBytes)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid ticket: %v", err)
	}

	record, err := recoverToValue(s.logger, "Execute", func() (arrow.Record, error) {
		res, err := s.engine.Execute(ctx, query)
		if err != nil {
			return nil, err
		}
		return res.ToRecord(s.allocator)
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "query failed: %v", err)
	}
	defer record.Release()

	return &flight.FlightInfo{
		Schema:           flight.SerializeSchema(record.Schema(), s.allocator),
		FlightDescriptor: desc,
		Endpoint: []*flight.FlightEndpoint{
			{
				Ticket:   &flight.Ticket{Ticket: ticketBytes},
				Location: []*flight.Location{{Uri: s.address}},
			},
		},
		TotalRecords: record.NumRows(),
		TotalBytes:   -1,
	}, nil
}
