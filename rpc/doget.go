package rpc

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DoGet decodes the ticket, executes it against the engine, and streams
// the result as a single Arrow IPC record batch.
func (s *Server) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	ctx := stream.Context()
	requestID := uuid.NewString()
	log := s.logger.With("request_id", requestID, "identity", IdentityFromContext(ctx))

	log.Debug("DoGet called", "ticket_size", len(ticket.GetTicket()))

	query, err := DecodeQuery(ticket.GetTicket())
	if err != nil {
		log.Error("invalid ticket", "error", err)
		return status.Errorf(codes.InvalidArgument, "invalid ticket: %v", err)
	}

	record, err := recoverToValue(s.logger, "Execute", func() (arrow.Record, error) {
		res, err := s.engine.Execute(ctx, query)
		if err != nil {
			return nil, err
		}
		return res.ToRecord(s.allocator)
	})
	if err != nil {
		log.Error("query failed", "error", err)
		return status.Errorf(codes.Internal, "query failed: %v", err)
	}
	defer record.Release()

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(record.Schema()))
	defer writer.Close()

	if err := writer.Write(record); err != nil {
		log.Error("failed to write record batch", "error", err)
		return status.Errorf(codes.Internal, "failed to write result: %v", err)
	}

	log.Debug("DoGet completed", "rows", record.NumRows())
	return nil
}
