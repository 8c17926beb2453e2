package rpc

import (
	"log/slog"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/paulbares/scenariodb"
)

// Server implements the Arrow Flight service over a single Store and its
// QueryEngine. Embeds flight.BaseFlightServer for forward compatibility
// with Flight RPCs this facade does not implement (ListFlights, DoPut,
// DoAction, ...): unimplemented calls return Unimplemented rather than
// panicking on a missing method.
type Server struct {
	flight.BaseFlightServer

	store     *scenariodb.Store
	engine    *scenariodb.QueryEngine
	allocator memory.Allocator
	logger    *slog.Logger
	address   string
}

// NewServer wraps store and engine in a Flight server. address is the
// server's public location for FlightEndpoint advertisement; pass "" to
// advertise flight.LocationReuseConnection (the client's own connection).
func NewServer(store *scenariodb.Store, engine *scenariodb.QueryEngine, mem memory.Allocator, logger *slog.Logger, address string) *Server {
	switch {
	case address == "":
		address = flight.LocationReuseConnection
	case !strings.HasPrefix(address, "grpc://") && !strings.HasPrefix(address, "grpc+tls://"):
		address = "grpc://" + address
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:     store,
		engine:    engine,
		allocator: mem,
		logger:    logger,
		address:   address,
	}
}

// RegisterFlightServer registers the Flight service on grpcServer.
func RegisterFlightServer(grpcServer *grpc.Server, flightServer *Server) {
	flight.RegisterFlightServiceServer(grpcServer, flightServer)
}
