// Package rpc is the optional network facade over a *scenariodb.Store
// and *scenariodb.QueryEngine, built on Arrow Flight (gRPC). It is not
// required to use the core library: an embedding process can construct
// a Store and QueryEngine and call Execute directly, in-process.
//
// A client builds a Query with the Ticket builder, encodes it with
// Encode, and sends it as a Flight ticket. GetFlightInfo executes the
// query to discover its result schema before a DoGet call streams the
// same query's Result back as a single Arrow record.
//
// Wire compression uses zstd (internal/wirecompress); authentication is
// pluggable via the auth package, defaulting to auth.NoAuth.
package rpc
