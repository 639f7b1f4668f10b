// Package graphql provides the phonebook API gateway.
//
// The gateway parses the schema with gqlparser, validates every incoming
// operation against it, and dispatches top-level fields to the resolver set.
// Queries and mutations are served over HTTP POST; the personAdded
// subscription is served over WebSocket using the graphql-transport-ws
// protocol.
//
// Identity is resolved exactly once per request from the Authorization
// header (or, for WebSocket sessions, from the connection_init payload)
// before any resolver runs. Resolver errors are shaped into GraphQL errors
// with a stable code extension:
//
//	BAD_USER_INPUT         validation failures, with invalidArgs attached
//	UNAUTHENTICATED        missing or invalid identity
//	NOT_FOUND              referenced record does not exist
//	INTERNAL_SERVER_ERROR  anything else, with the raw error text withheld
//
// The gateway also exposes /health, /metrics (Prometheus), and the GraphQL
// Playground UI at the root path when enabled.
package graphql
