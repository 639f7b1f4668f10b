// Package phonebook is a GraphQL phonebook service backed by MongoDB.
//
// The service exposes a single schema with person and user records: queries
// for counting, listing, and finding persons and for the authenticated
// user's profile; mutations for creating persons and accounts, updating
// phone numbers, logging in, and managing a friends list; and a live
// personAdded subscription streamed over WebSocket.
//
// # Architecture
//
// The module is organized around a small set of explicitly wired services:
//
//   - store: the document store adapter mapping Person and User records
//     onto MongoDB collections, with unique indexes backing the name and
//     username constraints.
//   - auth: token issuing and verification, password hashing, and
//     per-request identity resolution from the Authorization header.
//   - notifier: an in-process single-topic publish/subscribe service
//     broadcasting person-added events to live subscribers, with no
//     persistence or replay.
//   - resolver: the query and mutation set, validating preconditions and
//     delegating to the store, the token service, and the notifier.
//   - gateway/graphql: schema parsing, request validation, field dispatch,
//     and the HTTP and WebSocket transports.
//   - metric: Prometheus metrics for operations, failures, latency, and
//     subscriber counts.
//
// The cmd/phonebook entry point loads configuration from the environment,
// connects the pieces, and runs the gateway until shutdown.
package phonebook
