// Package http implements an HTTP based transport for the RPC system. Every request
// is a POST to /<shardId> with the serialized message as body, the response body
// carries the serialized reply.
//
// Key Components:
//
//   - httpServerTransport: a gin engine in release mode behind a net/http server,
//     Close shuts it down gracefully
//
//   - httpClientTransport: sends requests round robin across the endpoints, a failed
//     attempt is retried on the next endpoint up to RetryCount times
//
// The HTTP transport is slower than the TCP transport but passes through proxies and
// is easy to inspect, which makes it the choice for debugging and tests.
package http
