// Package base provides the protocol independent part of the socket transports. A
// protocol only supplies a connector that listens, dials and tunes connections, the
// framing, request correlation and reconnection live here.
//
// Frame format (all integers big endian):
//
//	8 bytes shardID | 8 bytes requestID | 4 bytes length | payload
//
// Key Components:
//
//   - IClientConnector/IServerConnector: protocol specific operations
//
//   - clientTransport: keeps ConnectionsPerEndpoint connections per endpoint and
//     spreads requests round robin across them. Each connection has one reader
//     goroutine that matches responses to waiting requests by requestID. When a
//     connection breaks the waiting requests fail at once and the reader restores the
//     connection with exponential backoff. Send retries failed attempts on the next
//     connection.
//
//   - serverTransport: accepts connections and runs up to WorkersPerConn requests per
//     connection concurrently. Responses may therefore leave out of order, the
//     requestID ties them together. Request buffers come from a sync.Pool.
//
// Thread Safety:
//
//	All public methods are safe for concurrent use. Close on either side waits for the
//	goroutines it started.
package base
