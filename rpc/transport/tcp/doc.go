// Package tcp implements the TCP socket transport of the RPC system. It provides the
// TCP specific connectors for the base package, which implements framing, connection
// pooling and request correlation.
//
// Key Components:
//
//   - clientConnector: dials with a timeout and applies the client TCP options
//
//   - serverConnector: listens on the configured endpoint and applies the server TCP
//     options to every accepted connection
//
// The server reads frames into 64 KB pooled buffers and runs up to 64 requests per
// connection concurrently, unless ServerTransportConfig.WorkersPerConn says otherwise.
package tcp
