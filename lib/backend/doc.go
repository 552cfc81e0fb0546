// Package backend provides the connection layer the sequence allocator talks to when a
// segment has to be reserved. It mirrors the shape of an event-driven database proxy
// backend: a connection is acquired asynchronously, a query is written to it and the
// response arrives through callbacks (connected, row, rows complete, error, connection
// error, connection closed).
//
// Key Components:
//
//   - IPool / IConnection / IResponseHandler: The callback contract. A handler owns a
//     connection from OnConnected until it calls Release or Close. Every callback runs on a
//     pool goroutine, never on the goroutine that called Acquire or Query.
//
//   - Pool: An IPool implementation that maps target names (data nodes) to executors.
//     Every target has a bounded number of connections; an acquisition waits for a free
//     slot. Targets marked read-only refuse writable acquisitions, because reserving a
//     segment is a write even in read/write split topologies.
//
//   - IExecutor: Runs one query against a concrete system and returns the rows. The
//     subpackages provide executors for a sequence table (storeexec), PostgreSQL (pgexec),
//     Redis (redisexec) and MongoDB (mongoexec). An executor reports a backend side
//     rejection as *ErrorResponse, which the pool turns into OnError with an encoded
//     ErrorPacket. Every other error is reported as a connection error.
//
// Query Contract:
//
//	The allocator sends exactly one query per refill:
//
//	  SELECT dseq_nextval('<name>')
//
//	The backend reserves the next segment atomically and answers with one row
//	"base,span" describing the segment [base, base+span). The row NotFoundRow
//	("-999999999,null") means the sequence is not defined in the backend.
package backend
