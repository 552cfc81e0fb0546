// Package internal provides the communication protocol structures and serialization
// logic for the dstore package. It defines the format of the entries in the raft log and
// the queries sent to the state machine.
//
// This package is intended for internal use by the dstore implementation and should
// not be imported directly by external code.
//
//   - Command System: Defines write operations (Define, SetSpan, Drop, Reserve). Commands
//     are serialized, proposed to the RAFT cluster and executed on every replica. Note that
//     Reserve is a write: advancing the row must be replicated before the range is handed out.
//
//   - Query System: Defines read operations (Get, GetInfo). Queries are executed locally
//     on the state machine and therefore do not require serialization.
//
// Command Format:
//
//   - 1 byte: Command type
//   - 8 bytes: Next (int64, big endian)
//   - 8 bytes: Span (int64, big endian)
//   - 4 bytes: Key length (uint32, big endian)
//   - N bytes: Key data
//
// The result of a Reserve command travels back in sm.Result.Data as 16 bytes (base and
// span, big endian), see EncodeReservation.
package internal
