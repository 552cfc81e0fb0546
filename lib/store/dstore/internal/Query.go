package internal

import "github.com/yanqingluo/dble/lib/store"

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTGet     QueryType = iota // Retrieve the row of a sequence.
	QueryTGetInfo                  // Retrieve metadata about the table.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTGetInfo:
		return "GetInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or StaleRead
type Query struct {
	Type QueryType // The type of Query to perform.
	Key  string    // The sequence name (empty for GetInfo).
}

// QueryResult is the result of a QueryTGet operation.
// The result of QueryTGetInfo is a store.Info.
type QueryResult struct {
	Ok  bool
	Row store.Row
}
