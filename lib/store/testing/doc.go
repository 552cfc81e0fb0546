// Package testing provides standardised tests and benchmarks for
// sequence tables that satisfy the store.IStore interface.
//
// The package contains:
//   - RunStoreTests: A test suite for validating conformance to the IStore interface contract
//     (atomic and disjoint reservations, validation, error codes, snapshots)
//   - RunStoreBenchmarks: Performance tests for the throughput of Reserve and Get
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() store.IStore {
//		return NewMyTable()
//	}
//
//	// Running the standard test suite
//	testing.RunStoreTests(t, "MyTable", factory)
//
//	// Running performance benchmarks
//	testing.RunStoreBenchmarks(b, "MyTable", factory)
package testing
