// Package serializer converts common.Message values to bytes and back for the RPC layer.
// It defines a common interface and three implementations with different trade-offs.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format implementation optimized for speed
//     and space efficiency. A flag byte marks the present fields, so a Next response
//     (type, flags, one int64) is only 10 bytes long. Recommended for production use,
//     the allocator hot path sends one small message per id.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging
//     or interoperability with other systems, but with lower performance. Unknown
//     fields are rejected.
//
//   - gobSerializerImpl: Implementation using Go's gob encoding. Every payload carries
//     its own type information, which makes it the largest format. It is kept for
//     clients written against encoding/gob.
//
// Deserialize always resets the target message, so a message value can be reused
// across calls.
//
// Thread Safety:
//
//	All serializer implementations are safe for concurrent use across multiple
//	goroutines without additional synchronization.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(*common.NewNextRequest("GLOBAL"))
//	// ... send data ...
//	var resp common.Message
//	err = s.Deserialize(receivedData, &resp)
package serializer
