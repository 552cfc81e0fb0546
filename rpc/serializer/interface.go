package serializer

import "github.com/yanqingluo/dble/rpc/common"

// IRPCSerializer converts Messages to and from the bytes carried by a transport.
// Client and server must use the same implementation.
type IRPCSerializer interface {
	// Serialize encodes the message. The returned slice is owned by the caller.
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. Every field of msg is overwritten, so a Message can be
	// reused across calls. b is not retained.
	Deserialize(b []byte, msg *common.Message) error
}
