package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/yanqingluo/dble/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
//
//   - 1 byte: MsgType
//   - 1 byte: flags, one bit per optional field
//   - the present fields in flag order, fixed size fields as 8 byte big endian,
//     variable size fields with a 4 byte big endian length prefix
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey   byte = 1 << 0
	hasNext  byte = 1 << 1
	hasSpan  byte = 1 << 2
	hasValue byte = 1 << 3
	hasOk    byte = 1 << 4
	hasCode  byte = 1 << 5
	hasErr   byte = 1 << 6
	hasMeta  byte = 1 << 7
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, b.sizeBytes(msg))
	result[0] = byte(msg.MsgType)

	var flags byte
	pos := 2 // Start after MsgType and flags

	putBytes := func(flag byte, data []byte) {
		flags |= flag
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(data)))
		pos += 4
		pos += copy(result[pos:], data)
	}
	putUint64 := func(flag byte, v uint64) {
		flags |= flag
		binary.BigEndian.PutUint64(result[pos:pos+8], v)
		pos += 8
	}

	if msg.Key != "" {
		putBytes(hasKey, []byte(msg.Key))
	}
	if msg.Next != 0 {
		putUint64(hasNext, uint64(msg.Next))
	}
	if msg.Span != 0 {
		putUint64(hasSpan, uint64(msg.Span))
	}
	if msg.Value != nil {
		putBytes(hasValue, msg.Value)
	}
	if msg.Ok {
		// the flag alone carries the value
		flags |= hasOk
	}
	if msg.Code != 0 {
		putUint64(hasCode, msg.Code)
	}
	if msg.Err != "" {
		putBytes(hasErr, []byte(msg.Err))
	}
	if msg.Meta != nil {
		putBytes(hasMeta, msg.Meta)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags := data[1]
	pos := 2

	readUint64 := func(name string) (uint64, error) {
		if pos+8 > len(data) {
			return 0, fmt.Errorf("data too short for %s", name)
		}
		v := binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
		return v, nil
	}
	// readBytes reuses dst if it is large enough, a present field is never nil
	readBytes := func(name string, dst []byte) ([]byte, error) {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("data too short for %s length", name)
		}
		n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+n > len(data) {
			return nil, fmt.Errorf("data too short for %s data", name)
		}
		if dst == nil || cap(dst) < n {
			dst = make([]byte, n)
		} else {
			dst = dst[:n]
		}
		copy(dst, data[pos:pos+n])
		pos += n
		return dst, nil
	}

	msg.Key = ""
	if flags&hasKey != 0 {
		key, err := readBytes("key", nil)
		if err != nil {
			return err
		}
		msg.Key = string(key)
	}

	msg.Next = 0
	if flags&hasNext != 0 {
		v, err := readUint64("next")
		if err != nil {
			return err
		}
		msg.Next = int64(v)
	}

	msg.Span = 0
	if flags&hasSpan != 0 {
		v, err := readUint64("span")
		if err != nil {
			return err
		}
		msg.Span = int64(v)
	}

	if flags&hasValue != 0 {
		value, err := readBytes("value", msg.Value)
		if err != nil {
			return err
		}
		msg.Value = value
	} else {
		msg.Value = nil
	}

	msg.Ok = flags&hasOk != 0

	msg.Code = 0
	if flags&hasCode != 0 {
		v, err := readUint64("code")
		if err != nil {
			return err
		}
		msg.Code = v
	}

	msg.Err = ""
	if flags&hasErr != 0 {
		e, err := readBytes("error", nil)
		if err != nil {
			return err
		}
		msg.Err = string(e)
	}

	if flags&hasMeta != 0 {
		meta, err := readBytes("meta", msg.Meta)
		if err != nil {
			return err
		}
		msg.Meta = meta
	} else {
		msg.Meta = nil
	}

	if pos != len(data) {
		return fmt.Errorf("unexpected %d trailing bytes", len(data)-pos)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Next != 0 {
		size += 8
	}
	if msg.Span != 0 {
		size += 8
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Code != 0 {
		size += 8
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}
