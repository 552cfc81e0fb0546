package internal

import (
	"encoding/binary"
	"fmt"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTDefine  CommandType = iota // Create or replace a sequence.
	CommandTSetSpan                    // Change the span of a sequence.
	CommandTDrop                       // Remove a sequence.
	CommandTReserve                    // Reserve the next range of a sequence.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTDefine:
		return "Define"
	case CommandTSetSpan:
		return "SetSpan"
	case CommandTDrop:
		return "Drop"
	case CommandTReserve:
		return "Reserve"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// headerSize is the size of a command without its key
const headerSize = 1 + 8 + 8 + 4

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type CommandType
	Key  string
	Next int64 // start value, only used by Define
	Span int64 // used by Define and SetSpan
}

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return headerSize + len(command.Key) // Type + Next + Span + KeyLen + Key
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 8 bytes for next (big endian),
// 8 bytes for span (big endian),
// 4 bytes for key length (big endian),
// N bytes for key data
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint64(result[1:9], uint64(command.Next))
	binary.BigEndian.PutUint64(result[9:17], uint64(command.Span))
	binary.BigEndian.PutUint32(result[17:21], uint32(len(command.Key)))
	copy(result[21:], command.Key)

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	command.Next = int64(binary.BigEndian.Uint64(data[1:9]))
	command.Span = int64(binary.BigEndian.Uint64(data[9:17]))

	keyLen := binary.BigEndian.Uint32(data[17:21])
	if len(data) < headerSize+int(keyLen) {
		return fmt.Errorf("data too short for key of length %d", keyLen)
	}
	if len(data) > headerSize+int(keyLen) {
		return fmt.Errorf("unexpected %d trailing bytes", len(data)-headerSize-int(keyLen))
	}
	command.Key = string(data[headerSize : headerSize+int(keyLen)])

	return nil
}

// --------------------------------------------------------------------------
// Results
// --------------------------------------------------------------------------

// EncodeReservation encodes the result of a Reserve command (stored in sm.Result.Data).
func EncodeReservation(base, span int64) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], uint64(base))
	binary.BigEndian.PutUint64(b[8:16], uint64(span))
	return b
}

// DecodeReservation decodes the result of a Reserve command.
func DecodeReservation(data []byte) (base, span int64, err error) {
	if len(data) != 16 {
		return 0, 0, fmt.Errorf("invalid reservation length %d", len(data))
	}
	return int64(binary.BigEndian.Uint64(data[0:8])), int64(binary.BigEndian.Uint64(data[8:16])), nil
}
