package internal

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// TestSizeBytes tests the SizeBytes method
func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name:     "Command with key",
			command:  Command{Type: CommandTDefine, Key: "GLOBAL", Next: 100, Span: 200},
			expected: 1 + 8 + 8 + 4 + 6, // Type + Next + Span + KeyLen + Key
		},
		{
			name:     "Command with empty key",
			command:  Command{Type: CommandTReserve},
			expected: 1 + 8 + 8 + 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := tt.command.SizeBytes()
			if size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
		})
	}
}

// TestSerializeDeserialize tests both Serialize and Deserialize methods
func TestSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{
			name:    "Define",
			command: Command{Type: CommandTDefine, Key: "GLOBAL", Next: 1000, Span: 100},
		},
		{
			name:    "SetSpan",
			command: Command{Type: CommandTSetSpan, Key: "GLOBAL", Span: 5},
		},
		{
			name:    "Reserve without arguments",
			command: Command{Type: CommandTReserve, Key: "GLOBAL"},
		},
		{
			name:    "Drop with empty key",
			command: Command{Type: CommandTDrop},
		},
		{
			name:    "Large values",
			command: Command{Type: CommandTDefine, Key: "GLOBAL", Next: math.MaxInt64 - 1, Span: 1},
		},
		{
			name:    "Negative values",
			command: Command{Type: CommandTDefine, Key: "GLOBAL", Next: -1, Span: math.MinInt64},
		},
		{
			name:    "Unicode key",
			command: Command{Type: CommandTReserve, Key: "订单序列"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.command.Serialize()

			var newCommand Command
			if err := newCommand.Deserialize(data); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}
			if newCommand != tt.command {
				t.Errorf("Command mismatch: got %+v, want %+v", newCommand, tt.command)
			}
			if tt.command.SizeBytes() != len(data) {
				t.Errorf("SizeBytes() = %d, but serialized data length = %d", tt.command.SizeBytes(), len(data))
			}
		})
	}
}

// TestDeserializeErrors tests error cases in Deserialize
func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expectedErr string
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectedErr: "data too short for command",
		},
		{
			name:        "Data too short (less than header)",
			data:        []byte{1, 2, 3, 4, 5},
			expectedErr: "data too short for command",
		},
		{
			name: "Invalid key length",
			data: func() []byte {
				data := make([]byte, 21)
				data[0] = byte(CommandTReserve)
				binary.BigEndian.PutUint32(data[17:21], 1000)
				return data
			}(),
			expectedErr: "data too short for key of length 1000",
		},
		{
			name: "Trailing bytes",
			data: func() []byte {
				cmd := Command{Type: CommandTReserve, Key: "A"}
				return append(cmd.Serialize(), 0, 0)
			}(),
			expectedErr: "unexpected 2 trailing bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd Command
			err := cmd.Deserialize(tt.data)
			if err == nil {
				t.Fatalf("Expected error but got nil")
			}
			if err.Error() != tt.expectedErr {
				t.Errorf("Expected error %q, got %q", tt.expectedErr, err.Error())
			}
		})
	}
}

// TestBinaryFormat tests the exact binary format of serialized commands
func TestBinaryFormat(t *testing.T) {
	cmd := Command{Type: CommandTDefine, Key: "GLOBAL", Next: 12345, Span: 67890}

	expected := make([]byte, cmd.SizeBytes())
	expected[0] = byte(CommandTDefine)
	binary.BigEndian.PutUint64(expected[1:9], 12345)
	binary.BigEndian.PutUint64(expected[9:17], 67890)
	binary.BigEndian.PutUint32(expected[17:21], 6)
	copy(expected[21:], "GLOBAL")

	serialized := cmd.Serialize()
	if !bytes.Equal(serialized, expected) {
		t.Errorf("Binary format does not match:\nGot:      %v\nExpected: %v", serialized, expected)
	}
}

func TestReservationEncoding(t *testing.T) {
	base, span, err := DecodeReservation(EncodeReservation(1<<50, 77))
	if err != nil {
		t.Fatal(err)
	}
	if base != 1<<50 || span != 77 {
		t.Errorf("Expected (%d, 77), got (%d, %d)", int64(1<<50), base, span)
	}
	if _, _, err := DecodeReservation([]byte("short")); err == nil {
		t.Errorf("Expected an error for a short reservation")
	}
}
