package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key   string `json:"key,omitempty"`   // Used for: all table operations, Next
	Next  int64  `json:"next,omitempty"`  // Used for: Define (start), Reserve and Get (response), Next (response)
	Span  int64  `json:"span,omitempty"`  // Used for: Define, SetSpan, Reserve and Get (response)
	Value []byte `json:"value,omitempty"` // Used for: json payloads of Info, LastErrors, Reload and List

	// Response only fields
	Ok   bool   `json:"ok,omitempty"`   // Used for: Reserve and Get responses (sequence found)
	Code uint64 `json:"code,omitempty"` // Return code of a typed error, 0 if the error is untyped
	Err  string `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Unused, can be used for additional Adapters
}

// setErr fills the error field of a response
func (m *Message) setErr(err error) *Message {
	if err != nil {
		m.Err = err.Error()
	}
	return m
}

// --------------------------------------------------------------------------
// Message Factory Functions (sequence table)
// --------------------------------------------------------------------------

// NewDefineRequest creates a new Define request
func NewDefineRequest(name string, start, span int64) *Message {
	return &Message{
		MsgType: MsgTTBLDefine,
		Key:     name,
		Next:    start,
		Span:    span,
	}
}

// NewDefineResponse creates a new Define response
func NewDefineResponse(err error) *Message {
	return (&Message{MsgType: MsgTTBLDefine}).setErr(err)
}

// NewSetSpanRequest creates a new SetSpan request
func NewSetSpanRequest(name string, span int64) *Message {
	return &Message{
		MsgType: MsgTTBLSetSpan,
		Key:     name,
		Span:    span,
	}
}

// NewSetSpanResponse creates a new SetSpan response
func NewSetSpanResponse(err error) *Message {
	return (&Message{MsgType: MsgTTBLSetSpan}).setErr(err)
}

// NewDropRequest creates a new Drop request
func NewDropRequest(name string) *Message {
	return &Message{
		MsgType: MsgTTBLDrop,
		Key:     name,
	}
}

// NewDropResponse creates a new Drop response
func NewDropResponse(err error) *Message {
	return (&Message{MsgType: MsgTTBLDrop}).setErr(err)
}

// NewReserveRequest creates a new Reserve request
func NewReserveRequest(name string) *Message {
	return &Message{
		MsgType: MsgTTBLReserve,
		Key:     name,
	}
}

// NewReserveResponse creates a new Reserve response
func NewReserveResponse(base, span int64, found bool, err error) *Message {
	return (&Message{
		MsgType: MsgTTBLReserve,
		Next:    base,
		Span:    span,
		Ok:      found,
	}).setErr(err)
}

// NewGetRequest creates a new Get request
func NewGetRequest(name string) *Message {
	return &Message{
		MsgType: MsgTTBLGet,
		Key:     name,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(next, span int64, found bool, err error) *Message {
	return (&Message{
		MsgType: MsgTTBLGet,
		Next:    next,
		Span:    span,
		Ok:      found,
	}).setErr(err)
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{MsgType: MsgTTBLInfo}
}

// NewInfoResponse creates a new Info response, info is the json encoded table info
func NewInfoResponse(info []byte, err error) *Message {
	return (&Message{
		MsgType: MsgTTBLInfo,
		Value:   info,
	}).setErr(err)
}

// --------------------------------------------------------------------------
// Message Factory Functions (allocator)
// --------------------------------------------------------------------------

// NewNextRequest creates a new Next request
func NewNextRequest(name string) *Message {
	return &Message{
		MsgType: MsgTSEQNext,
		Key:     name,
	}
}

// NewNextResponse creates a new Next response
func NewNextResponse(id int64, err error) *Message {
	return (&Message{
		MsgType: MsgTSEQNext,
		Next:    id,
	}).setErr(err)
}

// NewLastErrorsRequest creates a new LastErrors request
func NewLastErrorsRequest() *Message {
	return &Message{MsgType: MsgTSEQLastErrors}
}

// NewLastErrorsResponse creates a new LastErrors response, errors is a json object
func NewLastErrorsResponse(errors []byte, err error) *Message {
	return (&Message{
		MsgType: MsgTSEQLastErrors,
		Value:   errors,
	}).setErr(err)
}

// NewReloadRequest creates a new Reload request, mapping is a json object
func NewReloadRequest(mapping []byte) *Message {
	return &Message{
		MsgType: MsgTSEQReload,
		Value:   mapping,
	}
}

// NewReloadResponse creates a new Reload response
func NewReloadResponse(err error) *Message {
	return (&Message{MsgType: MsgTSEQReload}).setErr(err)
}

// NewListRequest creates a new List request
func NewListRequest() *Message {
	return &Message{MsgType: MsgTSEQList}
}

// NewListResponse creates a new List response, mapping is a json object
func NewListResponse(mapping []byte, err error) *Message {
	return (&Message{
		MsgType: MsgTSEQList,
		Value:   mapping,
	}).setErr(err)
}

// --------------------------------------------------------------------------
// Message Factory Functions (general)
// --------------------------------------------------------------------------

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	return (&Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}).setErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:       "success",
	MsgTError:         "error",
	MsgTTBLDefine:     "define",
	MsgTTBLSetSpan:    "setSpan",
	MsgTTBLDrop:       "drop",
	MsgTTBLReserve:    "reserve",
	MsgTTBLGet:        "get",
	MsgTTBLInfo:       "info",
	MsgTSEQNext:       "next",
	MsgTSEQLastErrors: "lastErrors",
	MsgTSEQReload:     "reload",
	MsgTSEQList:       "list",
	MsgTCustom:        "custom",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsTableOp reports whether the message type is a sequence table operation.
func (t MessageType) IsTableOp() bool {
	return t >= MsgTTBLDefine && t <= MsgTTBLInfo
}

// IsAllocatorOp reports whether the message type is an allocator operation.
func (t MessageType) IsAllocatorOp() bool {
	return t >= MsgTSEQNext && t <= MsgTSEQList
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// store.IStore operations

	MsgTTBLDefine  // Define or replace a sequence
	MsgTTBLSetSpan // Change the span of a sequence
	MsgTTBLDrop    // Remove a sequence
	MsgTTBLReserve // Reserve the next segment
	MsgTTBLGet     // Read a row
	MsgTTBLInfo    // Table metadata

	// sequence.IAllocator operations

	MsgTSEQNext       // Next id of a sequence
	MsgTSEQLastErrors // Recorded refill errors
	MsgTSEQReload     // Replace the sequence mapping
	MsgTSEQList       // Current sequence mapping

	// Custom operations

	MsgTCustom // Custom operation type
)
