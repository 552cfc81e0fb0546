package store

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// StoreFactory is a function type that creates a new snapshot capable store.
// This is used to abstract the creation of the table from the raft state machine.
type StoreFactory func() ISnapshotStore

// IStore is the interface of a sequence table. Every row holds the next free value of a
// sequence and the span reserved by a single Reserve call.
// All write operations return only an error (nil on success),
// while read operations return the requested data along with an error (nil on success).
// Errors are always of type *Error.
type IStore interface {
	// Define creates the sequence or replaces its row. The next Reserve returns start.
	Define(name string, start, span int64) (err error)
	// SetSpan changes the span used by future Reserve calls. Returns RetCNotFound if the
	// sequence does not exist.
	SetSpan(name string, span int64) (err error)
	// Drop removes the sequence. Dropping a missing sequence is not an error.
	Drop(name string) (err error)
	// Reserve atomically returns the current next value and span of the sequence and advances
	// next by span. The caller owns the range [base, base+span). found is false if the
	// sequence does not exist.
	Reserve(name string) (base, span int64, found bool, err error)
	// Get returns the row of a sequence without changing it.
	Get(name string) (row Row, found bool, err error)
	// GetInfo returns metadata about the table.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetInfo() (info Info, err error)
}

// ISnapshotStore is a store that can be serialized. It is required by the raft state machine.
type ISnapshotStore interface {
	IStore
	// Save writes a snapshot of all rows to the writer.
	Save(w io.Writer) error
	// Load replaces all rows with the snapshot read from the reader.
	Load(r io.Reader) error
	// Close releases all resources.
	Close() error
}

// Row is a single row of the sequence table.
type Row struct {
	Next int64 `json:"next"` // next value handed out by Reserve
	Span int64 `json:"span"` // number of values reserved at once
}

// Advance returns the row after one reservation.
func (r Row) Advance() (Row, error) {
	if r.Next > math.MaxInt64-r.Span {
		return r, NewError(RetCInternalError, fmt.Sprintf("sequence exhausted at %d", r.Next))
	}
	return Row{Next: r.Next + r.Span, Span: r.Span}, nil
}

// Info holds metadata about a sequence table.
type Info struct {
	Engine       string `json:"engine"`       // name of the implementation
	Sequences    uint64 `json:"sequences"`    // number of defined sequences
	Reservations uint64 `json:"reservations"` // number of successful Reserve calls since start
	Index        uint64 `json:"index"`        // number of applied writes since start
}

func (i Info) String() string {
	return fmt.Sprintf("engine=%s sequences=%d reservations=%d index=%d", i.Engine, i.Sequences, i.Reservations, i.Index)
}

// --------------------------------------------------------------------------
// Validation (shared by all implementations)
// --------------------------------------------------------------------------

// ValidateName checks a sequence name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewError(RetCInvalidOperation, "sequence name must not be empty")
	}
	return nil
}

// ValidateSpan checks the span of a sequence.
func ValidateSpan(span int64) error {
	if span <= 0 {
		return NewError(RetCInvalidOperation, fmt.Sprintf("span must be positive, got %d", span))
	}
	return nil
}

// ValidateDefine checks the arguments of Define.
func ValidateDefine(name string, start, span int64) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ValidateSpan(span); err != nil {
		return err
	}
	if start < 0 {
		return NewError(RetCInvalidOperation, fmt.Sprintf("start must not be negative, got %d", start))
	}
	if start > math.MaxInt64-span {
		return NewError(RetCInvalidOperation, fmt.Sprintf("start %d and span %d overflow", start, span))
	}
	return nil
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("SequenceTableError (code %s): %s", e.Code, e.Msg)
}

// Is matches errors by return code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Sentinel errors for use with errors.Is.
var (
	ErrInternal    = &Error{Code: RetCInternalError}
	ErrUnsupported = &Error{Code: RetCUnsupportedOperation}
	ErrInvalid     = &Error{Code: RetCInvalidOperation}
	ErrNotFound    = &Error{Code: RetCNotFound}
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the implementation.
	RetCInvalidOperation                    // 3: Invalid operation or arguments.
	RetCNotFound                            // 4: The sequence does not exist.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCNotFound:
		return "NotFound"
	default:
		return fmt.Sprintf("Unknown(%d)", uint64(c))
	}
}
