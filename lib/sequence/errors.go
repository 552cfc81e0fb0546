package sequence

import "fmt"

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is returned by all allocator operations. It carries a return code that
// classifies the failure, the sequence it belongs to and an optional cause.
type Error struct {
	Code  RetCode // The return code
	Seq   string  // Name of the sequence
	Msg   string  // The error message
	Cause error   // Underlying error, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("SequenceError (code %s): sequence %s: %s", e.Code, e.Seq, e.Msg)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is matches errors by return code, so errors.Is(err, ErrTimeout) holds for every timeout.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Seq == "" || t.Seq == e.Seq)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, seq, msg string, cause error) *Error {
	return &Error{
		Code:  code,
		Seq:   seq,
		Msg:   msg,
		Cause: cause,
	}
}

// Sentinel errors for use with errors.Is.
var (
	ErrUnknownSequence    = &Error{Code: RetCUnknownSequence}
	ErrBackendUnavailable = &Error{Code: RetCBackendUnavailable}
	ErrTimeout            = &Error{Code: RetCTimeout}
	ErrMalformedResponse  = &Error{Code: RetCMalformedResponse}
	ErrNotFetched         = &Error{Code: RetCNotFetched}
	ErrClosed             = &Error{Code: RetCClosed}
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess            RetCode = iota // 0: Value allocated.
	RetCUnknownSequence                   // 1: No configuration entry for the sequence.
	RetCBackendUnavailable                // 2: The refill reached a failed terminal state.
	RetCTimeout                           // 3: No refill result within the bound.
	RetCMalformedResponse                 // 4: The backend row could not be parsed.
	RetCNotFetched                        // 5: No segment was ever fetched.
	RetCClosed                            // 6: The allocator was closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCUnknownSequence:
		return "UnknownSequence"
	case RetCBackendUnavailable:
		return "BackendUnavailable"
	case RetCTimeout:
		return "Timeout"
	case RetCMalformedResponse:
		return "MalformedResponse"
	case RetCNotFetched:
		return "NotFetched"
	case RetCClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Unknown(%d)", uint64(c))
	}
}
