package ghost

import "fmt"

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
	return fmt.Sprintf("GhostingError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

// RetCode classifies protocol outcomes. The numeric order matters: when
// ranks disagree on the local failure, the globally raised code is the
// maximum across all ranks, so higher values take precedence.
type RetCode uint16

const (
	// RetCSuccess is the zero value of no failure.
	RetCSuccess RetCode = iota
	// RetCTransport wraps a failure of the underlying bulk transport.
	RetCTransport
	// RetCInternal flags a malformed wire record or corrupted state.
	RetCInternal
	// RetCFieldUnpack reports field-value unpack failures counted during
	// the transfer phase and reduced across all processes.
	RetCFieldUnpack
	// RetCDestroyFailed reports an entity that was expected to be
	// destroyable but was not.
	RetCDestroyFailed
	// RetCNotInReceiveGhost flags a remove-receive entity that is not a
	// receive ghost of the target layer.
	RetCNotInReceiveGhost
	// RetCNotOwned flags an add-send entity not owned by the caller.
	RetCNotOwned
	// RetCIllegalLayer flags an attempt to modify the reserved sharing
	// layer or a layer of another database.
	RetCIllegalLayer
	// RetCNameMismatch reports processes disagreeing on a ghosting name.
	RetCNameMismatch
)

// String returns the symbolic name of the code.
func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCTransport:
		return "Transport"
	case RetCInternal:
		return "Internal"
	case RetCFieldUnpack:
		return "FieldUnpackFailure"
	case RetCDestroyFailed:
		return "DestroyFailed"
	case RetCNotInReceiveGhost:
		return "NotInReceiveGhost"
	case RetCNotOwned:
		return "NotOwned"
	case RetCIllegalLayer:
		return "IllegalLayer"
	case RetCNameMismatch:
		return "ParallelNameMismatch"
	default:
		return "Unknown"
	}
}
