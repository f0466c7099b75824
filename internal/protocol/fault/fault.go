// Package fault holds the decode fault taxonomy shared by every protocol layer.
package fault

import (
	"errors"
	"fmt"
)

var (
	ErrFrameTooLarge     = errors.New("protocol: frame too large")
	ErrTruncatedPayload  = errors.New("protocol: truncated payload")
	ErrInvalidEncoding   = errors.New("protocol: invalid encoding")
	ErrUnknownCommand    = errors.New("protocol: unknown command code")
	ErrUnmatchedResponse = errors.New("protocol: unmatched response")
	ErrUnansweredRequest = errors.New("protocol: unanswered request")
)

// Kind classifies a fault.
type Kind uint8

const (
	FrameTooLarge Kind = iota + 1
	TruncatedPayload
	InvalidEncoding
	UnknownCommandCode
	UnmatchedResponse
	UnansweredRequest
)

var kindNames = map[Kind]string{
	FrameTooLarge:      "frame_too_large",
	TruncatedPayload:   "truncated_payload",
	InvalidEncoding:    "invalid_encoding",
	UnknownCommandCode: "unknown_command_code",
	UnmatchedResponse:  "unmatched_response",
	UnansweredRequest:  "unanswered_request",
}

var kindErrors = map[Kind]error{
	FrameTooLarge:      ErrFrameTooLarge,
	TruncatedPayload:   ErrTruncatedPayload,
	InvalidEncoding:    ErrInvalidEncoding,
	UnknownCommandCode: ErrUnknownCommand,
	UnmatchedResponse:  ErrUnmatchedResponse,
	UnansweredRequest:  ErrUnansweredRequest,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Err returns the sentinel error for the kind.
func (k Kind) Err() error {
	if err, ok := kindErrors[k]; ok {
		return err
	}
	return fmt.Errorf("protocol: fault %s", k)
}

// Fatal reports whether the kind halts reassembly for its direction.
func (k Kind) Fatal() bool {
	return k == FrameTooLarge
}

// Fault is structured fault information attached to a message, a field or a stream.
// Field is empty for faults that are not tied to one field.
type Fault struct {
	Kind   Kind
	Field  string
	Detail string
}

func New(kind Kind, field, detail string) Fault {
	return Fault{Kind: kind, Field: field, Detail: detail}
}

func Newf(kind Kind, field, format string, args ...any) Fault {
	return Fault{Kind: kind, Field: field, Detail: fmt.Sprintf(format, args...)}
}

func (f Fault) Error() string {
	msg := f.Kind.Err().Error()
	if f.Field != "" {
		msg = fmt.Sprintf("%s: field %s", msg, f.Field)
	}
	if f.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, f.Detail)
	}
	return msg
}

func (f Fault) Unwrap() error {
	return f.Kind.Err()
}

// As extracts a Fault from err.
func As(err error) (Fault, bool) {
	var f Fault
	if errors.As(err, &f) {
		return f, true
	}
	return Fault{}, false
}
