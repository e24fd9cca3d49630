package protocol

import (
	"errors"
	"fmt"
)

// ErrKind classifies codec failures.
type ErrKind uint8

const (
	KindTruncated ErrKind = iota + 1
	KindInvalidLength
	KindInvalidString
	KindUnknownCode
	KindPayloadTooLarge
	KindEmpty
)

func (k ErrKind) String() string {
	switch k {
	case KindTruncated:
		return "truncated"
	case KindInvalidLength:
		return "invalid length"
	case KindInvalidString:
		return "invalid string"
	case KindUnknownCode:
		return "unknown code"
	case KindPayloadTooLarge:
		return "payload too large"
	case KindEmpty:
		return "empty request"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// FrameError is returned by every decode path. errors.Is matches it against
// the sentinel of the same kind.
type FrameError struct {
	Kind ErrKind
	Msg  string
}

func (e *FrameError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return "protocol: " + e.Kind.String()
	}
	return "protocol: " + e.Kind.String() + ": " + e.Msg
}

func (e *FrameError) Is(target error) bool {
	var t *FrameError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Msg == ""
}

func newFrameError(kind ErrKind, msg string) *FrameError {
	return &FrameError{Kind: kind, Msg: msg}
}

var (
	ErrTruncated       = &FrameError{Kind: KindTruncated}
	ErrInvalidLength   = &FrameError{Kind: KindInvalidLength}
	ErrInvalidString   = &FrameError{Kind: KindInvalidString}
	ErrUnknownCode     = &FrameError{Kind: KindUnknownCode}
	ErrPayloadTooLarge = &FrameError{Kind: KindPayloadTooLarge}
	ErrEmptyRequest    = &FrameError{Kind: KindEmpty}
)

// IsKind reports whether err carries a FrameError of kind.
func IsKind(err error, kind ErrKind) bool {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
