package keys

import "errors"

// ErrKind categorizes key and cipher failures.
type ErrKind uint8

const (
	KindMalformedKey ErrKind = iota + 1
	KindWrap
	KindUnwrap
	KindDecrypt
	KindPadding
	KindRandom
)

type Error struct {
	Kind  ErrKind
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Inner == nil {
		return "keys: " + e.Msg
	}
	return "keys: " + e.Msg + ": " + e.Inner.Error()
}

func (e *Error) Unwrap() error { return e.Inner }

func newError(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func wrap(kind ErrKind, msg string, inner error) *Error {
	return &Error{Kind: kind, Msg: msg, Inner: inner}
}

func IsKind(err error, kind ErrKind) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind == kind
	}
	return false
}
