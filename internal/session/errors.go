package session

import "errors"

var (
	ErrNameTaken      = errors.New("session: name already registered")
	ErrClientNotFound = errors.New("session: client not found")
	ErrIDExhausted    = errors.New("session: could not allocate unique client id")
)
