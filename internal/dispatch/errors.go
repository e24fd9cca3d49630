package dispatch

import "errors"

var (
	ErrUnknownClient         = errors.New("dispatch: unknown client")
	ErrClientIDMismatch      = errors.New("dispatch: client id does not match name")
	ErrKeyExchangeIncomplete = errors.New("dispatch: key exchange not completed")
	ErrPacketOutOfRange      = errors.New("dispatch: packet number exceeds total packets")
	ErrUnknownTransfer       = errors.New("dispatch: no transfer for file")
	errReconnectNoPublicKey  = errors.New("dispatch: no public key on record")
)
