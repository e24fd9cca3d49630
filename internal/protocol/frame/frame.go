// Package frame moves sealdrop messages over a stream: bounded request reads
// and fixed-size, zero-padded response packets.
package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/sealdrop/internal/protocol"
)

// PacketSize is the transport packet; every outbound write is a multiple of it.
const PacketSize = protocol.PacketSize

// Limits constrains request decode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 16 * 1024 * 1024,
	}
}

// ReadRequest reads one request header and exactly PayloadSize payload bytes.
// A peer that closes without sending anything yields ErrEmptyRequest.
func ReadRequest(r io.Reader, limits Limits) (protocol.RequestHeader, []byte, error) {
	var fixed [protocol.RequestHeaderSize]byte
	n, err := io.ReadFull(r, fixed[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return protocol.RequestHeader{}, nil, protocol.ErrEmptyRequest
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return protocol.RequestHeader{}, nil, fmt.Errorf("%w: request header after %d bytes", protocol.ErrTruncated, n)
		}
		return protocol.RequestHeader{}, nil, err
	}

	h, err := protocol.DecodeRequestHeader(fixed[:])
	if err != nil {
		return protocol.RequestHeader{}, nil, err
	}
	if limits.MaxPayloadBytes > 0 && h.PayloadSize > limits.MaxPayloadBytes {
		return h, nil, fmt.Errorf("%w: %d > %d", protocol.ErrPayloadTooLarge, h.PayloadSize, limits.MaxPayloadBytes)
	}

	payload := make([]byte, h.PayloadSize)
	if h.PayloadSize > 0 {
		if n, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return h, nil, fmt.Errorf("%w: payload %d of %d bytes", protocol.ErrTruncated, n, h.PayloadSize)
			}
			return h, nil, err
		}
	}
	return h, payload, nil
}

// WriteFrames writes data as consecutive PacketSize packets, zero-padding the
// last one.
func WriteFrames(w io.Writer, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	padded := make([]byte, ((len(data)+PacketSize-1)/PacketSize)*PacketSize)
	copy(padded, data)
	_, err := w.Write(padded)
	return err
}

// WriteResponse encodes resp and frames it.
func WriteResponse(w io.Writer, resp protocol.Response) error {
	return WriteFrames(w, resp.Encode())
}

// ReadResponse reads packets until the header's payload is complete and
// decodes the response.
func ReadResponse(r io.Reader, limits Limits) (protocol.Response, error) {
	packet := make([]byte, PacketSize)
	if _, err := io.ReadFull(r, packet); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: response packet", protocol.ErrTruncated)
		}
		return nil, err
	}
	h, err := protocol.DecodeResponseHeader(packet)
	if err != nil {
		return nil, err
	}
	if limits.MaxPayloadBytes > 0 && h.PayloadSize > limits.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: %d > %d", protocol.ErrPayloadTooLarge, h.PayloadSize, limits.MaxPayloadBytes)
	}

	total := protocol.ResponseHeaderSize + int(h.PayloadSize)
	buf := make([]byte, 0, ((total+PacketSize-1)/PacketSize)*PacketSize)
	buf = append(buf, packet...)
	for len(buf) < total {
		next := make([]byte, PacketSize)
		if _, err := io.ReadFull(r, next); err != nil {
			return nil, fmt.Errorf("%w: response continuation: %v", protocol.ErrTruncated, err)
		}
		buf = append(buf, next...)
	}
	return protocol.DecodeResponse(h, buf[protocol.ResponseHeaderSize:total])
}
