package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/sealdrop/internal/protocol"
)

func TestReadRequestRoundTrip(t *testing.T) {
	req := protocol.RegistrationRequest{Head: protocol.RequestHeader{Version: 3}, Name: "Alice"}
	h, payload, err := ReadRequest(bytes.NewReader(req.Encode()), DefaultLimits())
	if err != nil {
		t.Fatalf("read request: %v", err)
	}
	if h.Code != protocol.CodeRegistration || int(h.PayloadSize) != protocol.NameSize {
		t.Fatalf("unexpected header: %+v", h)
	}
	if len(payload) != protocol.NameSize {
		t.Fatalf("unexpected payload length: %d", len(payload))
	}
}

func TestReadRequestIgnoresTrailingPadding(t *testing.T) {
	raw := protocol.ReconnectionRequest{Name: "Bob"}.Encode()
	padded := make([]byte, PacketSize)
	copy(padded, raw)
	r := bytes.NewReader(padded)
	_, payload, err := ReadRequest(r, DefaultLimits())
	if err != nil {
		t.Fatalf("read request: %v", err)
	}
	if len(payload) != protocol.NameSize {
		t.Fatalf("unexpected payload length: %d", len(payload))
	}
	if r.Len() != PacketSize-len(raw) {
		t.Fatalf("read past payload: remaining=%d", r.Len())
	}
}

func TestReadRequestEmpty(t *testing.T) {
	_, _, err := ReadRequest(bytes.NewReader(nil), DefaultLimits())
	if !errors.Is(err, protocol.ErrEmptyRequest) {
		t.Fatalf("expected ErrEmptyRequest, got %v", err)
	}
}

func TestReadRequestShortHeader(t *testing.T) {
	_, _, err := ReadRequest(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	if !errors.Is(err, protocol.ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestReadRequestShortPayload(t *testing.T) {
	raw := protocol.RegistrationRequest{Name: "Alice"}.Encode()
	_, _, err := ReadRequest(bytes.NewReader(raw[:len(raw)-10]), DefaultLimits())
	if !errors.Is(err, protocol.ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestReadRequestPayloadTooLarge(t *testing.T) {
	h := protocol.RequestHeader{Code: protocol.CodeSendingFile, PayloadSize: 4096}
	_, _, err := ReadRequest(bytes.NewReader(h.Encode()), Limits{MaxPayloadBytes: 1024})
	if !errors.Is(err, protocol.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestWriteFramesPadsToPacketSize(t *testing.T) {
	cases := []int{1, protocol.ResponseHeaderSize, PacketSize - 1, PacketSize, PacketSize + 1, 3*PacketSize - 5}
	for _, n := range cases {
		data := bytes.Repeat([]byte{0x5a}, n)
		var buf bytes.Buffer
		if err := WriteFrames(&buf, data); err != nil {
			t.Fatalf("write frames: %v", err)
		}
		if buf.Len()%PacketSize != 0 || buf.Len() < n || buf.Len()-n >= PacketSize {
			t.Fatalf("n=%d: unexpected framed length %d", n, buf.Len())
		}
		out := buf.Bytes()
		if !bytes.Equal(out[:n], data) {
			t.Fatalf("n=%d: data prefix mismatch", n)
		}
		if !bytes.Equal(out[n:], make([]byte, len(out)-n)) {
			t.Fatalf("n=%d: padding not zeroed", n)
		}
	}
}

func TestReadResponseSpanningPackets(t *testing.T) {
	var id protocol.ClientID
	id[0] = 9
	in := protocol.SessionKeyResponse{
		Status:     protocol.CodeSessionKeyIssued,
		ClientID:   id,
		WrappedKey: bytes.Repeat([]byte{0x11}, 1500),
	}
	var buf bytes.Buffer
	if err := WriteResponse(&buf, in); err != nil {
		t.Fatalf("write response: %v", err)
	}
	if buf.Len() != 2*PacketSize {
		t.Fatalf("expected two packets, got %d bytes", buf.Len())
	}
	out, err := ReadResponse(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	got, ok := out.(protocol.SessionKeyResponse)
	if !ok {
		t.Fatalf("unexpected response type %T", out)
	}
	if got.ClientID != id || !bytes.Equal(got.WrappedKey, in.WrappedKey) {
		t.Fatalf("response mismatch")
	}
}

func TestReadResponseTruncated(t *testing.T) {
	raw := protocol.GenericError().Encode()
	_, err := ReadResponse(bytes.NewReader(raw), DefaultLimits())
	if !errors.Is(err, protocol.ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}
