package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const (
	// Version is the protocol version stamped on every server response.
	Version uint8 = 3

	RequestHeaderSize  = 23
	ResponseHeaderSize = 7

	ClientIDSize  = 16
	NameSize      = 255
	MaxNameLen    = 100
	PublicKeySize = 160
	FileNameSize  = 255
	ContentSize   = 4
	ChecksumSize  = 4

	// FileChunkFixedSize covers content_size, orig_file_size, packet_number,
	// total_packets and file_name ahead of the ciphertext.
	FileChunkFixedSize = ContentSize + 4 + 2 + 2 + FileNameSize

	fileReceivedSize = ClientIDSize + ContentSize + FileNameSize + ChecksumSize
)

// ClientID is the 16-byte identifier assigned at registration.
type ClientID [ClientIDSize]byte

func (id ClientID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether no id was supplied.
func (id ClientID) IsZero() bool {
	return id == ClientID{}
}

// ParseClientID decodes the hex form produced by ClientID.String.
func ParseClientID(s string) (ClientID, error) {
	var id ClientID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("%w: client id: %v", ErrInvalidString, err)
	}
	if len(raw) != ClientIDSize {
		return id, fmt.Errorf("%w: client id has %d bytes", ErrInvalidLength, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// RequestCode identifies the operation a client asks for.
type RequestCode uint16

const (
	CodeRegistration         RequestCode = 825
	CodeSendingPublicKey     RequestCode = 826
	CodeReconnection         RequestCode = 827
	CodeSendingFile          RequestCode = 828
	CodeChecksumValid        RequestCode = 900
	CodeChecksumInvalidRetry RequestCode = 901
	CodeChecksumInvalidAbort RequestCode = 902
)

func (c RequestCode) String() string {
	switch c {
	case CodeRegistration:
		return "REGISTRATION"
	case CodeSendingPublicKey:
		return "SENDING_PUBLIC_KEY"
	case CodeReconnection:
		return "RECONNECTION"
	case CodeSendingFile:
		return "SENDING_FILE"
	case CodeChecksumValid:
		return "CRC_VALID"
	case CodeChecksumInvalidRetry:
		return "CRC_INVALID_SENDING_AGAIN"
	case CodeChecksumInvalidAbort:
		return "CRC_INVALID_FORTH_TIME_IM_DONE"
	default:
		return fmt.Sprintf("REQUEST(%d)", uint16(c))
	}
}

// ResponseCode identifies the server's answer.
type ResponseCode uint16

const (
	CodeRegistrationSucceeded ResponseCode = 1600
	CodeRegistrationFailed    ResponseCode = 1601
	CodeSessionKeyIssued      ResponseCode = 1602
	CodeFileReceived          ResponseCode = 1603
	CodeAcknowledged          ResponseCode = 1604
	CodeReconnectApproved     ResponseCode = 1605
	CodeReconnectDenied       ResponseCode = 1606
	CodeGenericError          ResponseCode = 1607
)

func (c ResponseCode) String() string {
	switch c {
	case CodeRegistrationSucceeded:
		return "REGISTRATION_SUCCEEDED"
	case CodeRegistrationFailed:
		return "REGISTRATION_FAILED"
	case CodeSessionKeyIssued:
		return "RECEIVED_PUBLIC_KEY_AND_SENDING_AES"
	case CodeFileReceived:
		return "FILE_RECEIVED_PROPERLY_WITH_CRC"
	case CodeAcknowledged:
		return "APPROVED_GETTING_MESSAGE_THANKS"
	case CodeReconnectApproved:
		return "APPROVED_REQUEST_TO_RECONNECT_SENDING_AES"
	case CodeReconnectDenied:
		return "REQUEST_FOR_RECONNECTION_DENIED"
	case CodeGenericError:
		return "GENERIC_ERROR"
	default:
		return fmt.Sprintf("RESPONSE(%d)", uint16(c))
	}
}

// RequestHeader is the fixed 23-byte request prefix.
type RequestHeader struct {
	ClientID    ClientID
	Version     uint8
	Code        RequestCode
	PayloadSize uint32
}

// ResponseHeader is the fixed 7-byte response prefix.
type ResponseHeader struct {
	Version     uint8
	Code        ResponseCode
	PayloadSize uint32
}

func (h RequestHeader) Encode() []byte {
	buf := make([]byte, RequestHeaderSize)
	copy(buf[0:16], h.ClientID[:])
	buf[16] = h.Version
	binary.LittleEndian.PutUint16(buf[17:19], uint16(h.Code))
	binary.LittleEndian.PutUint32(buf[19:23], h.PayloadSize)
	return buf
}

// DecodeRequestHeader parses the first RequestHeaderSize bytes of b.
func DecodeRequestHeader(b []byte) (RequestHeader, error) {
	if len(b) < RequestHeaderSize {
		return RequestHeader{}, newFrameError(KindTruncated,
			fmt.Sprintf("request header needs %d bytes, got %d", RequestHeaderSize, len(b)))
	}
	var h RequestHeader
	copy(h.ClientID[:], b[0:16])
	h.Version = b[16]
	h.Code = RequestCode(binary.LittleEndian.Uint16(b[17:19]))
	h.PayloadSize = binary.LittleEndian.Uint32(b[19:23])
	return h, nil
}

func (h ResponseHeader) Encode() []byte {
	buf := make([]byte, ResponseHeaderSize)
	buf[0] = h.Version
	binary.LittleEndian.PutUint16(buf[1:3], uint16(h.Code))
	binary.LittleEndian.PutUint32(buf[3:7], h.PayloadSize)
	return buf
}

// DecodeResponseHeader parses the first ResponseHeaderSize bytes of b.
func DecodeResponseHeader(b []byte) (ResponseHeader, error) {
	if len(b) < ResponseHeaderSize {
		return ResponseHeader{}, newFrameError(KindTruncated,
			fmt.Sprintf("response header needs %d bytes, got %d", ResponseHeaderSize, len(b)))
	}
	return ResponseHeader{
		Version:     b[0],
		Code:        ResponseCode(binary.LittleEndian.Uint16(b[1:3])),
		PayloadSize: binary.LittleEndian.Uint32(b[3:7]),
	}, nil
}
