package protocol

import (
	"encoding/binary"
	"fmt"
)

// DecodeRequest builds the typed request for h from its payload. payload is
// expected to hold exactly h.PayloadSize bytes.
func DecodeRequest(h RequestHeader, payload []byte) (Request, error) {
	switch h.Code {
	case CodeRegistration:
		name, err := readFixedString(payload, NameSize, "name")
		if err != nil {
			return nil, err
		}
		return RegistrationRequest{Head: h, Name: name}, nil
	case CodeReconnection:
		name, err := readFixedString(payload, NameSize, "name")
		if err != nil {
			return nil, err
		}
		return ReconnectionRequest{Head: h, Name: name}, nil
	case CodeSendingPublicKey:
		return decodePublicKey(h, payload)
	case CodeSendingFile:
		return decodeFileChunk(h, payload)
	case CodeChecksumValid, CodeChecksumInvalidRetry, CodeChecksumInvalidAbort:
		name, err := readFixedString(payload, FileNameSize, "file_name")
		if err != nil {
			return nil, err
		}
		return ChecksumAckRequest{Head: h, FileName: name}, nil
	default:
		return nil, newFrameError(KindUnknownCode, fmt.Sprintf("request code %d", uint16(h.Code)))
	}
}

func decodePublicKey(h RequestHeader, payload []byte) (Request, error) {
	if len(payload) < NameSize+PublicKeySize {
		return nil, newFrameError(KindTruncated,
			fmt.Sprintf("public key payload needs %d bytes, got %d", NameSize+PublicKeySize, len(payload)))
	}
	name, err := readFixedString(payload, NameSize, "name")
	if err != nil {
		return nil, err
	}
	key := make([]byte, PublicKeySize)
	copy(key, payload[NameSize:NameSize+PublicKeySize])
	return PublicKeyRequest{Head: h, Name: name, PublicKey: key}, nil
}

func decodeFileChunk(h RequestHeader, payload []byte) (Request, error) {
	if len(payload) < FileChunkFixedSize {
		return nil, newFrameError(KindTruncated,
			fmt.Sprintf("file chunk needs at least %d bytes, got %d", FileChunkFixedSize, len(payload)))
	}
	name, err := readFixedString(payload[12:], FileNameSize, "file_name")
	if err != nil {
		return nil, err
	}
	content := make([]byte, len(payload)-FileChunkFixedSize)
	copy(content, payload[FileChunkFixedSize:])
	return FileChunkRequest{
		Head:         h,
		ContentSize:  binary.LittleEndian.Uint32(payload[0:4]),
		OrigFileSize: binary.LittleEndian.Uint32(payload[4:8]),
		PacketNumber: binary.LittleEndian.Uint16(payload[8:10]),
		TotalPackets: binary.LittleEndian.Uint16(payload[10:12]),
		FileName:     name,
		Content:      content,
	}, nil
}

// DecodeResponse is the client-side mirror of Response.Encode.
func DecodeResponse(h ResponseHeader, payload []byte) (Response, error) {
	switch h.Code {
	case CodeRegistrationFailed, CodeReconnectDenied, CodeGenericError:
		return StatusResponse{Status: h.Code}, nil
	case CodeRegistrationSucceeded, CodeAcknowledged:
		id, err := readClientID(payload)
		if err != nil {
			return nil, err
		}
		return ClientIDResponse{Status: h.Code, ClientID: id}, nil
	case CodeSessionKeyIssued, CodeReconnectApproved:
		id, err := readClientID(payload)
		if err != nil {
			return nil, err
		}
		wrapped := make([]byte, len(payload)-ClientIDSize)
		copy(wrapped, payload[ClientIDSize:])
		return SessionKeyResponse{Status: h.Code, ClientID: id, WrappedKey: wrapped}, nil
	case CodeFileReceived:
		if len(payload) < fileReceivedSize {
			return nil, newFrameError(KindTruncated,
				fmt.Sprintf("file received payload needs %d bytes, got %d", fileReceivedSize, len(payload)))
		}
		id, err := readClientID(payload)
		if err != nil {
			return nil, err
		}
		name, err := readFixedString(payload[20:], FileNameSize, "file_name")
		if err != nil {
			return nil, err
		}
		return FileReceivedResponse{
			ClientID:    id,
			ContentSize: binary.LittleEndian.Uint32(payload[16:20]),
			FileName:    name,
			Checksum:    binary.LittleEndian.Uint32(payload[20+FileNameSize : fileReceivedSize]),
		}, nil
	default:
		return nil, newFrameError(KindUnknownCode, fmt.Sprintf("response code %d", uint16(h.Code)))
	}
}

func readClientID(b []byte) (ClientID, error) {
	var id ClientID
	if len(b) < ClientIDSize {
		return id, newFrameError(KindTruncated,
			fmt.Sprintf("client id needs %d bytes, got %d", ClientIDSize, len(b)))
	}
	copy(id[:], b[:ClientIDSize])
	return id, nil
}
