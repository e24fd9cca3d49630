package protocol

import "encoding/binary"

// Response is anything the server can send back. Encode is total: it never
// fails and always yields exactly ResponseHeaderSize+payload bytes.
type Response interface {
	Code() ResponseCode
	Encode() []byte
}

// StatusResponse is a header-only response (registration failed, reconnect
// denied, generic error).
type StatusResponse struct {
	Status ResponseCode
}

// ClientIDResponse carries only the client id (registration succeeded,
// acknowledgement).
type ClientIDResponse struct {
	Status   ResponseCode
	ClientID ClientID
}

// SessionKeyResponse delivers a session key wrapped under the client's
// public key.
type SessionKeyResponse struct {
	Status     ResponseCode
	ClientID   ClientID
	WrappedKey []byte
}

// FileReceivedResponse reports the checksum of a fully received file.
type FileReceivedResponse struct {
	ClientID    ClientID
	ContentSize uint32
	FileName    string
	Checksum    uint32
}

func GenericError() StatusResponse {
	return StatusResponse{Status: CodeGenericError}
}

func (r StatusResponse) Code() ResponseCode       { return r.Status }
func (r ClientIDResponse) Code() ResponseCode     { return r.Status }
func (r SessionKeyResponse) Code() ResponseCode   { return r.Status }
func (r FileReceivedResponse) Code() ResponseCode { return CodeFileReceived }

func (r StatusResponse) Encode() []byte {
	return encodeResponse(r.Status, nil)
}

func (r ClientIDResponse) Encode() []byte {
	return encodeResponse(r.Status, r.ClientID[:])
}

func (r SessionKeyResponse) Encode() []byte {
	payload := make([]byte, 0, ClientIDSize+len(r.WrappedKey))
	payload = append(payload, r.ClientID[:]...)
	payload = append(payload, r.WrappedKey...)
	return encodeResponse(r.Status, payload)
}

func (r FileReceivedResponse) Encode() []byte {
	payload := make([]byte, fileReceivedSize)
	copy(payload[0:16], r.ClientID[:])
	binary.LittleEndian.PutUint32(payload[16:20], r.ContentSize)
	putFixedString(payload[20:20+FileNameSize], r.FileName)
	binary.LittleEndian.PutUint32(payload[20+FileNameSize:], r.Checksum)
	return encodeResponse(CodeFileReceived, payload)
}

func encodeResponse(code ResponseCode, payload []byte) []byte {
	h := ResponseHeader{Version: Version, Code: code, PayloadSize: uint32(len(payload))}
	return append(h.Encode(), payload...)
}
