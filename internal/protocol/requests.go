package protocol

import "encoding/binary"

// Handler receives decoded requests. Each request kind has exactly one method,
// so a request type cannot exist without a handler path.
type Handler interface {
	Register(RegistrationRequest) (Response, error)
	SubmitPublicKey(PublicKeyRequest) (Response, error)
	Reconnect(ReconnectionRequest) (Response, error)
	ReceiveChunk(FileChunkRequest) (Response, error)
	AcknowledgeChecksum(ChecksumAckRequest) (Response, error)
}

// Request is the closed set of client requests.
type Request interface {
	Header() RequestHeader
	// Encode renders header and payload; the header code and payload size
	// are derived from the request itself.
	Encode() []byte
	Dispatch(Handler) (Response, error)
	isRequest()
}

// RegistrationRequest asks for a new client id under Name.
type RegistrationRequest struct {
	Head RequestHeader
	Name string
}

// ReconnectionRequest asks for a fresh session key for a known client.
type ReconnectionRequest struct {
	Head RequestHeader
	Name string
}

// PublicKeyRequest submits the client's 160-byte public key blob.
type PublicKeyRequest struct {
	Head      RequestHeader
	Name      string
	PublicKey []byte
}

// FileChunkRequest carries one slice of an encrypted file.
type FileChunkRequest struct {
	Head         RequestHeader
	ContentSize  uint32
	OrigFileSize uint32
	PacketNumber uint16
	TotalPackets uint16
	FileName     string
	Content      []byte
}

// Final reports whether this chunk completes the file.
func (r FileChunkRequest) Final() bool {
	return r.PacketNumber == r.TotalPackets
}

// ChecksumAckRequest reports the client's verdict on a returned checksum.
// Head.Code carries the outcome.
type ChecksumAckRequest struct {
	Head     RequestHeader
	FileName string
}

func (r RegistrationRequest) Header() RequestHeader { return r.Head }
func (r ReconnectionRequest) Header() RequestHeader { return r.Head }
func (r PublicKeyRequest) Header() RequestHeader    { return r.Head }
func (r FileChunkRequest) Header() RequestHeader    { return r.Head }
func (r ChecksumAckRequest) Header() RequestHeader  { return r.Head }

func (RegistrationRequest) isRequest() {}
func (ReconnectionRequest) isRequest() {}
func (PublicKeyRequest) isRequest()    {}
func (FileChunkRequest) isRequest()    {}
func (ChecksumAckRequest) isRequest()  {}

func (r RegistrationRequest) Dispatch(h Handler) (Response, error) { return h.Register(r) }
func (r ReconnectionRequest) Dispatch(h Handler) (Response, error) { return h.Reconnect(r) }
func (r PublicKeyRequest) Dispatch(h Handler) (Response, error)    { return h.SubmitPublicKey(r) }
func (r FileChunkRequest) Dispatch(h Handler) (Response, error)    { return h.ReceiveChunk(r) }
func (r ChecksumAckRequest) Dispatch(h Handler) (Response, error) {
	return h.AcknowledgeChecksum(r)
}

func (r RegistrationRequest) Encode() []byte {
	return encodeRequest(r.Head, CodeRegistration, fixedString(r.Name, NameSize))
}

func (r ReconnectionRequest) Encode() []byte {
	return encodeRequest(r.Head, CodeReconnection, fixedString(r.Name, NameSize))
}

func (r PublicKeyRequest) Encode() []byte {
	payload := make([]byte, NameSize+PublicKeySize)
	putFixedString(payload[:NameSize], r.Name)
	copy(payload[NameSize:], r.PublicKey)
	return encodeRequest(r.Head, CodeSendingPublicKey, payload)
}

func (r FileChunkRequest) Encode() []byte {
	payload := make([]byte, FileChunkFixedSize+len(r.Content))
	binary.LittleEndian.PutUint32(payload[0:4], r.ContentSize)
	binary.LittleEndian.PutUint32(payload[4:8], r.OrigFileSize)
	binary.LittleEndian.PutUint16(payload[8:10], r.PacketNumber)
	binary.LittleEndian.PutUint16(payload[10:12], r.TotalPackets)
	putFixedString(payload[12:FileChunkFixedSize], r.FileName)
	copy(payload[FileChunkFixedSize:], r.Content)
	return encodeRequest(r.Head, CodeSendingFile, payload)
}

// Encode keeps Head.Code; callers pick one of the three checksum outcomes.
func (r ChecksumAckRequest) Encode() []byte {
	return encodeRequest(r.Head, r.Head.Code, fixedString(r.FileName, FileNameSize))
}

func encodeRequest(h RequestHeader, code RequestCode, payload []byte) []byte {
	h.Code = code
	h.PayloadSize = uint32(len(payload))
	return append(h.Encode(), payload...)
}
