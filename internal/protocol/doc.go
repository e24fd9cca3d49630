// Package protocol owns the sealdrop wire contract.
//
// Ownership boundary:
// - request/response headers and codes
// - fixed-width payload fields
// - request decode and response encode (plus the client-side mirrors)
//
// Every multi-byte integer on the wire is little-endian. Framing into
// fixed-size transport packets lives in protocol/frame.
package protocol
