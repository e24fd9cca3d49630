package protocol

import (
	"fmt"
	"math"
)

// PacketSize is the fixed transport packet size.
const PacketSize = 1024

// MaxChunkContent is the ciphertext that fits in one packet next to the
// request header and the fixed chunk fields.
const MaxChunkContent = PacketSize - RequestHeaderSize - FileChunkFixedSize

// SplitFile slices ciphertext into chunk requests numbered 1..N. Every chunk
// carries the full ciphertext length as ContentSize.
func SplitFile(head RequestHeader, fileName string, origSize uint32, ciphertext []byte, chunkSize int) ([]FileChunkRequest, error) {
	if chunkSize <= 0 {
		chunkSize = MaxChunkContent
	}
	total := (len(ciphertext) + chunkSize - 1) / chunkSize
	if total == 0 {
		total = 1
	}
	if total > math.MaxUint16 {
		return nil, newFrameError(KindInvalidLength, fmt.Sprintf("file needs %d packets, limit is %d", total, math.MaxUint16))
	}
	if uint64(len(ciphertext)) > math.MaxUint32 {
		return nil, newFrameError(KindInvalidLength, "ciphertext exceeds content_size range")
	}
	head.Code = CodeSendingFile
	out := make([]FileChunkRequest, 0, total)
	for i := 0; i < total; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, len(ciphertext))
		out = append(out, FileChunkRequest{
			Head:         head,
			ContentSize:  uint32(len(ciphertext)),
			OrigFileSize: origSize,
			PacketNumber: uint16(i + 1),
			TotalPackets: uint16(total),
			FileName:     fileName,
			Content:      ciphertext[start:end],
		})
	}
	return out, nil
}
