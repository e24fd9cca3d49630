// Package checksum implements the POSIX cksum CRC: polynomial 0x04C11DB7,
// MSB-first, zero initial value, with the input length folded in
// least-significant byte first before the final complement.
package checksum

import (
	"encoding/binary"
	"hash"
)

const (
	poly = 0x04C11DB7

	// Size of a cksum value in bytes.
	Size = 4
)

var table = makeTable(poly)

func makeTable(p uint32) *[256]uint32 {
	var t [256]uint32
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ p
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return &t
}

func update(crc uint32, p []byte) uint32 {
	for _, b := range p {
		crc = crc<<8 ^ table[byte(crc>>24)^b]
	}
	return crc
}

// Digest is a streaming cksum. The zero value is ready to use.
type Digest struct {
	crc uint32
	n   uint64
}

var _ hash.Hash32 = (*Digest)(nil)

func New() *Digest {
	return &Digest{}
}

func (d *Digest) Write(p []byte) (int, error) {
	d.crc = update(d.crc, p)
	d.n += uint64(len(p))
	return len(p), nil
}

// Sum32 returns the cksum of everything written so far without altering
// the digest state.
func (d *Digest) Sum32() uint32 {
	crc := d.crc
	for n := d.n; n != 0; n >>= 8 {
		crc = crc<<8 ^ table[byte(crc>>24)^byte(n)]
	}
	return ^crc
}

func (d *Digest) Sum(in []byte) []byte {
	return binary.BigEndian.AppendUint32(in, d.Sum32())
}

func (d *Digest) Reset() {
	d.crc = 0
	d.n = 0
}

func (d *Digest) Size() int      { return Size }
func (d *Digest) BlockSize() int { return 1 }

// Sum returns the cksum of data.
func Sum(data []byte) uint32 {
	var d Digest
	_, _ = d.Write(data)
	return d.Sum32()
}
