package checksum

import (
	"bytes"
	"testing"
)

// reference values produced by coreutils cksum
var vectors = []struct {
	name string
	data []byte
	want uint32
}{
	{"empty", nil, 4294967295},
	{"digits", []byte("123456789"), 930766865},
	{"hello", []byte("hello world\n"), 3733384285},
	{"fox", []byte("The quick brown fox jumps over the lazy dog"), 2074844392},
	{"zeros", make([]byte, 1000), 2610763910},
}

func TestSumMatchesCoreutils(t *testing.T) {
	for _, v := range vectors {
		if got := Sum(v.data); got != v.want {
			t.Fatalf("%s: got %d want %d", v.name, got, v.want)
		}
	}
}

func TestDigestStreamingMatchesSum(t *testing.T) {
	data := bytes.Repeat([]byte("sealdrop chunk "), 500)
	d := New()
	for off := 0; off < len(data); off += 734 {
		end := min(off+734, len(data))
		if _, err := d.Write(data[off:end]); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if d.Sum32() != Sum(data) {
		t.Fatalf("streaming sum %d != one-shot %d", d.Sum32(), Sum(data))
	}
	if d.Sum32() != d.Sum32() {
		t.Fatalf("Sum32 must not mutate state")
	}
	d.Reset()
	if d.Sum32() != Sum(nil) {
		t.Fatalf("reset digest should match empty input")
	}
}

func TestTableMatchesBitwise(t *testing.T) {
	bitwise := func(data []byte) uint32 {
		var crc uint32
		feed := func(b byte) {
			crc ^= uint32(b) << 24
			for i := 0; i < 8; i++ {
				if crc&0x80000000 != 0 {
					crc = crc<<1 ^ poly
				} else {
					crc <<= 1
				}
			}
		}
		for _, b := range data {
			feed(b)
		}
		for n := len(data); n != 0; n >>= 8 {
			feed(byte(n))
		}
		return ^crc
	}
	for _, v := range vectors {
		if got := bitwise(v.data); got != v.want {
			t.Fatalf("%s: bitwise reference got %d want %d", v.name, got, v.want)
		}
	}
	data := make([]byte, 70000)
	for i := range data {
		data[i] = byte(i * 31)
	}
	if Sum(data) != bitwise(data) {
		t.Fatalf("table and bitwise disagree on long input")
	}
}

func TestSumBigEndian(t *testing.T) {
	d := New()
	_, _ = d.Write([]byte("123456789"))
	if got := d.Sum(nil); !bytes.Equal(got, []byte{0x37, 0x7a, 0x60, 0x11}) {
		t.Fatalf("unexpected digest bytes: %x", got)
	}
}
