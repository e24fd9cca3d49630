package protocol

import (
	"bytes"
	"fmt"
	"regexp"
	"unicode/utf8"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9 ]+$`)

// ValidName reports whether name may be registered: 1..MaxNameLen bytes of
// ASCII letters, digits and spaces.
func ValidName(name string) bool {
	return len(name) > 0 && len(name) <= MaxNameLen && namePattern.MatchString(name)
}

// putFixedString writes s into a zeroed field of size bytes. Text longer than
// the field is truncated.
func putFixedString(dst []byte, s string) {
	clear(dst)
	copy(dst, s)
}

// readFixedString takes the bytes before the first NUL of a size-byte field.
func readFixedString(b []byte, size int, field string) (string, error) {
	if len(b) < size {
		return "", newFrameError(KindTruncated, fmt.Sprintf("%s needs %d bytes, got %d", field, size, len(b)))
	}
	raw := b[:size]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	if !utf8.Valid(raw) {
		return "", newFrameError(KindInvalidString, field+" is not valid utf-8")
	}
	return string(raw), nil
}

func fixedString(s string, size int) []byte {
	buf := make([]byte, size)
	putFixedString(buf, s)
	return buf
}
