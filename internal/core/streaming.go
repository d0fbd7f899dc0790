package core

// streaming.go provides the readers used to consume delimited payloads
// without loading them into memory:
//
//   - StripBOM removes a leading UTF-8 byte order mark
//   - DecodeText picks UTF-8 or Windows-1252 from a sample of the payload
//   - CountingReader tracks bytes consumed for logging
//
// Use OpenText to apply all of them in the correct order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// SampleSize is how much of a payload the validation checks inspect.
const SampleSize = 2 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// StripBOM returns a reader that skips a leading UTF-8 BOM if present.
func StripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// TrimBOM removes a leading UTF-8 BOM from an in-memory sample.
func TrimBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, utf8BOM)
}

// IsUTF8 reports whether sample is valid UTF-8. A multi-byte sequence cut
// off at the end of the sample is tolerated.
func IsUTF8(sample []byte) bool {
	return utf8.Valid(sample[:len(sample)-incompleteTrailingBytes(sample)])
}

// DecodeText returns r decoded to UTF-8. Payloads whose sample is not UTF-8
// are treated as Windows-1252.
func DecodeText(r io.Reader, sample []byte) io.Reader {
	if IsUTF8(sample) {
		return r
	}
	return transform.NewReader(r, charmap.Windows1252.NewDecoder())
}

// DecodeSample converts a sample to UTF-8 text using the same rule as
// DecodeText.
func DecodeSample(sample []byte) string {
	sample = TrimBOM(sample)
	if IsUTF8(sample) {
		return string(sample[:len(sample)-incompleteTrailingBytes(sample)])
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(sample)
	if err != nil {
		return string(bytes.ToValidUTF8(sample, []byte("?")))
	}
	return string(out)
}

// ReadSample reads up to n bytes from r.
func ReadSample(r io.Reader, n int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, n))
}

// incompleteTrailingBytes returns the number of bytes at the end of data
// that start a multi-byte sequence the data does not finish.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the expected length of a UTF-8 sequence starting with b.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	}
	return 4
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// OpenText wraps a raw payload reader for delimited parsing: the BOM is
// stripped, the text decoded according to sample, and bytes counted.
//
// The order matters: the BOM is only recognisable before decoding.
func OpenText(r io.Reader, sample []byte) *CountingReader {
	return NewCountingReader(DecodeText(StripBOM(r), TrimBOM(sample)))
}
