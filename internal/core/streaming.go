package core

// streaming.go provides the reader wrappers applied to every uploaded file
// before it reaches the CSV parser:
//
//   - BOMSkippingReader: drops a leading UTF-8 BOM written by Excel on Windows
//   - StreamingUTF8Sanitizer: replaces invalid UTF-8 bytes with '?'
//   - SizeLimitReader: counts bytes and fails once a configured limit is crossed
//
// Instrument exports in Latin-1 or Windows-1252 are decoded with
// golang.org/x/text instead of being sanitized, see WrapForReading.

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ErrFileTooLarge is returned by SizeLimitReader when the limit is exceeded.
var ErrFileTooLarge = fmt.Errorf("file too large")

// BOMSkippingReader skips the UTF-8 BOM (0xEF 0xBB 0xBF) if present.
type BOMSkippingReader struct {
	reader  io.Reader
	checked bool
	pending []byte
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true

		var head [3]byte
		n, err := io.ReadFull(r.reader, head[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if !(n == 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF) {
			r.pending = append(r.pending, head[:n]...)
		}
		if len(r.pending) == 0 && err == io.EOF {
			return 0, io.EOF
		}
	}

	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}

	return r.reader.Read(p)
}

// StreamingUTF8Sanitizer replaces invalid UTF-8 sequences with '?' on the fly.
// A multi-byte sequence split across two reads is carried over to the next call.
type StreamingUTF8Sanitizer struct {
	reader  io.Reader
	pending []byte
}

// NewStreamingUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewStreamingUTF8Sanitizer(r io.Reader) *StreamingUTF8Sanitizer {
	return &StreamingUTF8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *StreamingUTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	return s.sanitize(p[:n], err == io.EOF), err
}

// sanitize rewrites data in place and returns the number of bytes to emit.
// Unless atEOF, an incomplete rune at the end is held back in pending.
func (s *StreamingUTF8Sanitizer) sanitize(data []byte, atEOF bool) int {
	write := 0
	for read := 0; read < len(data); {
		if data[read] < utf8.RuneSelf {
			data[write] = data[read]
			write++
			read++
			continue
		}

		if !atEOF && !utf8.FullRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// SizeLimitReader counts bytes read and fails with ErrFileTooLarge past Limit.
// A Limit of zero disables the check.
type SizeLimitReader struct {
	reader    io.Reader
	BytesRead int64
	Limit     int64
}

// NewSizeLimitReader wraps r with a byte counter.
func NewSizeLimitReader(r io.Reader, limit int64) *SizeLimitReader {
	return &SizeLimitReader{reader: r, Limit: limit}
}

// Read implements io.Reader.
func (r *SizeLimitReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	if r.Limit > 0 && r.BytesRead > r.Limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, r.Limit)
	}
	return n, err
}

// encodingFor maps an encoding name to a decoder. nil means UTF-8.
func encodingFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("encoding error: unsupported encoding %q", name)
	}
}

// WrapForReading applies size limiting, BOM skipping and either UTF-8
// sanitization or single-byte decoding, in that order.
func WrapForReading(r io.Reader, encodingName string, limit int64) (io.Reader, error) {
	enc, err := encodingFor(encodingName)
	if err != nil {
		return nil, err
	}
	limited := NewSizeLimitReader(r, limit)
	if enc != nil {
		return transform.NewReader(limited, enc.NewDecoder()), nil
	}
	return NewStreamingUTF8Sanitizer(NewBOMSkippingReader(limited)), nil
}
