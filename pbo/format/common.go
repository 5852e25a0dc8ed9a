// Package format holds the on-disk layout of a PBO archive: the preamble,
// the null-terminated-string and little-endian integer primitives, and the
// per-file entry header codec.
package format

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	// Fixed marker following the (empty) product string in the preamble.
	SIGNATURE_STRING = "sreV"

	// Reserved bytes after the signature, zero on write.
	RESERVED_SIZE = 16

	// Size of the zero-filled checksum trailer at the end of the archive.
	// It is never computed or verified.
	CHECKSUM_SIZE = 21

	// Size of the five fixed u32 fields of an entry header.
	ENTRY_FIELDS_SIZE = 20

	// Separator used in stored entry names on every host.
	PATH_SEPARATOR = `\`
)

var (
	// The full fixed preamble: empty product string, signature, reserved block.
	PREAMBLE_BYTES = append([]byte{0, 's', 'r', 'e', 'V', 0}, make([]byte, RESERVED_SIZE)...)
)

type PackingMethod uint32

const (
	// The only method ever written. Payload bytes are copied verbatim.
	PACKING_METHOD_STORED PackingMethod = 0
)

// Reporter receives human-readable progress strings during pack and extract.
// Calls are advisory and fire-and-forget; a nil Reporter disables reporting.
type Reporter func(message string)

// EncodeString encodes s as null-terminated ASCII. Code points outside ASCII
// are dropped; encoding never fails.
func EncodeString(s string) []byte {
	out := make([]byte, 0, len(s)+1)
	for _, r := range s {
		if r < 0x80 {
			out = append(out, byte(r))
		}
	}
	return append(out, 0)
}

// DecodeString scans forward from off for the next null byte and returns the
// ASCII string before it plus the offset past the terminator. Bytes outside
// ASCII are dropped. A buffer with no terminator left decodes as the empty
// string with the cursor at the end of the buffer.
func DecodeString(buf []byte, off int) (string, int) {
	end := bytes.IndexByte(buf[off:], 0)
	if end < 0 {
		return "", len(buf)
	}
	out := make([]byte, 0, end)
	for _, b := range buf[off : off+end] {
		if b < 0x80 {
			out = append(out, b)
		}
	}
	return string(out), off + end + 1
}

func EncodeU32LE(n uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, n)
	return b
}

func DecodeU32LE(buf []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(buf[off : off+4])
}

// Entry is one record of the header table. The payload position of an entry
// is not stored; readers accumulate DataSize over the preceding entries.
type Entry struct {
	// Stored path, PATH_SEPARATOR-separated
	Name string
	// Packing method (always stored)
	Method PackingMethod
	// Unpacked size; equals DataSize for stored entries
	OriginalSize uint32
	// Always zero
	Reserved uint32
	// Modification time, POSIX seconds
	Timestamp uint32
	// Number of payload bytes belonging to this entry
	DataSize uint32
}

// IsTerminator reports whether the entry is the empty-name sentinel that ends
// the header table.
func (e *Entry) IsTerminator() bool {
	return e.Name == ""
}

func (e *Entry) WriteEntry(w io.Writer) error {
	if _, err := w.Write(EncodeString(e.Name)); err != nil {
		return errors.Wrap(err, "failed to write entry name")
	}
	for _, field := range []uint32{uint32(e.Method), e.OriginalSize, e.Reserved, e.Timestamp, e.DataSize} {
		if _, err := w.Write(EncodeU32LE(field)); err != nil {
			return errors.Wrap(err, "failed to write entry fields")
		}
	}
	return nil
}

func (e *Entry) ToBytes() []byte {
	b := new(bytes.Buffer)
	e.WriteEntry(b)
	return b.Bytes()
}

// WriteTerminator emits the empty-name, all-zero entry ending a header table.
func WriteTerminator(w io.Writer) error {
	terminator := Entry{}
	return terminator.WriteEntry(w)
}

// DecodeEntry decodes one entry header at off. ok is false when the buffer
// ends before a complete header could be read, which callers must treat as
// the end of the header table. The terminator decodes as an ordinary entry;
// use IsTerminator to detect it.
func DecodeEntry(buf []byte, off int) (Entry, int, bool) {
	name, off := DecodeString(buf, off)
	if off+ENTRY_FIELDS_SIZE > len(buf) {
		return Entry{}, len(buf), false
	}
	e := Entry{
		Name:         name,
		Method:       PackingMethod(DecodeU32LE(buf, off)),
		OriginalSize: DecodeU32LE(buf, off+4),
		Reserved:     DecodeU32LE(buf, off+8),
		Timestamp:    DecodeU32LE(buf, off+12),
		DataSize:     DecodeU32LE(buf, off+16),
	}
	return e, off + ENTRY_FIELDS_SIZE, true
}
