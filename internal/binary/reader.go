// Package binary reads and writes the primitive encodings of the WebAssembly
// binary format: LEB128 integers, names and fixed-width words.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrOverflow = errors.New("leb128: overflow")
	ErrEOF      = errors.New("unexpected end of data")
	ErrBadName  = errors.New("name is not valid UTF-8")
)

// Reader is a cursor over a module binary held fully in memory. Slices it
// returns alias the underlying data.
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Position() int { return r.pos }

// Len is the number of unread bytes.
func (r *Reader) Len() int { return len(r.data) - r.pos }

func (r *Reader) ReadByte() (byte, error) {
	if r.Len() == 0 {
		return 0, r.errorf(ErrEOF)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes returns the next n bytes. A short read leaves the cursor where it was.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, r.errorf(ErrEOF)
	}
	start := r.pos
	r.pos += n
	return r.data[start:r.pos], nil
}

func (r *Reader) Skip(n int) error {
	_, err := r.ReadBytes(n)
	return err
}

// ReadU32 decodes an unsigned LEB128 value of at most 5 bytes.
func (r *Reader) ReadU32() (uint32, error) {
	v, err := r.uvarint(5)
	return uint32(v), err
}

// ReadU64 decodes an unsigned LEB128 value of at most 10 bytes.
func (r *Reader) ReadU64() (uint64, error) {
	return r.uvarint(10)
}

// SkipLEB128 steps over one LEB128 value without decoding it.
func (r *Reader) SkipLEB128() error {
	_, err := r.uvarint(10)
	return err
}

func (r *Reader) uvarint(maxBytes int) (uint64, error) {
	var v uint64
	for i := 0; i < maxBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, r.errorf(ErrOverflow)
}

// ReadName reads a vec(byte) that must hold valid UTF-8.
func (r *Reader) ReadName() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	raw, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", r.errorf(ErrBadName)
	}
	return string(raw), nil
}

func (r *Reader) ReadU32LE() (uint32, error) {
	word, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(word), nil
}

// ReadSection reads one section header and returns its id and payload.
func (r *Reader) ReadSection() (byte, []byte, error) {
	id, err := r.ReadByte()
	if err != nil {
		return 0, nil, r.WrapError("section id", err)
	}
	size, err := r.ReadU32()
	if err != nil {
		return id, nil, r.WrapError("section size", err)
	}
	payload, err := r.ReadBytes(int(size))
	if err != nil {
		return id, nil, r.WrapError("section payload", err)
	}
	return id, payload, nil
}

func (r *Reader) errorf(err error) error {
	return fmt.Errorf("offset %d: %w", r.pos, err)
}

// ParseError locates a decoding failure within the module binary.
type ParseError struct {
	Err      error
	Section  string
	Position int
}

func (e *ParseError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("wasm: offset %d: %v", e.Position, e.Err)
	}
	return fmt.Sprintf("wasm: %s at offset %d: %v", e.Section, e.Position, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// WrapError tags err with what was being read and the current offset.
func (r *Reader) WrapError(what string, err error) error {
	return &ParseError{Err: err, Section: what, Position: r.pos}
}
