package binary

import "encoding/binary"

// Writer appends binary-format encodings to a growing byte slice. It is used
// to assemble test modules, so it never fails.
type Writer struct {
	out []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte { return w.out }

func (w *Writer) Len() int { return len(w.out) }

func (w *Writer) Byte(b byte) {
	w.out = append(w.out, b)
}

func (w *Writer) WriteBytes(data []byte) {
	w.out = append(w.out, data...)
}

// WriteU32 appends v as unsigned LEB128.
func (w *Writer) WriteU32(v uint32) {
	for v >= 0x80 {
		w.out = append(w.out, byte(v)|0x80)
		v >>= 7
	}
	w.out = append(w.out, byte(v))
}

// WriteS64 appends v as signed LEB128, stopping once the sign bit of the
// last group matches the remaining value.
func (w *Writer) WriteS64(v int64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		w.out = append(w.out, b)
		if done {
			return
		}
	}
}

func (w *Writer) WriteName(s string) {
	w.WriteU32(uint32(len(s)))
	w.out = append(w.out, s...)
}

func (w *Writer) WriteU32LE(v uint32) {
	w.out = binary.LittleEndian.AppendUint32(w.out, v)
}

// WriteSection appends a section: id, payload size, payload.
func (w *Writer) WriteSection(id byte, payload []byte) {
	w.Byte(id)
	w.WriteU32(uint32(len(payload)))
	w.WriteBytes(payload)
}
