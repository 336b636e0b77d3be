package wasmtest

import "github.com/wippyai/wasm-executor/internal/binary"

const (
	opUnreachable  byte = 0x00
	opLoop         byte = 0x03
	opEnd          byte = 0x0B
	opBr           byte = 0x0C
	opCall         byte = 0x10
	opDrop         byte = 0x1A
	opLocalGet     byte = 0x20
	opI32Store8    byte = 0x3A
	opMemoryGrow   byte = 0x40
	opI32Const     byte = 0x41
	opI64Const     byte = 0x42
	opI64Or        byte = 0x84
	opI64Shl       byte = 0x86
	opI64ExtendU32 byte = 0xAD
)

// packLocals appends code returning (len << 32) | ptr where len is produced
// by lenCode and ptr is local 0.
func packLocals(w *binary.Writer, lenCode []byte) {
	w.WriteBytes(lenCode)
	w.Byte(opI64ExtendU32)
	w.Byte(opI64Const)
	w.WriteS64(32)
	w.Byte(opI64Shl)
	w.Byte(opLocalGet)
	w.WriteU32(0)
	w.Byte(opI64ExtendU32)
	w.Byte(opI64Or)
}

// EchoBody returns the input region unchanged: result = (len << 32) | ptr.
func EchoBody() []byte {
	w := binary.NewWriter()
	packLocals(w, []byte{opLocalGet, 1})
	w.Byte(opEnd)
	return w.Bytes()
}

// MarkBody stores 0x2A at the input pointer and returns a 1-byte region there.
func MarkBody() []byte {
	w := binary.NewWriter()
	w.Byte(opLocalGet)
	w.WriteU32(0)
	w.Byte(opI32Const)
	w.WriteS64(0x2A)
	w.Byte(opI32Store8)
	w.WriteU32(0) // align
	w.WriteU32(0) // offset
	packLocals(w, []byte{opI32Const, 1})
	w.Byte(opEnd)
	return w.Bytes()
}

// GrowEchoBody grows memory by pages from inside the guest, then echoes.
func GrowEchoBody(pages int32) []byte {
	w := binary.NewWriter()
	w.Byte(opI32Const)
	w.WriteS64(int64(pages))
	w.Byte(opMemoryGrow)
	w.Byte(0x00)
	w.Byte(opDrop)
	packLocals(w, []byte{opLocalGet, 1})
	w.Byte(opEnd)
	return w.Bytes()
}

// CallLenBody passes the input length to the imported function fn and returns
// the input pointer with the function's result as length.
func CallLenBody(fn uint32) []byte {
	code := binary.NewWriter()
	code.Byte(opLocalGet)
	code.WriteU32(1)
	code.Byte(opCall)
	code.WriteU32(fn)

	w := binary.NewWriter()
	packLocals(w, code.Bytes())
	w.Byte(opEnd)
	return w.Bytes()
}

// ConstI64Body returns v.
func ConstI64Body(v int64) []byte {
	w := binary.NewWriter()
	w.Byte(opI64Const)
	w.WriteS64(v)
	w.Byte(opEnd)
	return w.Bytes()
}

// TrapBody traps unconditionally.
func TrapBody() []byte {
	return []byte{opUnreachable, opEnd}
}

// SpinBody loops forever; it only ends when the engine interrupts it.
func SpinBody() []byte {
	return []byte{opLoop, 0x40, opBr, 0x00, opEnd, opUnreachable, opEnd}
}

// EmptyBody returns nothing.
func EmptyBody() []byte {
	return []byte{opEnd}
}
