package wasmexecutor

// PageSize is the size of one linear memory page in bytes.
const PageSize = 65536

// Pointer is a module-relative byte offset into linear memory.
// It is meaningless outside the memory of the instance that produced it.
type Pointer uint32

// WordSize is a byte length used in allocation requests.
type WordSize uint32

// Allocator manages a heap region inside linear memory.
//
// Each call receives a view of the whole linear memory that is valid for that
// call only. Implementations keep their bookkeeping outside the buffer or
// inside it at offsets they own, and must not retain mem after returning.
type Allocator interface {
	Allocate(mem []byte, size WordSize) (Pointer, error)
	Deallocate(mem []byte, ptr Pointer) error
}

// PackPtrLen packs a pointer and a length into the 64-bit entrypoint result
// form: pointer in the low 32 bits, length in the high 32 bits.
func PackPtrLen(ptr Pointer, length WordSize) uint64 {
	return uint64(length)<<32 | uint64(ptr)
}

// UnpackPtrLen is the inverse of PackPtrLen.
func UnpackPtrLen(v uint64) (Pointer, WordSize) {
	return Pointer(uint32(v)), WordSize(uint32(v >> 32))
}
