package hostfunc

import (
	"math/bits"
	"unicode/utf8"
)

// Memory is the view of a guest's linear memory the bridge works against.
// wazero's api.Memory satisfies it.
type Memory interface {
	Size() uint32
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// span validates a guest (ptr, len) pair against the current memory size and
// returns the offset and length to use. The guest's claimed length is never
// trusted past this check.
func span(mem Memory, ptr, length int32) (uint32, uint32, Status) {
	if ptr < 0 || length < 0 {
		return 0, 0, StatusOutOfBounds
	}
	if mem == nil {
		return 0, 0, StatusInternal
	}
	end, carry := bits.Add32(uint32(ptr), uint32(length), 0)
	if carry != 0 {
		return 0, 0, StatusOutOfBounds
	}
	if end > mem.Size() {
		return 0, 0, StatusOutOfBounds
	}
	return uint32(ptr), uint32(length), StatusSuccess
}

// ReadString copies [ptr, ptr+length) out of guest memory and validates it as
// UTF-8. Nothing is retained that aliases guest memory.
func ReadString(mem Memory, ptr, length int32) (string, Status) {
	off, n, st := span(mem, ptr, length)
	if !st.OK() {
		return "", st
	}
	if n == 0 {
		return "", StatusSuccess
	}
	buf, ok := mem.Read(off, n)
	if !ok {
		return "", StatusOutOfBounds
	}
	if !utf8.Valid(buf) {
		return "", StatusInvalidUTF8
	}
	return string(buf), StatusSuccess
}

// WriteBytes copies data into the guest buffer [ptr, ptr+capacity) and returns
// the number of bytes written. A buffer smaller than data is rejected whole.
func WriteBytes(mem Memory, ptr, capacity int32, data []byte) (int32, Status) {
	off, n, st := span(mem, ptr, capacity)
	if !st.OK() {
		return 0, st
	}
	if uint64(len(data)) > uint64(n) {
		return 0, StatusOutOfBounds
	}
	if len(data) == 0 {
		return 0, StatusSuccess
	}
	if !mem.Write(off, data) {
		return 0, StatusOutOfBounds
	}
	return int32(len(data)), StatusSuccess
}
