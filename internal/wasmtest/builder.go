// Package wasmtest assembles small WebAssembly binaries for tests.
//
// Only the handful of instructions needed to drive host imports are
// supported. Functions take no parameters and have no locals.
package wasmtest

import "bytes"

// ValType is a WebAssembly value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

const (
	opUnreachable = 0x00
	opCall        = 0x10
	opDrop        = 0x1a
	opI32Const    = 0x41
	opI32WrapI64  = 0xa7
	opEnd         = 0x0b
)

type funcType struct {
	params  []ValType
	results []ValType
}

type importFunc struct {
	module, name string
	typeIdx      uint32
}

type function struct {
	typeIdx uint32
	body    []byte
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type segment struct {
	offset uint32
	data   []byte
}

// Builder accumulates the sections of one module.
type Builder struct {
	types   []funcType
	imports []importFunc
	funcs   []function
	exports []export
	pages   uint32
	data    []segment
	cursor  uint32
}

// New returns an empty builder. Data placed with String starts at offset 16.
func New() *Builder {
	return &Builder{cursor: 16}
}

func (b *Builder) typeOf(params, results []ValType) uint32 {
	b.types = append(b.types, funcType{params: params, results: results})
	return uint32(len(b.types) - 1)
}

// Import declares an imported function and returns its function index.
// All imports must be declared before the first Func.
func (b *Builder) Import(module, name string, params, results []ValType) uint32 {
	if len(b.funcs) > 0 {
		panic("wasmtest: Import after Func")
	}
	b.imports = append(b.imports, importFunc{module: module, name: name, typeIdx: b.typeOf(params, results)})
	return uint32(len(b.imports) - 1)
}

// Func defines a function with no parameters and exports it under name
// when name is non-empty. code is the instruction stream without the
// trailing end opcode.
func (b *Builder) Func(name string, results []ValType, code ...[]byte) uint32 {
	idx := uint32(len(b.imports) + len(b.funcs))
	b.funcs = append(b.funcs, function{typeIdx: b.typeOf(nil, results), body: bytes.Join(code, nil)})
	if name != "" {
		b.exports = append(b.exports, export{name: name, kind: 0x00, idx: idx})
	}
	return idx
}

// Memory declares one memory of the given page count, exported as "memory".
func (b *Builder) Memory(pages uint32) {
	b.pages = pages
	b.exports = append(b.exports, export{name: "memory", kind: 0x02, idx: 0})
}

// Data places raw bytes at offset.
func (b *Builder) Data(offset uint32, data []byte) {
	b.data = append(b.data, segment{offset: offset, data: data})
}

// Bytes places data after the previously placed data and returns its pointer
// and length.
func (b *Builder) Bytes(data []byte) (int32, int32) {
	ptr := b.cursor
	b.Data(ptr, data)
	b.cursor += uint32(len(data))
	return int32(ptr), int32(len(data))
}

// String is Bytes for text.
func (b *Builder) String(s string) (int32, int32) {
	return b.Bytes([]byte(s))
}

// Build encodes the module.
func (b *Builder) Build() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	if len(b.types) > 0 {
		var sec []byte
		sec = appendULEB(sec, uint64(len(b.types)))
		for _, t := range b.types {
			sec = append(sec, 0x60)
			sec = appendULEB(sec, uint64(len(t.params)))
			for _, p := range t.params {
				sec = append(sec, byte(p))
			}
			sec = appendULEB(sec, uint64(len(t.results)))
			for _, r := range t.results {
				sec = append(sec, byte(r))
			}
		}
		out = appendSection(out, 1, sec)
	}

	if len(b.imports) > 0 {
		var sec []byte
		sec = appendULEB(sec, uint64(len(b.imports)))
		for _, imp := range b.imports {
			sec = appendName(sec, imp.module)
			sec = appendName(sec, imp.name)
			sec = append(sec, 0x00)
			sec = appendULEB(sec, uint64(imp.typeIdx))
		}
		out = appendSection(out, 2, sec)
	}

	if len(b.funcs) > 0 {
		var sec []byte
		sec = appendULEB(sec, uint64(len(b.funcs)))
		for _, f := range b.funcs {
			sec = appendULEB(sec, uint64(f.typeIdx))
		}
		out = appendSection(out, 3, sec)
	}

	if b.pages > 0 {
		sec := []byte{0x01, 0x00}
		sec = appendULEB(sec, uint64(b.pages))
		out = appendSection(out, 5, sec)
	}

	if len(b.exports) > 0 {
		var sec []byte
		sec = appendULEB(sec, uint64(len(b.exports)))
		for _, e := range b.exports {
			sec = appendName(sec, e.name)
			sec = append(sec, e.kind)
			sec = appendULEB(sec, uint64(e.idx))
		}
		out = appendSection(out, 7, sec)
	}

	if len(b.funcs) > 0 {
		var sec []byte
		sec = appendULEB(sec, uint64(len(b.funcs)))
		for _, f := range b.funcs {
			body := []byte{0x00} // no locals
			body = append(body, f.body...)
			body = append(body, opEnd)
			sec = appendULEB(sec, uint64(len(body)))
			sec = append(sec, body...)
		}
		out = appendSection(out, 10, sec)
	}

	if len(b.data) > 0 {
		var sec []byte
		sec = appendULEB(sec, uint64(len(b.data)))
		for _, d := range b.data {
			sec = append(sec, 0x00, opI32Const)
			sec = appendSLEB(sec, int64(int32(d.offset)))
			sec = append(sec, opEnd)
			sec = appendULEB(sec, uint64(len(d.data)))
			sec = append(sec, d.data...)
		}
		out = appendSection(out, 11, sec)
	}

	return out
}

// I32Const pushes v.
func I32Const(v int32) []byte {
	return appendSLEB([]byte{opI32Const}, int64(v))
}

// Call calls the function at idx.
func Call(idx uint32) []byte {
	return appendULEB([]byte{opCall}, uint64(idx))
}

// Drop discards the top of the stack.
func Drop() []byte {
	return []byte{opDrop}
}

// WrapI64 truncates an i64 on the stack to i32.
func WrapI64() []byte {
	return []byte{opI32WrapI64}
}

// Unreachable traps.
func Unreachable() []byte {
	return []byte{opUnreachable}
}

func appendSection(out []byte, id byte, content []byte) []byte {
	out = append(out, id)
	out = appendULEB(out, uint64(len(content)))
	return append(out, content...)
}

func appendName(out []byte, s string) []byte {
	out = appendULEB(out, uint64(len(s)))
	return append(out, s...)
}

func appendULEB(out []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		out = append(out, c)
		if v == 0 {
			return out
		}
	}
}

func appendSLEB(out []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0)
		if !done {
			c |= 0x80
		}
		out = append(out, c)
		if done {
			return out
		}
	}
}
