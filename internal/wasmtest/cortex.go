package wasmtest

// Cortex holds the function indices of the imported capability table.
type Cortex struct {
	Log                uint32
	GetContext         uint32
	ReadContext        uint32
	RegisterWidget     uint32
	RegisterKeybinding uint32
	ShowToast          uint32
	EmitEvent          uint32
}

// ImportCortex imports every capability table function.
func ImportCortex(b *Builder) Cortex {
	i32 := func(n int) []ValType {
		out := make([]ValType, n)
		for i := range out {
			out[i] = I32
		}
		return out
	}
	return Cortex{
		Log:                b.Import("cortex", "log", i32(3), nil),
		GetContext:         b.Import("cortex", "get_context", nil, []ValType{I64}),
		ReadContext:        b.Import("cortex", "read_context", i32(2), i32(1)),
		RegisterWidget:     b.Import("cortex", "register_widget", i32(3), i32(1)),
		RegisterKeybinding: b.Import("cortex", "register_keybinding", i32(4), i32(1)),
		ShowToast:          b.Import("cortex", "show_toast", i32(4), i32(1)),
		EmitEvent:          b.Import("cortex", "emit_event", i32(4), i32(1)),
	}
}

// Returning is a function body that returns a constant.
func Returning(v int32) []byte {
	return I32Const(v)
}

// HookPlugin builds a module exporting init and shutdown, both returning 0,
// plus one export per entry of hooks returning the given constant. The module
// imports the capability table and calls log once from init.
func HookPlugin(hooks map[string]int32) []byte {
	b := New()
	c := ImportCortex(b)
	b.Memory(1)
	ptr, n := b.String("plugin initialized")

	b.Func("init", []ValType{I32},
		I32Const(2), I32Const(ptr), I32Const(n), Call(c.Log),
		I32Const(0),
	)
	b.Func("shutdown", []ValType{I32}, I32Const(0))
	for name, code := range hooks {
		b.Func(name, []ValType{I32}, Returning(code))
	}
	return b.Build()
}

// FailingInit builds a module whose init export returns code.
func FailingInit(code int32) []byte {
	b := New()
	b.Memory(1)
	b.Func("init", []ValType{I32}, I32Const(code))
	return b.Build()
}

// TrappingInit builds a module whose init export traps.
func TrappingInit() []byte {
	b := New()
	b.Memory(1)
	b.Func("init", []ValType{I32}, Unreachable())
	return b.Build()
}
