package hostfunc

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// ModuleName is the import namespace guests link the capability table from.
const ModuleName = "cortex"

// resolve finds the state bound to the calling module and its memory.
func (b *Bridge) resolve(m api.Module) (*State, Memory, bool) {
	if m == nil {
		return nil, nil, false
	}
	st, ok := b.State(m.Name())
	if !ok {
		b.log.Error().Str("module", m.Name()).Msg("host call from module without bound state")
		return nil, nil, false
	}
	var mem Memory
	if wm := m.Memory(); wm != nil {
		mem = wm
	}
	return st, mem, true
}

// Instantiate defines the capability table as the "cortex" host module in r.
// It must be called once per runtime, before any guest importing it is
// instantiated.
func (b *Bridge) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(ModuleName)

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, level, ptr, length int32) {
			st, mem, ok := b.resolve(m)
			if !ok {
				return
			}
			b.Log(st, mem, level, ptr, length)
		}).
		WithParameterNames("level", "msg_ptr", "msg_len").
		Export(FuncLog)

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module) int64 {
			st, _, ok := b.resolve(m)
			if !ok {
				return int64(StatusInternal)
			}
			return b.GetContext(st)
		}).
		Export(FuncGetContext)

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, ptr, length int32) int32 {
			st, mem, ok := b.resolve(m)
			if !ok {
				return int32(StatusInternal)
			}
			return b.ReadContext(st, mem, ptr, length)
		}).
		WithParameterNames("buf_ptr", "buf_len").
		Export(FuncReadContext)

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, region, typePtr, typeLen int32) int32 {
			st, mem, ok := b.resolve(m)
			if !ok {
				return int32(StatusInternal)
			}
			return b.RegisterWidget(st, mem, region, typePtr, typeLen)
		}).
		WithParameterNames("region", "type_ptr", "type_len").
		Export(FuncRegisterWidget)

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, keyPtr, keyLen, actionPtr, actionLen int32) int32 {
			st, mem, ok := b.resolve(m)
			if !ok {
				return int32(StatusInternal)
			}
			return b.RegisterKeybinding(st, mem, keyPtr, keyLen, actionPtr, actionLen)
		}).
		WithParameterNames("key_ptr", "key_len", "action_ptr", "action_len").
		Export(FuncRegisterKeybinding)

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, level, msgPtr, msgLen, durationMS int32) int32 {
			st, mem, ok := b.resolve(m)
			if !ok {
				return int32(StatusInternal)
			}
			return b.ShowToast(st, mem, level, msgPtr, msgLen, durationMS)
		}).
		WithParameterNames("level", "msg_ptr", "msg_len", "duration_ms").
		Export(FuncShowToast)

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, namePtr, nameLen, dataPtr, dataLen int32) int32 {
			st, mem, ok := b.resolve(m)
			if !ok {
				return int32(StatusInternal)
			}
			return b.EmitEvent(st, mem, namePtr, nameLen, dataPtr, dataLen)
		}).
		WithParameterNames("name_ptr", "name_len", "data_ptr", "data_len").
		Export(FuncEmitEvent)

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s host module: %w", ModuleName, err)
	}
	return mod, nil
}
