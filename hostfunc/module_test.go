package hostfunc_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/caffeineduck/hookwarden/hostfunc"
	"github.com/caffeineduck/hookwarden/internal/wasmtest"
)

func buildGuest() []byte {
	b := wasmtest.New()
	c := wasmtest.ImportCortex(b)
	b.Memory(1)

	msgPtr, msgLen := b.String("hello from guest")
	widgetPtr, widgetLen := b.String("git-status")
	keyPtr, keyLen := b.String("ctrl+g")
	actionPtr, actionLen := b.String("git.status")
	toastPtr, toastLen := b.String("ready")
	eventPtr, eventLen := b.String("plugin.ready")
	dataPtr, dataLen := b.String(`{"ok":true}`)
	badPtr, badLen := b.Bytes([]byte{0xff, 0xfe})

	i32 := []wasmtest.ValType{wasmtest.I32}

	b.Func("init", i32,
		wasmtest.I32Const(3), wasmtest.I32Const(msgPtr), wasmtest.I32Const(msgLen), wasmtest.Call(c.Log),
		wasmtest.I32Const(int32(hostfunc.RegionStatusBar)), wasmtest.I32Const(widgetPtr), wasmtest.I32Const(widgetLen),
		wasmtest.Call(c.RegisterWidget), wasmtest.Drop(),
		wasmtest.I32Const(keyPtr), wasmtest.I32Const(keyLen), wasmtest.I32Const(actionPtr), wasmtest.I32Const(actionLen),
		wasmtest.Call(c.RegisterKeybinding), wasmtest.Drop(),
		wasmtest.I32Const(1), wasmtest.I32Const(toastPtr), wasmtest.I32Const(toastLen), wasmtest.I32Const(3000),
		wasmtest.Call(c.ShowToast), wasmtest.Drop(),
		wasmtest.I32Const(eventPtr), wasmtest.I32Const(eventLen), wasmtest.I32Const(dataPtr), wasmtest.I32Const(dataLen),
		wasmtest.Call(c.EmitEvent), wasmtest.Drop(),
		wasmtest.I32Const(0),
	)
	b.Func("oob_widget", i32,
		wasmtest.I32Const(0), wasmtest.I32Const(65530), wasmtest.I32Const(100), wasmtest.Call(c.RegisterWidget),
	)
	b.Func("bad_region", i32,
		wasmtest.I32Const(10), wasmtest.I32Const(widgetPtr), wasmtest.I32Const(widgetLen), wasmtest.Call(c.RegisterWidget),
	)
	b.Func("bad_utf8", i32,
		wasmtest.I32Const(badPtr), wasmtest.I32Const(badLen), wasmtest.I32Const(0), wasmtest.I32Const(0), wasmtest.Call(c.EmitEvent),
	)
	b.Func("ctx_len", i32, wasmtest.Call(c.GetContext), wasmtest.WrapI64())
	b.Func("read_ctx", i32, wasmtest.I32Const(4096), wasmtest.I32Const(1024), wasmtest.Call(c.ReadContext))
	b.Func("read_ctx_small", i32, wasmtest.I32Const(4096), wasmtest.I32Const(2), wasmtest.Call(c.ReadContext))
	return b.Build()
}

func call(t *testing.T, ctx context.Context, mod api.Module, name string) int32 {
	t.Helper()
	fn := mod.ExportedFunction(name)
	require.NotNil(t, fn, "export %s", name)
	res, err := fn.Call(ctx)
	require.NoError(t, err)
	require.Len(t, res, 1)
	return api.DecodeI32(res[0])
}

func TestInstantiateGuest(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	bridge, err := hostfunc.NewBridge()
	require.NoError(t, err)
	_, err = bridge.Instantiate(ctx, r)
	require.NoError(t, err)

	st := hostfunc.NewState("guest", hostfunc.PluginContext{Cwd: "/repo", Model: "m-1"})
	bridge.Bind(st)

	mod, err := r.InstantiateWithConfig(ctx, buildGuest(), wazero.NewModuleConfig().WithName("guest"))
	require.NoError(t, err)

	assert.Equal(t, int32(0), call(t, ctx, mod, "init"))

	widgets, err := st.Widgets()
	require.NoError(t, err)
	assert.Equal(t, []string{"git-status"}, widgets[hostfunc.RegionStatusBar])

	kb, err := st.Keybindings()
	require.NoError(t, err)
	assert.Equal(t, "git.status", kb["ctrl+g"])

	toasts, err := st.Toasts()
	require.NoError(t, err)
	require.Len(t, toasts, 1)
	assert.Equal(t, hostfunc.ToastSuccess, toasts[0].Level)
	assert.Equal(t, uint32(3000), toasts[0].DurationMS)

	events, err := st.Events()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "plugin.ready", events[0].Name)
	assert.JSONEq(t, `{"ok":true}`, events[0].Data)
	assert.Equal(t, "guest", events[0].PluginID)
	assert.NotEmpty(t, events[0].ID)

	assert.Equal(t, int32(hostfunc.StatusOutOfBounds), call(t, ctx, mod, "oob_widget"))
	assert.Equal(t, int32(hostfunc.StatusInvalidArgument), call(t, ctx, mod, "bad_region"))
	assert.Equal(t, int32(hostfunc.StatusInvalidUTF8), call(t, ctx, mod, "bad_utf8"))

	size := call(t, ctx, mod, "ctx_len")
	require.Positive(t, size)
	assert.Equal(t, size, call(t, ctx, mod, "read_ctx"))
	assert.Equal(t, int32(hostfunc.StatusOutOfBounds), call(t, ctx, mod, "read_ctx_small"))

	raw, ok := mod.Memory().Read(4096, uint32(size))
	require.True(t, ok)
	var pctx hostfunc.PluginContext
	require.NoError(t, json.Unmarshal(raw, &pctx))
	assert.Equal(t, "/repo", pctx.Cwd)
	assert.Equal(t, "m-1", pctx.Model)
}

func TestUnboundGuest(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	bridge, err := hostfunc.NewBridge()
	require.NoError(t, err)
	_, err = bridge.Instantiate(ctx, r)
	require.NoError(t, err)

	mod, err := r.InstantiateWithConfig(ctx, buildGuest(), wazero.NewModuleConfig().WithName("stray"))
	require.NoError(t, err)

	assert.Equal(t, int32(hostfunc.StatusInternal), call(t, ctx, mod, "bad_region"))
}

func TestIsolatedStates(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	bridge, err := hostfunc.NewBridge()
	require.NoError(t, err)
	_, err = bridge.Instantiate(ctx, r)
	require.NoError(t, err)

	a := hostfunc.NewState("a", hostfunc.PluginContext{})
	b := hostfunc.NewState("b", hostfunc.PluginContext{})
	bridge.Bind(a)
	bridge.Bind(b)

	modA, err := r.InstantiateWithConfig(ctx, buildGuest(), wazero.NewModuleConfig().WithName("a"))
	require.NoError(t, err)
	_, err = r.InstantiateWithConfig(ctx, buildGuest(), wazero.NewModuleConfig().WithName("b"))
	require.NoError(t, err)

	call(t, ctx, modA, "init")

	events, err := a.Events()
	require.NoError(t, err)
	assert.Len(t, events, 1)
	events, err = b.Events()
	require.NoError(t, err)
	assert.Empty(t, events)
}
