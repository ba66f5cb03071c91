// Package hostfunc provides the capability table plugins link against.
//
// A guest module imports a fixed set of functions from the "cortex" namespace.
// Every argument it passes is untrusted: pointers and lengths are bounds
// checked against the guest's current linear memory, text is validated as
// UTF-8 and copied out, and enum ordinals are range checked. Failures are
// reported to the guest as negative [Status] codes and never trap the host.
//
// # Functions
//
//	log(level, msg_ptr, msg_len)
//	get_context() -> i64
//	read_context(buf_ptr, buf_len) -> i32
//	register_widget(region, type_ptr, type_len) -> i32
//	register_keybinding(key_ptr, key_len, action_ptr, action_len) -> i32
//	show_toast(level, msg_ptr, msg_len, duration_ms) -> i32
//	emit_event(name_ptr, name_len, data_ptr, data_len) -> i32
//
// # State
//
// Each loaded module owns one [State], bound to the [Bridge] under the
// module's instantiation name:
//
//	bridge, _ := hostfunc.NewBridge(hostfunc.WithLogger(log))
//	if _, err := bridge.Instantiate(ctx, runtime); err != nil {
//	    return err
//	}
//	bridge.Bind(hostfunc.NewState("my-plugin", hostfunc.PluginContext{Cwd: cwd}))
//
// Widgets, keybindings, events and toasts accumulate in the state until the
// host reads or drains them. A module whose state is not bound gets
// [StatusInternal] from every call.
package hostfunc
