// Package hookwarden lets untrusted extensions hook an autonomous coding
// agent's lifecycle while the host keeps control of what they can see,
// change and authorize.
//
// # Overview
//
// Extensions are WebAssembly modules or Lua scripts. WebAssembly modules
// reach the host only through a small capability table imported from the
// "cortex" namespace; every pointer they pass is bounds-checked and every
// failure comes back as a negative status code, never a trap. Modules are
// checked against a SHA-256 checksum and an ed25519 signature before they
// are compiled.
//
// Hooks run in priority order at six points: tool.execute.before,
// tool.execute.after, chat.message, permission.ask, session.start and
// session.end. A hook may continue, skip, abort or replace; only abort stops
// the guarded operation. For permission.ask, an allow from a source the
// trust policy does not vouch for is turned back into ask.
//
// # Basic Usage
//
//	bridge, _ := hostfunc.NewBridge()
//	exec, _ := executor.New(bridge, executor.WithSigner(signer), executor.WithRequireSignature())
//	defer exec.Close()
//
//	registry := hooks.NewRegistry()
//	manager := plugin.NewManager(exec, registry)
//	manager.LoadDir(ctx, "./plugins")
//
//	dispatcher := hooks.NewDispatcher(registry,
//	    hooks.WithTrustPolicy(hooks.NewStaticTrust("builtin")))
//
//	out, err := dispatcher.ToolExecuteBefore(ctx, hooks.ToolBeforeInput{
//	    Tool: "bash",
//	    Args: []byte(`{"command":"ls"}`),
//	})
//	if err == nil && !out.Result.ShouldContinue() {
//	    // blocked: out.Result.Reason
//	}
//
// See the [hostfunc], [hooks], [signing], [executor], [plugin] and [luahook]
// packages for detailed API documentation.
package hookwarden
