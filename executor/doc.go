// Package executor loads plugin modules into a WebAssembly runtime after
// checking that they may be loaded at all.
//
// # Overview
//
// An [Executor] owns one wazero runtime with WASI and the capability table
// from [github.com/caffeineduck/hookwarden/hostfunc] instantiated in it.
// Every module passes the trust gate in [Executor.Load] before it is
// compiled:
//
//   - with [WithChecksum], the SHA-256 of the bytes must match;
//   - with [WithSignature], the ed25519 signature must verify against a
//     trusted key of the executor's signer;
//   - [WithRequireChecksum] and [WithRequireSignature] make the
//     corresponding input mandatory.
//
// # Basic Usage
//
//	signer := signing.NewSigner()
//	signer.AddTrustedKeyHex(pub)
//
//	exec, err := executor.New(bridge,
//	    executor.WithSigner(signer),
//	    executor.WithRequireSignature(),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	inst, err := exec.Load(ctx, "git-status", wasm, hostfunc.PluginContext{Cwd: cwd},
//	    executor.WithSignature(sig),
//	)
//	code, err := inst.Call(ctx, "hook_tool_execute_before")
//
// # Lifecycle
//
// A module may export init and shutdown, each returning an i32. init runs on
// load and a non-zero result fails the load; shutdown runs on unload and a
// non-zero result is logged.
package executor
