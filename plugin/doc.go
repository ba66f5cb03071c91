// Package plugin discovers plugin directories and wires them into a hook
// registry.
//
// A plugin directory holds a plugin.yaml manifest and one entry file:
//
//	id: command-guard
//	version: 1.0.0
//	wasm: guard.wasm
//	checksum: 9f86d0...
//	signature: 4a1c...
//	hooks:
//	  - point: tool.execute.before
//	    pattern: "bash*"
//	  - point: permission.ask
//	    export: decide
//	    priority: 10
//	commands:
//	  - name: guard-status
//	    description: Show what the guard has blocked
//
// WebAssembly exports bound to hooks take no parameters and return an i32:
// 0 continue, 1 skip, 2 abort for tool, chat and session points; 0 ask,
// 1 allow, 2 deny for permission.ask. When export is omitted it defaults to
// hook_ followed by the point name with dots replaced by underscores.
//
// Commands are user-invoked entry points run with Manager.RunCommand. The
// export defaults to cmd_ followed by the name with '-' and '.' replaced by
// underscores; it takes no parameters and returns 0 on success.
//
// A Lua plugin sets lua instead of wasm and declares hooks by defining
// functions in the script (see package luahook).
//
// The manifest id is the hook source. Whether a source may grant
// permissions is up to the dispatcher's trust policy; a manifest cannot
// claim it.
package plugin
