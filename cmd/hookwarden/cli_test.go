package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/hookwarden/hooks"
	"github.com/caffeineduck/hookwarden/internal/wasmtest"
	"github.com/caffeineduck/hookwarden/signing"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// run executes a fresh root command from an empty working directory so no
// stray hookwarden.yaml is picked up.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	return executeCommand(newRootCmd(), args...)
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCLIHelp(t *testing.T) {
	output, err := run(t, "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedPhrases := []string{
		"hookwarden",
		"keygen",
		"sign",
		"checksum",
		"verify",
		"load",
		"dispatch",
		"run",
		"--trusted-key",
		"--system-source",
		"--config",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("help output should contain %q", phrase)
		}
	}
}

func TestCLIDispatchHelp(t *testing.T) {
	output, err := run(t, "dispatch", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, phrase := range []string{"--tool", "--args", "--permission", "--content", "permission.ask"} {
		if !strings.Contains(output, phrase) {
			t.Errorf("dispatch help output should contain %q", phrase)
		}
	}
}

func TestCLIChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")
	writeFile(t, path, []byte("hello world"))

	output, err := run(t, "checksum", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9  " + path
	if !strings.Contains(output, want) {
		t.Errorf("expected %q in output, got %q", want, output)
	}
}

func TestCLIKeygenSignVerify(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "release")

	if _, err := run(t, "keygen", "--out", prefix); err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	pub, err := os.ReadFile(prefix + ".pub")
	if err != nil {
		t.Fatalf("read public key: %v", err)
	}
	info, err := os.Stat(prefix + ".key")
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("private key mode = %v, want 0600", info.Mode().Perm())
	}

	wasm := filepath.Join(dir, "plugin.wasm")
	writeFile(t, wasm, wasmtest.HookPlugin(nil))

	sig, err := run(t, "sign", "--key-file", prefix+".key", wasm)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	sig = strings.TrimSpace(sig)
	if len(sig) != 2*signing.SignatureSize {
		t.Fatalf("signature has %d hex chars", len(sig))
	}

	output, err := run(t, "verify", "--trusted-key", strings.TrimSpace(string(pub)), "--signature", sig, wasm)
	if err != nil {
		t.Fatalf("verify failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, "ok") {
		t.Errorf("expected ok, got %q", output)
	}

	otherPub, _, err := signing.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "verify", "--trusted-key", hex.EncodeToString(otherPub), "--signature", sig, wasm); err == nil {
		t.Error("expected verify to fail against an untrusted key")
	}
}

func TestCLIVerifyRequireSignature(t *testing.T) {
	wasm := filepath.Join(t.TempDir(), "plugin.wasm")
	writeFile(t, wasm, wasmtest.HookPlugin(nil))

	if _, err := run(t, "verify", "--require-signature", wasm); err == nil {
		t.Error("expected unsigned plugin to be rejected")
	}
	output, err := run(t, "verify", wasm)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !strings.Contains(output, "no signature checked") {
		t.Errorf("expected warning, got %q", output)
	}
}

func TestCLILoadPluginDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "demo")
	wasm := wasmtest.HookPlugin(map[string]int32{"hook_chat_message": 0})
	writeFile(t, filepath.Join(dir, "demo.wasm"), wasm)
	writeFile(t, filepath.Join(dir, "plugin.yaml"), []byte(`
id: demo
wasm: demo.wasm
checksum: `+signing.ComputeChecksum(wasm)+`
hooks:
  - point: chat.message
`))

	output, err := run(t, "load", dir)
	if err != nil {
		t.Fatalf("load failed: %v\n%s", err, output)
	}
	for _, phrase := range []string{`"id": "demo"`, `"hooks": 1`, `"init"`, signing.ComputeChecksum(wasm)} {
		if !strings.Contains(output, phrase) {
			t.Errorf("load output should contain %q, got %s", phrase, output)
		}
	}
}

func TestCLILoadRegistersWidget(t *testing.T) {
	b := wasmtest.New()
	c := wasmtest.ImportCortex(b)
	b.Memory(1)
	tp, tl := b.String("clock")
	b.Func("init", []wasmtest.ValType{wasmtest.I32},
		wasmtest.I32Const(7), wasmtest.I32Const(tp), wasmtest.I32Const(tl), wasmtest.Call(c.RegisterWidget),
	)

	path := filepath.Join(t.TempDir(), "status.wasm")
	writeFile(t, path, b.Build())

	output, err := run(t, "load", path)
	if err != nil {
		t.Fatalf("load failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, `"id": "status"`) || !strings.Contains(output, `"status-bar"`) || !strings.Contains(output, `"clock"`) {
		t.Errorf("expected status-bar clock widget, got %s", output)
	}
}

func TestCLIDispatchLuaAbort(t *testing.T) {
	plugins := t.TempDir()
	writeFile(t, filepath.Join(plugins, "guard", "plugin.yaml"), []byte("id: guard\nlua: guard.lua\n"))
	writeFile(t, filepath.Join(plugins, "guard", "guard.lua"), []byte(`
function tool_execute_before(input)
  if json_get(input.args, "command") == "rm -rf /" then
    return { action = "abort", reason = "refused" }
  end
  return { set = { checked = true } }
end
`))

	output, err := run(t, "dispatch", "tool.execute.before", "--plugins", plugins,
		"--tool", "bash", "--args", `{"command":"rm -rf /"}`)
	if err != nil {
		t.Fatalf("dispatch failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, `"kind": "abort"`) || !strings.Contains(output, `"reason": "refused"`) {
		t.Errorf("expected abort, got %s", output)
	}

	output, err = run(t, "dispatch", "tool.execute.before", "--plugins", plugins,
		"--tool", "bash", "--args", `{"command":"ls"}`)
	if err != nil {
		t.Fatalf("dispatch failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, `"checked": true`) || !strings.Contains(output, `"kind": "continue"`) {
		t.Errorf("expected rewritten args, got %s", output)
	}
}

func TestCLIDispatchPermissionTrust(t *testing.T) {
	plugins := t.TempDir()
	writeFile(t, filepath.Join(plugins, "granter", "plugin.yaml"), []byte(`
id: granter
wasm: granter.wasm
hooks:
  - point: permission.ask
`))
	writeFile(t, filepath.Join(plugins, "granter", "granter.wasm"),
		wasmtest.HookPlugin(map[string]int32{"hook_permission_ask": 1}))

	output, err := run(t, "dispatch", "permission.ask", "--plugins", plugins, "--permission", "file_write")
	if err != nil {
		t.Fatalf("dispatch failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, `"decision": "ask"`) || !strings.Contains(output, hooks.BlockedAllowReason) {
		t.Errorf("expected coerced ask, got %s", output)
	}

	output, err = run(t, "dispatch", "permission.ask", "--plugins", plugins, "--permission", "file_write",
		"--system-source", "granter")
	if err != nil {
		t.Fatalf("dispatch failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, `"decision": "allow"`) {
		t.Errorf("expected allow from trusted source, got %s", output)
	}
}

func TestCLIRunCommand(t *testing.T) {
	b := wasmtest.New()
	c := wasmtest.ImportCortex(b)
	b.Memory(1)
	mp, ml := b.String("Hello, World!")
	b.Func("cmd_hello", []wasmtest.ValType{wasmtest.I32},
		wasmtest.I32Const(1), wasmtest.I32Const(mp), wasmtest.I32Const(ml), wasmtest.I32Const(3000),
		wasmtest.Call(c.ShowToast),
	)

	dir := filepath.Join(t.TempDir(), "hello-world")
	writeFile(t, filepath.Join(dir, "hello.wasm"), b.Build())
	writeFile(t, filepath.Join(dir, "plugin.yaml"), []byte(`
id: hello-world
wasm: hello.wasm
commands:
  - name: hello
`))

	output, err := run(t, "run", dir, "hello")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, output)
	}
	for _, phrase := range []string{`"command": "hello"`, `"Hello, World!"`, `"success"`} {
		if !strings.Contains(output, phrase) {
			t.Errorf("run output should contain %q, got %s", phrase, output)
		}
	}

	if _, err := run(t, "run", dir, "goodbye"); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestCLIDispatchUnknownPoint(t *testing.T) {
	if _, err := run(t, "dispatch", "tool.execute.during"); err == nil {
		t.Error("expected error for unknown point")
	}
}

func TestCLIBadConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "hookwarden.yaml")
	writeFile(t, cfg, []byte("log:\n  level: shouting\n"))

	if _, err := run(t, "--config", cfg, "checksum", cfg); err == nil {
		t.Error("expected config validation error")
	}
}
