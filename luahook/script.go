package luahook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/caffeineduck/hookwarden/hooks"
)

// Global function names a script defines to hook a point.
const (
	FnToolBefore   = "tool_execute_before"
	FnToolAfter    = "tool_execute_after"
	FnChat         = "chat_message"
	FnPermission   = "permission_ask"
	FnSessionStart = "session_start"
	FnSessionEnd   = "session_end"
)

var functionPoints = []struct {
	fn    string
	point hooks.Point
}{
	{FnToolBefore, hooks.ToolExecuteBefore},
	{FnToolAfter, hooks.ToolExecuteAfter},
	{FnChat, hooks.ChatMessage},
	{FnPermission, hooks.PermissionAsk},
	{FnSessionStart, hooks.SessionStart},
	{FnSessionEnd, hooks.SessionEnd},
}

// DefaultCallTimeout bounds the top-level chunk and every hook call.
const DefaultCallTimeout = 5 * time.Second

var ErrScriptClosed = errors.New("script closed")

// Script is one loaded Lua hook script. gopher-lua states are not safe for
// concurrent use, so every call into the script holds its mutex.
type Script struct {
	name    string
	log     zerolog.Logger
	timeout time.Duration

	mu     sync.Mutex
	L      *lua.LState
	closed bool

	pattern  string
	priority int
}

type Option func(*Script)

// WithLogger sets where the script's log() calls go.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Script) {
		s.log = l
	}
}

// WithCallTimeout bounds each hook call and the top-level chunk run at load.
// Zero leaves only the caller's context in charge.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Script) {
		s.timeout = d
	}
}

// Load compiles and runs src in a fresh sandboxed state. The script's
// top-level code runs once; hook functions are looked up by name afterwards.
func Load(name string, src []byte, opts ...Option) (*Script, error) {
	s := &Script{
		name:    name,
		log:     zerolog.Nop(),
		timeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(s.L)
	s.installHelpers()

	ctx, cancel := s.bound(context.Background())
	defer cancel()
	s.L.SetContext(ctx)
	err := doWithRecovery(func() error { return s.L.DoString(string(src)) })
	s.L.RemoveContext()
	if err != nil {
		s.L.Close()
		return nil, fmt.Errorf("load script %s: %w", name, contextErr(ctx, err))
	}

	if v := s.L.GetGlobal("pattern"); v != lua.LNil {
		str, ok := v.(lua.LString)
		if !ok {
			s.L.Close()
			return nil, fmt.Errorf("load script %s: pattern must be a string, got %s", name, v.Type())
		}
		s.pattern = string(str)
	}
	if v := s.L.GetGlobal("priority"); v != lua.LNil {
		n, ok := v.(lua.LNumber)
		if !ok {
			s.L.Close()
			return nil, fmt.Errorf("load script %s: priority must be a number, got %s", name, v.Type())
		}
		s.priority = int(n)
	}

	if len(s.Points()) == 0 {
		s.L.Close()
		return nil, fmt.Errorf("load script %s: defines no hook functions", name)
	}
	return s, nil
}

// openSafeLibraries opens the base, table, string and math libraries and
// removes everything in base that can load code from disk or strings.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// bound applies the script's call timeout to ctx.
func (s *Script) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// contextErr prefers the context's error when ctx ended the run, so callers
// can match context.DeadlineExceeded and context.Canceled.
func contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

func (s *Script) Name() string {
	return s.name
}

// Points returns the hook points the script defines functions for.
func (s *Script) Points() []hooks.Point {
	var points []hooks.Point
	for _, fp := range functionPoints {
		if s.L.GetGlobal(fp.fn).Type() == lua.LTFunction {
			points = append(points, fp.point)
		}
	}
	return points
}

// Register adds a registration under source for every hook function the
// script defines. The script's pattern global applies to tool hooks only.
func (s *Script) Register(reg *hooks.Registry, source string) (int, error) {
	s.mu.Lock()
	points := s.Points()
	s.mu.Unlock()

	opts := []hooks.RegisterOption{hooks.WithPriority(s.priority)}
	toolOpts := opts
	if s.pattern != "" {
		toolOpts = append([]hooks.RegisterOption{hooks.WithPattern(s.pattern)}, opts...)
	}

	var n int
	for _, p := range points {
		var err error
		switch p {
		case hooks.ToolExecuteBefore:
			err = reg.RegisterToolBefore(source, s.toolBefore, toolOpts...)
		case hooks.ToolExecuteAfter:
			err = reg.RegisterToolAfter(source, s.toolAfter, toolOpts...)
		case hooks.ChatMessage:
			err = reg.RegisterChatMessage(source, s.chatMessage, opts...)
		case hooks.PermissionAsk:
			err = reg.RegisterPermissionAsk(source, s.permissionAsk, opts...)
		case hooks.SessionStart:
			err = reg.RegisterSessionStart(source, s.sessionStart, opts...)
		case hooks.SessionEnd:
			err = reg.RegisterSessionEnd(source, s.sessionEnd, opts...)
		}
		if err != nil {
			reg.UnregisterSource(source)
			return 0, err
		}
		n++
	}
	return n, nil
}

// call runs the global function fn with the table built by in, and hands a
// returned table to apply. A nil return means Continue with no changes.
func (s *Script) call(ctx context.Context, fn string, in func(L *lua.LState) *lua.LTable, apply func(ret *lua.LTable) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrScriptClosed
	}

	f := s.L.GetGlobal(fn)
	if f.Type() != lua.LTFunction {
		return fmt.Errorf("%s: %q is not a function", s.name, fn)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	top := s.L.GetTop()
	err := doWithRecovery(func() error {
		return s.L.CallByParam(lua.P{Fn: f, NRet: 1, Protect: true}, in(s.L))
	})
	if err != nil {
		s.L.SetTop(top)
		return fmt.Errorf("%s: %s: %w", s.name, fn, contextErr(ctx, err))
	}

	ret := s.L.Get(-1)
	s.L.SetTop(top)

	switch r := ret.(type) {
	case *lua.LNilType:
		return nil
	case *lua.LTable:
		return apply(r)
	default:
		return fmt.Errorf("%s: %s must return a table or nil, got %s", s.name, fn, ret.Type())
	}
}

// Close releases the Lua state.
func (s *Script) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.L.Close()
	return nil
}

func (s *Script) installHelpers() {
	s.L.SetGlobal("json_get", s.L.NewFunction(luaJSONGet))
	s.L.SetGlobal("json_set", s.L.NewFunction(luaJSONSet))
	// print goes to the log so scripts cannot write to the host's stdout.
	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
		}
		s.log.Info().Str("script", s.name).Msg(strings.Join(parts, "\t"))
		return 0
	}))
	s.L.SetGlobal("log", s.L.NewFunction(func(L *lua.LState) int {
		level := strings.ToLower(L.CheckString(1))
		msg := L.CheckString(2)

		var ev *zerolog.Event
		switch level {
		case "trace":
			ev = s.log.Trace()
		case "debug":
			ev = s.log.Debug()
		case "warn":
			ev = s.log.Warn()
		case "error":
			ev = s.log.Error()
		default:
			ev = s.log.Info()
		}
		ev.Str("script", s.name).Msg(msg)
		return 0
	}))
}
