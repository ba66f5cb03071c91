package luahook

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	lua "github.com/yuin/gopher-lua"

	"github.com/caffeineduck/hookwarden/hooks"
)

// parseResult reads the action, reason and value fields of a returned table.
func parseResult(t *lua.LTable) (hooks.Result, error) {
	action, _, err := optString(t, "action")
	if err != nil {
		return hooks.Result{}, err
	}

	switch action {
	case "", "continue":
		return hooks.Continue(), nil
	case "skip":
		return hooks.Skip(), nil
	case "abort":
		reason, _, err := optString(t, "reason")
		if err != nil {
			return hooks.Result{}, err
		}
		return hooks.Abort(reason), nil
	case "replace":
		value, err := toJSON(t.RawGetString("value"))
		if err != nil {
			return hooks.Result{}, err
		}
		return hooks.Replace(value), nil
	default:
		return hooks.Result{}, fmt.Errorf("unknown action %q", action)
	}
}

func (s *Script) toolBefore(ctx context.Context, in hooks.ToolBeforeInput, out *hooks.ToolBeforeOutput) error {
	return s.call(ctx, FnToolBefore,
		func(L *lua.LState) *lua.LTable {
			t := L.NewTable()
			t.RawSetString("tool", lua.LString(in.Tool))
			t.RawSetString("session_id", lua.LString(in.SessionID))
			t.RawSetString("call_id", lua.LString(in.CallID))
			t.RawSetString("args", lua.LString(out.Args))
			return t
		},
		func(ret *lua.LTable) error {
			if args, ok, err := optString(ret, "args"); err != nil {
				return err
			} else if ok {
				if !gjson.Valid(args) {
					return fmt.Errorf("args is not valid JSON")
				}
				out.Args = []byte(args)
			}

			if set, ok := ret.RawGetString("set").(*lua.LTable); ok {
				args := out.Args
				if len(args) == 0 {
					args = []byte("{}")
				}
				var setErr error
				set.ForEach(func(k, v lua.LValue) {
					if setErr != nil {
						return
					}
					args, setErr = sjson.SetBytes(args, k.String(), toGo(v, 0))
				})
				if setErr != nil {
					return fmt.Errorf("set args: %w", setErr)
				}
				out.Args = args
			}

			res, err := parseResult(ret)
			if err != nil {
				return err
			}
			out.Result = res
			return nil
		},
	)
}

func (s *Script) toolAfter(ctx context.Context, in hooks.ToolAfterInput, out *hooks.ToolAfterOutput) error {
	return s.call(ctx, FnToolAfter,
		func(L *lua.LState) *lua.LTable {
			t := L.NewTable()
			t.RawSetString("tool", lua.LString(in.Tool))
			t.RawSetString("session_id", lua.LString(in.SessionID))
			t.RawSetString("call_id", lua.LString(in.CallID))
			t.RawSetString("success", lua.LBool(in.Success))
			t.RawSetString("duration_ms", lua.LNumber(in.Duration.Milliseconds()))
			t.RawSetString("output", lua.LString(out.Output))
			return t
		},
		func(ret *lua.LTable) error {
			if output, ok, err := optString(ret, "output"); err != nil {
				return err
			} else if ok {
				out.Output = output
			}

			res, err := parseResult(ret)
			if err != nil {
				return err
			}
			out.Result = res
			return nil
		},
	)
}

func (s *Script) chatMessage(ctx context.Context, in hooks.ChatInput, out *hooks.ChatOutput) error {
	return s.call(ctx, FnChat,
		func(L *lua.LState) *lua.LTable {
			t := L.NewTable()
			t.RawSetString("session_id", lua.LString(in.SessionID))
			t.RawSetString("role", lua.LString(in.Role))
			t.RawSetString("message_id", lua.LString(in.MessageID))
			t.RawSetString("agent", lua.LString(in.Agent))
			t.RawSetString("model", lua.LString(in.Model))
			t.RawSetString("content", lua.LString(out.Content))
			return t
		},
		func(ret *lua.LTable) error {
			if content, ok, err := optString(ret, "content"); err != nil {
				return err
			} else if ok {
				out.Content = content
			}

			res, err := parseResult(ret)
			if err != nil {
				return err
			}
			out.Result = res
			return nil
		},
	)
}

func (s *Script) permissionAsk(ctx context.Context, in hooks.PermissionInput, out *hooks.PermissionOutput) error {
	return s.call(ctx, FnPermission,
		func(L *lua.LState) *lua.LTable {
			t := L.NewTable()
			t.RawSetString("session_id", lua.LString(in.SessionID))
			t.RawSetString("permission", lua.LString(in.Permission))
			t.RawSetString("resource", lua.LString(in.Resource))
			t.RawSetString("reason", lua.LString(in.Reason))
			return t
		},
		func(ret *lua.LTable) error {
			decision, hasDecision, err := optString(ret, "decision")
			if err != nil {
				return err
			}
			reason, hasReason, err := optString(ret, "reason")
			if err != nil {
				return err
			}

			if hasDecision {
				d, err := hooks.ParseDecision(decision)
				if err != nil {
					return err
				}
				out.Decision = d
			}
			if hasReason {
				out.Reason = reason
			}
			return nil
		},
	)
}

func (s *Script) sessionStart(ctx context.Context, in hooks.SessionStartInput, out *hooks.SessionStartOutput) error {
	return s.call(ctx, FnSessionStart,
		func(L *lua.LState) *lua.LTable {
			t := L.NewTable()
			t.RawSetString("session_id", lua.LString(in.SessionID))
			t.RawSetString("cwd", lua.LString(in.Cwd))
			t.RawSetString("model", lua.LString(in.Model))
			t.RawSetString("agent", lua.LString(in.Agent))
			t.RawSetString("resumed", lua.LBool(in.Resumed))
			return t
		},
		func(ret *lua.LTable) error {
			if prompt, ok, err := optString(ret, "prompt"); err != nil {
				return err
			} else if ok && prompt != "" {
				out.SystemPromptAdditions = append(out.SystemPromptAdditions, prompt)
			}
			if greeting, ok, err := optString(ret, "greeting"); err != nil {
				return err
			} else if ok {
				out.Greeting = greeting
			}

			res, err := parseResult(ret)
			if err != nil {
				return err
			}
			out.Result = res
			return nil
		},
	)
}

func (s *Script) sessionEnd(ctx context.Context, in hooks.SessionEndInput, out *hooks.SessionEndOutput) error {
	return s.call(ctx, FnSessionEnd,
		func(L *lua.LState) *lua.LTable {
			t := L.NewTable()
			t.RawSetString("session_id", lua.LString(in.SessionID))
			t.RawSetString("duration_ms", lua.LNumber(in.Duration.Milliseconds()))
			t.RawSetString("message_count", lua.LNumber(in.MessageCount))
			t.RawSetString("token_count", lua.LNumber(in.TokenCount))
			t.RawSetString("saved", lua.LBool(in.Saved))
			return t
		},
		func(ret *lua.LTable) error {
			res, err := parseResult(ret)
			if err != nil {
				return err
			}
			out.Result = res
			return nil
		},
	)
}
