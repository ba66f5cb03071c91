package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/caffeineduck/hookwarden/hooks"
)

// Return codes of tool, chat and session hook exports.
const (
	CodeContinue int32 = 0
	CodeSkip     int32 = 1
	CodeAbort    int32 = 2
)

// Return codes of permission hook exports.
const (
	CodeAsk   int32 = 0
	CodeAllow int32 = 1
	CodeDeny  int32 = 2
)

var ErrUnknownCode = errors.New("unknown hook return code")

// HookCaller is a loaded module whose exports can be called.
type HookCaller interface {
	ID() string
	Call(ctx context.Context, export string) (int32, error)
}

func resultFromCode(id, export string, code int32) (hooks.Result, error) {
	switch code {
	case CodeContinue:
		return hooks.Continue(), nil
	case CodeSkip:
		return hooks.Skip(), nil
	case CodeAbort:
		return hooks.Abort("aborted by plugin " + id), nil
	default:
		return hooks.Result{}, fmt.Errorf("%s returned %d: %w", export, code, ErrUnknownCode)
	}
}

func decisionFromCode(export string, code int32) (hooks.Decision, error) {
	switch code {
	case CodeAsk:
		return hooks.DecisionAsk, nil
	case CodeAllow:
		return hooks.DecisionAllow, nil
	case CodeDeny:
		return hooks.DecisionDeny, nil
	default:
		return hooks.DecisionAsk, fmt.Errorf("%s returned %d: %w", export, code, ErrUnknownCode)
	}
}

// BindWasmHooks registers one hook per spec under the caller's ID. On error
// nothing stays registered.
func BindWasmHooks(reg *hooks.Registry, c HookCaller, specs []HookSpec) (int, error) {
	source := c.ID()

	result := func(ctx context.Context, export string) (hooks.Result, error) {
		code, err := c.Call(ctx, export)
		if err != nil {
			return hooks.Result{}, err
		}
		return resultFromCode(source, export, code)
	}

	for i, spec := range specs {
		export := spec.Export
		if export == "" {
			export = DefaultExport(spec.Point)
		}

		opts := []hooks.RegisterOption{hooks.WithPriority(spec.Priority)}
		if spec.Pattern != "" {
			opts = append(opts, hooks.WithPattern(spec.Pattern))
		}

		var err error
		switch spec.Point {
		case hooks.ToolExecuteBefore:
			err = reg.RegisterToolBefore(source, func(ctx context.Context, _ hooks.ToolBeforeInput, out *hooks.ToolBeforeOutput) error {
				res, err := result(ctx, export)
				out.Result = res
				return err
			}, opts...)
		case hooks.ToolExecuteAfter:
			err = reg.RegisterToolAfter(source, func(ctx context.Context, _ hooks.ToolAfterInput, out *hooks.ToolAfterOutput) error {
				res, err := result(ctx, export)
				out.Result = res
				return err
			}, opts...)
		case hooks.ChatMessage:
			err = reg.RegisterChatMessage(source, func(ctx context.Context, _ hooks.ChatInput, out *hooks.ChatOutput) error {
				res, err := result(ctx, export)
				out.Result = res
				return err
			}, opts...)
		case hooks.SessionStart:
			err = reg.RegisterSessionStart(source, func(ctx context.Context, _ hooks.SessionStartInput, out *hooks.SessionStartOutput) error {
				res, err := result(ctx, export)
				out.Result = res
				return err
			}, opts...)
		case hooks.SessionEnd:
			err = reg.RegisterSessionEnd(source, func(ctx context.Context, _ hooks.SessionEndInput, out *hooks.SessionEndOutput) error {
				res, err := result(ctx, export)
				out.Result = res
				return err
			}, opts...)
		case hooks.PermissionAsk:
			err = reg.RegisterPermissionAsk(source, func(ctx context.Context, _ hooks.PermissionInput, out *hooks.PermissionOutput) error {
				code, err := c.Call(ctx, export)
				if err != nil {
					return err
				}
				d, err := decisionFromCode(export, code)
				if err != nil {
					return err
				}
				out.Decision = d
				if d == hooks.DecisionDeny {
					out.Reason = "denied by plugin " + source
				}
				return nil
			}, opts...)
		default:
			err = fmt.Errorf("hooks[%d]: %w: %q", i, hooks.ErrUnknownPoint, spec.Point)
		}
		if err != nil {
			reg.UnregisterSource(source)
			return 0, err
		}
	}
	return len(specs), nil
}
