package hooks

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// ExecutionError is a fault inside a hook's own logic. It aborts the dispatch
// and is distinct from any Result the hook could have returned.
type ExecutionError struct {
	Point  Point
	Source string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("hook %s from %s: %v", e.Point, e.Source, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Dispatcher runs registered hooks for a lifecycle event and folds their
// outcomes into one result.
type Dispatcher struct {
	registry *Registry
	trust    TrustPolicy
	log      zerolog.Logger
}

type DispatcherOption func(*Dispatcher)

// WithTrustPolicy sets which sources may auto-grant permissions. Without
// it, no source is trusted.
func WithTrustPolicy(p TrustPolicy) DispatcherOption {
	return func(d *Dispatcher) {
		d.trust = p
	}
}

func WithLogger(l zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.log = l
	}
}

func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		trust:    NewStaticTrust(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// protect converts a panic inside a hook into an error.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return fn()
}

// runChain invokes each registration whose pattern matches tool until one
// reports an outcome other than Continue.
func runChain[F any](ctx context.Context, d *Dispatcher, point Point, regs []registration[F], tool string, invoke func(F) error, result func() Result) error {
	for _, reg := range regs {
		if reg.pattern != nil && !reg.pattern.Match(tool) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := protect(func() error { return invoke(reg.fn) }); err != nil {
			return &ExecutionError{Point: point, Source: reg.source, Err: err}
		}
		if res := result(); res.Stops() {
			d.log.Debug().
				Stringer("point", point).
				Str("source", reg.source).
				Stringer("result", res).
				Msg("hook chain stopped")
			break
		}
	}
	return nil
}

// ToolExecuteBefore runs tool.execute.before hooks. The output starts with a
// copy of the call's arguments.
func (d *Dispatcher) ToolExecuteBefore(ctx context.Context, in ToolBeforeInput) (ToolBeforeOutput, error) {
	out := ToolBeforeOutput{Args: bytes.Clone(in.Args)}
	err := runChain(ctx, d, ToolExecuteBefore, d.registry.toolBefore.snapshot(), in.Tool,
		func(fn ToolBeforeFunc) error { return fn(ctx, in, &out) },
		func() Result { return out.Result },
	)
	return out, err
}

// ToolExecuteAfter runs tool.execute.after hooks. The output starts with the
// tool's raw output.
func (d *Dispatcher) ToolExecuteAfter(ctx context.Context, in ToolAfterInput) (ToolAfterOutput, error) {
	out := ToolAfterOutput{Output: in.Output}
	err := runChain(ctx, d, ToolExecuteAfter, d.registry.toolAfter.snapshot(), in.Tool,
		func(fn ToolAfterFunc) error { return fn(ctx, in, &out) },
		func() Result { return out.Result },
	)
	return out, err
}

// ChatMessage runs chat.message hooks over content. Every hook sees the
// content as the previous one left it.
func (d *Dispatcher) ChatMessage(ctx context.Context, in ChatInput, content string) (ChatOutput, error) {
	out := ChatOutput{Content: content}
	err := runChain(ctx, d, ChatMessage, d.registry.chat.snapshot(), "",
		func(fn ChatFunc) error { return fn(ctx, in, &out) },
		func() Result { return out.Result },
	)
	return out, err
}

// SessionStart runs session.start hooks.
func (d *Dispatcher) SessionStart(ctx context.Context, in SessionStartInput) (SessionStartOutput, error) {
	var out SessionStartOutput
	err := runChain(ctx, d, SessionStart, d.registry.sessionStart.snapshot(), "",
		func(fn SessionStartFunc) error { return fn(ctx, in, &out) },
		func() Result { return out.Result },
	)
	return out, err
}

// SessionEnd runs session.end hooks.
func (d *Dispatcher) SessionEnd(ctx context.Context, in SessionEndInput) (SessionEndOutput, error) {
	var out SessionEndOutput
	err := runChain(ctx, d, SessionEnd, d.registry.sessionEnd.snapshot(), "",
		func(fn SessionEndFunc) error { return fn(ctx, in, &out) },
		func() Result { return out.Result },
	)
	return out, err
}

// PermissionAsk runs permission.ask hooks. An Allow from a source the trust
// policy does not vouch for is coerced back to Ask and evaluation continues.
// The chain stops at the first decision other than Ask; if none is reached
// the answer is Ask.
func (d *Dispatcher) PermissionAsk(ctx context.Context, in PermissionInput) (PermissionOutput, error) {
	out := PermissionOutput{Decision: DecisionAsk}

	for _, reg := range d.registry.permission.snapshot() {
		if err := ctx.Err(); err != nil {
			return PermissionOutput{Decision: DecisionAsk}, err
		}
		fn := reg.fn
		if err := protect(func() error { return fn(ctx, in, &out) }); err != nil {
			// A failed hook may have written a decision; none of it is returned.
			return PermissionOutput{Decision: DecisionAsk}, &ExecutionError{Point: PermissionAsk, Source: reg.source, Err: err}
		}

		if out.Decision.RequiresElevatedTrust() && !d.trust.IsSystemTrusted(reg.source) {
			d.log.Warn().
				Str("source", reg.source).
				Str("permission", in.Permission).
				Str("resource", in.Resource).
				Msg("blocked permission grant from untrusted hook")
			out.Decision = DecisionAsk
			if out.Reason == "" {
				out.Reason = BlockedAllowReason
			}
			continue
		}

		if out.Decision != DecisionAsk {
			d.log.Debug().
				Str("source", reg.source).
				Stringer("decision", out.Decision).
				Msg("permission decided")
			break
		}
	}

	return out, nil
}
