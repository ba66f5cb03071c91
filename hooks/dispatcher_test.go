package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func permissionHook(d Decision, reason string) PermissionFunc {
	return func(_ context.Context, _ PermissionInput, out *PermissionOutput) error {
		out.Decision = d
		if reason != "" {
			out.Reason = reason
		}
		return nil
	}
}

func permissionInput() PermissionInput {
	return PermissionInput{SessionID: "s1", Permission: "network_access", Resource: "https://example.com"}
}

func TestToolExecuteBeforePatternFilter(t *testing.T) {
	reg := NewRegistry()
	var calls []string
	hook := func(name string) ToolBeforeFunc {
		return func(_ context.Context, _ ToolBeforeInput, _ *ToolBeforeOutput) error {
			calls = append(calls, name)
			return nil
		}
	}
	require.NoError(t, reg.RegisterToolBefore("reader", hook("reader"), WithPattern("read*")))
	require.NoError(t, reg.RegisterToolBefore("all", hook("all"), WithPattern("*")))
	require.NoError(t, reg.RegisterToolBefore("exact", hook("exact"), WithPattern("read")))
	require.NoError(t, reg.RegisterToolBefore("none", hook("none")))

	d := NewDispatcher(reg)
	ctx := context.Background()

	for _, tool := range []string{"read_file", "read", "write_file"} {
		calls = nil
		out, err := d.ToolExecuteBefore(ctx, ToolBeforeInput{Tool: tool, Args: json.RawMessage(`{}`)})
		require.NoError(t, err)
		assert.Equal(t, KindContinue, out.Result.Kind)

		switch tool {
		case "read_file":
			assert.Equal(t, []string{"reader", "all", "none"}, calls)
		case "read":
			assert.Equal(t, []string{"reader", "all", "exact", "none"}, calls)
		case "write_file":
			assert.Equal(t, []string{"all", "none"}, calls)
		}
	}
}

func TestToolExecuteBeforeAbortStopsChain(t *testing.T) {
	reg := NewRegistry()
	var laterCalled bool
	require.NoError(t, reg.RegisterToolBefore("guard", func(_ context.Context, in ToolBeforeInput, out *ToolBeforeOutput) error {
		out.Result = Abort("blocked")
		return nil
	}))
	require.NoError(t, reg.RegisterToolBefore("later", func(context.Context, ToolBeforeInput, *ToolBeforeOutput) error {
		laterCalled = true
		return nil
	}))

	out, err := NewDispatcher(reg).ToolExecuteBefore(context.Background(), ToolBeforeInput{Tool: "bash"})
	require.NoError(t, err)
	assert.Equal(t, Abort("blocked"), out.Result)
	assert.False(t, out.Result.ShouldContinue())
	assert.False(t, laterCalled)
}

func TestToolExecuteBeforeArgsMutation(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterToolBefore("rewrite", func(_ context.Context, _ ToolBeforeInput, out *ToolBeforeOutput) error {
		out.Args = json.RawMessage(`{"path":"/safe"}`)
		return nil
	}))
	require.NoError(t, reg.RegisterToolBefore("replace", func(_ context.Context, _ ToolBeforeInput, out *ToolBeforeOutput) error {
		assert.JSONEq(t, `{"path":"/safe"}`, string(out.Args))
		out.Result = Replace(json.RawMessage(`"cached"`))
		return nil
	}))

	args := json.RawMessage(`{"path":"/etc/passwd"}`)
	out, err := NewDispatcher(reg).ToolExecuteBefore(context.Background(), ToolBeforeInput{Tool: "read", Args: args})
	require.NoError(t, err)
	assert.Equal(t, KindReplace, out.Result.Kind)
	assert.True(t, out.Result.ShouldContinue())
	assert.JSONEq(t, `"cached"`, string(out.Result.Value))
	assert.JSONEq(t, `{"path":"/etc/passwd"}`, string(args), "input args are not modified")
}

func TestToolExecuteAfterSkip(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterToolAfter("redact", func(_ context.Context, _ ToolAfterInput, out *ToolAfterOutput) error {
		out.Output = strings.ReplaceAll(out.Output, "secret", "******")
		out.Result = Skip()
		return nil
	}, WithPattern("*")))
	require.NoError(t, reg.RegisterToolAfter("never", func(context.Context, ToolAfterInput, *ToolAfterOutput) error {
		return errors.New("should not run")
	}))

	out, err := NewDispatcher(reg).ToolExecuteAfter(context.Background(), ToolAfterInput{
		Tool:    "cat",
		Success: true,
		Output:  "the secret is here",
	})
	require.NoError(t, err)
	assert.Equal(t, "the ****** is here", out.Output)
	assert.Equal(t, KindSkip, out.Result.Kind)
	assert.True(t, out.Result.ShouldContinue())
}

func TestChatMessageTransforms(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterChatMessage("upper", func(_ context.Context, _ ChatInput, out *ChatOutput) error {
		out.Content = strings.ToUpper(out.Content)
		return nil
	}))
	require.NoError(t, reg.RegisterChatMessage("suffix", func(_ context.Context, _ ChatInput, out *ChatOutput) error {
		out.Content += "!"
		return nil
	}))

	out, err := NewDispatcher(reg).ChatMessage(context.Background(), ChatInput{SessionID: "s1", Role: "user"}, "hello")
	require.NoError(t, err)
	assert.Equal(t, "HELLO!", out.Content)
	assert.Equal(t, KindContinue, out.Result.Kind)
}

func TestChatMessageNoHooks(t *testing.T) {
	out, err := NewDispatcher(NewRegistry()).ChatMessage(context.Background(), ChatInput{}, "unchanged")
	require.NoError(t, err)
	assert.Equal(t, "unchanged", out.Content)
}

func TestPermissionAllowFromThirdPartyIsBlocked(t *testing.T) {
	var buf bytes.Buffer
	reg := NewRegistry()
	require.NoError(t, reg.RegisterPermissionAsk("third-party-plugin", permissionHook(DecisionAllow, "")))

	d := NewDispatcher(reg, WithLogger(zerolog.New(&buf)))
	out, err := d.PermissionAsk(context.Background(), permissionInput())
	require.NoError(t, err)
	assert.Equal(t, DecisionAsk, out.Decision)
	assert.Equal(t, BlockedAllowReason, out.Reason)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "third-party-plugin")
}

func TestPermissionBlockedAllowKeepsReason(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterPermissionAsk("p", permissionHook(DecisionAllow, "looks fine to me")))

	out, err := NewDispatcher(reg).PermissionAsk(context.Background(), permissionInput())
	require.NoError(t, err)
	assert.Equal(t, DecisionAsk, out.Decision)
	assert.Equal(t, "looks fine to me", out.Reason)
}

func TestPermissionBlockedAllowContinuesToDeny(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterPermissionAsk("a", permissionHook(DecisionAllow, "")))
	require.NoError(t, reg.RegisterPermissionAsk("b", permissionHook(DecisionDeny, "not on my watch")))

	out, err := NewDispatcher(reg).PermissionAsk(context.Background(), permissionInput())
	require.NoError(t, err)
	assert.Equal(t, DecisionDeny, out.Decision)
	assert.Equal(t, "not on my watch", out.Reason)
}

func TestPermissionTrustedAllow(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterPermissionAsk("untrusted", permissionHook(DecisionAllow, "")))
	require.NoError(t, reg.RegisterPermissionAsk("builtin", permissionHook(DecisionAllow, "")))
	var laterCalled bool
	require.NoError(t, reg.RegisterPermissionAsk("later", func(context.Context, PermissionInput, *PermissionOutput) error {
		laterCalled = true
		return nil
	}))

	d := NewDispatcher(reg, WithTrustPolicy(NewStaticTrust("builtin")))
	out, err := d.PermissionAsk(context.Background(), permissionInput())
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, out.Decision)
	assert.False(t, laterCalled)
}

func TestPermissionAskContinues(t *testing.T) {
	reg := NewRegistry()
	var calls int
	for _, src := range []string{"a", "b", "c"} {
		require.NoError(t, reg.RegisterPermissionAsk(src, func(context.Context, PermissionInput, *PermissionOutput) error {
			calls++
			return nil
		}))
	}

	out, err := NewDispatcher(reg).PermissionAsk(context.Background(), permissionInput())
	require.NoError(t, err)
	assert.Equal(t, DecisionAsk, out.Decision)
	assert.Empty(t, out.Reason)
	assert.Equal(t, 3, calls)
}

func TestPermissionTrustFunc(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterPermissionAsk("system:shell", permissionHook(DecisionAllow, "")))

	policy := TrustFunc(func(source string) bool { return strings.HasPrefix(source, "system:") })
	out, err := NewDispatcher(reg, WithTrustPolicy(policy)).PermissionAsk(context.Background(), permissionInput())
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, out.Decision)
}

func TestExecutionErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	reg := NewRegistry()
	require.NoError(t, reg.RegisterChatMessage("faulty", func(context.Context, ChatInput, *ChatOutput) error {
		return boom
	}))

	_, err := NewDispatcher(reg).ChatMessage(context.Background(), ChatInput{}, "x")
	require.ErrorIs(t, err, boom)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, ChatMessage, execErr.Point)
	assert.Equal(t, "faulty", execErr.Source)
}

func TestPanicBecomesExecutionError(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterPermissionAsk("panicky", func(context.Context, PermissionInput, *PermissionOutput) error {
		panic("oh no")
	}))

	_, err := NewDispatcher(reg).PermissionAsk(context.Background(), permissionInput())
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "panicky", execErr.Source)
	assert.Contains(t, err.Error(), "oh no")
}

func TestPermissionFailedHookReturnsAsk(t *testing.T) {
	tests := []struct {
		name string
		fn   PermissionFunc
	}{
		{"error", func(_ context.Context, _ PermissionInput, out *PermissionOutput) error {
			out.Decision = DecisionAllow
			out.Reason = "trust me"
			return errors.New("boom")
		}},
		{"panic", func(_ context.Context, _ PermissionInput, out *PermissionOutput) error {
			out.Decision = DecisionAllow
			panic("boom")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			require.NoError(t, reg.RegisterPermissionAsk("untrusted", tt.fn))

			out, err := NewDispatcher(reg).PermissionAsk(context.Background(), permissionInput())
			require.Error(t, err)
			assert.Equal(t, DecisionAsk, out.Decision)
			assert.Empty(t, out.Reason)
		})
	}
}

func TestCanceledContext(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterChatMessage("a", noopChat))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDispatcher(reg).ChatMessage(ctx, ChatInput{}, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSessionHooks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterSessionStart("a", func(_ context.Context, in SessionStartInput, out *SessionStartOutput) error {
		out.SystemPromptAdditions = append(out.SystemPromptAdditions, "cwd is "+in.Cwd)
		return nil
	}))
	require.NoError(t, reg.RegisterSessionStart("b", func(_ context.Context, _ SessionStartInput, out *SessionStartOutput) error {
		out.Greeting = "welcome back"
		out.Result = Skip()
		return nil
	}))
	require.NoError(t, reg.RegisterSessionStart("c", func(_ context.Context, _ SessionStartInput, out *SessionStartOutput) error {
		out.Greeting = "unreachable"
		return nil
	}))
	require.NoError(t, reg.RegisterSessionEnd("a", func(_ context.Context, in SessionEndInput, out *SessionEndOutput) error {
		if !in.Saved {
			out.Result = Abort("session not saved")
		}
		return nil
	}))

	d := NewDispatcher(reg)
	start, err := d.SessionStart(context.Background(), SessionStartInput{SessionID: "s1", Cwd: "/repo", Resumed: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"cwd is /repo"}, start.SystemPromptAdditions)
	assert.Equal(t, "welcome back", start.Greeting)

	end, err := d.SessionEnd(context.Background(), SessionEndInput{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, Abort("session not saved"), end.Result)
}

func TestDecisionText(t *testing.T) {
	for _, d := range []Decision{DecisionAsk, DecisionAllow, DecisionDeny} {
		b, err := d.MarshalText()
		require.NoError(t, err)
		var got Decision
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, d, got)
	}
	_, err := ParseDecision("maybe")
	assert.Error(t, err)
	assert.True(t, DecisionAllow.RequiresElevatedTrust())
	assert.False(t, DecisionDeny.RequiresElevatedTrust())
}
