package hooks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopChat(context.Context, ChatInput, *ChatOutput) error { return nil }

func TestRegistryOrdering(t *testing.T) {
	reg := NewRegistry()
	var order []string
	add := func(source string, opts ...RegisterOption) {
		require.NoError(t, reg.RegisterChatMessage(source, func(_ context.Context, _ ChatInput, _ *ChatOutput) error {
			order = append(order, source)
			return nil
		}, opts...))
	}

	add("a")
	add("b", WithPriority(10))
	add("c")
	add("d", WithPriority(10))
	add("e", WithPriority(-1))

	_, err := NewDispatcher(reg).ChatMessage(context.Background(), ChatInput{}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "a", "c", "e"}, order)
}

func TestRegistryValidation(t *testing.T) {
	reg := NewRegistry()

	assert.Error(t, reg.RegisterChatMessage("", noopChat))
	assert.Error(t, reg.RegisterChatMessage("p", nil))
	assert.ErrorIs(t, reg.RegisterChatMessage("p", noopChat, WithPattern("read*")), ErrPatternNotSupported)
	assert.ErrorIs(t, reg.RegisterPermissionAsk("p", func(context.Context, PermissionInput, *PermissionOutput) error {
		return nil
	}, WithPattern("*")), ErrPatternNotSupported)

	assert.NoError(t, reg.RegisterToolBefore("p", func(context.Context, ToolBeforeInput, *ToolBeforeOutput) error {
		return nil
	}, WithPattern("read*")))
	assert.ErrorIs(t, reg.RegisterToolAfter("p", func(context.Context, ToolAfterInput, *ToolAfterOutput) error {
		return nil
	}, WithPattern("a*b*c")), ErrMultipleWildcards)
	assert.Zero(t, reg.Count(ChatMessage))
	assert.Equal(t, 1, reg.Count(ToolExecuteBefore))
	assert.Zero(t, reg.Count(ToolExecuteAfter))
}

func TestUnregisterSource(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterChatMessage("a", noopChat))
	require.NoError(t, reg.RegisterChatMessage("b", noopChat))
	require.NoError(t, reg.RegisterSessionEnd("a", func(context.Context, SessionEndInput, *SessionEndOutput) error {
		return nil
	}))

	assert.True(t, reg.HasHooks(SessionEnd))
	assert.Equal(t, 2, reg.UnregisterSource("a"))
	assert.Equal(t, 1, reg.Count(ChatMessage))
	assert.False(t, reg.HasHooks(SessionEnd))
	assert.Zero(t, reg.UnregisterSource("missing"))
}

func TestParsePoint(t *testing.T) {
	for _, p := range Points() {
		got, err := ParsePoint(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParsePoint("tool.execute.during")
	assert.ErrorIs(t, err, ErrUnknownPoint)

	assert.True(t, ToolExecuteAfter.SupportsPattern())
	assert.False(t, ChatMessage.SupportsPattern())
}
