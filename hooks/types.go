package hooks

import (
	"context"
	"encoding/json"
	"time"
)

// ToolBeforeInput describes a tool call about to run.
type ToolBeforeInput struct {
	Tool      string          `json:"tool"`
	SessionID string          `json:"session_id"`
	CallID    string          `json:"call_id"`
	Args      json.RawMessage `json:"args"`
}

// ToolBeforeOutput starts with the call's arguments. Hooks may rewrite Args.
type ToolBeforeOutput struct {
	Args   json.RawMessage `json:"args"`
	Result Result          `json:"result"`
}

// ToolAfterInput describes a finished tool call.
type ToolAfterInput struct {
	Tool      string        `json:"tool"`
	SessionID string        `json:"session_id"`
	CallID    string        `json:"call_id"`
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration"`
	Output    string        `json:"output"`
}

// ToolAfterOutput starts with the tool's raw output. Hooks may rewrite Output.
type ToolAfterOutput struct {
	Output string `json:"output"`
	Result Result `json:"result"`
}

// ChatInput describes a chat message. The content itself travels in
// ChatOutput so each hook sees what the previous one left.
type ChatInput struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	MessageID string `json:"message_id,omitempty"`
	Agent     string `json:"agent,omitempty"`
	Model     string `json:"model,omitempty"`
}

type ChatOutput struct {
	Content string `json:"content"`
	Result  Result `json:"result"`
}

// PermissionInput is a request for permission to act on a resource.
type PermissionInput struct {
	SessionID  string `json:"session_id"`
	Permission string `json:"permission"`
	Resource   string `json:"resource"`
	Reason     string `json:"reason,omitempty"`
}

// PermissionOutput starts as Ask with no reason.
type PermissionOutput struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason,omitempty"`
}

type SessionStartInput struct {
	SessionID string `json:"session_id"`
	Cwd       string `json:"cwd"`
	Model     string `json:"model,omitempty"`
	Agent     string `json:"agent,omitempty"`
	Resumed   bool   `json:"resumed"`
}

// SessionStartOutput collects contributions from every hook that runs.
type SessionStartOutput struct {
	SystemPromptAdditions []string `json:"system_prompt_additions,omitempty"`
	Greeting              string   `json:"greeting,omitempty"`
	Result                Result   `json:"result"`
}

type SessionEndInput struct {
	SessionID    string        `json:"session_id"`
	Duration     time.Duration `json:"duration"`
	MessageCount int           `json:"message_count"`
	TokenCount   int           `json:"token_count"`
	Saved        bool          `json:"saved"`
}

type SessionEndOutput struct {
	Result Result `json:"result"`
}

// Hook callables. Each receives the event input and the accumulated output,
// which it may modify. A returned error aborts the whole dispatch.
type (
	ToolBeforeFunc   func(ctx context.Context, in ToolBeforeInput, out *ToolBeforeOutput) error
	ToolAfterFunc    func(ctx context.Context, in ToolAfterInput, out *ToolAfterOutput) error
	ChatFunc         func(ctx context.Context, in ChatInput, out *ChatOutput) error
	PermissionFunc   func(ctx context.Context, in PermissionInput, out *PermissionOutput) error
	SessionStartFunc func(ctx context.Context, in SessionStartInput, out *SessionStartOutput) error
	SessionEndFunc   func(ctx context.Context, in SessionEndInput, out *SessionEndOutput) error
)
