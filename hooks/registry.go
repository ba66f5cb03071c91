package hooks

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var ErrPatternNotSupported = errors.New("hook point does not support tool patterns")

type registration[F any] struct {
	source   string
	priority int
	pattern  *Pattern
	fn       F
}

// chain is one hook point's ordered registrations: higher priority first,
// registration order among equals.
type chain[F any] struct {
	mu   sync.RWMutex
	regs []registration[F]
}

func (c *chain[F]) add(r registration[F]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := len(c.regs)
	for i > 0 && c.regs[i-1].priority < r.priority {
		i--
	}
	c.regs = slices.Insert(c.regs, i, r)
}

func (c *chain[F]) snapshot() []registration[F] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.regs)
}

func (c *chain[F]) removeSource(source string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.regs)
	c.regs = slices.DeleteFunc(c.regs, func(r registration[F]) bool {
		return r.source == source
	})
	return before - len(c.regs)
}

func (c *chain[F]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.regs)
}

type registerConfig struct {
	pattern  string
	priority int
}

// RegisterOption configures a single registration.
type RegisterOption func(*registerConfig)

// WithPattern restricts a tool hook to tool names matching pattern.
func WithPattern(pattern string) RegisterOption {
	return func(c *registerConfig) {
		c.pattern = pattern
	}
}

// WithPriority orders a registration ahead of lower priorities. The default
// is 0.
func WithPriority(priority int) RegisterOption {
	return func(c *registerConfig) {
		c.priority = priority
	}
}

// Registry holds, per hook point, the ordered registrations of every
// extension. It is safe for concurrent use; dispatch works on a snapshot so
// registrations may change while a chain runs.
type Registry struct {
	toolBefore   chain[ToolBeforeFunc]
	toolAfter    chain[ToolAfterFunc]
	chat         chain[ChatFunc]
	permission   chain[PermissionFunc]
	sessionStart chain[SessionStartFunc]
	sessionEnd   chain[SessionEndFunc]
}

func NewRegistry() *Registry {
	return &Registry{}
}

func newRegistration[F any](point Point, source string, fn F, isNil bool, opts []RegisterOption) (registration[F], error) {
	var cfg registerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if source == "" {
		return registration[F]{}, fmt.Errorf("register %s: empty source", point)
	}
	if isNil {
		return registration[F]{}, fmt.Errorf("register %s for %s: nil hook", point, source)
	}

	reg := registration[F]{source: source, priority: cfg.priority, fn: fn}
	if cfg.pattern != "" {
		if !point.SupportsPattern() {
			return registration[F]{}, fmt.Errorf("register %s for %s: %w", point, source, ErrPatternNotSupported)
		}
		p, err := CompilePattern(cfg.pattern)
		if err != nil {
			return registration[F]{}, fmt.Errorf("register %s for %s: pattern %q: %w", point, source, cfg.pattern, err)
		}
		reg.pattern = p
	}
	return reg, nil
}

func (r *Registry) RegisterToolBefore(source string, fn ToolBeforeFunc, opts ...RegisterOption) error {
	reg, err := newRegistration(ToolExecuteBefore, source, fn, fn == nil, opts)
	if err != nil {
		return err
	}
	r.toolBefore.add(reg)
	return nil
}

func (r *Registry) RegisterToolAfter(source string, fn ToolAfterFunc, opts ...RegisterOption) error {
	reg, err := newRegistration(ToolExecuteAfter, source, fn, fn == nil, opts)
	if err != nil {
		return err
	}
	r.toolAfter.add(reg)
	return nil
}

func (r *Registry) RegisterChatMessage(source string, fn ChatFunc, opts ...RegisterOption) error {
	reg, err := newRegistration(ChatMessage, source, fn, fn == nil, opts)
	if err != nil {
		return err
	}
	r.chat.add(reg)
	return nil
}

func (r *Registry) RegisterPermissionAsk(source string, fn PermissionFunc, opts ...RegisterOption) error {
	reg, err := newRegistration(PermissionAsk, source, fn, fn == nil, opts)
	if err != nil {
		return err
	}
	r.permission.add(reg)
	return nil
}

func (r *Registry) RegisterSessionStart(source string, fn SessionStartFunc, opts ...RegisterOption) error {
	reg, err := newRegistration(SessionStart, source, fn, fn == nil, opts)
	if err != nil {
		return err
	}
	r.sessionStart.add(reg)
	return nil
}

func (r *Registry) RegisterSessionEnd(source string, fn SessionEndFunc, opts ...RegisterOption) error {
	reg, err := newRegistration(SessionEnd, source, fn, fn == nil, opts)
	if err != nil {
		return err
	}
	r.sessionEnd.add(reg)
	return nil
}

// UnregisterSource removes every registration made by source and returns how
// many were removed.
func (r *Registry) UnregisterSource(source string) int {
	return r.toolBefore.removeSource(source) +
		r.toolAfter.removeSource(source) +
		r.chat.removeSource(source) +
		r.permission.removeSource(source) +
		r.sessionStart.removeSource(source) +
		r.sessionEnd.removeSource(source)
}

// Count returns the number of registrations at p.
func (r *Registry) Count(p Point) int {
	switch p {
	case ToolExecuteBefore:
		return r.toolBefore.len()
	case ToolExecuteAfter:
		return r.toolAfter.len()
	case ChatMessage:
		return r.chat.len()
	case PermissionAsk:
		return r.permission.len()
	case SessionStart:
		return r.sessionStart.len()
	case SessionEnd:
		return r.sessionEnd.len()
	default:
		return 0
	}
}

// HasHooks reports whether anything is registered at p.
func (r *Registry) HasHooks(p Point) bool {
	return r.Count(p) > 0
}
