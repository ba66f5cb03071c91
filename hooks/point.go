package hooks

import (
	"errors"
	"fmt"
)

var ErrUnknownPoint = errors.New("unknown hook point")

// Point is a named lifecycle moment extensions can hook.
type Point string

const (
	ToolExecuteBefore Point = "tool.execute.before"
	ToolExecuteAfter  Point = "tool.execute.after"
	ChatMessage       Point = "chat.message"
	PermissionAsk     Point = "permission.ask"
	SessionStart      Point = "session.start"
	SessionEnd        Point = "session.end"
)

// Points returns every hook point.
func Points() []Point {
	return []Point{
		ToolExecuteBefore,
		ToolExecuteAfter,
		ChatMessage,
		PermissionAsk,
		SessionStart,
		SessionEnd,
	}
}

// ParsePoint resolves a hook point by name.
func ParsePoint(s string) (Point, error) {
	for _, p := range Points() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPoint, s)
}

// SupportsPattern reports whether registrations at p may filter on tool name.
func (p Point) SupportsPattern() bool {
	return p == ToolExecuteBefore || p == ToolExecuteAfter
}

func (p Point) String() string {
	return string(p)
}
