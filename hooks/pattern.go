package hooks

import (
	"errors"
	"strings"

	"github.com/gobwas/glob"
)

// ErrMultipleWildcards is returned for patterns with more than one '*'.
var ErrMultipleWildcards = errors.New("pattern may contain at most one '*'")

// Pattern matches tool names. "*" matches anything; a single '*' elsewhere
// matches any run of characters; all other characters match literally.
type Pattern struct {
	raw string
	g   glob.Glob
}

// CompilePattern compiles a tool-name pattern.
func CompilePattern(pattern string) (*Pattern, error) {
	if pattern == "" {
		return nil, errors.New("empty pattern")
	}
	if pattern == "*" {
		return &Pattern{raw: pattern}, nil
	}

	parts := strings.Split(pattern, "*")
	if len(parts) > 2 {
		return nil, ErrMultipleWildcards
	}
	for i, part := range parts {
		parts[i] = glob.QuoteMeta(part)
	}

	g, err := glob.Compile(strings.Join(parts, "*"))
	if err != nil {
		return nil, err
	}
	return &Pattern{raw: pattern, g: g}, nil
}

// Match reports whether tool matches the pattern.
func (p *Pattern) Match(tool string) bool {
	if p.g == nil {
		return true
	}
	return p.g.Match(tool)
}

func (p *Pattern) String() string {
	return p.raw
}

// MatchPattern compiles pattern and matches tool against it. An invalid
// pattern matches nothing.
func MatchPattern(tool, pattern string) bool {
	p, err := CompilePattern(pattern)
	if err != nil {
		return false
	}
	return p.Match(tool)
}
