package hooks

import (
	"fmt"
	"strings"
)

// BlockedAllowReason is attached to a permission decision that was coerced
// back to Ask because its source may not auto-grant.
const BlockedAllowReason = "permission.allow from third-party hook was blocked"

// Decision is the answer to a permission request. The zero value is Ask.
type Decision int

const (
	DecisionAsk Decision = iota
	DecisionAllow
	DecisionDeny
)

func (d Decision) String() string {
	switch d {
	case DecisionAsk:
		return "ask"
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Decision) UnmarshalText(b []byte) error {
	v, err := ParseDecision(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseDecision parses "ask", "allow" or "deny", ignoring case.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ask":
		return DecisionAsk, nil
	case "allow":
		return DecisionAllow, nil
	case "deny":
		return DecisionDeny, nil
	default:
		return DecisionAsk, fmt.Errorf("unknown permission decision %q", s)
	}
}

// RequiresElevatedTrust reports whether d grants without asking the user.
func (d Decision) RequiresElevatedTrust() bool {
	return d == DecisionAllow
}

// TrustPolicy decides which extension sources are system-trusted and may
// therefore auto-grant permissions. Sources never vouch for themselves.
type TrustPolicy interface {
	IsSystemTrusted(source string) bool
}

// TrustFunc adapts a function to TrustPolicy.
type TrustFunc func(source string) bool

func (f TrustFunc) IsSystemTrusted(source string) bool {
	return f(source)
}

// StaticTrust trusts a fixed set of sources.
type StaticTrust map[string]struct{}

// NewStaticTrust trusts exactly the given sources. With none, nothing is
// trusted.
func NewStaticTrust(sources ...string) StaticTrust {
	t := make(StaticTrust, len(sources))
	for _, s := range sources {
		if s = strings.TrimSpace(s); s != "" {
			t[s] = struct{}{}
		}
	}
	return t
}

func (t StaticTrust) IsSystemTrusted(source string) bool {
	_, ok := t[source]
	return ok
}
