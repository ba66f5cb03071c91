package hooks

import (
	"encoding/json"
	"fmt"
)

// ResultKind is the control-flow outcome a hook reports.
type ResultKind int

const (
	KindContinue ResultKind = iota
	KindSkip
	KindAbort
	KindReplace
)

func (k ResultKind) String() string {
	switch k {
	case KindContinue:
		return "continue"
	case KindSkip:
		return "skip"
	case KindAbort:
		return "abort"
	case KindReplace:
		return "replace"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k ResultKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ResultKind) UnmarshalText(b []byte) error {
	for _, c := range []ResultKind{KindContinue, KindSkip, KindAbort, KindReplace} {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown result kind %q", b)
}

// Result is the outcome of one hook invocation. The zero value is Continue.
type Result struct {
	Kind ResultKind `json:"kind"`

	// Reason is set for Abort.
	Reason string `json:"reason,omitempty"`

	// Value is set for Replace and stands in for the operation's result.
	Value json.RawMessage `json:"value,omitempty"`
}

func Continue() Result {
	return Result{Kind: KindContinue}
}

func Skip() Result {
	return Result{Kind: KindSkip}
}

func Abort(reason string) Result {
	return Result{Kind: KindAbort, Reason: reason}
}

func Replace(v json.RawMessage) Result {
	return Result{Kind: KindReplace, Value: v}
}

// Stops reports whether the outcome ends its chain.
func (r Result) Stops() bool {
	return r.Kind != KindContinue
}

// ShouldContinue reports whether the engine should go on with the operation
// the hook guarded. Only Abort halts it; Skip and Replace still proceed,
// Replace with the substituted value.
func (r Result) ShouldContinue() bool {
	return r.Kind != KindAbort
}

func (r Result) String() string {
	switch r.Kind {
	case KindAbort:
		return fmt.Sprintf("abort(%s)", r.Reason)
	case KindReplace:
		return fmt.Sprintf("replace(%s)", r.Value)
	default:
		return r.Kind.String()
	}
}
