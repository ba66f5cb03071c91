package hostfunc

import (
	"errors"
	"fmt"
)

// Status is the int32 code every bridge function hands back to the guest.
// Zero is success; negative values are boundary errors.
type Status int32

const (
	StatusSuccess         Status = 0
	StatusOutOfBounds     Status = -1
	StatusInvalidUTF8     Status = -2
	StatusInvalidArgument Status = -3
	StatusInternal        Status = -4
	StatusNotSupported    Status = -5
)

// ErrPoisoned is reported by a host state collection after a mutation panicked
// while holding its lock. The collection stays unusable until the state is discarded.
var ErrPoisoned = errors.New("host state lock poisoned")

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusOutOfBounds:
		return "memory out of bounds"
	case StatusInvalidUTF8:
		return "invalid utf-8"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusInternal:
		return "internal error"
	case StatusNotSupported:
		return "not supported"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// OK reports whether s is StatusSuccess.
func (s Status) OK() bool {
	return s == StatusSuccess
}
