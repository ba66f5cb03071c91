package executor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/caffeineduck/hookwarden/hostfunc"
)

// Lifecycle exports a plugin may define. Both are optional and return 0 on
// success.
const (
	ExportInit     = "init"
	ExportShutdown = "shutdown"
)

var (
	ErrInstanceClosed = errors.New("instance closed")
	ErrExportNotFound = errors.New("export not found")
	ErrBadExport      = errors.New("export must take no parameters and return one i32")
)

// Instance is one loaded plugin module. Calls into it are serialized.
type Instance struct {
	id       string
	checksum string
	exports  []string
	module   api.Module
	state    *hostfunc.State
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
}

func (i *Instance) ID() string {
	return i.id
}

// Checksum returns the hex SHA-256 of the module bytes.
func (i *Instance) Checksum() string {
	return i.checksum
}

// State returns the host state the plugin has accumulated.
func (i *Instance) State() *hostfunc.State {
	return i.state
}

// Exports returns the names of the module's exported functions, sorted.
func (i *Instance) Exports() []string {
	return slices.Clone(i.exports)
}

func (i *Instance) HasExport(name string) bool {
	_, found := slices.BinarySearch(i.exports, name)
	return found
}

// Call invokes a parameterless export returning i32 and returns its result.
func (i *Instance) Call(ctx context.Context, name string) (int32, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return 0, ErrInstanceClosed
	}

	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return 0, fmt.Errorf("%s: %w", name, ErrExportNotFound)
	}
	def := fn.Definition()
	if len(def.ParamTypes()) != 0 || len(def.ResultTypes()) != 1 || def.ResultTypes()[0] != api.ValueTypeI32 {
		return 0, fmt.Errorf("%s: %w", name, ErrBadExport)
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	res, err := fn.Call(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The runtime closes the module when its context is done.
			i.closed = true
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return 0, fmt.Errorf("call %s: timeout after %v: %w", name, i.timeout, ctxErr)
			}
			return 0, fmt.Errorf("call %s: %w", name, ctxErr)
		}
		return 0, fmt.Errorf("call %s: %w", name, err)
	}
	return api.DecodeI32(res[0]), nil
}

func (i *Instance) close(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true
	return i.module.Close(ctx)
}
