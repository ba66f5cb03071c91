package hostfunc

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Names of the functions in the capability table, as imported by guests.
const (
	FuncLog                = "log"
	FuncGetContext         = "get_context"
	FuncReadContext        = "read_context"
	FuncRegisterWidget     = "register_widget"
	FuncRegisterKeybinding = "register_keybinding"
	FuncShowToast          = "show_toast"
	FuncEmitEvent          = "emit_event"
)

// Functions lists every function in the capability table.
func Functions() []string {
	return []string{
		FuncLog,
		FuncGetContext,
		FuncReadContext,
		FuncRegisterWidget,
		FuncRegisterKeybinding,
		FuncShowToast,
		FuncEmitEvent,
	}
}

// Bridge is the capability table handed to every module instantiation. It
// holds no per-module data itself; each call is resolved to the calling
// module's State, so isolated modules can coexist on one runtime.
type Bridge struct {
	log          zerolog.Logger
	now          func() time.Time
	newID        func() string
	strictLevels bool
	disabled     map[string]bool

	mu     sync.RWMutex
	states map[string]*State
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger guest log calls and boundary errors are written to.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bridge) {
		b.log = l
	}
}

// WithClock overrides the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		b.now = now
	}
}

// WithIDGenerator overrides how event IDs are generated.
func WithIDGenerator(fn func() string) Option {
	return func(b *Bridge) {
		b.newID = fn
	}
}

// WithStrictLevels makes log and show_toast reject unknown level ordinals
// with StatusInvalidArgument instead of treating them as info.
func WithStrictLevels() Option {
	return func(b *Bridge) {
		b.strictLevels = true
	}
}

// WithDisabled turns off capabilities by name. Disabled functions stay
// importable but every call answers StatusNotSupported.
func WithDisabled(names ...string) Option {
	return func(b *Bridge) {
		for _, n := range names {
			b.disabled[n] = true
		}
	}
}

// NewBridge creates a capability table.
func NewBridge(opts ...Option) (*Bridge, error) {
	b := &Bridge{
		log:      zerolog.Nop(),
		now:      time.Now,
		newID:    uuid.NewString,
		disabled: make(map[string]bool),
		states:   make(map[string]*State),
	}
	for _, opt := range opts {
		opt(b)
	}

	known := Functions()
	for name := range b.disabled {
		if !slices.Contains(known, name) {
			return nil, fmt.Errorf("unknown capability %q", name)
		}
	}
	return b, nil
}

// Bind attaches state to the module instantiated under state.PluginID().
func (b *Bridge) Bind(st *State) {
	b.mu.Lock()
	b.states[st.PluginID()] = st
	b.mu.Unlock()
}

// Unbind detaches the state of an unloaded module.
func (b *Bridge) Unbind(pluginID string) {
	b.mu.Lock()
	delete(b.states, pluginID)
	b.mu.Unlock()
}

// State returns the state bound to a module name.
func (b *Bridge) State(pluginID string) (*State, bool) {
	b.mu.RLock()
	st, ok := b.states[pluginID]
	b.mu.RUnlock()
	return st, ok
}

// Enabled reports whether a capability answers calls.
func (b *Bridge) Enabled(name string) bool {
	return !b.disabled[name]
}

func (b *Bridge) boundaryError(st *State, fn string, status Status) int32 {
	b.log.Debug().
		Str("plugin", st.PluginID()).
		Str("fn", fn).
		Stringer("status", status).
		Msg("rejected host call")
	return int32(status)
}

func (b *Bridge) lockError(st *State, fn string, err error) int32 {
	b.log.Error().
		Err(err).
		Str("plugin", st.PluginID()).
		Str("fn", fn).
		Msg("host state unavailable")
	return int32(StatusInternal)
}

// Log forwards a guest message to the host logger.
func (b *Bridge) Log(st *State, mem Memory, level, ptr, length int32) {
	if !b.Enabled(FuncLog) {
		return
	}

	msg, status := ReadString(mem, ptr, length)
	if !status.OK() {
		b.log.Warn().
			Str("plugin", st.PluginID()).
			Stringer("status", status).
			Msg("failed to read log message from guest memory")
		return
	}

	lvl, known := ParseLogLevel(level)
	if !known {
		if b.strictLevels {
			b.boundaryError(st, FuncLog, StatusInvalidArgument)
			return
		}
		b.log.Debug().Str("plugin", st.PluginID()).Int32("level", level).Msg("unknown log level, using info")
	}

	var ev *zerolog.Event
	switch lvl {
	case LogTrace:
		ev = b.log.Trace()
	case LogDebug:
		ev = b.log.Debug()
	case LogWarn:
		ev = b.log.Warn()
	case LogError:
		ev = b.log.Error()
	default:
		ev = b.log.Info()
	}
	ev.Str("plugin", st.PluginID()).Msg(msg)
}

func (b *Bridge) contextJSON(st *State) ([]byte, error) {
	return json.Marshal(st.Context())
}

// GetContext reports the length of the serialized context snapshot.
func (b *Bridge) GetContext(st *State) int64 {
	if !b.Enabled(FuncGetContext) {
		return int64(StatusNotSupported)
	}

	data, err := b.contextJSON(st)
	if err != nil {
		b.log.Warn().Err(err).Str("plugin", st.PluginID()).Msg("failed to serialize context")
		return int64(StatusInternal)
	}
	return int64(len(data))
}

// ReadContext copies the serialized context snapshot into the guest buffer
// [ptr, ptr+length) and returns the number of bytes written.
func (b *Bridge) ReadContext(st *State, mem Memory, ptr, length int32) int32 {
	if !b.Enabled(FuncReadContext) {
		return int32(StatusNotSupported)
	}

	data, err := b.contextJSON(st)
	if err != nil {
		b.log.Warn().Err(err).Str("plugin", st.PluginID()).Msg("failed to serialize context")
		return int32(StatusInternal)
	}

	n, status := WriteBytes(mem, ptr, length, data)
	if !status.OK() {
		return b.boundaryError(st, FuncReadContext, status)
	}
	return n
}

// RegisterWidget appends a widget type to a UI region.
func (b *Bridge) RegisterWidget(st *State, mem Memory, region, typePtr, typeLen int32) int32 {
	if !b.Enabled(FuncRegisterWidget) {
		return int32(StatusNotSupported)
	}

	r, ok := ParseRegion(region)
	if !ok {
		b.log.Warn().Str("plugin", st.PluginID()).Int32("region", region).Msg("invalid UI region")
		return int32(StatusInvalidArgument)
	}

	widgetType, status := ReadString(mem, typePtr, typeLen)
	if !status.OK() {
		return b.boundaryError(st, FuncRegisterWidget, status)
	}

	if err := st.addWidget(r, widgetType); err != nil {
		return b.lockError(st, FuncRegisterWidget, err)
	}

	b.log.Debug().Str("plugin", st.PluginID()).Str("widget_type", widgetType).Stringer("region", r).Msg("widget registered")
	return int32(StatusSuccess)
}

// RegisterKeybinding inserts or replaces a key to action mapping.
func (b *Bridge) RegisterKeybinding(st *State, mem Memory, keyPtr, keyLen, actionPtr, actionLen int32) int32 {
	if !b.Enabled(FuncRegisterKeybinding) {
		return int32(StatusNotSupported)
	}

	key, status := ReadString(mem, keyPtr, keyLen)
	if !status.OK() {
		return b.boundaryError(st, FuncRegisterKeybinding, status)
	}
	action, status := ReadString(mem, actionPtr, actionLen)
	if !status.OK() {
		return b.boundaryError(st, FuncRegisterKeybinding, status)
	}

	if key == "" || action == "" {
		return b.boundaryError(st, FuncRegisterKeybinding, StatusInvalidArgument)
	}

	if err := st.setKeybinding(key, action); err != nil {
		return b.lockError(st, FuncRegisterKeybinding, err)
	}

	b.log.Debug().Str("plugin", st.PluginID()).Str("key", key).Str("action", action).Msg("keybinding registered")
	return int32(StatusSuccess)
}

// ShowToast queues a toast notification.
func (b *Bridge) ShowToast(st *State, mem Memory, level, msgPtr, msgLen, durationMS int32) int32 {
	if !b.Enabled(FuncShowToast) {
		return int32(StatusNotSupported)
	}

	msg, status := ReadString(mem, msgPtr, msgLen)
	if !status.OK() {
		return b.boundaryError(st, FuncShowToast, status)
	}

	if durationMS < 0 {
		return b.boundaryError(st, FuncShowToast, StatusInvalidArgument)
	}

	lvl, known := ParseToastLevel(level)
	if !known && b.strictLevels {
		return b.boundaryError(st, FuncShowToast, StatusInvalidArgument)
	}

	toast := Toast{
		Level:      lvl,
		Message:    msg,
		DurationMS: uint32(durationMS),
		PluginID:   st.PluginID(),
	}
	if err := st.pushToast(toast); err != nil {
		return b.lockError(st, FuncShowToast, err)
	}

	b.log.Debug().Str("plugin", st.PluginID()).Str("message", msg).Msg("toast queued")
	return int32(StatusSuccess)
}

// EmitEvent appends a named event. A non-empty payload must be valid JSON;
// an empty payload means the event carries no data.
func (b *Bridge) EmitEvent(st *State, mem Memory, namePtr, nameLen, dataPtr, dataLen int32) int32 {
	if !b.Enabled(FuncEmitEvent) {
		return int32(StatusNotSupported)
	}

	name, status := ReadString(mem, namePtr, nameLen)
	if !status.OK() {
		return b.boundaryError(st, FuncEmitEvent, status)
	}
	data, status := ReadString(mem, dataPtr, dataLen)
	if !status.OK() {
		return b.boundaryError(st, FuncEmitEvent, status)
	}

	if name == "" {
		return b.boundaryError(st, FuncEmitEvent, StatusInvalidArgument)
	}
	if data != "" && !gjson.Valid(data) {
		return b.boundaryError(st, FuncEmitEvent, StatusInvalidArgument)
	}

	ev := Event{
		ID:        b.newID(),
		Name:      name,
		Data:      data,
		PluginID:  st.PluginID(),
		Timestamp: b.now().UTC(),
	}
	if err := st.pushEvent(ev); err != nil {
		return b.lockError(st, FuncEmitEvent, err)
	}

	b.log.Debug().Str("plugin", st.PluginID()).Str("event", name).Msg("event emitted")
	return int32(StatusSuccess)
}
