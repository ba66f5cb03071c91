package hostfunc

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// PluginContext is the read-only snapshot a guest can observe via get_context.
type PluginContext struct {
	Cwd       string         `json:"cwd"`
	SessionID string         `json:"session_id,omitempty"`
	Model     string         `json:"model,omitempty"`
	Agent     string         `json:"agent,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
}

// Event is a custom event emitted by a plugin.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Data      string    `json:"data,omitempty"`
	PluginID  string    `json:"plugin_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Toast is a queued toast notification.
type Toast struct {
	Level      ToastLevel `json:"level"`
	Message    string     `json:"message"`
	DurationMS uint32     `json:"duration_ms"`
	PluginID   string     `json:"plugin_id"`
}

// guarded is a value behind its own short-held mutex. A panic inside a
// mutation poisons it; every later access reports ErrPoisoned.
type guarded[T any] struct {
	mu       sync.Mutex
	poisoned bool
	v        T
}

func (g *guarded[T]) with(fn func(v *T)) (err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.poisoned {
		return ErrPoisoned
	}

	defer func() {
		if r := recover(); r != nil {
			g.poisoned = true
			err = fmt.Errorf("%w: %v", ErrPoisoned, r)
		}
	}()

	fn(&g.v)
	return nil
}

// State is the host-side state owned by one loaded module. It is created at
// instantiation, mutated only through bridge calls, and dropped on unload.
type State struct {
	pluginID string
	context  PluginContext

	widgets     guarded[map[Region][]string]
	keybindings guarded[map[string]string]
	events      guarded[[]Event]
	toasts      guarded[[]Toast]
}

// NewState creates empty host state for a plugin.
func NewState(pluginID string, ctx PluginContext) *State {
	s := &State{
		pluginID: pluginID,
		context:  ctx,
	}
	s.widgets.v = make(map[Region][]string)
	s.keybindings.v = make(map[string]string)
	return s
}

func (s *State) PluginID() string {
	return s.pluginID
}

func (s *State) Context() PluginContext {
	return s.context
}

func (s *State) addWidget(region Region, widgetType string) error {
	return s.widgets.with(func(w *map[Region][]string) {
		(*w)[region] = append((*w)[region], widgetType)
	})
}

func (s *State) setKeybinding(key, action string) error {
	return s.keybindings.with(func(kb *map[string]string) {
		(*kb)[key] = action
	})
}

func (s *State) pushEvent(ev Event) error {
	return s.events.with(func(evs *[]Event) {
		*evs = append(*evs, ev)
	})
}

func (s *State) pushToast(t Toast) error {
	return s.toasts.with(func(ts *[]Toast) {
		*ts = append(*ts, t)
	})
}

// Widgets returns a copy of the registered widgets grouped by region.
func (s *State) Widgets() (map[Region][]string, error) {
	var out map[Region][]string
	err := s.widgets.with(func(w *map[Region][]string) {
		out = make(map[Region][]string, len(*w))
		for r, types := range *w {
			out[r] = slices.Clone(types)
		}
	})
	return out, err
}

// Keybindings returns a copy of the key to action mapping.
func (s *State) Keybindings() (map[string]string, error) {
	var out map[string]string
	err := s.keybindings.with(func(kb *map[string]string) {
		out = maps.Clone(*kb)
	})
	return out, err
}

// Events returns a copy of the emitted events in emission order.
func (s *State) Events() ([]Event, error) {
	var out []Event
	err := s.events.with(func(evs *[]Event) {
		out = slices.Clone(*evs)
	})
	return out, err
}

// Toasts returns a copy of the queued toasts in queue order.
func (s *State) Toasts() ([]Toast, error) {
	var out []Toast
	err := s.toasts.with(func(ts *[]Toast) {
		out = slices.Clone(*ts)
	})
	return out, err
}

// DrainEvents removes and returns every queued event.
func (s *State) DrainEvents() ([]Event, error) {
	var out []Event
	err := s.events.with(func(evs *[]Event) {
		out, *evs = *evs, nil
	})
	return out, err
}

// DrainToasts removes and returns every queued toast.
func (s *State) DrainToasts() ([]Toast, error) {
	var out []Toast
	err := s.toasts.with(func(ts *[]Toast) {
		out, *ts = *ts, nil
	})
	return out, err
}
