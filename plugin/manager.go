package plugin

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/caffeineduck/hookwarden/executor"
	"github.com/caffeineduck/hookwarden/hooks"
	"github.com/caffeineduck/hookwarden/hostfunc"
	"github.com/caffeineduck/hookwarden/luahook"
)

var (
	ErrAlreadyLoaded  = errors.New("plugin already loaded")
	ErrNotLoaded      = errors.New("plugin not loaded")
	ErrMissingExport  = errors.New("export not found")
	ErrUnknownCommand = errors.New("unknown command")
	ErrCommandFailed  = errors.New("command failed")
)

// Plugin is a loaded plugin.
type Plugin struct {
	Manifest *Manifest
	Checksum string
	Hooks    int

	// Exactly one of Instance or Script is set.
	Instance *executor.Instance
	Script   *luahook.Script
}

// ID returns the manifest id, which is also the hook source name.
func (p *Plugin) ID() string {
	return p.Manifest.ID
}

// Manager loads plugin directories, verifies their entry files through the
// executor and registers their hooks.
type Manager struct {
	exec     *executor.Executor
	registry *hooks.Registry
	log      zerolog.Logger
	pctx     hostfunc.PluginContext
	timeout  time.Duration

	mu      sync.Mutex
	plugins map[string]*Plugin
}

type ManagerOption func(*Manager)

func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = l
	}
}

// WithPluginContext sets the context every WebAssembly plugin sees. Each
// plugin's manifest config is layered on top.
func WithPluginContext(pctx hostfunc.PluginContext) ManagerOption {
	return func(m *Manager) {
		m.pctx = pctx
	}
}

// WithCallTimeout bounds each Lua hook call. WebAssembly calls are bounded
// by the executor's own timeout.
func WithCallTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = d
	}
}

func NewManager(exec *executor.Executor, registry *hooks.Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		exec:     exec,
		registry: registry,
		log:      zerolog.Nop(),
		timeout:  luahook.DefaultCallTimeout,
		plugins:  make(map[string]*Plugin),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadDir loads every subdirectory of dir that holds a plugin.yaml. A missing
// dir loads nothing. Plugins that fail are skipped and their errors joined.
func (m *Manager) LoadDir(ctx context.Context, dir string) ([]*Plugin, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read plugin dir: %w", err)
	}

	var loaded []*Plugin
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pluginDir := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(pluginDir, ManifestFile)); err != nil {
			continue
		}

		p, err := m.Load(ctx, pluginDir)
		if err != nil {
			m.log.Warn().Err(err).Str("dir", pluginDir).Msg("plugin failed to load")
			errs = append(errs, err)
			continue
		}
		loaded = append(loaded, p)
	}
	return loaded, errors.Join(errs...)
}

// Load loads the plugin in dir and registers its hooks.
func (m *Manager) Load(ctx context.Context, dir string) (*Plugin, error) {
	manifest, err := LoadManifestFromDir(dir)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.plugins[manifest.ID]; exists {
		return nil, fmt.Errorf("%s: %w", manifest.ID, ErrAlreadyLoaded)
	}

	entry, err := os.ReadFile(filepath.Join(dir, manifest.Entry()))
	if err != nil {
		return nil, fmt.Errorf("%s: read entry: %w", manifest.ID, err)
	}

	var opts []executor.LoadOption
	if manifest.Checksum != "" {
		opts = append(opts, executor.WithChecksum(manifest.Checksum))
	}
	if manifest.Signature != "" {
		opts = append(opts, executor.WithSignature(manifest.Signature))
	}

	var p *Plugin
	if manifest.IsLua() {
		p, err = m.loadLua(manifest, entry, opts)
	} else {
		p, err = m.loadWasm(ctx, manifest, entry, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifest.ID, err)
	}

	m.plugins[manifest.ID] = p
	m.log.Info().
		Str("plugin", p.ID()).
		Str("version", manifest.Version).
		Int("hooks", p.Hooks).
		Bool("lua", manifest.IsLua()).
		Msg("plugin loaded")
	return p, nil
}

func (m *Manager) loadWasm(ctx context.Context, manifest *Manifest, wasm []byte, opts []executor.LoadOption) (*Plugin, error) {
	pctx := m.pctx
	if len(manifest.Config) > 0 {
		pctx.Config = make(map[string]any, len(m.pctx.Config)+len(manifest.Config))
		maps.Copy(pctx.Config, m.pctx.Config)
		maps.Copy(pctx.Config, manifest.Config)
	}

	inst, err := m.exec.Load(ctx, manifest.ID, wasm, pctx, opts...)
	if err != nil {
		return nil, err
	}

	for _, h := range manifest.Hooks {
		if !inst.HasExport(h.Export) {
			m.exec.Unload(ctx, manifest.ID)
			return nil, fmt.Errorf("%s: %w", h.Export, ErrMissingExport)
		}
	}
	for _, c := range manifest.Commands {
		if !inst.HasExport(c.Export) {
			m.exec.Unload(ctx, manifest.ID)
			return nil, fmt.Errorf("command %s: %s: %w", c.Name, c.Export, ErrMissingExport)
		}
	}

	n, err := BindWasmHooks(m.registry, inst, manifest.Hooks)
	if err != nil {
		m.exec.Unload(ctx, manifest.ID)
		return nil, err
	}

	return &Plugin{
		Manifest: manifest,
		Checksum: inst.Checksum(),
		Hooks:    n,
		Instance: inst,
	}, nil
}

func (m *Manager) loadLua(manifest *Manifest, src []byte, opts []executor.LoadOption) (*Plugin, error) {
	sum, err := m.exec.Verify(src, opts...)
	if err != nil {
		return nil, err
	}

	script, err := luahook.Load(manifest.ID, src,
		luahook.WithLogger(m.log.With().Str("plugin", manifest.ID).Logger()),
		luahook.WithCallTimeout(m.timeout))
	if err != nil {
		return nil, err
	}

	n, err := script.Register(m.registry, manifest.ID)
	if err != nil {
		script.Close()
		return nil, err
	}

	return &Plugin{
		Manifest: manifest,
		Checksum: sum,
		Hooks:    n,
		Script:   script,
	}, nil
}

// Unload removes a plugin's hooks and releases it.
func (m *Manager) Unload(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.plugins[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotLoaded)
	}
	delete(m.plugins, id)
	return m.release(ctx, p)
}

func (m *Manager) release(ctx context.Context, p *Plugin) error {
	removed := m.registry.UnregisterSource(p.ID())
	m.log.Info().Str("plugin", p.ID()).Int("hooks", removed).Msg("plugin unloaded")

	if p.Script != nil {
		return p.Script.Close()
	}
	return m.exec.Unload(ctx, p.ID())
}

// RunCommand calls the export bound to a plugin command. A non-zero result is
// returned as ErrCommandFailed.
func (m *Manager) RunCommand(ctx context.Context, id, name string) error {
	p, ok := m.Plugin(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotLoaded)
	}
	c, ok := p.Manifest.Command(name)
	if !ok {
		return fmt.Errorf("%s: %w: %s", id, ErrUnknownCommand, name)
	}

	code, err := p.Instance.Call(ctx, c.Export)
	if err != nil {
		return fmt.Errorf("%s: command %s: %w", id, name, err)
	}
	if code != 0 {
		return fmt.Errorf("%s: command %s: %w: code %d", id, name, ErrCommandFailed, code)
	}
	m.log.Debug().Str("plugin", id).Str("command", name).Msg("command ran")
	return nil
}

// Plugin returns a loaded plugin by id.
func (m *Manager) Plugin(id string) (*Plugin, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plugins[id]
	return p, ok
}

// Loaded returns the ids of loaded plugins, sorted.
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.plugins))
}

// Close unloads every plugin.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, id := range slices.Sorted(maps.Keys(m.plugins)) {
		if err := m.release(ctx, m.plugins[id]); err != nil {
			errs = append(errs, err)
		}
		delete(m.plugins, id)
	}
	return errors.Join(errs...)
}
