package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/caffeineduck/hookwarden/hostfunc"
	"github.com/caffeineduck/hookwarden/signing"
)

var (
	ErrVerificationFailed = errors.New("plugin verification failed")
	ErrChecksumMismatch   = fmt.Errorf("%w: checksum mismatch", ErrVerificationFailed)
	ErrChecksumRequired   = fmt.Errorf("%w: checksum required", ErrVerificationFailed)
	ErrSignatureRejected  = fmt.Errorf("%w: signature not trusted", ErrVerificationFailed)
	ErrSignatureRequired  = fmt.Errorf("%w: signature required", ErrVerificationFailed)

	ErrAlreadyLoaded = errors.New("plugin already loaded")
	ErrNotLoaded     = errors.New("plugin not loaded")
	ErrInitFailed    = errors.New("plugin init failed")
	ErrClosed        = errors.New("executor closed")
)

// Executor owns the wazero runtime plugins run in, the compilation cache,
// and the trust gate every module passes before it is instantiated.
type Executor struct {
	runtime   wazero.Runtime
	cache     wazero.CompilationCache
	compiled  map[string]wazero.CompiledModule
	bridge    *hostfunc.Bridge
	cfg       executorConfig
	instances map[string]*Instance
	mu        sync.RWMutex
	closed    bool
}

// New creates an Executor whose plugins link against bridge. A nil bridge
// gets the default capability table.
func New(bridge *hostfunc.Bridge, opts ...ExecutorOption) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.signer == nil {
		cfg.signer = signing.NewSigner(signing.WithLogger(cfg.log))
	}

	if bridge == nil {
		var err error
		bridge, err = hostfunc.NewBridge(hostfunc.WithLogger(cfg.log))
		if err != nil {
			return nil, err
		}
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	cleanup := func() {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		cleanup()
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}
	if _, err := bridge.Instantiate(ctx, rt); err != nil {
		cleanup()
		return nil, err
	}

	return &Executor{
		runtime:   rt,
		cache:     cache,
		compiled:  make(map[string]wazero.CompiledModule),
		bridge:    bridge,
		cfg:       cfg,
		instances: make(map[string]*Instance),
	}, nil
}

// Bridge returns the capability table plugins link against.
func (e *Executor) Bridge() *hostfunc.Bridge {
	return e.bridge
}

// Signer returns the trusted key set used by Load.
func (e *Executor) Signer() *signing.Signer {
	return e.cfg.signer
}

// Verify runs the load-time trust gate without loading anything and returns
// the module's checksum.
func (e *Executor) Verify(wasm []byte, opts ...LoadOption) (string, error) {
	var cfg loadConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return e.verify(wasm, cfg)
}

func (e *Executor) verify(wasm []byte, cfg loadConfig) (string, error) {
	sum := signing.ComputeChecksum(wasm)

	switch {
	case cfg.checksum != "":
		if !signing.VerifyChecksum(wasm, cfg.checksum) {
			return "", fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, cfg.checksum, sum)
		}
	case e.cfg.requireChecksum:
		return "", ErrChecksumRequired
	}

	switch {
	case cfg.signature != "":
		ok, err := e.cfg.signer.VerifyPluginHex(wasm, cfg.signature)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrSignatureRejected, err)
		}
		if !ok {
			return "", ErrSignatureRejected
		}
	case e.cfg.requireSignature:
		return "", ErrSignatureRequired
	}

	return sum, nil
}

// Load verifies wasm, instantiates it under id with fresh host state built
// from pctx, and runs its init export if it has one. A module failing
// verification is never compiled.
func (e *Executor) Load(ctx context.Context, id string, wasm []byte, pctx hostfunc.PluginContext, opts ...LoadOption) (*Instance, error) {
	if id == "" {
		return nil, errors.New("load: empty plugin id")
	}
	if id == hostfunc.ModuleName || id == wasi_snapshot_preview1.ModuleName {
		return nil, fmt.Errorf("load: plugin id %q is reserved", id)
	}

	var cfg loadConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	log := e.cfg.log.With().Str("plugin", id).Logger()

	sum, err := e.verify(wasm, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("plugin rejected")
		return nil, fmt.Errorf("load %s: %w", id, err)
	}

	if err := e.reserve(id); err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	loaded := false
	defer func() {
		if !loaded {
			e.release(id)
		}
	}()

	compiled, err := e.getCompiled(ctx, sum, wasm)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}

	state := hostfunc.NewState(id, pctx)
	e.bridge.Bind(state)

	moduleConfig := wazero.NewModuleConfig().
		WithName(id).
		WithStartFunctions("_initialize").
		WithStderr(log)

	mod, err := e.runtime.InstantiateModule(ctx, compiled, moduleConfig)
	if err != nil {
		e.bridge.Unbind(id)
		return nil, fmt.Errorf("load %s: instantiate: %w", id, err)
	}

	inst := &Instance{
		id:       id,
		checksum: sum,
		exports:  exportNames(compiled),
		module:   mod,
		state:    state,
		timeout:  e.cfg.callTimeout,
	}

	if inst.HasExport(ExportInit) {
		code, err := inst.Call(ctx, ExportInit)
		if err == nil && code != 0 {
			err = fmt.Errorf("returned %d", code)
		}
		if err != nil {
			inst.close(ctx)
			e.bridge.Unbind(id)
			return nil, fmt.Errorf("load %s: %w: %w", id, ErrInitFailed, err)
		}
	}

	e.mu.Lock()
	e.instances[id] = inst
	e.mu.Unlock()
	loaded = true

	log.Info().Str("checksum", sum).Msg("plugin loaded")
	return inst, nil
}

// reserve claims id so concurrent loads of the same plugin cannot race.
func (e *Executor) reserve(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if _, ok := e.instances[id]; ok {
		return ErrAlreadyLoaded
	}
	e.instances[id] = nil
	return nil
}

func (e *Executor) release(id string) {
	e.mu.Lock()
	if e.instances[id] == nil {
		delete(e.instances, id)
	}
	e.mu.Unlock()
}

// Instance returns a loaded plugin.
func (e *Executor) Instance(id string) (*Instance, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inst := e.instances[id]
	return inst, inst != nil
}

// Loaded returns the ids of every loaded plugin, sorted.
func (e *Executor) Loaded() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.instances))
	for id, inst := range e.instances {
		if inst != nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Unload runs the plugin's shutdown export, closes its module and discards
// its host state.
func (e *Executor) Unload(ctx context.Context, id string) error {
	e.mu.Lock()
	inst := e.instances[id]
	if inst == nil {
		e.mu.Unlock()
		return fmt.Errorf("unload %s: %w", id, ErrNotLoaded)
	}
	delete(e.instances, id)
	e.mu.Unlock()

	return e.shutdown(ctx, inst)
}

func (e *Executor) shutdown(ctx context.Context, inst *Instance) error {
	log := e.cfg.log.With().Str("plugin", inst.id).Logger()

	if inst.HasExport(ExportShutdown) {
		code, err := inst.Call(ctx, ExportShutdown)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("plugin shutdown failed")
		case code != 0:
			log.Warn().Int32("code", code).Msg("plugin shutdown returned non-zero")
		}
	}

	err := inst.close(ctx)
	e.bridge.Unbind(inst.id)
	log.Info().Msg("plugin unloaded")
	if err != nil {
		return fmt.Errorf("unload %s: %w", inst.id, err)
	}
	return nil
}

// getCompiled returns a cached compiled module, compiling if necessary.
// Modules are keyed by checksum so identical bytes compile once.
func (e *Executor) getCompiled(ctx context.Context, sum string, wasm []byte) (wazero.CompiledModule, error) {
	e.mu.RLock()
	if compiled, ok := e.compiled[sum]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if compiled, ok := e.compiled[sum]; ok {
		return compiled, nil
	}

	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", shortSum(sum), err)
	}

	e.compiled[sum] = compiled
	return compiled, nil
}

// Close unloads every plugin and releases all resources held by the Executor.
func (e *Executor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	var insts []*Instance
	for _, inst := range e.instances {
		if inst != nil {
			insts = append(insts, inst)
		}
	}
	e.instances = make(map[string]*Instance)
	e.mu.Unlock()

	ctx := context.Background()

	var errs []error
	for _, inst := range insts {
		if err := e.shutdown(ctx, inst); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func shortSum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}

func exportNames(compiled wazero.CompiledModule) []string {
	var names []string
	for name := range compiled.ExportedFunctions() {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "hookwarden")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "hookwarden")
	}
	return filepath.Join(os.TempDir(), "hookwarden-cache")
}
