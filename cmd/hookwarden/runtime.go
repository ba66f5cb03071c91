package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/caffeineduck/hookwarden/config"
	"github.com/caffeineduck/hookwarden/executor"
	"github.com/caffeineduck/hookwarden/hooks"
	"github.com/caffeineduck/hookwarden/hostfunc"
	"github.com/caffeineduck/hookwarden/logging"
	"github.com/caffeineduck/hookwarden/plugin"
	"github.com/caffeineduck/hookwarden/signing"
)

// runtime is everything a command needs to load plugins and fire hooks,
// built from config.
type runtime struct {
	signer     *signing.Signer
	bridge     *hostfunc.Bridge
	exec       *executor.Executor
	registry   *hooks.Registry
	dispatcher *hooks.Dispatcher
	manager    *plugin.Manager
}

func newSigner(cfg *config.Config, log *logging.Logger) (*signing.Signer, error) {
	signer := signing.NewSigner(signing.WithLogger(log.Component("signing")))
	for _, key := range cfg.Trust.Keys {
		if err := signer.AddTrustedKeyHex(key); err != nil {
			return nil, fmt.Errorf("trust.keys: %w", err)
		}
	}
	return signer, nil
}

func newRuntime(cfg *config.Config, log *logging.Logger) (*runtime, error) {
	signer, err := newSigner(cfg, log)
	if err != nil {
		return nil, err
	}

	bridgeOpts := []hostfunc.Option{
		hostfunc.WithLogger(log.Component("bridge")),
		hostfunc.WithDisabled(cfg.Capabilities.Disabled...),
	}
	if cfg.Capabilities.StrictLevels {
		bridgeOpts = append(bridgeOpts, hostfunc.WithStrictLevels())
	}
	bridge, err := hostfunc.NewBridge(bridgeOpts...)
	if err != nil {
		return nil, err
	}

	execOpts := []executor.ExecutorOption{
		executor.WithSigner(signer),
		executor.WithLogger(log.Component("executor")),
		executor.WithCallTimeout(cfg.Runtime.CallTimeout),
	}
	if cfg.Runtime.MemoryLimitPages > 0 {
		execOpts = append(execOpts, executor.WithMemoryLimit(cfg.Runtime.MemoryLimitPages))
	}
	if cfg.Runtime.DiskCache {
		execOpts = append(execOpts, executor.WithDiskCache(cfg.Runtime.CacheDir))
	}
	if cfg.Plugins.RequireSignature {
		execOpts = append(execOpts, executor.WithRequireSignature())
	}
	if cfg.Plugins.RequireChecksum {
		execOpts = append(execOpts, executor.WithRequireChecksum())
	}
	exec, err := executor.New(bridge, execOpts...)
	if err != nil {
		return nil, err
	}

	cwd, _ := os.Getwd()
	registry := hooks.NewRegistry()
	return &runtime{
		signer:   signer,
		bridge:   bridge,
		exec:     exec,
		registry: registry,
		dispatcher: hooks.NewDispatcher(registry,
			hooks.WithTrustPolicy(hooks.NewStaticTrust(cfg.Trust.SystemSources...)),
			hooks.WithLogger(log.Component("dispatcher"))),
		manager: plugin.NewManager(exec, registry,
			plugin.WithLogger(log.Component("plugins")),
			plugin.WithCallTimeout(cfg.Runtime.CallTimeout),
			plugin.WithPluginContext(hostfunc.PluginContext{Cwd: cwd})),
	}, nil
}

func (r *runtime) Close(ctx context.Context) error {
	return errors.Join(r.manager.Close(ctx), r.exec.Close())
}
