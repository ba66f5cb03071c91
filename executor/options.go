package executor

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/caffeineduck/hookwarden/signing"
)

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32 // Max memory pages (each page = 64KB), 0 = default (4GB)
	signer           *signing.Signer
	requireSignature bool
	requireChecksum  bool
	callTimeout      time.Duration
	log              zerolog.Logger
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		diskCache:        false,
		memoryLimitPages: 0, // 0 means use wazero default (65536 pages = 4GB)
		callTimeout:      5 * time.Second,
		log:              zerolog.Nop(),
	}
}

// WithDiskCache enables persistent compilation cache for faster startup.
// Optionally provide a custom directory; otherwise uses
// ~/.cache/hookwarden or XDG_CACHE_HOME/hookwarden.
//
// Examples:
//
//	executor.New(bridge, executor.WithDiskCache())            // default dir
//	executor.New(bridge, executor.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) ExecutorOption {
	return func(c *executorConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit sets the maximum memory available to each plugin.
// Each page is 64KB. Examples:
//   - WithMemoryLimit(16) = 1MB max
//   - WithMemoryLimit(256) = 16MB max
//   - WithMemoryLimit(1024) = 64MB max
//
// Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) ExecutorOption {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)

// WithSigner sets the trusted key set signatures are checked against.
// Without it, every signature is rejected.
func WithSigner(s *signing.Signer) ExecutorOption {
	return func(c *executorConfig) {
		c.signer = s
	}
}

// WithRequireSignature refuses to load modules without a signature.
func WithRequireSignature() ExecutorOption {
	return func(c *executorConfig) {
		c.requireSignature = true
	}
}

// WithRequireChecksum refuses to load modules without an expected checksum.
func WithRequireChecksum() ExecutorOption {
	return func(c *executorConfig) {
		c.requireChecksum = true
	}
}

// WithCallTimeout bounds every export call. Zero disables the bound.
// A call that times out closes the plugin's module.
func WithCallTimeout(d time.Duration) ExecutorOption {
	return func(c *executorConfig) {
		c.callTimeout = d
	}
}

// WithLogger sets the logger for load, unload and guest stderr output.
func WithLogger(l zerolog.Logger) ExecutorOption {
	return func(c *executorConfig) {
		c.log = l
	}
}

// LoadOption configures a single Load.
type LoadOption func(*loadConfig)

type loadConfig struct {
	checksum  string
	signature string
}

// WithChecksum sets the expected hex SHA-256 of the module bytes.
func WithChecksum(sum string) LoadOption {
	return func(c *loadConfig) {
		c.checksum = sum
	}
}

// WithSignature sets the hex ed25519 signature over the module bytes.
func WithSignature(sig string) LoadOption {
	return func(c *loadConfig) {
		c.signature = sig
	}
}
