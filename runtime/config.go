package runtime

import (
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	wasmexecutor "github.com/wippyai/wasm-executor"
	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/internal/bump"
)

// validate is a package-level singleton; building validators is expensive.
var validate = validator.New()

// MaxPages is the page count of a full 32-bit address space.
const MaxPages = 65536

// AllocatorFactory builds the allocator of one instance from its heap base.
type AllocatorFactory func(heapBase uint32) wasmexecutor.Allocator

// DefaultAllocatorFactory serves each instance from a host-side bump arena.
func DefaultAllocatorFactory(heapBase uint32) wasmexecutor.Allocator {
	return bump.New(heapBase)
}

// Config configures a Runtime. The zero value is usable.
type Config struct {
	// Logger receives runtime events. Nil disables logging.
	Logger *zap.Logger `json:"-" validate:"-"`

	// AllocatorFactory builds per-instance allocators. Nil selects
	// DefaultAllocatorFactory.
	AllocatorFactory AllocatorFactory `json:"-" validate:"-"`

	// MemoryLimitPages caps linear memory per instance; 0 means no cap
	// beyond the 4 GiB address space.
	MemoryLimitPages uint32 `json:"memory_limit_pages,omitempty" validate:"lte=65536" jsonschema:"maximum=65536,description=Maximum linear memory per instance in 64 KiB pages; 0 means 4 GiB"`

	// HeapPages grows every new instance by this many pages before use.
	HeapPages uint32 `json:"heap_pages,omitempty" validate:"lte=65536" jsonschema:"maximum=65536,description=Extra pages granted to each instance for its heap"`

	// CloseOnContextDone closes an instance whose call context ends.
	CloseOnContextDone bool `json:"close_on_context_done,omitempty" jsonschema:"description=Close an instance when the context of a call into it is done"`

	// EnableWASI provides wasi_snapshot_preview1 to guests.
	EnableWASI bool `json:"enable_wasi,omitempty" jsonschema:"description=Provide wasi_snapshot_preview1 to guests"`

	// AllowMissingImports stubs unregistered function imports with traps.
	AllowMissingImports bool `json:"allow_missing_imports,omitempty" jsonschema:"description=Replace unresolved function imports with stubs that trap"`
}

// Validate checks field bounds and that heap pages fit the memory limit.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindConfiguration, err, "invalid runtime config")
	}
	if c.MemoryLimitPages > 0 && c.HeapPages > c.MemoryLimitPages {
		return errors.New(errors.PhaseConfig, errors.KindConfiguration).
			Detail("heap_pages %d exceeds memory_limit_pages %d", c.HeapPages, c.MemoryLimitPages).
			Build()
	}
	return nil
}

func (c *Config) allocatorFactory() AllocatorFactory {
	if c.AllocatorFactory != nil {
		return c.AllocatorFactory
	}
	return DefaultAllocatorFactory
}

func (c *Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

// Option defines a functional option for configuring the Runtime.
type Option func(*Config)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithMemoryLimitPages caps linear memory per instance.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *Config) {
		c.MemoryLimitPages = pages
	}
}

// WithHeapPages grows every new instance by pages.
func WithHeapPages(pages uint32) Option {
	return func(c *Config) {
		c.HeapPages = pages
	}
}

// WithCloseOnContextDone closes instances whose call context ends.
func WithCloseOnContextDone(enabled bool) Option {
	return func(c *Config) {
		c.CloseOnContextDone = enabled
	}
}

// WithWASI provides wasi_snapshot_preview1 to guests.
func WithWASI(enabled bool) Option {
	return func(c *Config) {
		c.EnableWASI = enabled
	}
}

// WithAllowMissingImports stubs unregistered function imports with traps.
func WithAllowMissingImports(enabled bool) Option {
	return func(c *Config) {
		c.AllowMissingImports = enabled
	}
}

// WithAllocatorFactory sets how per-instance allocators are built.
func WithAllocatorFactory(f AllocatorFactory) Option {
	return func(c *Config) {
		c.AllocatorFactory = f
	}
}

// WithLogger sets the runtime logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}
