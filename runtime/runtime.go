package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-executor/engine"
	"github.com/wippyai/wasm-executor/errors"
)

// Runtime loads modules and hosts their instances. It is safe for
// concurrent use; the instances it creates are not.
type Runtime struct {
	engine *engine.WazeroEngine
	cfg    Config
	log    *zap.Logger
}

// New creates a Runtime configured by opts.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	eng, err := engine.NewWazeroEngineWithConfig(ctx, &engine.Config{
		MemoryLimitPages:    cfg.MemoryLimitPages,
		CloseOnContextDone:  cfg.CloseOnContextDone,
		EnableWASI:          cfg.EnableWASI,
		AllowMissingImports: cfg.AllowMissingImports,
	})
	if err != nil {
		return nil, errors.Load("create engine", err)
	}

	return &Runtime{
		engine: eng,
		cfg:    cfg,
		log:    cfg.logger(),
	}, nil
}

// Config returns the validated configuration.
func (r *Runtime) Config() Config {
	return r.cfg
}

// Engine returns the underlying engine.
func (r *Runtime) Engine() *engine.WazeroEngine {
	return r.engine
}

// Close releases all runtime resources, including live instances.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// LoadModule compiles a core WebAssembly module.
func (r *Runtime) LoadModule(ctx context.Context, wasm []byte) (*Module, error) {
	wm, err := r.engine.LoadModule(ctx, wasm)
	if err != nil {
		return nil, err
	}
	r.log.Debug("module loaded",
		zap.Int("size", len(wasm)),
		zap.Strings("entrypoints", wm.Entrypoints()))
	return &Module{runtime: r, wazeroModule: wm}, nil
}
