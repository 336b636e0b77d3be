package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-executor/engine"
	"github.com/wippyai/wasm-executor/exports"
)

// Module is a compiled module ready to be instantiated any number of times.
type Module struct {
	runtime      *Runtime
	wazeroModule *engine.WazeroModule
}

// Index returns the module's export index.
func (m *Module) Index() *exports.Index {
	return m.wazeroModule.Index()
}

// ExportNames returns the sorted names of all exports.
func (m *Module) ExportNames() []string {
	return m.wazeroModule.ExportNames()
}

// Entrypoints returns the sorted names of callable entrypoints.
func (m *Module) Entrypoints() []string {
	return m.wazeroModule.Entrypoints()
}

// Instantiate creates an instance with an anonymous name.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	return m.InstantiateWithConfig(ctx, nil)
}

// InstantiateWithConfig creates an instance and grants it the configured
// heap pages.
func (m *Module) InstantiateWithConfig(ctx context.Context, cfg *engine.InstanceConfig) (*Instance, error) {
	w, err := m.wazeroModule.Instantiate(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if pages := m.runtime.cfg.HeapPages; pages > 0 {
		if err := w.GrowMemory(pages); err != nil {
			w.Close(ctx)
			return nil, err
		}
	}

	m.runtime.log.Debug("instance created",
		zap.String("name", w.Name()),
		zap.Uint32("memory_bytes", w.MemorySize()))

	return &Instance{
		wrapper: w,
		factory: m.runtime.cfg.allocatorFactory(),
		log:     m.runtime.log,
	}, nil
}

// Close releases the compiled code.
func (m *Module) Close(ctx context.Context) error {
	return m.wazeroModule.Close(ctx)
}
