package engine

import (
	"context"

	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/wippyai/wasm-executor/errors"
)

// InitWASI instantiates the WASI preview1 host module for this engine's
// runtime. Safe for concurrent calls from multiple modules sharing the engine.
func (e *WazeroEngine) InitWASI(ctx context.Context) error {
	if e.wasiInitDone.Load() {
		return nil
	}

	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()

	if e.wasiInitDone.Load() {
		return nil
	}

	if e.runtime.Module(wasi_snapshot_preview1.ModuleName) == nil {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
			// Another path may have won the race in the same runtime.
			if e.runtime.Module(wasi_snapshot_preview1.ModuleName) == nil {
				return errors.Wrap(errors.PhaseInstantiate, errors.KindInstantiation, err, "instantiate WASI")
			}
		}
	}

	e.wasiInitDone.Store(true)
	return nil
}
