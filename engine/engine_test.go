package engine

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/internal/wasmtest"
)

var i32 = []api.ValueType{api.ValueTypeI32}

// guest imports env.ext_len (i32) -> i32 and calls it from "call".
func guest() []byte {
	b := wasmtest.New()
	imp := b.ImportFunc("env", "ext_len", wasmtest.Signature{
		Params:  []wasmtest.ValType{wasmtest.I32},
		Results: []wasmtest.ValType{wasmtest.I32},
	})
	b.Export("memory", wasmtest.KindMemory, b.Memory(1, 0, false))
	b.Export("__heap_base", wasmtest.KindGlobal, b.GlobalI32(2048))
	b.Export("call", wasmtest.KindFunc, b.Func(wasmtest.Entrypoint, wasmtest.CallLenBody(imp)))
	b.Export("echo", wasmtest.KindFunc, b.Func(wasmtest.Entrypoint, wasmtest.EchoBody()))
	b.Export("const", wasmtest.KindFunc, b.Func(wasmtest.Signature{Results: []wasmtest.ValType{wasmtest.I64}}, wasmtest.ConstI64Body(1)))
	return b.Build()
}

func plain() []byte {
	b := wasmtest.New()
	b.Export("memory", wasmtest.KindMemory, b.Memory(1, 0, false))
	b.Export("echo", wasmtest.KindFunc, b.Func(wasmtest.Entrypoint, wasmtest.EchoBody()))
	return b.Build()
}

func newEngine(t *testing.T, cfg *Config) *WazeroEngine {
	t.Helper()
	ctx := context.Background()
	eng, err := NewWazeroEngineWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("NewWazeroEngineWithConfig failed: %v", err)
	}
	t.Cleanup(func() { eng.Close(ctx) })
	return eng
}

func doubleLen(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = uint64(api.DecodeU32(stack[0]) * 2)
}

func TestLoadModule(t *testing.T) {
	eng := newEngine(t, nil)
	mod, err := eng.LoadModule(context.Background(), guest())
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}

	wantNames := []string{"__heap_base", "call", "const", "echo", "memory"}
	if got := mod.ExportNames(); !reflect.DeepEqual(got, wantNames) {
		t.Errorf("ExportNames() = %v, want %v", got, wantNames)
	}
	wantEntry := []string{"call", "echo"}
	if got := mod.Entrypoints(); !reflect.DeepEqual(got, wantEntry) {
		t.Errorf("Entrypoints() = %v, want %v", got, wantEntry)
	}
}

func TestLoadModule_Invalid(t *testing.T) {
	eng := newEngine(t, nil)
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not wasm at all")},
		{"bad function body", func() []byte {
			b := wasmtest.New()
			b.Func(wasmtest.Entrypoint, wasmtest.EmptyBody()) // missing i64 result
			return b.Build()
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.LoadModule(context.Background(), tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			var e *errors.Error
			if !errors.As(err, &e) || e.Phase != errors.PhaseLoad {
				t.Errorf("err = %v, want load phase error", err)
			}
		})
	}
}

func TestInstantiate(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, nil)
	if err := eng.RegisterHostFunc("env", "ext_len", i32, i32, doubleLen); err != nil {
		t.Fatalf("RegisterHostFunc failed: %v", err)
	}

	mod, err := eng.LoadModule(ctx, guest())
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}
	w, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	defer w.Close(ctx)

	ep, err := w.ResolveEntrypoint("call")
	if err != nil {
		t.Fatalf("ResolveEntrypoint failed: %v", err)
	}
	ptr, length, err := ep.Invoke(ctx, 64, 21)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if ptr != 64 || length != 42 {
		t.Errorf("Invoke = (%d, %d), want (64, 42)", ptr, length)
	}
}

func TestInstantiate_Parallel(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, nil)
	mod, err := eng.LoadModule(ctx, plain())
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}

	a, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("first Instantiate failed: %v", err)
	}
	defer a.Close(ctx)
	b, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("second Instantiate failed: %v", err)
	}
	defer b.Close(ctx)

	if err := a.WriteMemoryFrom(0, []byte{9}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got := make([]byte, 1)
	if err := b.ReadMemoryInto(0, got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got[0] != 0 {
		t.Error("instances share memory")
	}
}

func TestInstantiate_MissingImports(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, nil)
	mod, err := eng.LoadModule(ctx, guest())
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}

	_, err = mod.Instantiate(ctx, nil)
	if !errors.Is(err, errors.ErrMissingImports) {
		t.Fatalf("err = %v, want ErrMissingImports", err)
	}
	if !strings.Contains(err.Error(), "ext_len") {
		t.Errorf("error %q should name the import", err)
	}
}

func TestInstantiate_StubbedImports(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, &Config{AllowMissingImports: true})
	mod, err := eng.LoadModule(ctx, guest())
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}

	w, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	defer w.Close(ctx)

	echo, err := w.ResolveEntrypoint("echo")
	if err != nil {
		t.Fatalf("ResolveEntrypoint failed: %v", err)
	}
	if _, err := echo.Call(ctx, 0, 0); err != nil {
		t.Errorf("echo failed: %v", err)
	}

	call, err := w.ResolveEntrypoint("call")
	if err != nil {
		t.Fatalf("ResolveEntrypoint failed: %v", err)
	}
	_, err = call.Call(ctx, 0, 1)
	if !errors.Is(err, errors.ErrTrap) {
		t.Fatalf("err = %v, want ErrTrap", err)
	}
	if !strings.Contains(err.Error(), "missing import env.ext_len") {
		t.Errorf("error %q should name the stubbed import", err)
	}
}

func TestRegisterHostFunc_Errors(t *testing.T) {
	eng := newEngine(t, nil)
	if err := eng.RegisterHostFunc("env", "f", nil, nil, doubleLen); err != nil {
		t.Fatalf("RegisterHostFunc failed: %v", err)
	}

	tests := []struct {
		name      string
		namespace string
		fn        string
		params    []api.ValueType
		handler   api.GoModuleFunc
	}{
		{"duplicate", "env", "f", nil, doubleLen},
		{"empty namespace", "", "g", nil, doubleLen},
		{"empty name", "env", "", nil, doubleLen},
		{"nil handler", "env", "g", nil, nil},
		{"externref param", "env", "g", []api.ValueType{api.ValueTypeExternref}, doubleLen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eng.RegisterHostFunc(tt.namespace, tt.fn, tt.params, nil, tt.handler)
			if !errors.Is(err, errors.ErrRegistration) {
				t.Errorf("err = %v, want ErrRegistration", err)
			}
		})
	}
}

func TestRegisterHostFunc_AfterInstantiation(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, nil)
	if err := eng.RegisterHostFunc("env", "ext_len", i32, i32, doubleLen); err != nil {
		t.Fatalf("RegisterHostFunc failed: %v", err)
	}
	mod, err := eng.LoadModule(ctx, guest())
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}
	w, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	defer w.Close(ctx)

	err = eng.RegisterHostFunc("env", "late", nil, nil, doubleLen)
	if !errors.Is(err, errors.ErrRegistration) {
		t.Errorf("err = %v, want ErrRegistration", err)
	}

	// A second guest reuses the instantiated host module.
	w2, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("second Instantiate failed: %v", err)
	}
	w2.Close(ctx)
}

func TestHostFuncs(t *testing.T) {
	eng := newEngine(t, nil)
	eng.RegisterHostFunc("b", "y", nil, nil, doubleLen)
	eng.RegisterHostFunc("a", "z", nil, nil, doubleLen)
	eng.RegisterHostFunc("b", "x", nil, nil, doubleLen)

	var got []string
	for _, hf := range eng.HostFuncs() {
		got = append(got, hf.Namespace+"."+hf.Name)
	}
	want := []string{"a.z", "b.x", "b.y"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("HostFuncs() = %v, want %v", got, want)
	}
}

func TestMemoryLimitPages(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, &Config{MemoryLimitPages: 2})
	mod, err := eng.LoadModule(ctx, plain())
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}
	w, err := mod.Instantiate(ctx, nil)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	defer w.Close(ctx)

	if err := w.GrowMemory(1); err != nil {
		t.Fatalf("GrowMemory(1) failed: %v", err)
	}
	if err := w.GrowMemory(1); !errors.Is(err, errors.ErrGrowth) {
		t.Errorf("growth past the engine limit: err = %v, want ErrGrowth", err)
	}
}

func TestInitWASI(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, &Config{EnableWASI: true})

	if err := eng.InitWASI(ctx); err != nil {
		t.Fatalf("InitWASI failed: %v", err)
	}
	if err := eng.InitWASI(ctx); err != nil {
		t.Fatalf("second InitWASI failed: %v", err)
	}

	mod, err := eng.LoadModule(ctx, plain())
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}
	var out bytes.Buffer
	w, err := mod.Instantiate(ctx, &InstanceConfig{Name: "named", Stdout: &out})
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	defer w.Close(ctx)
	if w.Name() != "named" {
		t.Errorf("Name() = %q, want named", w.Name())
	}
}
