package runtime

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	wasmexecutor "github.com/wippyai/wasm-executor"
	"github.com/wippyai/wasm-executor/errors"
)

func TestRegisterFunc(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.RegisterFunc("env", "ext_len", func(n uint32) uint32 { return n / 2 }))
	inst := newInstance(t, rt, guest(true))

	out, err := inst.Call(context.Background(), "call", []byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)
}

func TestRegisterFunc_ContextAndModule(t *testing.T) {
	type key struct{}
	rt := newRuntime(t)

	var sawCtx, sawMod bool
	err := rt.RegisterFunc("env", "ext_len", func(ctx context.Context, mod api.Module, n wasmexecutor.WordSize) wasmexecutor.WordSize {
		sawCtx = ctx.Value(key{}) == "v"
		sawMod = mod != nil && mod.Memory() != nil
		return n
	})
	require.NoError(t, err)
	inst := newInstance(t, rt, guest(true))

	ctx := context.WithValue(context.Background(), key{}, "v")
	out, err := inst.Call(ctx, "call", []byte("xy"))
	require.NoError(t, err)
	assert.Equal(t, []byte("xy"), out)
	assert.True(t, sawCtx)
	assert.True(t, sawMod)
}

func TestRegisterFunc_ErrorTraps(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.RegisterFunc("env", "ext_len", func(n uint32) (uint32, error) {
		if n > 3 {
			return 0, fmt.Errorf("too long: %d", n)
		}
		return n, nil
	}))
	inst := newInstance(t, rt, guest(true))
	ctx := context.Background()

	_, err := inst.Call(ctx, "call", []byte("abcd"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTrap))
	assert.Contains(t, err.Error(), "too long: 4")

	out, err := inst.Call(ctx, "call", []byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), out)
}

func TestRegisterFunc_Invalid(t *testing.T) {
	tests := []struct {
		name string
		fn   any
	}{
		{"not a function", 42},
		{"nil", nil},
		{"string param", func(string) {}},
		{"two results", func() (uint32, uint32) { return 0, 0 }},
		{"variadic", func(...uint32) {}},
		{"module before context", func(api.Module, context.Context) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newRuntime(t)
			err := rt.RegisterFunc("env", "f", tt.fn)
			assert.True(t, errors.Is(err, errors.ErrRegistration), "err = %v", err)
		})
	}
}

func TestMissingImport(t *testing.T) {
	rt := newRuntime(t)
	mod, err := rt.LoadModule(context.Background(), guest(true))
	require.NoError(t, err)

	_, err = mod.Instantiate(context.Background())
	assert.True(t, errors.Is(err, errors.ErrMissingImports), "err = %v", err)
}

func TestAllowMissingImports(t *testing.T) {
	rt := newRuntime(t, WithAllowMissingImports(true))
	inst := newInstance(t, rt, guest(true))
	ctx := context.Background()

	out, err := inst.Call(ctx, "echo", []byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), out)

	_, err = inst.Call(ctx, "call", []byte("ok"))
	assert.True(t, errors.Is(err, errors.ErrTrap), "err = %v", err)
}

type envHost struct {
	calls int
}

func (*envHost) Namespace() string { return "env" }

func (h *envHost) ExtLen(n uint32) uint32 {
	h.calls++
	return n + 1
}

func TestRegisterHost(t *testing.T) {
	rt := newRuntime(t)
	h := &envHost{}
	require.NoError(t, rt.RegisterHost(h))
	inst := newInstance(t, rt, guest(true))

	out, err := inst.Call(context.Background(), "call", []byte("ab"))
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, 1, h.calls)
}

type explicitHost struct{}

func (explicitHost) Namespace() string { return "env" }

func (explicitHost) Register() map[string]any {
	return map[string]any{
		"ext_len": func(n uint32) uint32 { return 0 },
	}
}

func TestRegisterHost_Explicit(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.RegisterHost(explicitHost{}))
	inst := newInstance(t, rt, guest(true))

	out, err := inst.Call(context.Background(), "call", []byte("abc"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

type emptyNamespace struct{}

func (emptyNamespace) Namespace() string { return "" }

func TestRegisterHost_EmptyNamespace(t *testing.T) {
	rt := newRuntime(t)
	err := rt.RegisterHost(emptyNamespace{})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput), "err = %v", err)
}

func TestRegisterRawFunc(t *testing.T) {
	rt := newRuntime(t)
	i32 := []api.ValueType{api.ValueTypeI32}
	require.NoError(t, rt.RegisterRawFunc("env", "ext_len", i32, i32, func(_ context.Context, _ api.Module, stack []uint64) {
		stack[0] = api.EncodeU32(1)
	}))
	inst := newInstance(t, rt, guest(true))

	out, err := inst.Call(context.Background(), "call", []byte("zzz"))
	require.NoError(t, err)
	assert.Equal(t, []byte("z"), out)
}

func TestHostValueCodec(t *testing.T) {
	tests := []struct {
		name string
		fn   any
		in   []uint64
		want uint64
	}{
		{"int32 negate", func(v int32) int32 { return -v }, []uint64{api.EncodeI32(5)}, api.EncodeI32(-5)},
		{"int64", func(v int64) int64 { return v - 1 }, []uint64{0}, api.EncodeI64(-1)},
		{"uint64", func(v uint64) uint64 { return v << 1 }, []uint64{1 << 40}, 1 << 41},
		{"float32", func(v float32) float32 { return v * 2 }, []uint64{api.EncodeF32(1.5)}, api.EncodeF32(3)},
		{"float64", func(v float64) float64 { return v / 2 }, []uint64{api.EncodeF64(3)}, api.EncodeF64(1.5)},
		{"bool", func(v bool) bool { return !v }, []uint64{0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := bindFunc(tt.fn)
			require.NoError(t, err)
			stack := append([]uint64(nil), tt.in...)
			b.call(context.Background(), nil, stack)
			assert.Equal(t, tt.want, stack[0])
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ExtLen", "ext_len"},
		{"ExtMiscPrintUTF8", "ext_misc_print_utf8"},
		{"GetHTTPClient", "get_http_client"},
		{"A", "a"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toSnakeCase(tt.in), tt.in)
	}
}
