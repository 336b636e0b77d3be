package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-executor/internal/wasmtest"
	"github.com/wippyai/wasm-executor/runtime"
)

func writeModule(t *testing.T) string {
	t.Helper()
	b := wasmtest.New()
	b.Export("memory", wasmtest.KindMemory, b.Memory(1, 8, true))
	b.Export("__indirect_function_table", wasmtest.KindTable, b.Table(2))
	b.Export("__heap_base", wasmtest.KindGlobal, b.GlobalI32(1024))
	b.Export("echo", wasmtest.KindFunc, b.Func(wasmtest.Entrypoint, wasmtest.EchoBody()))
	b.Export("helper", wasmtest.KindFunc, b.Func(wasmtest.Signature{}, wasmtest.EmptyBody()))

	path := filepath.Join(t.TempDir(), "echo.wasm")
	require.NoError(t, os.WriteFile(path, b.Build(), 0o644))
	return path
}

func TestRun_Call(t *testing.T) {
	tests := []struct {
		name string
		o    options
		want string
	}{
		{"hex in, hex out", options{entry: "echo", inputHex: "0xdeadbeef", output: "hex"}, "0xdeadbeef\n"},
		{"string in, str out", options{entry: "echo", inputStr: "hi", output: "str"}, "\"hi\"\n"},
		{"raw out", options{entry: "echo", inputStr: "raw", output: "raw"}, "raw"},
		{"empty input", options{entry: "echo", output: "hex"}, "0x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.o.wasmFile = writeModule(t)
			var out bytes.Buffer
			err := run(context.Background(), tt.o, runtime.Config{}, &out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestRun_List(t *testing.T) {
	o := options{wasmFile: writeModule(t), list: true}
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, runtime.Config{}, &out))

	s := out.String()
	assert.Contains(t, s, "Memory: 65536 bytes (1 pages), max 8 pages")
	assert.Contains(t, s, "Heap base: 1024")
	assert.Contains(t, s, "Table: funcref, 2 elements")
	assert.Contains(t, s, "echo  (entrypoint)")
	assert.Contains(t, s, "helper  (not callable)")
}

func TestRun_Errors(t *testing.T) {
	path := writeModule(t)
	tests := []struct {
		name string
		o    options
	}{
		{"missing file", options{wasmFile: filepath.Join(t.TempDir(), "nope.wasm"), entry: "echo"}},
		{"missing entrypoint", options{wasmFile: path, entry: "nope", output: "hex"}},
		{"bad hex", options{wasmFile: path, entry: "echo", inputHex: "zz", output: "hex"}},
		{"both inputs", options{wasmFile: path, entry: "echo", inputHex: "00", inputStr: "a"}},
		{"bad output format", options{wasmFile: path, entry: "echo", output: "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.o, runtime.Config{}, &bytes.Buffer{})
			assert.Error(t, err)
		})
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    []byte
		wantErr bool
	}{
		{"", nil, false},
		{"0x", nil, false},
		{"0A0b", []byte{0x0a, 0x0b}, false},
		{"0xde ad", []byte{0xde, 0xad}, false},
		{"abc", nil, true},
		{"xyz0", nil, true},
	}
	for _, tt := range tests {
		got, err := parseHex(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestPrintable(t *testing.T) {
	assert.Equal(t, `"ok"`, printable([]byte("ok")))
	assert.Equal(t, "0xff00", printable([]byte{0xff, 0x00}))
}

func TestBuildConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"memory_limit_pages": 64, "heap_pages": 2}`), 0o644))

	cfg, err := buildConfig(options{configFile: path, heapPages: 4, wasi: true}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, uint32(64), cfg.MemoryLimitPages)
	assert.Equal(t, uint32(4), cfg.HeapPages)
	assert.True(t, cfg.EnableWASI)
}

func TestBuildConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	unknown := filepath.Join(dir, "unknown.json")
	require.NoError(t, os.WriteFile(unknown, []byte(`{"stack_size": 1}`), 0o644))

	tests := []struct {
		name string
		o    options
	}{
		{"unknown field", options{configFile: unknown}},
		{"missing file", options{configFile: filepath.Join(dir, "none.json")}},
		{"pages too large", options{maxPages: 1 << 20}},
		{"heap over limit", options{maxPages: 2, heapPages: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildConfig(tt.o, zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestConfigSchema(t *testing.T) {
	out, err := configSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(out, &schema))
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "schema has no properties: %s", out)
	assert.Contains(t, props, "memory_limit_pages")
	assert.Contains(t, props, "heap_pages")
	assert.NotContains(t, props, "Logger")
}
