package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/invopop/jsonschema"
	"golang.org/x/term"

	"github.com/wippyai/wasm-executor/exports"
	"github.com/wippyai/wasm-executor/runtime"
)

// loadConfig reads a JSON runtime config. Unknown fields are rejected.
func loadConfig(path string) (runtime.Config, error) {
	var cfg runtime.Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// configSchema describes the config file format.
func configSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&runtime.Config{})
	schema.Title = "wasm-executor runtime config"

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return out, nil
}

// decodeInput returns the call input from at most one of the two flags.
func decodeInput(hexStr, str string) ([]byte, error) {
	if hexStr != "" && str != "" {
		return nil, fmt.Errorf("-input and -input-str are mutually exclusive")
	}
	if str != "" {
		return []byte(str), nil
	}
	return parseHex(hexStr)
}

// parseHex accepts an optional 0x prefix and ignores whitespace.
func parseHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return b, nil
}

func writeOutput(w io.Writer, out []byte, mode string) error {
	switch mode {
	case "hex":
		_, err := fmt.Fprintf(w, "0x%x\n", out)
		return err
	case "str":
		_, err := fmt.Fprintf(w, "%s\n", printable(out))
		return err
	case "raw":
		_, err := w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown output format %q", mode)
	}
}

// printable renders valid UTF-8 as a quoted string and anything else as hex.
func printable(b []byte) string {
	if utf8.Valid(b) {
		return fmt.Sprintf("%q", b)
	}
	return fmt.Sprintf("0x%x", b)
}

// describe prints the module surface the boundary layer sees.
func describe(w io.Writer, filename string, mod *runtime.Module, inst *runtime.Instance) {
	idx := mod.Index()
	wrapper := inst.Wrapper()

	fmt.Fprintf(w, "Module: %s\n", filename)
	fmt.Fprintf(w, "Memory: %d bytes (%d pages)", wrapper.MemorySize(), wrapper.MemorySize()/65536)
	if lim, ok := idx.Memory("memory"); ok && lim.HasMax {
		fmt.Fprintf(w, ", max %d pages", lim.Max)
	}
	fmt.Fprintln(w)

	if hb, err := inst.HeapBase(); err == nil {
		fmt.Fprintf(w, "Heap base: %d\n", hb)
	} else {
		fmt.Fprintf(w, "Heap base: unavailable (%v)\n", err)
	}

	if t, ok := wrapper.Table(); ok {
		fmt.Fprintf(w, "Table: %s, %d elements", t.ElemType, t.Limits.Min)
		if t.Limits.HasMax {
			fmt.Fprintf(w, ", max %d", t.Limits.Max)
		}
		fmt.Fprintln(w)
	}

	if imports := idx.FuncImports(); len(imports) > 0 {
		fmt.Fprintf(w, "\nImports:\n")
		for _, imp := range imports {
			fmt.Fprintf(w, "  %s.%s\n", imp.Module, imp.Name)
		}
	}

	entries := make(map[string]bool)
	for _, name := range mod.Entrypoints() {
		entries[name] = true
	}

	fmt.Fprintf(w, "\nExports:\n")
	for _, e := range idx.Exports() {
		marker := ""
		if entries[e.Name] {
			marker = "  (entrypoint)"
		} else if e.Kind == exports.KindFunc {
			marker = "  (not callable)"
		}
		fmt.Fprintf(w, "  %-8s %s%s\n", e.Kind, e.Name, marker)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
