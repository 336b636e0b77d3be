package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-executor/engine"
	"github.com/wippyai/wasm-executor/instance"
	"github.com/wippyai/wasm-executor/runtime"
)

type options struct {
	wasmFile     string
	entry        string
	inputHex     string
	inputStr     string
	output       string
	configFile   string
	maxPages     uint
	heapPages    uint
	list         bool
	interactive  bool
	wasi         bool
	allowMissing bool
	schema       bool
	verbose      bool
}

func main() {
	var o options
	flag.StringVar(&o.wasmFile, "wasm", "", "Path to core wasm module")
	flag.StringVar(&o.entry, "entry", "", "Entrypoint to call")
	flag.StringVar(&o.inputHex, "input", "", "Input bytes, hex encoded")
	flag.StringVar(&o.inputStr, "input-str", "", "Input bytes as a literal string")
	flag.StringVar(&o.output, "output", "hex", "Output format: hex, str or raw")
	flag.StringVar(&o.configFile, "config", "", "Runtime config file (JSON)")
	flag.UintVar(&o.maxPages, "max-pages", 0, "Memory limit per instance in 64 KiB pages")
	flag.UintVar(&o.heapPages, "heap-pages", 0, "Extra heap pages granted at instantiation")
	flag.BoolVar(&o.list, "list", false, "List exports and exit")
	flag.BoolVar(&o.interactive, "i", false, "Interactive mode with TUI")
	flag.BoolVar(&o.wasi, "wasi", false, "Provide wasi_snapshot_preview1")
	flag.BoolVar(&o.allowMissing, "allow-missing", false, "Stub unresolved imports with traps")
	flag.BoolVar(&o.schema, "schema", false, "Print the config file JSON schema and exit")
	flag.BoolVar(&o.verbose, "v", false, "Verbose logging")
	flag.Parse()

	if o.schema {
		out, err := configSchema()
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(out))
		return
	}

	if o.wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -wasm <file.wasm> -entry name [-input hex | -input-str s]")
		fmt.Fprintln(os.Stderr, "       run -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       run -wasm <file.wasm> -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       run -schema")
		os.Exit(1)
	}

	log := zap.NewNop()
	if o.verbose {
		var err error
		if log, err = zap.NewDevelopment(); err != nil {
			fatal(err)
		}
		defer log.Sync()
		engine.SetLogger(log)
		instance.SetLogger(log)
	}

	cfg, err := buildConfig(o, log)
	if err != nil {
		fatal(err)
	}

	if o.interactive {
		if !isTerminal(os.Stdout) {
			fatal(fmt.Errorf("interactive mode requires a terminal"))
		}
		if err := runInteractive(o.wasmFile, cfg); err != nil {
			fatal(err)
		}
		return
	}

	if err := run(context.Background(), o, cfg, os.Stdout); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// buildConfig merges the config file with flags; flags win when set.
func buildConfig(o options, log *zap.Logger) (runtime.Config, error) {
	var cfg runtime.Config
	if o.configFile != "" {
		var err error
		if cfg, err = loadConfig(o.configFile); err != nil {
			return cfg, err
		}
	}
	if o.maxPages > 0 {
		cfg.MemoryLimitPages = uint32(min(o.maxPages, runtime.MaxPages+1))
	}
	if o.heapPages > 0 {
		cfg.HeapPages = uint32(min(o.heapPages, runtime.MaxPages+1))
	}
	cfg.EnableWASI = cfg.EnableWASI || o.wasi
	cfg.AllowMissingImports = cfg.AllowMissingImports || o.allowMissing
	cfg.Logger = log
	return cfg, cfg.Validate()
}

func run(ctx context.Context, o options, cfg runtime.Config, stdout io.Writer) error {
	data, err := os.ReadFile(o.wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	rt, err := runtime.New(ctx, runtime.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(ctx)

	mod, err := rt.LoadModule(ctx, data)
	if err != nil {
		return fmt.Errorf("load module: %w", err)
	}

	inst, err := mod.InstantiateWithConfig(ctx, &engine.InstanceConfig{Stdout: os.Stderr, Stderr: os.Stderr})
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	defer inst.Close(ctx)

	if o.list || o.entry == "" {
		describe(stdout, o.wasmFile, mod, inst)
		return nil
	}

	input, err := decodeInput(o.inputHex, o.inputStr)
	if err != nil {
		return err
	}

	out, err := inst.Call(ctx, o.entry, input)
	if err != nil {
		return fmt.Errorf("call %s: %w", o.entry, err)
	}
	return writeOutput(stdout, out, o.output)
}
