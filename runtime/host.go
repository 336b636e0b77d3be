package runtime

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-executor/errors"
)

// Host is the interface for struct-based host modules.
// All exported methods (except Namespace and Register) become host
// functions named in snake_case: ExtMiscPrintUTF8 -> ext_misc_print_utf8.
type Host interface {
	// Namespace returns the import module name (e.g., "env").
	Namespace() string
}

// ExplicitRegistrar lets a host name its functions itself when the
// snake_case conversion does not produce the import names it needs.
type ExplicitRegistrar interface {
	Register() map[string]any
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	moduleType  = reflect.TypeOf((*api.Module)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// RegisterHost registers every exported method of h under h.Namespace().
// Must be called before instantiating modules that import them.
func (r *Runtime) RegisterHost(h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}

	if er, ok := h.(ExplicitRegistrar); ok {
		for name, fn := range er.Register() {
			if err := r.RegisterFunc(ns, name, fn); err != nil {
				return err
			}
		}
		return nil
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()
	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() || method.Name == "Namespace" {
			continue
		}
		if err := r.RegisterFunc(ns, toSnakeCase(method.Name), rv.Method(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

// RegisterFunc registers a typed Go function as namespace.name.
//
// The function may start with context.Context and then api.Module (the
// calling instance), in that order. Remaining parameters and at most one
// result must be 32/64-bit integers, floats or bool; a trailing error result
// traps the guest when non-nil.
func (r *Runtime) RegisterFunc(namespace, name string, fn any) error {
	b, err := bindFunc(fn)
	if err != nil {
		return errors.Registration(namespace, name, err)
	}
	return r.engine.RegisterHostFunc(namespace, name, b.params, b.results, b.call)
}

// RegisterRawFunc registers a function operating on the raw value stack.
func (r *Runtime) RegisterRawFunc(namespace, name string, params, results []api.ValueType, fn api.GoModuleFunc) error {
	return r.engine.RegisterHostFunc(namespace, name, params, results, fn)
}

// hostBinding adapts a reflected Go function to api.GoModuleFunc.
type hostBinding struct {
	fn      reflect.Value
	in      []reflect.Type
	params  []api.ValueType
	results []api.ValueType
	out     reflect.Type // nil when the function returns no value
	wantCtx bool
	wantMod bool
	hasErr  bool
}

func bindFunc(fn any) (*hostBinding, error) {
	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler must be a function, got %T", fn)
	}
	t := rv.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("variadic handlers are not supported")
	}

	b := &hostBinding{fn: rv}
	i := 0
	if i < t.NumIn() && t.In(i) == contextType {
		b.wantCtx = true
		i++
	}
	if i < t.NumIn() && t.In(i) == moduleType {
		b.wantMod = true
		i++
	}
	for ; i < t.NumIn(); i++ {
		vt, ok := valueTypeOf(t.In(i))
		if !ok {
			return nil, fmt.Errorf("parameter %d: unsupported type %s", i, t.In(i))
		}
		b.in = append(b.in, t.In(i))
		b.params = append(b.params, vt)
	}

	n := t.NumOut()
	if n > 0 && t.Out(n-1) == errorType {
		b.hasErr = true
		n--
	}
	switch n {
	case 0:
	case 1:
		vt, ok := valueTypeOf(t.Out(0))
		if !ok {
			return nil, fmt.Errorf("result: unsupported type %s", t.Out(0))
		}
		b.out = t.Out(0)
		b.results = []api.ValueType{vt}
	default:
		return nil, fmt.Errorf("at most one result and an error are supported, got %d results", t.NumOut())
	}
	return b, nil
}

func (b *hostBinding) call(ctx context.Context, mod api.Module, stack []uint64) {
	args := make([]reflect.Value, 0, len(b.in)+2)
	if b.wantCtx {
		args = append(args, reflect.ValueOf(ctx))
	}
	if b.wantMod {
		args = append(args, reflect.ValueOf(&mod).Elem())
	}
	for i, t := range b.in {
		args = append(args, decodeValue(stack[i], t))
	}

	out := b.fn.Call(args)

	if b.hasErr {
		if err, _ := out[len(out)-1].Interface().(error); err != nil {
			panic(err)
		}
	}
	if b.out != nil {
		stack[0] = encodeValue(out[0])
	}
}

func valueTypeOf(t reflect.Type) (api.ValueType, bool) {
	switch t.Kind() {
	case reflect.Int32, reflect.Uint32, reflect.Bool:
		return api.ValueTypeI32, true
	case reflect.Int64, reflect.Uint64:
		return api.ValueTypeI64, true
	case reflect.Float32:
		return api.ValueTypeF32, true
	case reflect.Float64:
		return api.ValueTypeF64, true
	}
	return 0, false
}

func decodeValue(raw uint64, t reflect.Type) reflect.Value {
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int32:
		v.SetInt(int64(api.DecodeI32(raw)))
	case reflect.Uint32:
		v.SetUint(uint64(api.DecodeU32(raw)))
	case reflect.Bool:
		v.SetBool(api.DecodeU32(raw) != 0)
	case reflect.Int64:
		v.SetInt(int64(raw))
	case reflect.Uint64:
		v.SetUint(raw)
	case reflect.Float32:
		v.SetFloat(float64(api.DecodeF32(raw)))
	case reflect.Float64:
		v.SetFloat(api.DecodeF64(raw))
	}
	return v
}

func encodeValue(v reflect.Value) uint64 {
	switch v.Kind() {
	case reflect.Int32:
		return api.EncodeI32(int32(v.Int()))
	case reflect.Uint32:
		return api.EncodeU32(uint32(v.Uint()))
	case reflect.Bool:
		if v.Bool() {
			return 1
		}
		return 0
	case reflect.Int64:
		return api.EncodeI64(v.Int())
	case reflect.Uint64:
		return v.Uint()
	case reflect.Float32:
		return api.EncodeF32(float32(v.Float()))
	case reflect.Float64:
		return api.EncodeF64(v.Float())
	}
	return 0
}

// toSnakeCase converts PascalCase to snake_case.
// Handles acronyms: PrintUTF8 -> print_utf8, GetHTTPClient -> get_http_client
func toSnakeCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsUpper(r) {
			acronymEnd := i + 1
			for acronymEnd < len(runes) && (unicode.IsUpper(runes[acronymEnd]) || unicode.IsDigit(runes[acronymEnd])) {
				acronymEnd++
			}

			if acronymEnd > i+1 {
				// Last uppercase before lowercase starts next word, not part of acronym
				if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
					acronymEnd--
				}
			}

			if i > 0 {
				result.WriteByte('_')
			}

			for j := i; j < acronymEnd; j++ {
				result.WriteRune(unicode.ToLower(runes[j]))
			}
			i = acronymEnd - 1 // -1 because loop will increment
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
