package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which boundary operation produced the error
type Phase string

const (
	PhaseConstruct   Phase = "construct"   // wrapping a fresh instance
	PhaseMemory      Phase = "memory"      // linear memory read/write
	PhaseAllocate    Phase = "allocate"    // allocator relay
	PhaseResolve     Phase = "resolve"     // entrypoint lookup
	PhaseCall        Phase = "call"        // entrypoint invocation
	PhaseGrow        Phase = "grow"        // memory growth
	PhaseHeapBase    Phase = "heap_base"   // __heap_base extraction
	PhaseLoad        Phase = "load"        // module compilation and indexing
	PhaseInstantiate Phase = "instantiate" // module instantiation
	PhaseHost        Phase = "host"        // host function registration
	PhaseConfig      Phase = "config"      // configuration validation
)

// Kind categorizes the error
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindAllocation        Kind = "allocation"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindNotAFunction      Kind = "not_a_function"
	KindNotFound          Kind = "not_found"
	KindGrowth            Kind = "growth"
	KindNotAGlobal        Kind = "not_a_global"
	KindGlobalType        Kind = "global_type"
	KindInvalidData       Kind = "invalid_data"
	KindInvalidInput      Kind = "invalid_input"
	KindInstantiation     Kind = "instantiation"
	KindTrap              Kind = "trap"
	KindRegistration      Kind = "registration"
)

// Sentinels for errors.Is matching.
var (
	ErrConfiguration     = &Error{Kind: KindConfiguration}
	ErrOutOfBounds       = &Error{Kind: KindOutOfBounds}
	ErrAllocation        = &Error{Kind: KindAllocation}
	ErrSignatureMismatch = &Error{Kind: KindSignatureMismatch}
	ErrNotAFunction      = &Error{Kind: KindNotAFunction}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrGrowth            = &Error{Kind: KindGrowth}
	ErrNotAGlobal        = &Error{Kind: KindNotAGlobal}
	ErrGlobalType        = &Error{Kind: KindGlobalType}
	ErrTrap              = &Error{Kind: KindTrap}
	ErrInstantiation     = &Error{Kind: KindInstantiation}
	ErrRegistration      = &Error{Kind: KindRegistration}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}

	// ErrHeapBase matches any failure to extract the heap base.
	ErrHeapBase = &Error{Phase: PhaseHeapBase}
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Export string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Export != "" {
		b.WriteString(" at ")
		b.WriteString(e.Export)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// Empty Phase or Kind on the target act as wildcards.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" && t.Kind == "" {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return true
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Export sets the export or region name the error refers to
func (b *Builder) Export(name string) *Builder {
	b.err.Export = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Configuration creates an error for a required export that is missing or of the wrong kind
func Configuration(export, detail string) *Error {
	return &Error{
		Phase:  PhaseConstruct,
		Kind:   KindConfiguration,
		Export: export,
		Detail: detail,
	}
}

// OutOfBounds creates an error for an access span that does not fit the memory extent
func OutOfBounds(phase Phase, offset uint32, length, extent uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("span [%d, +%d) exceeds memory extent %d", offset, length, extent),
		Value:  offset,
	}
}

// AllocationFailed creates an allocator failure error
func AllocationFailed(size uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseAllocate,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Value:  size,
		Cause:  cause,
	}
}

// DeallocationFailed creates an allocator failure error for a rejected free
func DeallocationFailed(ptr uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseAllocate,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to deallocate pointer %d", ptr),
		Value:  ptr,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Export: name,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// NotAFunction creates an error for an export that exists but is not a function
func NotAFunction(name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindNotAFunction,
		Export: name,
		Detail: fmt.Sprintf("export %q is not a function", name),
	}
}

// SignatureMismatch creates an error for an entrypoint with an unsupported signature
func SignatureMismatch(name, got, want string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindSignatureMismatch,
		Export: name,
		Detail: fmt.Sprintf("method %s has an unsupported signature %s, want %s", name, got, want),
	}
}

// GrowthInfo records the engine state when a growth request was refused
type GrowthInfo struct {
	CurrentPages   uint32
	RequestedPages uint32
	MaxPages       uint32
	HasMax         bool
}

// GrowthRefused creates a memory growth error preserving the engine state
func GrowthRefused(info GrowthInfo) *Error {
	detail := fmt.Sprintf("failed to grow linear memory by %d pages from %d pages", info.RequestedPages, info.CurrentPages)
	if info.HasMax {
		detail += fmt.Sprintf(" (max %d)", info.MaxPages)
	}
	return &Error{
		Phase:  PhaseGrow,
		Kind:   KindGrowth,
		Detail: detail,
		Value:  info,
	}
}

// NotAGlobal creates an error for an export that exists but is not a global
func NotAGlobal(name string) *Error {
	return &Error{
		Phase:  PhaseHeapBase,
		Kind:   KindNotAGlobal,
		Export: name,
		Detail: fmt.Sprintf("%s is not a global", name),
	}
}

// GlobalType creates an error for a global of the wrong value type
func GlobalType(name, got, want string) *Error {
	return &Error{
		Phase:  PhaseHeapBase,
		Kind:   KindGlobalType,
		Export: name,
		Detail: fmt.Sprintf("%s is %s, want %s", name, got, want),
	}
}

// Trap creates an error for an entrypoint invocation that trapped
func Trap(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindTrap,
		Export: name,
		Detail: fmt.Sprintf("call %s", name),
		Cause:  cause,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Registration creates a host function registration error
func Registration(namespace, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s.%s", namespace, name),
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
