package errors

import (
	"fmt"
	"strings"
)

// MissingImport is a function import no host module provides.
type MissingImport struct {
	Module string // e.g. "env"
	Name   string // e.g. "ext_logging_log_version_1"
}

// MissingImportsError is returned when instantiation would fail because the
// module imports host functions that were never registered.
type MissingImportsError struct {
	Imports []MissingImport
}

// ErrMissingImports matches any *MissingImportsError.
var ErrMissingImports = &MissingImportsError{}

// NewMissingImportsError creates an error listing imports.
func NewMissingImportsError(imports []MissingImport) *MissingImportsError {
	out := make([]MissingImport, len(imports))
	copy(out, imports)
	return &MissingImportsError{Imports: out}
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[instantiate] missing_import: no imports specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "missing %d host function(s):\n", len(e.Imports))

	// Group by module
	byModule := make(map[string][]string)
	var order []string
	for _, imp := range e.Imports {
		if _, ok := byModule[imp.Module]; !ok {
			order = append(order, imp.Module)
		}
		byModule[imp.Module] = append(byModule[imp.Module], demangleRust(imp.Name))
	}

	for _, mod := range order {
		b.WriteString("\n  ")
		b.WriteString(mod)
		b.WriteString(":\n")
		for _, fn := range byModule[mod] {
			b.WriteString("    - ")
			b.WriteString(fn)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target is a *MissingImportsError.
func (e *MissingImportsError) Is(target error) bool {
	_, ok := target.(*MissingImportsError)
	return ok
}

// demangleRust turns a legacy Rust symbol (_ZN<len><seg>...E) into a::b::c.
// Anything else is returned unchanged.
func demangleRust(name string) string {
	if !strings.HasPrefix(name, "_ZN") {
		return name
	}

	s := name[3:]
	var parts []string

	for len(s) > 0 && s[0] != 'E' {
		digits := 0
		for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
			digits++
		}
		if digits == 0 {
			break
		}

		length := 0
		for i := 0; i < digits; i++ {
			length = length*10 + int(s[i]-'0')
		}
		s = s[digits:]
		if length > len(s) {
			break
		}

		part := s[:length]
		s = s[length:]

		if isRustHash(part) {
			continue
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return name
	}
	return strings.Join(parts, "::")
}

// isRustHash matches the 17-character h<16 hex> disambiguator suffix.
func isRustHash(part string) bool {
	if len(part) != 17 || part[0] != 'h' {
		return false
	}
	for i := 1; i < len(part); i++ {
		c := part[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
