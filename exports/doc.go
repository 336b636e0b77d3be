// Package exports indexes the export surface of a WebAssembly module binary.
//
// wazero resolves exports by name per kind (function, memory, global) but
// does not report what kind an unknown name actually is, and exposes no
// tables at all. The boundary layer needs both: a missing export and an
// export of the wrong kind are different errors, and the indirect function
// table is surfaced read-only. Index answers these questions from the binary
// itself, scanning only the type, import, table, memory and export sections.
// Function imports carry their signatures so missing host functions can be
// reported, or stubbed, before instantiation.
//
//	idx, err := exports.Parse(wasmBytes)
//	if err != nil {
//	    return err
//	}
//	if exp, ok := idx.Lookup("__heap_base"); ok && exp.Kind != exports.KindGlobal {
//	    // exported, but not a global
//	}
package exports
