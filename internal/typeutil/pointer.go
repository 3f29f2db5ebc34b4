// Package typeutil provides type-related utilities for pointer-level analysis.
//
// It includes the indirection-level computation, array/slice element
// unwrapping, aggregate detection, and resolution of reference expressions to
// their declared objects.
package typeutil

import (
	"go/ast"
	"go/types"
)

// =============================================================================
// Indirection Level
// =============================================================================

// IndirectLevel returns the number of pointer layers in t: 0 for non-pointer
// types, 1 for *T, 2 for **T, and so on. Named types are unwrapped to their
// underlying type at each step. Array and slice layers are NOT unwrapped here;
// callers reduce a declared type with ArrayBaseElem first.
func IndirectLevel(t types.Type) int {
	level := 0
	for {
		ptr, ok := t.Underlying().(*types.Pointer)
		if !ok {
			return level
		}
		level++
		t = ptr.Elem()
	}
}

// ArrayBaseElem unwraps array and slice layers down to the base element type.
// Dimensionality is ignored: [2][3]*T and []*T both yield *T.
func ArrayBaseElem(t types.Type) types.Type {
	for {
		switch u := t.Underlying().(type) {
		case *types.Array:
			t = u.Elem()
		case *types.Slice:
			t = u.Elem()
		default:
			return t
		}
	}
}

// IsPointer reports whether t's underlying type is a pointer.
func IsPointer(t types.Type) bool {
	_, ok := t.Underlying().(*types.Pointer)
	return ok
}

// IsAggregate reports whether t's underlying type is a struct, array, or
// slice — the shapes that can carry a composite-literal initializer whose
// nesting may need adjustment after a field rewrite.
func IsAggregate(t types.Type) bool {
	switch t.Underlying().(type) {
	case *types.Struct, *types.Array, *types.Slice:
		return true
	}
	return false
}

// =============================================================================
// Reference Resolution
// =============================================================================

// RefObject resolves a direct reference or member access to its declared
// variable or field. Returns nil for any other expression shape.
func RefObject(info *types.Info, e ast.Expr) *types.Var {
	switch e := e.(type) {
	case *ast.Ident:
		if v, ok := info.Uses[e].(*types.Var); ok {
			return v
		}
		if v, ok := info.Defs[e].(*types.Var); ok {
			return v
		}
	case *ast.SelectorExpr:
		if v, ok := info.Uses[e.Sel].(*types.Var); ok {
			return v
		}
	}
	return nil
}
