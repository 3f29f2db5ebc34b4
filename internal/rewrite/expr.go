package rewrite

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ast/astutil"
)

// =============================================================================
// Expression Reduction
// =============================================================================

// reduceExpr returns e rewritten to carry one pointer level less: an
// address-of loses its operator, nil stays nil while the reduced type is
// still a pointer, and anything else gains one dereference. The second
// result is false when no replacement expression exists (nil with no pointer
// level left); the caller decides whether the site can be dropped.
func (r *Rewriter) reduceExpr(e ast.Expr) (ast.Expr, bool) {
	switch stripped := astutil.Unparen(e).(type) {
	case *ast.UnaryExpr:
		if stripped.Op == token.AND {
			return stripped.X, true
		}
	case *ast.Ident:
		if r.isNil(stripped) {
			if r.level >= 2 {
				return e, true
			}
			return nil, false
		}
	}
	return &ast.StarExpr{X: derefOperand(e)}, true
}

// isNil reports whether id is the predeclared nil.
func (r *Rewriter) isNil(id *ast.Ident) bool {
	_, ok := r.info.Uses[id].(*types.Nil)
	return ok
}

// derefOperand parenthesizes e when prefixing a star would otherwise bind to
// the wrong subexpression.
func derefOperand(e ast.Expr) ast.Expr {
	switch e.(type) {
	case *ast.Ident, *ast.SelectorExpr, *ast.IndexExpr, *ast.CallExpr,
		*ast.ParenExpr, *ast.StarExpr, *ast.CompositeLit:
		return e
	}
	return &ast.ParenExpr{X: e}
}

// =============================================================================
// Type Reduction
// =============================================================================

// reduceTypeExpr strips one pointer layer from a declared type's syntax,
// descending through parens and array/slice layers to reach it. The
// collector only registers declarations whose type syntax carries a star, so
// one is always found. Subtrees are returned rather than mutated: a split
// spec may still share the original type expression.
func reduceTypeExpr(t ast.Expr) ast.Expr {
	switch e := t.(type) {
	case *ast.ParenExpr:
		return reduceTypeExpr(e.X)
	case *ast.ArrayType:
		return &ast.ArrayType{Len: e.Len, Elt: reduceTypeExpr(e.Elt)}
	case *ast.StarExpr:
		return e.X
	}
	return t
}
