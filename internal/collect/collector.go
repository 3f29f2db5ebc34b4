package collect

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/goreduce/ptrlevel/internal/directive"
	"github.com/goreduce/ptrlevel/internal/typeutil"
)

// vaListScaffolding names the two va_list bookkeeping fields that C-to-Go
// translators carry over from lowered variadic calls. They are compiler
// plumbing, not program state worth mutating.
var vaListScaffolding = map[string]bool{
	"reg_save_area":     true,
	"overflow_arg_area": true,
}

// Collector runs the single forward traversal that populates a Context.
type Collector struct {
	fset *token.FileSet
	info *types.Info

	ctx     *Context
	ignores directive.IgnoreMap // rebuilt per file
	err     error
}

// Run traverses files in order and returns the populated analysis context.
// The traversal visits declarations, address-of expressions, and assignments;
// everything else is walked through without effect.
func Run(fset *token.FileSet, files []*ast.File, info *types.Info) (*Context, error) {
	c := &Collector{fset: fset, info: info, ctx: NewContext()}
	for _, file := range files {
		c.ignores = directive.BuildIgnoreMap(fset, file)
		ast.Inspect(file, c.visit)
		if c.err != nil {
			return nil, c.err
		}
	}
	return c.ctx, nil
}

func (c *Collector) visit(n ast.Node) bool {
	if c.err != nil {
		return false
	}
	switch n := n.(type) {
	case *ast.ValueSpec:
		if n.Type == nil && len(n.Values) != len(n.Names) {
			return true // tuple form: no per-name initializer to adjust
		}
		for i, name := range n.Names {
			var init ast.Expr
			if i < len(n.Values) {
				init = n.Values[i]
			}
			c.declare(name, n.Type, init, nil)
		}
	case *ast.AssignStmt:
		if n.Tok == token.DEFINE {
			c.visitDefine(n)
			return true
		}
		c.visitAssign(n)
	case *ast.StructType:
		owner := c.info.TypeOf(n)
		for _, field := range n.Fields.List {
			for _, name := range field.Names {
				c.declare(name, field.Type, nil, owner)
			}
		}
	case *ast.UnaryExpr:
		c.visitAddrOf(n)
	}
	return true
}

// =============================================================================
// Declaration Visit
// =============================================================================

// declare registers one declared name if it is a reducible pointer-typed
// variable or field. owner is the enclosing struct type for fields, nil for
// variables. typeExpr is the declared type syntax (nil for := and
// type-inferred var declarations); init is the corresponding initializer, if
// any.
func (c *Collector) declare(name *ast.Ident, typeExpr, init ast.Expr, owner types.Type) {
	if name.Name == "_" || vaListScaffolding[name.Name] {
		return
	}
	if c.ignores.ShouldIgnore(c.fset.Position(name.Pos()).Line) {
		return
	}

	obj, ok := c.info.Defs[name].(*types.Var)
	if !ok || obj == nil {
		return // consts, type names, imports
	}
	if c.ctx.Registered(obj) {
		return
	}

	// A declared type with no star to strip (a named pointer type) cannot be
	// rewritten at the declaration site; declarations without type syntax are
	// always reducible through their initializer.
	if typeExpr != nil && !reducibleTypeSyntax(typeExpr) {
		return
	}
	if typeExpr == nil && init == nil && owner == nil {
		// var x with neither type nor value cannot occur; := always has a
		// value. Nothing to rewrite otherwise.
		return
	}

	base := typeutil.ArrayBaseElem(obj.Type())
	if !typeutil.IsPointer(base) {
		return
	}
	level := typeutil.IndirectLevel(base)
	if level < 1 {
		c.err = fmt.Errorf("declaration %s registered with indirection level %d", obj.Name(), level)
		return
	}

	c.ctx.Register(obj, level)
	if owner != nil {
		c.ctx.SetFieldOwner(obj, owner)
	}
}

// reducibleTypeSyntax reports whether the declared type syntax contains a
// pointer layer that the rewriter can strip, looking through parens and
// array/slice layers.
func reducibleTypeSyntax(t ast.Expr) bool {
	for {
		switch e := t.(type) {
		case *ast.ParenExpr:
			t = e.X
		case *ast.ArrayType:
			t = e.Elt
		case *ast.StarExpr:
			return true
		default:
			return false
		}
	}
}

// visitDefine handles := statements. A name with a Defs entry is a fresh
// declaration; a name without one reassigns an existing declaration in the
// same scope and is classified like any other assignment. The tuple form's
// single right-hand side is a call, map index, or type assertion — never a
// safe shape for a reused pointer-typed name.
func (c *Collector) visitDefine(n *ast.AssignStmt) {
	if len(n.Lhs) != len(n.Rhs) {
		for _, lhs := range n.Lhs {
			if name, ok := lhs.(*ast.Ident); ok && c.info.Defs[name] == nil {
				c.classifyAssign(name, nil)
			}
		}
		return
	}
	for i, lhs := range n.Lhs {
		name, ok := lhs.(*ast.Ident)
		if !ok {
			continue
		}
		if c.info.Defs[name] != nil {
			c.declare(name, nil, n.Rhs[i], nil)
		} else {
			c.classifyAssign(name, n.Rhs[i])
		}
	}
}

// =============================================================================
// Address-Of Visit
// =============================================================================

// visitAddrOf records declarations whose address is captured by a direct
// address-of on a reference or member access. Taking the address of a
// dereference (&*p) says nothing about p's own declaration and is not
// tracked.
func (c *Collector) visitAddrOf(n *ast.UnaryExpr) {
	if n.Op != token.AND {
		return
	}
	operand := astutil.Unparen(n.X)
	switch operand.(type) {
	case *ast.Ident, *ast.SelectorExpr:
	default:
		return
	}
	if obj := typeutil.RefObject(c.info, operand); obj != nil {
		c.ctx.MarkAddrTaken(obj)
	}
}

// =============================================================================
// Assignment Visit
// =============================================================================

// visitAssign applies the conservative assignment classification: a
// pointer-typed left-hand side keeps its declaration eligible only when the
// right-hand side is a shape the rewriter knows how to adjust — a direct
// reference, a unary operator (including dereference and address-of), or a
// subscript. Anything else disqualifies the declaration. The predeclared nil
// is not a reference: once the declaration loses its last pointer level no
// replacement expression exists for it.
func (c *Collector) visitAssign(n *ast.AssignStmt) {
	if len(n.Lhs) == len(n.Rhs) {
		for i, lhs := range n.Lhs {
			c.classifyAssign(lhs, n.Rhs[i])
		}
		return
	}
	// Tuple assignment: the single right-hand side is a call, map index, or
	// type assertion — never a safe shape for any pointer-typed target.
	for _, lhs := range n.Lhs {
		c.classifyAssign(lhs, nil)
	}
}

func (c *Collector) classifyAssign(lhs, rhs ast.Expr) {
	if name, ok := lhs.(*ast.Ident); ok && name.Name == "_" {
		return
	}
	t := c.info.TypeOf(lhs)
	if t == nil || !typeutil.IsPointer(t) {
		return
	}
	if rhs != nil {
		switch s := stripConversions(c.info, rhs).(type) {
		case *ast.Ident:
			if _, isNil := c.info.Uses[s].(*types.Nil); !isNil {
				return // safe
			}
		case *ast.UnaryExpr, *ast.StarExpr, *ast.IndexExpr:
			return // safe
		}
	}
	obj := c.lhsObject(lhs)
	if obj == nil {
		c.err = fmt.Errorf("unresolvable pointer-typed assignment target at %s", c.fset.Position(lhs.Pos()))
		return
	}
	c.ctx.Disqualify(obj)
}

// lhsObject resolves an assignment target to its canonical declaration,
// looking through parens, subscripts, and dereference chains the way uses of
// a reduced declaration are later rewritten.
func (c *Collector) lhsObject(e ast.Expr) *types.Var {
	for {
		e = astutil.Unparen(e)
		switch x := e.(type) {
		case *ast.IndexExpr:
			e = x.X
		case *ast.StarExpr:
			e = x.X
		case *ast.Ident, *ast.SelectorExpr:
			return typeutil.RefObject(c.info, e)
		default:
			return nil
		}
	}
}

// stripConversions unwraps parens and single-argument type conversions so the
// classification sees the shape that survives them.
func stripConversions(info *types.Info, e ast.Expr) ast.Expr {
	for {
		e = astutil.Unparen(e)
		call, ok := e.(*ast.CallExpr)
		if !ok || len(call.Args) != 1 {
			return e
		}
		if tv, ok := info.Types[call.Fun]; !ok || !tv.IsType() {
			return e
		}
		e = call.Args[0]
	}
}
