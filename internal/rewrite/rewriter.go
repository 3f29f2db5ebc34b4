// Package rewrite mutates the program so the selected declaration carries one
// pointer level less, patching every dependent declaration, initializer, and
// expression so the result stays structurally well-formed.
//
// # Strategy
//
// The rewrite runs in two phases over each file:
//
//  1. Plan: a read-only traversal that records, per expression node, the edit
//     it needs — innermost dereferences to drop, right-hand sides and
//     initializer values to reduce one level, and bare value uses to wrap in
//     an address-of so their context keeps seeing the type it expects.
//     References already consumed by an enclosing edit (or needing none, like
//     address-of operands and member-access bases) are anchored so no second
//     edit touches them.
//
//  2. Apply: an astutil.Apply traversal that performs the recorded expression
//     edits and the declaration-site edits (type stripping, spec and field
//     splitting, composite-literal fix-up). Replacement subtrees are not
//     re-walked, so each site is edited exactly once.
package rewrite

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/goreduce/ptrlevel/internal/typeutil"
)

// Rewriter applies the one-level reduction of a single selected declaration.
type Rewriter struct {
	info   *types.Info
	target *types.Var
	owner  types.Type // enclosing struct type for field targets, nil for variables
	level  int        // the target's indirection level before reduction

	replace  map[ast.Expr]ast.Expr // planned expression edits, keyed by original node
	anchored map[ast.Expr]bool     // target references no further edit may touch
	dropped  map[ast.Expr]bool     // composite-literal entries to delete
}

// New returns a Rewriter for the selected declaration. owner must be the
// enclosing struct type when target is a field (resolved once, up front) and
// nil otherwise.
func New(info *types.Info, target *types.Var, owner types.Type) *Rewriter {
	return &Rewriter{
		info:     info,
		target:   target,
		owner:    owner,
		level:    typeutil.IndirectLevel(typeutil.ArrayBaseElem(target.Type())),
		replace:  make(map[ast.Expr]ast.Expr),
		anchored: make(map[ast.Expr]bool),
		dropped:  make(map[ast.Expr]bool),
	}
}

// Apply rewrites all files in place.
func (r *Rewriter) Apply(files []*ast.File) {
	for _, file := range files {
		ast.Inspect(file, r.plan)
	}
	for _, file := range files {
		astutil.Apply(file, r.edit, nil)
	}
}

// =============================================================================
// Phase 1: Planning
// =============================================================================

func (r *Rewriter) plan(n ast.Node) bool {
	switch n := n.(type) {
	case *ast.StarExpr:
		// Innermost dereference over a reference to the target: one star
		// goes away. Outer stars of a chain see a StarExpr operand, not a
		// reference, so exactly one level is dropped.
		if r.isRefUnit(n.X) {
			r.replace[n] = n.X
			r.anchor(n.X)
		}

	case *ast.UnaryExpr:
		// Address-of needs no edit: once the declaration loses a level, the
		// type of &ref drops one level with it. Anchor so the operand is not
		// wrapped as a bare use.
		if n.Op == token.AND && r.isRefUnit(n.X) {
			r.anchor(n.X)
		}

	case *ast.SelectorExpr:
		// The Sel identifier resolves to the field object; the selector as a
		// whole is the reference unit, never its name in isolation.
		r.anchored[n.Sel] = true
		// A member access through the target itself (p.f) survives unchanged:
		// Go auto-derefs one level either way.
		if r.isRefUnit(n.X) {
			r.anchor(n.X)
		}
		r.planBareUse(n)

	case *ast.IndexExpr:
		// p[i] is one reference unit; its base must not be edited separately.
		if r.isRefUnit(n.X) {
			r.anchor(n.X)
		}
		r.planBareUse(n)

	case *ast.AssignStmt:
		r.planAssign(n)

	case *ast.ValueSpec:
		r.planValueSpec(n)

	case *ast.Field:
		for _, name := range n.Names {
			if r.info.Defs[name] == r.target {
				r.anchored[name] = true
			}
		}

	case *ast.CompositeLit:
		r.planCompositeLit(n)

	case *ast.Ident:
		r.planBareUse(n)
	}
	return true
}

// planAssign reduces the right-hand side one level wherever the left-hand
// side is a direct reference to the target: the LHS type just dropped a
// level, so the RHS must follow (p = q becomes p = *q, p = &x becomes p = x).
// A dereferenced LHS (*p = q) is already consistent once the star-removal
// rule fires.
func (r *Rewriter) planAssign(n *ast.AssignStmt) {
	if n.Tok == token.DEFINE {
		r.planDefine(n)
		return
	}
	if n.Tok != token.ASSIGN || len(n.Lhs) != len(n.Rhs) {
		return
	}
	for i, lhs := range n.Lhs {
		u := astutil.Unparen(lhs)
		if _, isStar := u.(*ast.StarExpr); isStar || !r.isRefUnit(u) {
			continue
		}
		r.anchor(u)
		r.reduceRHS(n.Rhs[i])
	}
}

// planDefine anchors the target wherever it appears on a := left-hand side —
// as the fresh declaration (a Defs entry) or as a same-scope reassignment (a
// Uses entry) — so the bare-use rule never wraps a define target. The paired
// right-hand side is reduced like an assignment's; the tuple form has no
// per-name pairing and its reused names are already disqualified upstream.
func (r *Rewriter) planDefine(n *ast.AssignStmt) {
	pairwise := len(n.Lhs) == len(n.Rhs)
	for i, lhs := range n.Lhs {
		name, ok := lhs.(*ast.Ident)
		if !ok || (r.info.Defs[name] != r.target && r.info.Uses[name] != r.target) {
			continue
		}
		r.anchored[name] = true
		if pairwise {
			r.reduceRHS(n.Rhs[i])
		}
	}
}

func (r *Rewriter) reduceRHS(rhs ast.Expr) {
	if reduced, ok := r.reduceExpr(rhs); ok {
		r.anchorUnit(rhs)
		r.replace[rhs] = reduced
	}
}

// planValueSpec anchors the target's declaring name so the bare-use rule
// skips it; the actual declaration-site edit happens in the apply phase,
// where the enclosing GenDecl can be restructured.
func (r *Rewriter) planValueSpec(n *ast.ValueSpec) {
	for i, name := range n.Names {
		if r.info.Defs[name] != r.target {
			continue
		}
		r.anchored[name] = true
		if i < len(n.Values) {
			r.anchorUnit(n.Values[i])
		}
	}
}

// planCompositeLit adjusts initializers of the enclosing aggregate: any
// literal of the owner struct type (directly, or nested inside an array or
// slice literal, which carries its own element type) has the value it
// supplies for the target field reduced one level.
func (r *Rewriter) planCompositeLit(n *ast.CompositeLit) {
	if r.owner == nil || !r.ownerMatches(r.info.TypeOf(n)) {
		return
	}
	st, ok := r.owner.Underlying().(*types.Struct)
	if !ok {
		return
	}
	for i, elt := range n.Elts {
		if kv, ok := elt.(*ast.KeyValueExpr); ok {
			key, ok := kv.Key.(*ast.Ident)
			if !ok || r.info.Uses[key] != r.target {
				continue
			}
			r.anchored[key] = true
			if reduced, ok := r.reduceExpr(kv.Value); ok {
				r.anchorUnit(kv.Value)
				r.replace[kv.Value] = reduced
			} else {
				r.dropped[elt] = true
			}
			continue
		}
		// Positional literal: match the field by index. A nil value that can
		// no longer be typed cannot be dropped positionally; it is left for
		// the post-rewrite check to flag.
		if i < st.NumFields() && st.Field(i) == r.target {
			if reduced, ok := r.reduceExpr(elt); ok {
				r.anchorUnit(elt)
				r.replace[elt] = reduced
			}
		}
	}
}

// planBareUse wraps any remaining pointer-valued use of the target in an
// address-of, restoring the pointer level the surrounding context still
// expects (q = p becomes q = &p, f(p) becomes f(&p), x = s.f becomes
// x = &s.f). Anchored references were already consumed by an enclosing edit.
// A whole-array value use of an array-of-pointers registration is left alone:
// the element type changed, not the array's own pointerness, and no single
// operator restores it.
func (r *Rewriter) planBareUse(n ast.Expr) {
	if r.anchored[n] || !r.isRefUnit(n) {
		return
	}
	if t := r.info.TypeOf(n); t == nil || !typeutil.IsPointer(t) {
		return
	}
	if id, ok := n.(*ast.Ident); ok {
		if r.info.Uses[id] != r.target {
			return // a declaring occurrence, never a value use
		}
	}
	if _, planned := r.replace[n]; planned {
		return
	}
	r.replace[n] = &ast.UnaryExpr{Op: token.AND, X: n}
}

// =============================================================================
// Phase 2: Application
// =============================================================================

func (r *Rewriter) edit(c *astutil.Cursor) bool {
	switch n := c.Node().(type) {
	case *ast.GenDecl:
		if n.Tok == token.VAR {
			r.rewriteVarDecl(n)
		}
	case *ast.StructType:
		r.rewriteFieldDecl(n)
	case *ast.CompositeLit:
		r.applyDrops(n)
	}
	if e, ok := c.Node().(ast.Expr); ok {
		if repl, planned := r.replace[e]; planned {
			delete(r.replace, e)
			c.Replace(repl)
		}
	}
	return true
}

// rewriteVarDecl strips one pointer level from the target's declared type and
// initializer. A spec declaring several names shares one type expression, so
// the target is split into its own spec first.
func (r *Rewriter) rewriteVarDecl(decl *ast.GenDecl) {
	for si, spec := range decl.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		idx := -1
		for i, name := range vs.Names {
			if r.info.Defs[name] == r.target {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		if len(vs.Names) > 1 {
			vs = r.splitSpec(decl, si, vs, idx)
		}
		r.reduceSpec(vs)
		return
	}
}

// splitSpec extracts the target name (and its value, if any) out of a shared
// spec into a spec of its own, inserted right after the original.
func (r *Rewriter) splitSpec(decl *ast.GenDecl, si int, vs *ast.ValueSpec, idx int) *ast.ValueSpec {
	split := &ast.ValueSpec{
		Names: []*ast.Ident{vs.Names[idx]},
		Type:  vs.Type,
	}
	vs.Names = append(vs.Names[:idx:idx], vs.Names[idx+1:]...)
	if idx < len(vs.Values) {
		split.Values = []ast.Expr{vs.Values[idx]}
		vs.Values = append(vs.Values[:idx:idx], vs.Values[idx+1:]...)
	}

	specs := make([]ast.Spec, 0, len(decl.Specs)+1)
	specs = append(specs, decl.Specs[:si+1]...)
	specs = append(specs, split)
	specs = append(specs, decl.Specs[si+1:]...)
	decl.Specs = specs
	return split
}

// reduceSpec rewrites a single-name spec: the declared type loses one star
// and the initializer, when present, loses one level with it. An untyped
// spec (var p = e) reduces the initializer alone.
func (r *Rewriter) reduceSpec(vs *ast.ValueSpec) {
	if vs.Type != nil {
		vs.Type = reduceTypeExpr(vs.Type)
	}
	if len(vs.Values) == 1 {
		if reduced, ok := r.reduceExpr(vs.Values[0]); ok {
			vs.Values[0] = reduced
		} else {
			vs.Values = nil // nil initializer with no pointer level left
		}
	}
}

// rewriteFieldDecl strips one pointer level from the target field's declared
// type, splitting it out of a shared name list first when necessary.
func (r *Rewriter) rewriteFieldDecl(st *ast.StructType) {
	for fi, field := range st.Fields.List {
		idx := -1
		for i, name := range field.Names {
			if r.info.Defs[name] == r.target {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		if len(field.Names) > 1 {
			split := &ast.Field{
				Names: []*ast.Ident{field.Names[idx]},
				Type:  reduceTypeExpr(field.Type),
			}
			field.Names = append(field.Names[:idx:idx], field.Names[idx+1:]...)
			list := make([]*ast.Field, 0, len(st.Fields.List)+1)
			list = append(list, st.Fields.List[:fi+1]...)
			list = append(list, split)
			list = append(list, st.Fields.List[fi+1:]...)
			st.Fields.List = list
		} else {
			field.Type = reduceTypeExpr(field.Type)
		}
		return
	}
}

// applyDrops deletes composite-literal entries whose value cannot survive
// the reduction (a nil keyed value whose field is no longer pointer-typed).
func (r *Rewriter) applyDrops(n *ast.CompositeLit) {
	if len(r.dropped) == 0 {
		return
	}
	kept := n.Elts[:0]
	for _, elt := range n.Elts {
		if r.dropped[elt] {
			delete(r.dropped, elt)
			continue
		}
		kept = append(kept, elt)
	}
	n.Elts = kept
}

// =============================================================================
// Reference Matching
// =============================================================================

// ownerMatches reports whether t is the enclosing struct type of the target
// field, comparing underlying types so named and literal forms both match.
func (r *Rewriter) ownerMatches(t types.Type) bool {
	return t != nil && types.Identical(t.Underlying(), r.owner.Underlying())
}

// isRefUnit reports whether e, after unwrapping parens and subscript chains,
// is a direct reference or member access resolving to the target. The whole
// chain counts as one reference unit: edits apply to the outermost expression
// and never to its base separately.
func (r *Rewriter) isRefUnit(e ast.Expr) bool {
	e = astutil.Unparen(e)
	for {
		switch x := e.(type) {
		case *ast.IndexExpr:
			e = astutil.Unparen(x.X)
		case *ast.Ident, *ast.SelectorExpr:
			return typeutil.RefObject(r.info, e) == r.target
		default:
			return false
		}
	}
}

// anchor marks a reference unit (and the idents inside it) as handled.
func (r *Rewriter) anchor(e ast.Expr) {
	for {
		e = astutil.Unparen(e)
		r.anchored[e] = true
		switch x := e.(type) {
		case *ast.IndexExpr:
			e = x.X
		case *ast.SelectorExpr:
			r.anchored[x.Sel] = true
			return
		default:
			return
		}
	}
}

// anchorUnit anchors the reference unit inside e, if e is one.
func (r *Rewriter) anchorUnit(e ast.Expr) {
	if r.isRefUnit(e) {
		r.anchor(astutil.Unparen(e))
	}
}
