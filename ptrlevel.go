// Package ptrlevel implements one mutation pass of a Go program reducer: it
// lowers the pointer indirection level of a single selected variable or
// struct field by one and patches every use that depended on the old level.
//
// The pass is driven externally, once per candidate index: a reducer first
// asks how many valid transformations exist (QueryCount), then applies
// transformation #k (Apply) and checks whether the smaller program still
// exhibits the property being minimized.
//
// Eligible declarations are ordered deepest indirection level first, then
// shallower levels in source order, each shallower level filtered by "never
// address-taken" and all levels filtered by the conservative assignment
// classification. The same program always yields the same numbering.
package ptrlevel

import (
	"errors"
	"fmt"
	"go/ast"
	"go/importer"
	"go/token"
	"go/types"

	"github.com/goreduce/ptrlevel/internal/collect"
	"github.com/goreduce/ptrlevel/internal/debug"
	"github.com/goreduce/ptrlevel/internal/rewrite"
)

// Errors reported to the driving reducer. ErrMaxInstance is a usage error:
// the requested index exceeds the available instances and the program is left
// unmodified. ErrInternal covers invariant violations and rewrites whose
// result no longer typechecks.
var (
	ErrMaxInstance = errors.New("requested instance exceeds available instances")
	ErrInternal    = errors.New("internal transformation error")
)

// Pass is one invocation of the reduction over a parsed and typechecked set
// of files (one package's worth, the unit a reducer reloads between
// attempts). All analysis state lives for exactly one QueryCount or Apply
// call; a Pass holds nothing across calls and may be reused.
type Pass struct {
	Fset  *token.FileSet
	Files []*ast.File
	Info  *types.Info
	Path  string // package path, used for the post-rewrite check

	// Recheck overrides the post-rewrite verification. The default
	// re-typechecks the mutated files with the default importer and treats
	// any error as an internal rewrite error.
	Recheck func(fset *token.FileSet, files []*ast.File) error
}

// NewInfo returns a types.Info with the maps this pass reads populated.
// Callers typecheck into it before constructing a Pass.
func NewInfo() *types.Info {
	return &types.Info{
		Types: make(map[ast.Expr]types.TypeAndValue),
		Defs:  make(map[*ast.Ident]types.Object),
		Uses:  make(map[*ast.Ident]types.Object),
	}
}

// QueryCount runs collection and selection in query mode and reports the
// number of eligible declarations. No selection is made and nothing is
// mutated.
func (p *Pass) QueryCount() (int, error) {
	ctx, err := collect.Run(p.Fset, p.Files, p.Info)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	debug.DumpContext(ctx)
	return collect.Select(ctx, 0).Count, nil
}

// Apply selects the index-th eligible declaration (1-based) and rewrites the
// program so it carries one pointer level less. The files are mutated in
// place; on any returned error other than nil the caller should discard
// them, since a failed rewrite is not rolled back.
func (p *Pass) Apply(index int) error {
	ctx, err := collect.Run(p.Fset, p.Files, p.Info)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	debug.DumpContext(ctx)

	sel := collect.Select(ctx, index)
	if sel.Decl == nil {
		return fmt.Errorf("%w: requested %d of %d", ErrMaxInstance, index, sel.Count)
	}

	// For a field selection, resolve the enclosing aggregate once up front;
	// the initializer fix-up matches composite literals against it.
	var owner types.Type
	if sel.Decl.IsField() {
		owner = ctx.FieldOwner(sel.Decl)
		if owner == nil {
			return fmt.Errorf("%w: no enclosing struct recorded for field %s", ErrInternal, sel.Decl.Name())
		}
	}

	rewrite.New(p.Info, sel.Decl, owner).Apply(p.Files)

	// The pass does not trust its own mutation: the produced program must
	// still typecheck, or the run reports an internal rewrite error.
	recheck := p.Recheck
	if recheck == nil {
		recheck = p.defaultRecheck
	}
	if err := recheck(p.Fset, p.Files); err != nil {
		return fmt.Errorf("%w: post-rewrite check: %v", ErrInternal, err)
	}
	return nil
}

func (p *Pass) defaultRecheck(fset *token.FileSet, files []*ast.File) error {
	conf := types.Config{
		Importer: importer.Default(),
		Error:    func(error) {}, // collect everything, report via return value
	}
	path := p.Path
	if path == "" {
		path = "p"
	}
	_, err := conf.Check(path, fset, files, nil)
	return err
}
