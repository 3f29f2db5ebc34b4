package ptrlevel

import (
	"golang.org/x/tools/go/analysis"

	"github.com/goreduce/ptrlevel/internal/collect"
	"github.com/goreduce/ptrlevel/internal/debug"
)

// Analyzer exposes query mode as a go/analysis pass: one report per eligible
// declaration, carrying its indirection level and its 1-based instance index
// in the deterministic ordering. It never mutates anything.
var Analyzer = &analysis.Analyzer{
	Name: "ptrlevel",
	Doc:  "reports pointer declarations whose indirection level can be reduced",
	Run:  run,
}

func run(pass *analysis.Pass) (any, error) {
	ctx, err := collect.Run(pass.Fset, pass.Files, pass.TypesInfo)
	if err != nil {
		return nil, err
	}
	debug.DumpContext(ctx)

	for i, obj := range collect.Eligible(ctx) {
		pass.Reportf(obj.Pos(), "pointer declaration %s (level %d) can lose one indirection level (instance %d)",
			obj.Name(), ctx.LevelOf(obj), i+1)
	}
	return nil, nil
}
