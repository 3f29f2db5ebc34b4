// Command ptrlevel applies the pointer-indirection-reduction pass to one Go
// source file, the way a delta-debugging reducer drives it:
//
//	ptrlevel -query-instances file.go
//	    print the number of valid transformations and exit
//
//	ptrlevel -counter N [-output out.go] file.go
//	    apply transformation N and write the rewritten source
//
// Exit status: 0 on success, 1 when the counter exceeds the instance count,
// 2 on an internal transformation error.
package main

import (
	"errors"
	"flag"
	"fmt"
	"go/ast"
	"go/format"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"

	"github.com/goreduce/ptrlevel"
)

var (
	queryInstances = flag.Bool("query-instances", false, "print the number of valid transformations and exit")
	counter        = flag.Int("counter", 1, "1-based index of the transformation to apply")
	output         = flag.String("output", "", "write the rewritten source here instead of stdout")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ptrlevel [-query-instances | -counter N [-output file]] file.go")
		os.Exit(1)
	}

	pass, err := load(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "ptrlevel:", err)
		os.Exit(2)
	}

	if *queryInstances {
		n, err := pass.QueryCount()
		if err != nil {
			fmt.Fprintln(os.Stderr, "ptrlevel:", err)
			os.Exit(2)
		}
		fmt.Println(n)
		return
	}

	if err := pass.Apply(*counter); err != nil {
		fmt.Fprintln(os.Stderr, "ptrlevel:", err)
		if errors.Is(err, ptrlevel.ErrMaxInstance) {
			os.Exit(1)
		}
		os.Exit(2)
	}

	if err := emit(pass.Fset, pass.Files[0], *output); err != nil {
		fmt.Fprintln(os.Stderr, "ptrlevel:", err)
		os.Exit(2)
	}
}

// load parses and typechecks one file. Type errors are suppressed during
// analysis: a reducer's inputs rarely typecheck cleanly, and the collection
// phase only needs whatever type information survives. The post-rewrite
// check inside Apply still sees real errors.
func load(filename string) (*ptrlevel.Pass, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, nil, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	info := ptrlevel.NewInfo()
	conf := types.Config{
		Importer: importer.Default(),
		Error:    func(error) {}, // suppress diagnostics during analysis
	}
	pkg, _ := conf.Check(file.Name.Name, fset, []*ast.File{file}, info)

	path := file.Name.Name
	if pkg != nil {
		path = pkg.Path()
	}
	return &ptrlevel.Pass{
		Fset:  fset,
		Files: []*ast.File{file},
		Info:  info,
		Path:  path,
	}, nil
}

func emit(fset *token.FileSet, file *ast.File, out string) error {
	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return format.Node(w, fset, file)
}
