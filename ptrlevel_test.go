package ptrlevel_test

import (
	"bytes"
	"errors"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/goreduce/ptrlevel"
)

// loadSrc parses and strictly typechecks one file into a fresh Pass.
// Apply mutates the files, so every attempt loads its own copy.
func loadSrc(t *testing.T, src string) *ptrlevel.Pass {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "p.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	info := ptrlevel.NewInfo()
	if _, err := (&types.Config{}).Check("p", fset, []*ast.File{file}, info); err != nil {
		t.Fatalf("typecheck: %v", err)
	}
	return &ptrlevel.Pass{Fset: fset, Files: []*ast.File{file}, Info: info, Path: "p"}
}

func render(t *testing.T, pass *ptrlevel.Pass) string {
	t.Helper()
	var buf bytes.Buffer
	if err := format.Node(&buf, pass.Fset, pass.Files[0]); err != nil {
		t.Fatalf("print: %v", err)
	}
	return buf.String()
}

// twoPointers is the canonical driver scenario: p at level 2 and q at level
// 1, q never address-taken and never pointer-assigned, y excluded by being
// address-taken at a non-maximum level.
const twoPointers = `package p

var x int
var y *int
var p **int
var q *int

func f() {
	p = &y
	**p = x
	_ = q
}
`

func TestQueryCount(t *testing.T) {
	pass := loadSrc(t, twoPointers)
	n, err := pass.QueryCount()
	if err != nil {
		t.Fatalf("QueryCount: %v", err)
	}
	if n != 2 {
		t.Errorf("QueryCount() = %d, want 2 (p and q; y is address-taken)", n)
	}
}

func TestApply_DeepestFirst(t *testing.T) {
	pass := loadSrc(t, twoPointers)
	if err := pass.Apply(1); err != nil {
		t.Fatalf("Apply(1): %v", err)
	}
	out := render(t, pass)

	if !strings.Contains(out, "var p *int") {
		t.Errorf("instance 1 should reduce p (deepest level first); got:\n%s", out)
	}
	if !strings.Contains(out, "var q *int") {
		t.Errorf("q must be untouched by instance 1; got:\n%s", out)
	}
	if strings.Contains(out, "**p") {
		t.Errorf("double dereferences of p should become single; got:\n%s", out)
	}
	if !strings.Contains(out, "*p = x") {
		t.Errorf("**p = x should become *p = x; got:\n%s", out)
	}
	if !strings.Contains(out, "p = y") {
		t.Errorf("p = &y should become p = y; got:\n%s", out)
	}
}

func TestApply_SecondInstance(t *testing.T) {
	pass := loadSrc(t, twoPointers)
	if err := pass.Apply(2); err != nil {
		t.Fatalf("Apply(2): %v", err)
	}
	out := render(t, pass)

	if !strings.Contains(out, "var q int") {
		t.Errorf("instance 2 should reduce q; got:\n%s", out)
	}
	if !strings.Contains(out, "var p **int") {
		t.Errorf("p must be untouched by instance 2; got:\n%s", out)
	}
}

func TestApply_Stable(t *testing.T) {
	first := loadSrc(t, twoPointers)
	if err := first.Apply(1); err != nil {
		t.Fatalf("Apply(1): %v", err)
	}
	again := loadSrc(t, twoPointers)
	if err := again.Apply(1); err != nil {
		t.Fatalf("Apply(1) again: %v", err)
	}
	if render(t, first) != render(t, again) {
		t.Error("the same program and index must produce the same rewrite")
	}
}

func TestApply_MaxInstanceExceeded(t *testing.T) {
	pass := loadSrc(t, twoPointers)
	before := render(t, pass)

	err := pass.Apply(3)
	if !errors.Is(err, ptrlevel.ErrMaxInstance) {
		t.Fatalf("Apply(3) = %v, want ErrMaxInstance", err)
	}
	if got := render(t, pass); got != before {
		t.Error("an out-of-range index must leave the program unmodified")
	}

	if err := pass.Apply(0); !errors.Is(err, ptrlevel.ErrMaxInstance) {
		t.Errorf("Apply(0) = %v, want ErrMaxInstance", err)
	}
}

func TestQueryCount_ExcludesUnpatchableAssignments(t *testing.T) {
	// Every advertised instance must survive its own rewrite: a tuple define
	// reassigning a pointer and a nil assignment both produce programs the
	// post-rewrite check would reject, so neither may count.
	pass := loadSrc(t, `package p

func mk() (**int, error) { return nil, nil }

func g() {
	var p **int
	p, err := mk()
	_ = p
	_ = err
}

var q *int

func h() {
	q = nil
}
`)
	n, err := pass.QueryCount()
	if err != nil {
		t.Fatalf("QueryCount: %v", err)
	}
	if n != 0 {
		t.Errorf("QueryCount() = %d, want 0", n)
	}
}

func TestAddrTakenField_ExcludedAtShallowLevel(t *testing.T) {
	pass := loadSrc(t, `package p

type s struct{ buf *byte }

var v s
var pp **int
var bp *byte

func g() {
	_ = &v.buf
	_ = bp
	_ = pp
}
`)
	n, err := pass.QueryCount()
	if err != nil {
		t.Fatalf("QueryCount: %v", err)
	}
	// pp (tier 1) and bp; buf is address-taken below the maximum level.
	if n != 2 {
		t.Errorf("QueryCount() = %d, want 2", n)
	}
}

func TestApply_Field(t *testing.T) {
	pass := loadSrc(t, `package p

type s struct{ f **int }

var v = s{f: nil}

func h() {
	_ = *v.f
}
`)
	if err := pass.Apply(1); err != nil {
		t.Fatalf("Apply(1): %v", err)
	}
	out := render(t, pass)

	if !strings.Contains(out, "f *int") {
		t.Errorf("field f should lose one level; got:\n%s", out)
	}
	if !strings.Contains(out, "s{f: nil}") {
		t.Errorf("nil stays valid for the still-pointer field; got:\n%s", out)
	}
	if !strings.Contains(out, "_ = v.f") {
		t.Errorf("*v.f should become v.f; got:\n%s", out)
	}
}

func TestApply_RecheckFailureIsInternal(t *testing.T) {
	pass := loadSrc(t, twoPointers)
	pass.Recheck = func(*token.FileSet, []*ast.File) error {
		return errors.New("boom")
	}
	err := pass.Apply(1)
	if !errors.Is(err, ptrlevel.ErrInternal) {
		t.Fatalf("Apply with failing recheck = %v, want ErrInternal", err)
	}
	if errors.Is(err, ptrlevel.ErrMaxInstance) {
		t.Error("a post-rewrite failure must not look like a usage error")
	}
}

func TestApply_ProducesWellTypedProgram(t *testing.T) {
	// The default recheck must accept every in-range rewrite of this program.
	for index := 1; index <= 2; index++ {
		pass := loadSrc(t, twoPointers)
		if err := pass.Apply(index); err != nil {
			t.Errorf("Apply(%d): %v", index, err)
		}
	}
}
