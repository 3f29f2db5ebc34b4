package collect

import (
	"go/token"
	"go/types"
	"testing"
)

func newVar(name string, level int) *types.Var {
	typ := types.Type(types.Typ[types.Int])
	for i := 0; i < level; i++ {
		typ = types.NewPointer(typ)
	}
	return types.NewVar(token.NoPos, nil, name, typ)
}

func TestContext_Register(t *testing.T) {
	ctx := NewContext()
	p := newVar("p", 2)
	q := newVar("q", 1)

	ctx.Register(p, 2)
	ctx.Register(q, 1)

	if !ctx.Registered(p) || !ctx.Registered(q) {
		t.Fatal("both declarations should be registered")
	}
	if got := ctx.MaxLevel(); got != 2 {
		t.Errorf("MaxLevel() = %d, want 2", got)
	}
	if got := ctx.LevelOf(p); got != 2 {
		t.Errorf("LevelOf(p) = %d, want 2", got)
	}
	if !ctx.IsValid(p) || !ctx.IsValid(q) {
		t.Error("registration should mark declarations valid")
	}
}

func TestContext_RegisterIdempotent(t *testing.T) {
	ctx := NewContext()
	p := newVar("p", 2)

	ctx.Register(p, 2)
	ctx.Disqualify(p)
	ctx.Register(p, 2) // re-encounter through another occurrence

	if len(ctx.Level(2)) != 1 {
		t.Errorf("level 2 has %d entries, want 1", len(ctx.Level(2)))
	}
	if ctx.IsValid(p) {
		t.Error("re-registration must not resurrect a disqualified declaration")
	}
}

func TestContext_RegistrationOrder(t *testing.T) {
	ctx := NewContext()
	a, b, c := newVar("a", 1), newVar("b", 1), newVar("c", 1)
	ctx.Register(a, 1)
	ctx.Register(b, 1)
	ctx.Register(c, 1)

	got := ctx.Level(1)
	want := []*types.Var{a, b, c}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Level(1)[%d] = %s, want %s", i, got[i].Name(), want[i].Name())
		}
	}
}

func TestContext_FieldOwner(t *testing.T) {
	ctx := NewContext()
	f := types.NewField(token.NoPos, nil, "f", types.NewPointer(types.Typ[types.Int]), false)
	st := types.NewStruct([]*types.Var{f}, nil)

	ctx.SetFieldOwner(f, st)
	ctx.SetFieldOwner(f, types.Typ[types.Int]) // later records must not override

	if got := ctx.FieldOwner(f); got != types.Type(st) {
		t.Errorf("FieldOwner(f) = %v, want the struct", got)
	}
}
