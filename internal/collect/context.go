// Package collect implements the analysis half of the pointer-level reduction
// pass: a single forward traversal that registers every pointer-typed variable
// and struct field together with its indirection level, and a deterministic
// two-tier counting procedure that turns a 1-based instance index into one
// chosen declaration.
package collect

import (
	"go/types"
)

// =============================================================================
// Analysis Context
// =============================================================================

// Context holds the state of one collection run. It is constructed at the
// start of an invocation, owned exclusively by it, and discarded at its end —
// nothing here survives across invocations.
//
// Per-level registries are ordered slices, not sets: registration order is the
// deterministic total order the selector counts in, so the same program always
// yields the same instance numbering.
type Context struct {
	registry   map[int][]*types.Var      // indirection level -> declarations, in registration order
	levels     map[*types.Var]int        // registered declaration -> its level (idempotence guard)
	valid      map[*types.Var]bool       // shrinks monotonically, never regrows
	addrTaken  map[*types.Var]bool       // operands of direct address-of expressions
	fieldOwner map[*types.Var]types.Type // field -> enclosing struct's (possibly named) type
	maxLevel   int
}

// NewContext returns an empty analysis context.
func NewContext() *Context {
	return &Context{
		registry:   make(map[int][]*types.Var),
		levels:     make(map[*types.Var]int),
		valid:      make(map[*types.Var]bool),
		addrTaken:  make(map[*types.Var]bool),
		fieldOwner: make(map[*types.Var]types.Type),
	}
}

// Register records obj at the given indirection level and marks it valid.
// A declaration already registered is left untouched, so re-encountering the
// same object through another syntactic occurrence cannot perturb the order.
func (c *Context) Register(obj *types.Var, level int) {
	if _, ok := c.levels[obj]; ok {
		return
	}
	c.levels[obj] = level
	c.valid[obj] = true
	c.registry[level] = append(c.registry[level], obj)
	if level > c.maxLevel {
		c.maxLevel = level
	}
}

// Registered reports whether obj has been registered at any level.
func (c *Context) Registered(obj *types.Var) bool {
	_, ok := c.levels[obj]
	return ok
}

// LevelOf returns the indirection level obj was registered at, or 0 when it
// was never registered.
func (c *Context) LevelOf(obj *types.Var) int {
	return c.levels[obj]
}

// Disqualify removes obj from the valid set. Removal is permanent for the
// run: a disqualifying use observed anywhere overrides registration.
func (c *Context) Disqualify(obj *types.Var) {
	delete(c.valid, obj)
}

// IsValid reports whether obj is still eligible for reduction.
func (c *Context) IsValid(obj *types.Var) bool {
	return c.valid[obj]
}

// MarkAddrTaken records that obj's address is captured somewhere.
func (c *Context) MarkAddrTaken(obj *types.Var) {
	c.addrTaken[obj] = true
}

// IsAddrTaken reports whether obj's address is captured anywhere.
func (c *Context) IsAddrTaken(obj *types.Var) bool {
	return c.addrTaken[obj]
}

// SetFieldOwner records the enclosing struct type of a field declaration.
// The owner is needed later to match composite literals that initialize the
// field.
func (c *Context) SetFieldOwner(field *types.Var, owner types.Type) {
	if _, ok := c.fieldOwner[field]; !ok {
		c.fieldOwner[field] = owner
	}
}

// FieldOwner returns the enclosing struct type recorded for field, or nil.
func (c *Context) FieldOwner(field *types.Var) types.Type {
	return c.fieldOwner[field]
}

// MaxLevel returns the largest indirection level observed, or 0 if nothing
// was registered.
func (c *Context) MaxLevel() int {
	return c.maxLevel
}

// Level returns the declarations registered at the given level, in
// registration order. The returned slice is owned by the context.
func (c *Context) Level(level int) []*types.Var {
	return c.registry[level]
}
