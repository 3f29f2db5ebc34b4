package collect

import (
	"go/types"
)

// =============================================================================
// Two-Tier Selection
// =============================================================================

// Selection is the outcome of the counting pass: the total number of eligible
// declarations and, when the 1-based target index landed inside that count,
// the chosen declaration.
type Selection struct {
	Count int
	Decl  *types.Var // nil in query mode or when target exceeds Count
}

// Eligible returns the eligible declarations in the fixed two-tier order.
//
// Tier 1 covers the maximum indirection level and ignores address-takenness:
// the deepest pointer is always safe to reduce first, since no shallower alias
// can be produced through it in a way the rewrite would have to special-case.
// Tier 2 walks the remaining levels strictly descending and additionally
// requires that the declaration is never address-taken. Within a level,
// declarations come in registration order, so the numbering is stable across
// runs on the same program.
func Eligible(c *Context) []*types.Var {
	var out []*types.Var
	for _, obj := range c.Level(c.MaxLevel()) {
		if c.IsValid(obj) {
			out = append(out, obj)
		}
	}
	for level := c.MaxLevel() - 1; level > 0; level-- {
		for _, obj := range c.Level(level) {
			if c.IsValid(obj) && !c.IsAddrTaken(obj) {
				out = append(out, obj)
			}
		}
	}
	return out
}

// Select counts eligible declarations and picks the one whose running index
// equals the 1-based target. A target of 0 (or below) never matches, which is
// how query mode reuses the same pass without ever setting a selection.
func Select(c *Context, target int) Selection {
	eligible := Eligible(c)
	sel := Selection{Count: len(eligible)}
	if target >= 1 && target <= len(eligible) {
		sel.Decl = eligible[target-1]
	}
	return sel
}
