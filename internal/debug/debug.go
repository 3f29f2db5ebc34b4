// Package debug provides opt-in tracing of the collection state.
//
// Set PTRLEVEL_DEBUG=1 to dump the per-level registries, the valid set, and
// the address-taken set to stderr after collection. This keeps debug logic
// isolated from the analysis code.
package debug

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goreduce/ptrlevel/internal/collect"
)

// Enabled reports whether debug tracing was requested via the environment.
func Enabled() bool {
	return os.Getenv("PTRLEVEL_DEBUG") != ""
}

// DumpContext writes a human-readable summary of the collection state to
// stderr. No-op unless Enabled.
func DumpContext(ctx *collect.Context) {
	if !Enabled() {
		return
	}
	io.WriteString(os.Stderr, FormatContext(ctx))
}

// FormatContext renders the collection state, deepest level first, in the
// same order the selector counts in.
func FormatContext(ctx *collect.Context) string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "ptrlevel: max indirect level %d\n", ctx.MaxLevel())
	for level := ctx.MaxLevel(); level > 0; level-- {
		decls := ctx.Level(level)
		if len(decls) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "  level %d:\n", level)
		for _, obj := range decls {
			var marks []string
			if !ctx.IsValid(obj) {
				marks = append(marks, "disqualified")
			}
			if ctx.IsAddrTaken(obj) {
				marks = append(marks, "addr-taken")
			}
			suffix := ""
			if len(marks) > 0 {
				suffix = " (" + strings.Join(marks, ", ") + ")"
			}
			fmt.Fprintf(&buf, "    %s%s\n", obj.Name(), suffix)
		}
	}
	return buf.String()
}
