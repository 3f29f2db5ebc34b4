// Package directive handles ptrlevel comment directives.
//
// Supported directives:
//   - //ptrlevel:ignore - exclude the declaration on the next (or same) line
//     from collection, so it never counts as a reduction instance
package directive

import (
	"go/ast"
	"go/token"
	"strings"
)

// IsIgnoreDirective checks if a comment is an ignore directive.
// Supports both "//ptrlevel:ignore" and "// ptrlevel:ignore".
func IsIgnoreDirective(text string) bool {
	text = strings.TrimPrefix(text, "//")
	text = strings.TrimSpace(text)
	return strings.HasPrefix(text, "ptrlevel:ignore")
}

// IgnoreMap tracks line numbers that have ignore comments.
type IgnoreMap map[int]bool

// BuildIgnoreMap scans a file for ignore comments and returns a map keyed by
// line number. A directive in the package doc comment is recorded under the
// special key -1 and ignores the whole file.
//
// Example:
//
//	//ptrlevel:ignore          // line 5 → map[5]
//	var keep **int             // line 6 → skipped (line 5 covers line 6)
func BuildIgnoreMap(fset *token.FileSet, file *ast.File) IgnoreMap {
	m := make(IgnoreMap)

	for _, cg := range file.Comments {
		for _, c := range cg.List {
			if IsIgnoreDirective(c.Text) {
				m[fset.Position(c.Pos()).Line] = true
			}
		}
	}

	if file.Doc != nil {
		for _, c := range file.Doc.List {
			if IsIgnoreDirective(c.Text) {
				m[-1] = true
			}
		}
	}

	return m
}

// ShouldIgnore returns true if a declaration on the given line should be
// skipped: the file-level marker is set, or the same or previous line carries
// an ignore comment.
func (m IgnoreMap) ShouldIgnore(line int) bool {
	return m[-1] || m[line] || m[line-1]
}
