// Package assembler turns ranked chunks into the context block handed to the
// language model, and checks the model's citations against it.
package assembler

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/answerd/internal/vectorstore"
)

// UnknownSource labels chunks whose metadata carries no source filename.
const UnknownSource = "unknown"

// BuildContext renders candidates as a citable context block. Each chunk is
// prefixed with a zero-based [src:i] tag and its source filename:
//
//	[src:0] (from: contract.pdf)
//	<chunk text>
//
//	[src:1] (from: lease.pdf)
//	<chunk text>
//
// The tag index is the candidate's position, so the model's [src:i] citations
// map straight back to the candidate list.
func BuildContext(candidates []vectorstore.Candidate) string {
	parts := make([]string, len(candidates))
	for i, c := range candidates {
		source := c.Source
		if source == "" {
			source = UnknownSource
		}
		parts[i] = fmt.Sprintf("[src:%d] (from: %s)\n%s", i, source, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

// VerifyCitations returns the indices of candidates the answer cites with a
// [src:i] tag without quoting the chunk's text. A cited-but-unquoted source
// is not necessarily wrong, but it is worth surfacing as a warning.
func VerifyCitations(answer string, candidates []vectorstore.Candidate) []int {
	var suspect []int
	for i, c := range candidates {
		tag := fmt.Sprintf("[src:%d]", i)
		if strings.Contains(answer, tag) && !strings.Contains(answer, c.Text) {
			suspect = append(suspect, i)
		}
	}
	return suspect
}
