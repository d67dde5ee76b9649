package rag

import (
	"strconv"
	"strings"
)

// casePrefix introduces the case number of a fragment in the grounding context.
const casePrefix = "Дело "

// AssembleContext renders ranked matches into a single prompt-ready block.
// Each fragment is rendered as "[k] Дело <case>. <content>" (the case part is
// omitted when the chunk has none), numbered from 1 in the given order, and
// fragments are separated by a blank line. The numbering matches the order
// of the sources returned to the caller, so a citation [k] refers to
// sources[k-1]. Zero matches yield the empty string.
func AssembleContext(matches []Match) string {
	if len(matches) == 0 {
		return ""
	}

	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("] ")
		if m.CaseNumber != "" {
			b.WriteString(casePrefix)
			b.WriteString(m.CaseNumber)
			b.WriteString(". ")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}
