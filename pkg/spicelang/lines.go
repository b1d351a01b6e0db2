package spicelang

import "strings"

// rawLine is one logical netlist statement after continuation lines have been joined and
// comments stripped, tagged with the source line number its first physical line started
// at (used for diagnostics).
type rawLine struct {
	Text string
	Line int
}

// joinContinuations splits 'source' into logical lines: a physical line starting with
// '+' (after leading whitespace) is a continuation of the previous logical line and is
// appended to it (space-joined), '*' full-line and inline ';' comments are stripped, and
// blank lines are dropped. This mirrors spec §4.1's "the parser is responsible for line
// joining" requirement; goparsec has no builtin notion of physical-vs-logical lines so
// this pass runs before any grammar production sees the text.
func joinContinuations(source string) []rawLine {
	physical := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")

	var logical []rawLine
	for i, line := range physical {
		stripped := stripComment(line)
		trimmed := strings.TrimSpace(stripped)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "+") && len(logical) > 0 {
			logical[len(logical)-1].Text += " " + strings.TrimSpace(trimmed[1:])
			continue
		}

		logical = append(logical, rawLine{Text: trimmed, Line: i + 1})
	}

	return logical
}

// stripComment removes a '*' full-line comment (the '*' being the first non-blank
// character, leading spaces/tabs allowed) or a mid-line ';' comment. A ';'
// appearing inside a '{...}' expression is not a comment (relational/ternary expressions
// never use ';', so this is a safe brace-depth check rather than a full tokenizer).
func stripComment(line string) string {
	if strings.HasPrefix(strings.TrimLeft(line, " \t"), "*") {
		return ""
	}

	depth := 0
	for i, r := range line {
		switch r {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ';':
			if depth == 0 {
				return line[:i]
			}
		}
	}
	return line
}
