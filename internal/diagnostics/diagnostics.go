// Package diagnostics owns the diagnostic taxonomy from spec.md §7 (scan,
// parse, resolve, runtime) and the canonical rendering from spec.md §6:
//
//	[line L] Error at 'LEXEME': MESSAGE   (parse / resolve; "at end" when the lexeme is empty)
//	[line L] Error : MESSAGE              (scan / runtime)
//
// Every pipeline stage reports through the one Diagnostic type rather than
// a stage-local error struct, so the two canonical formats above and the
// did-you-mean hint mechanism are defined exactly once.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Kind is the stage at which a diagnostic was raised.
type Kind int

const (
	Scan Kind = iota
	Parse
	Resolve
	Runtime
)

// Diagnostic is a single reported error. Lexeme is only rendered for
// Parse/Resolve kinds, matching the two distinct canonical formats. Input,
// when set, is the full source text the diagnostic was raised against,
// enabling Snippet() to render the offending line.
type Diagnostic struct {
	Kind    Kind
	Message string
	Line    int
	Lexeme  string
	Hint    string
	Input   string
}

func (d Diagnostic) Error() string {
	var base string
	switch d.Kind {
	case Parse, Resolve:
		lexeme := "end"
		if d.Lexeme != "" {
			lexeme = "'" + d.Lexeme + "'"
		}
		base = fmt.Sprintf("[line %d] Error at %s: %s", d.Line, lexeme, d.Message)
	default:
		base = fmt.Sprintf("[line %d] Error : %s", d.Line, d.Message)
	}
	if d.Hint != "" {
		base += "\n" + d.Hint
	}
	return base
}

// Snippet renders the offending source line under a location header, in
// the style of
//
//	 --> 3
//	  |
//	3 | var x = ;
//	  |
//
// It returns "" when no Input was attached (Scan and Runtime diagnostics
// carry none) or when Line falls outside Input.
func (d Diagnostic) Snippet() string {
	if d.Input == "" {
		return ""
	}
	lines := strings.Split(d.Input, "\n")
	if d.Line < 1 || d.Line > len(lines) {
		return ""
	}
	lineContent := lines[d.Line-1]

	var b strings.Builder
	fmt.Fprintf(&b, "  --> %d\n", d.Line)
	b.WriteString("   |\n")
	fmt.Fprintf(&b, "%2d | %s\n", d.Line, lineContent)
	b.WriteString("   | ")
	return b.String()
}

// Suggest fuzzy-matches name against candidates (e.g. every name bound in
// the current scope chain) and returns a "Hint:" line naming the closest
// match, or "" if nothing is close enough. It never alters the canonical
// message; callers append it as a trailing line.
func Suggest(name string, candidates []string) string {
	best := ""
	bestRank := -1
	for _, c := range candidates {
		if c == name {
			continue
		}
		rank := fuzzy.RankMatch(name, c)
		if rank < 0 {
			continue
		}
		if bestRank == -1 || rank < bestRank {
			bestRank = rank
			best = c
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf("Hint: did you mean '%s'?", best)
}
