package anchors

import (
	"fmt"

	"vex/journal"
)

// Tracker keeps the anchored annotations of one document consistent with
// its edit history. Edits are applied exactly once, in commit order; the
// tracker refuses gaps and repeats so a missed entry can never silently
// skew every anchor after it.
type Tracker struct {
	tokens map[int][]Token
	diags  map[int][]Diagnostic

	appliedVersion int
}

func NewTracker(version int) *Tracker {
	return &Tracker{
		tokens:         make(map[int][]Token),
		diags:          make(map[int][]Diagnostic),
		appliedVersion: version,
	}
}

// Version returns the document version the anchors are consistent with.
func (t *Tracker) Version() int { return t.appliedVersion }

// Apply transforms all anchors through the given journal entries. Entries
// must continue the applied version sequence without gaps.
func (t *Tracker) Apply(entries []journal.Entry) error {
	for _, e := range entries {
		if e.Version != t.appliedVersion+1 {
			return fmt.Errorf("edit version %d applied out of order (have %d)", e.Version, t.appliedVersion)
		}
		sp := e.RuneSpan()
		t.tokens = transformTokens(t.tokens, sp)
		t.diags = transformDiags(t.diags, sp)
		t.appliedVersion = e.Version
	}
	return nil
}

func transformTokens(in map[int][]Token, sp journal.Span) map[int][]Token {
	out := make(map[int][]Token, len(in))
	for _, toks := range in {
		for _, tok := range toks {
			a, ok := transformAnchor(tok.Anchor, sp)
			if !ok {
				continue
			}
			tok.Anchor = a
			out[a.Line] = append(out[a.Line], tok)
		}
	}
	return out
}

func transformDiags(in map[int][]Diagnostic, sp journal.Span) map[int][]Diagnostic {
	out := make(map[int][]Diagnostic, len(in))
	for _, ds := range in {
		for _, d := range ds {
			if d.WholeLine {
				line, ok := transformLine(d.Line, sp)
				if !ok {
					continue
				}
				d.Line = line
			} else {
				a, ok := transformAnchor(d.Anchor, sp)
				if !ok {
					continue
				}
				d.Anchor = a
			}
			out[d.Line] = append(out[d.Line], d)
		}
	}
	return out
}

// ReplaceTokens installs a full semantic token set computed against
// atVersion, transforming it forward through the journal to the tracker's
// current version. Returns false, leaving existing tokens untouched, when
// the journal no longer reaches back to atVersion; the caller must
// re-request against current content.
func (t *Tracker) ReplaceTokens(tokens []Token, atVersion int, j *journal.Journal) bool {
	entries, ok := j.Since(atVersion)
	if !ok {
		return false
	}
	fresh := make(map[int][]Token)
	for _, tok := range tokens {
		fresh[tok.Line] = append(fresh[tok.Line], tok)
	}
	for _, e := range entries {
		if e.Version > t.appliedVersion {
			break
		}
		fresh = transformTokens(fresh, e.RuneSpan())
	}
	t.tokens = fresh
	return true
}

// SetDiagnostics replaces the diagnostic set, transforming it forward from
// atVersion the same way ReplaceTokens does. Diagnostics published without
// a version ride on atVersion equal to the current version and install
// directly.
func (t *Tracker) SetDiagnostics(diags []Diagnostic, atVersion int, j *journal.Journal) bool {
	entries, ok := j.Since(atVersion)
	if !ok {
		return false
	}
	fresh := make(map[int][]Diagnostic)
	for _, d := range diags {
		fresh[d.Line] = append(fresh[d.Line], d)
	}
	for _, e := range entries {
		if e.Version > t.appliedVersion {
			break
		}
		fresh = transformDiags(fresh, e.RuneSpan())
	}
	t.diags = fresh
	return true
}

// TokensOn returns the semantic tokens anchored on a line.
func (t *Tracker) TokensOn(line int) []Token { return t.tokens[line] }

// DiagnosticsOn returns the diagnostics anchored on a line.
func (t *Tracker) DiagnosticsOn(line int) []Diagnostic { return t.diags[line] }

// Diagnostics returns all diagnostics, grouped by line.
func (t *Tracker) Diagnostics() map[int][]Diagnostic { return t.diags }

// DiagnosticCounts tallies errors and warnings for the status bar.
func (t *Tracker) DiagnosticCounts() (errors, warnings int) {
	for _, ds := range t.diags {
		for _, d := range ds {
			switch d.Severity {
			case SeverityError:
				errors++
			case SeverityWarning:
				warnings++
			}
		}
	}
	return
}

// WorstOn returns the most severe diagnostic on a line, if any.
func (t *Tracker) WorstOn(line int) (Diagnostic, bool) {
	ds := t.diags[line]
	if len(ds) == 0 {
		return Diagnostic{}, false
	}
	worst := ds[0]
	for _, d := range ds[1:] {
		if d.Severity < worst.Severity {
			worst = d
		}
	}
	return worst, true
}

// Clear drops all tokens and diagnostics, e.g. when a document falls back
// to local-only mode.
func (t *Tracker) Clear() {
	t.tokens = make(map[int][]Token)
	t.diags = make(map[int][]Diagnostic)
}

// HasTokens reports whether any semantic tokens are installed.
func (t *Tracker) HasTokens() bool { return len(t.tokens) > 0 }
