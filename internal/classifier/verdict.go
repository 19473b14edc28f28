// File: internal/classifier/verdict.go

// Package classifier decides whether a natural-language request or a Cypher
// statement asks for anything other than a read. Both passes are pure
// functions over their input and the embedded pattern table.
package classifier

// Verdict is the outcome of one classification pass. Empty strings mean the
// field does not apply.
type Verdict struct {
	Allowed        bool     `json:"allowed"`
	BlockedReason  string   `json:"blocked_reason,omitempty"`
	MatchedPattern string   `json:"matched_pattern,omitempty"`
	Hint           string   `json:"hint,omitempty"`
	Category       Category `json:"category,omitempty"`
}

// Allow is the verdict for input that raised nothing.
func Allow() Verdict { return Verdict{Allowed: true} }

func block(t *Table, cat Category, reason, matched string) Verdict {
	return Verdict{
		Allowed:        false,
		BlockedReason:  reason,
		MatchedPattern: matched,
		Hint:           t.Hint(cat),
		Category:       cat,
	}
}
