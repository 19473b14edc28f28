// File: internal/classifier/query.go
package classifier

import (
	"fmt"
	"strings"
)

const (
	reasonUnrecognized = "empty or unrecognized query"
	rephraseSuffix     = "; rephrase without requesting data modification"

	// quotedCallPriority ranks a call through a backtick-quoted name below the
	// named procedure rules, so a known name reports its own reason.
	quotedCallPriority = 90
)

// ClassifyQuery checks a Cypher statement with the embedded pattern table.
func ClassifyQuery(query string) Verdict {
	return defaultTable.ClassifyQuery(query)
}

// ClassifyQuery blocks any statement that contains a write clause, an
// administration command or a non-read procedure call anywhere in its text,
// including inside CALL subqueries. Both comment renderings are checked so a
// keyword split by a comment is still seen.
func (t *Table) ClassifyQuery(query string) Verdict {
	if strings.TrimSpace(query) == "" {
		return block(t, CategoryUnrecognized, reasonUnrecognized, "")
	}

	var first Verdict
	for i, repl := range []string{"", " "} {
		norm, ok := normalize(query, repl)
		if !ok {
			return block(t, CategoryUnrecognized, reasonUnrecognized, "unterminated literal or comment")
		}
		v := t.classifyNormalized(norm)
		if !v.Allowed {
			return v
		}
		if i == 0 {
			first = v
		}
	}
	return first
}

func (t *Table) classifyNormalized(norm string) Verdict {
	toks := tokenize(norm)
	if len(toks) == 0 {
		return block(t, CategoryUnrecognized, reasonUnrecognized, "")
	}

	var (
		best      *Verdict
		bestPrio  = -1
		matches   int
		readFound bool
	)
	consider := func(prio int, v Verdict) {
		if prio > bestPrio {
			bestPrio = prio
			vv := v
			best = &vv
		}
	}

	for i, tok := range toks {
		if tok.qualified {
			continue
		}

		if qn, ok := dottedName(toks, i); ok {
			if r, hit := t.blockedProcedure(qn.text, true); hit {
				consider(r.Priority, block(t, r.Category, fmt.Sprintf("%s (%s)", r.Reason, qn.text), qn.text))
			}
			if qn.quoted && qn.end < len(toks) && toks[qn.end].text == "(" {
				consider(quotedCallPriority, block(t, CategoryProcedure,
					fmt.Sprintf("query calls a routine through a quoted name (%s)", qn.text), qn.text))
			}
		}

		if !isWordToken(tok) {
			continue
		}
		if _, ok := t.readClauses[tok.text]; ok {
			readFound = true
		}
		if tok.text == "match" {
			matches++
		}

		for _, r := range t.Clauses {
			if r.Priority <= bestPrio {
				break
			}
			if matchSequence(toks, i, r.Tokens) {
				consider(r.Priority, block(t, r.Category, r.Reason+rephraseSuffix, strings.Join(r.Tokens, " ")))
				break
			}
		}

		if tok.text == "call" {
			prio, v, blocked := t.classifyCall(toks, i)
			if blocked {
				consider(prio, v)
			}
		}
	}

	if best != nil {
		return *best
	}
	if matches > t.MaxMatchClauses {
		return block(t, CategoryComplexity,
			fmt.Sprintf("query has %d MATCH clauses, more than the %d allowed", matches, t.MaxMatchClauses),
			"match")
	}
	if !readFound {
		return block(t, CategoryUnrecognized, reasonUnrecognized, "")
	}
	return Allow()
}

// classifyCall inspects the target of the CALL at toks[i]. Subqueries
// (CALL { ... } and CALL (vars) { ... }) are left to the surrounding scan.
func (t *Table) classifyCall(toks []token, i int) (int, Verdict, bool) {
	if i+1 >= len(toks) {
		return 0, block(t, CategoryUnrecognized, reasonUnrecognized, "call"), true
	}
	next := toks[i+1]
	if next.text == "{" || next.text == "(" {
		return 0, Verdict{}, false
	}
	qn, ok := dottedName(toks, i+1)
	name := qn.text
	if !ok {
		if isWordToken(next) || next.quoted {
			name = next.text
		} else {
			return 0, block(t, CategoryProcedure, "query calls an unrecognized procedure", next.text), true
		}
	}
	if t.procedureAllowed(name) {
		return 0, Verdict{}, false
	}
	if r, hit := t.blockedProcedure(name, false); hit {
		return r.Priority, block(t, r.Category, fmt.Sprintf("%s (%s)", r.Reason, name), name), true
	}
	return 50, block(t, CategoryProcedure, fmt.Sprintf("query calls an unrecognized procedure (%s)", name), name), true
}

// qualifiedName is a dotted routine name such as apoc.cypher.run.
type qualifiedName struct {
	text string
	// quoted is set when any segment was a backtick identifier.
	quoted bool
	// end indexes the token after the last segment.
	end int
}

// dottedName reads ident(.ident)+ starting at toks[i]. Segments may be
// backtick identifiers.
func dottedName(toks []token, i int) (qualifiedName, bool) {
	if i >= len(toks) || toks[i].qualified || !isNamePart(toks[i]) {
		return qualifiedName{}, false
	}
	parts := []string{toks[i].text}
	quoted := toks[i].quoted
	j := i + 1
	for j+1 < len(toks) && toks[j].text == "." && isNamePart(toks[j+1]) {
		parts = append(parts, toks[j+1].text)
		quoted = quoted || toks[j+1].quoted
		j += 2
	}
	if len(parts) < 2 {
		return qualifiedName{}, false
	}
	return qualifiedName{text: strings.Join(parts, "."), quoted: quoted, end: j}, true
}

func matchSequence(toks []token, i int, seq []string) bool {
	if i+len(seq) > len(toks) {
		return false
	}
	for k, want := range seq {
		tk := toks[i+k]
		if tk.text != want || tk.quoted || (k > 0 && tk.qualified) {
			return false
		}
	}
	return true
}

func isNamePart(tok token) bool {
	return tok.quoted || isWordToken(tok)
}

func isWordToken(tok token) bool {
	if tok.quoted {
		return false
	}
	for _, r := range tok.text {
		return isWordRune(r)
	}
	return false
}
