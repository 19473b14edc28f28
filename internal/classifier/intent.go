// File: internal/classifier/intent.go
package classifier

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	clauseSplitter = regexp.MustCompile(`[.!?;,\n]+`)
	wordPattern    = regexp.MustCompile(`[\p{L}\p{N}_']+|=`)
)

// ClassifyIntent checks a natural-language request with the embedded table.
func ClassifyIntent(text string) Verdict {
	return defaultTable.ClassifyIntent(text)
}

// ClassifyIntent blocks a request only when a destructive verb is used as a
// command against stored data. Anything it cannot place (empty text, a verb
// with no recognisable object, a verb aimed at a person or a chart) is allowed:
// the generated query is still checked on its own.
func (t *Table) ClassifyIntent(text string) Verdict {
	lowered := strings.ToLower(text)
	for _, clause := range clauseSplitter.Split(lowered, -1) {
		words := wordPattern.FindAllString(clause, -1)
		for i, w := range words {
			cat, isVerb := t.verbCategory[w]
			if !isVerb {
				continue
			}
			if t.framedAsQuestion(words[:i]) {
				continue
			}
			if matched, hit := t.commandObject(w, words[i+1:]); hit {
				return block(t, cat,
					fmt.Sprintf("request asks to %s data; rephrase without requesting data modification", w),
					matched)
			}
		}
	}
	return Allow()
}

// framedAsQuestion reports whether a safe framing ("how do i", "explain")
// appears before the verb in the same clause.
func (t *Table) framedAsQuestion(before []string) bool {
	if len(before) == 0 {
		return false
	}
	prefix := " " + strings.Join(before, " ") + " "
	for _, f := range t.Intent.SafeFramings {
		if strings.Contains(prefix, " "+f+" ") {
			return true
		}
	}
	return false
}

// commandObject looks at the words after verb for the object it acts on and
// returns the matched phrase when that object is stored data.
func (t *Table) commandObject(verb string, after []string) (string, bool) {
	if len(after) == 0 {
		return "", false
	}
	if _, ok := t.conversation[after[0]]; ok {
		return "", false
	}

	switch verb {
	case "drop":
		if _, ok := t.dropObjects[after[0]]; ok {
			return verb + " " + after[0], true
		}
	case "insert":
		if after[0] == "into" {
			return "insert into", true
		}
	case "delete", "remove":
		if after[0] == "from" {
			return verb + " from", true
		}
	case "set":
		// set <property> to|= <value>; "set up" is never a write.
		if after[0] == "up" {
			return "", false
		}
		limit := t.Intent.MaxFillerWords + 1
		for k := 1; k < len(after)-1 && k <= limit; k++ {
			if after[k] == "to" || after[k] == "=" {
				if t.presentationTarget(after[:k]) {
					return "", false
				}
				return strings.Join(append([]string{verb}, after[:k+1]...), " "), true
			}
		}
	}

	limit := t.Intent.MaxFillerWords + 1
	for k := 0; k < len(after) && k < limit; k++ {
		if inSet(t.presentation, after[k]) {
			return "", false
		}
		if inSet(t.dataNouns, after[k]) {
			return strings.Join(append([]string{verb}, after[:k+1]...), " "), true
		}
	}
	return "", false
}

// presentationTarget reports whether the words naming what is being set
// point at the rendered output ("the chart title") before any stored data.
func (t *Table) presentationTarget(words []string) bool {
	for _, w := range words {
		if inSet(t.presentation, w) {
			return true
		}
		if inSet(t.dataNouns, w) {
			return false
		}
	}
	return false
}

// inSet matches w or one of its singular forms against set.
func inSet(set map[string]struct{}, w string) bool {
	for _, f := range nounForms(w) {
		if _, ok := set[f]; ok {
			return true
		}
	}
	return false
}

// nounForms returns w followed by the candidates left after stripping common
// English plural and possessive endings.
func nounForms(w string) []string {
	w = strings.TrimSuffix(w, "'s")
	w = strings.TrimSuffix(w, "'")
	forms := []string{w}
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		forms = append(forms, w[:len(w)-1])
	}
	if len(w) > 4 && strings.HasSuffix(w, "es") {
		forms = append(forms, w[:len(w)-2])
	}
	if len(w) > 4 && strings.HasSuffix(w, "ies") {
		forms = append(forms, w[:len(w)-3]+"y")
	}
	return forms
}
