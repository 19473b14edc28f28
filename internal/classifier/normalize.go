package classifier

import (
	"strings"
	"unicode"
)

// stringPlaceholder replaces every string literal. It cannot be tokenized
// into a keyword.
const stringPlaceholder = "''"

// normalize lowers q, strips comments and masks string literals. Backtick
// identifiers keep their name, reduced to word runes, so `apoc`.cypher still
// reads as a dotted name. Comments are replaced with commentRepl, which lets
// the caller check both the spliced ("DE/**/LETE" -> "delete") and the
// separated rendering. ok is false when a literal or block comment is left
// open.
func normalize(q, commentRepl string) (out string, ok bool) {
	var b strings.Builder
	b.Grow(len(q))
	rs := []rune(q)
	n := len(rs)

	for i := 0; i < n; i++ {
		r := rs[i]
		switch {
		case r == '\'' || r == '"':
			end, closed := skipQuoted(rs, i, r, true)
			if !closed {
				return "", false
			}
			b.WriteString(" " + stringPlaceholder + " ")
			i = end
		case r == '`':
			end, closed := skipQuoted(rs, i, '`', false)
			if !closed {
				return "", false
			}
			b.WriteString("`" + identName(rs[i+1:end]) + "`")
			i = end
		case r == '/' && i+1 < n && rs[i+1] == '/':
			for i < n && rs[i] != '\n' {
				i++
			}
			b.WriteString(commentRepl)
			b.WriteByte('\n')
		case r == '/' && i+1 < n && rs[i+1] == '*':
			end := -1
			for j := i + 2; j+1 < n; j++ {
				if rs[j] == '*' && rs[j+1] == '/' {
					end = j + 1
					break
				}
			}
			if end < 0 {
				return "", false
			}
			b.WriteString(commentRepl)
			i = end
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return strings.Join(strings.Fields(b.String()), " "), true
}

// skipQuoted returns the index of the rune closing the literal opened at
// start. Backslash escapes apply to string literals; backtick identifiers
// escape a backtick by doubling it.
func skipQuoted(rs []rune, start int, quote rune, backslash bool) (int, bool) {
	for j := start + 1; j < len(rs); j++ {
		switch {
		case backslash && rs[j] == '\\':
			j++
		case rs[j] == quote:
			if !backslash && j+1 < len(rs) && rs[j+1] == quote {
				j++
				continue
			}
			return j, true
		}
	}
	return 0, false
}

// identName lowers a backtick identifier body and replaces every rune that
// is not a word rune, including escaped backticks, with '_'.
func identName(body []rune) string {
	out := make([]rune, len(body))
	for k, r := range body {
		r = unicode.ToLower(r)
		if !isWordRune(r) {
			r = '_'
		}
		out[k] = r
	}
	return string(out)
}

type token struct {
	text string
	// qualified is set when the token follows '.', ':' or '$', i.e. it names a
	// property, label, relationship type or parameter rather than a clause.
	qualified bool
	// quoted marks a backtick identifier. It can be part of a dotted name but
	// never a keyword.
	quoted bool
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// tokenize splits normalized text into words and single-rune punctuation.
func tokenize(s string) []token {
	var toks []token
	rs := []rune(s)
	prevPunct := rune(0)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '`':
			j := i + 1
			for j < len(rs) && rs[j] != '`' {
				j++
			}
			toks = append(toks, token{
				text:      string(rs[i+1 : j]),
				qualified: prevPunct == '.' || prevPunct == ':' || prevPunct == '$',
				quoted:    true,
			})
			prevPunct = 0
			i = j + 1
		case isWordRune(r):
			j := i
			for j < len(rs) && isWordRune(rs[j]) {
				j++
			}
			toks = append(toks, token{
				text:      string(rs[i:j]),
				qualified: prevPunct == '.' || prevPunct == ':' || prevPunct == '$',
			})
			prevPunct = 0
			i = j
		default:
			toks = append(toks, token{text: string(r)})
			prevPunct = r
			i++
		}
	}
	return toks
}
