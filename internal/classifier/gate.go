// File: internal/classifier/gate.go
package classifier

import "maps"

// Pass names which classification produced a verdict.
type Pass string

const (
	PassIntent Pass = "intent"
	PassQuery  Pass = "query"
)

// Request is a candidate statement with its bound parameters and, when the
// caller has it, the natural-language prompt it was generated from.
type Request struct {
	Query  string
	Params map[string]any
	Prompt string
}

// ApprovedQuery is a statement that passed classification. Its fields are
// unexported so the only way to obtain a usable value is through Gate; the
// executor refuses the zero value.
type ApprovedQuery struct {
	query    string
	params   map[string]any
	approved bool
}

// Query returns the approved statement text.
func (a ApprovedQuery) Query() string { return a.query }

// Params returns a copy of the bound parameters.
func (a ApprovedQuery) Params() map[string]any { return maps.Clone(a.params) }

// Valid reports whether the value was produced by Gate.
func (a ApprovedQuery) Valid() bool { return a.approved }

// Gate runs the intent pass (when a prompt is present) and then the query
// pass. The query pass is authoritative: an intent block refuses the call
// early, but an intent allow never skips the query check.
func Gate(req Request) (ApprovedQuery, Verdict, Pass) {
	return defaultTable.Gate(req)
}

// Gate is the table-bound form of the package-level Gate.
func (t *Table) Gate(req Request) (ApprovedQuery, Verdict, Pass) {
	if req.Prompt != "" {
		if v := t.ClassifyIntent(req.Prompt); !v.Allowed {
			return ApprovedQuery{}, v, PassIntent
		}
	}
	v := t.ClassifyQuery(req.Query)
	if !v.Allowed {
		return ApprovedQuery{}, v, PassQuery
	}
	params := maps.Clone(req.Params)
	if params == nil {
		params = map[string]any{}
	}
	return ApprovedQuery{query: req.Query, params: params, approved: true}, v, PassQuery
}
