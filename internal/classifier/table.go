// File: internal/classifier/table.go
package classifier

import (
	_ "embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var embeddedPatterns []byte

// Category groups rules that share a reformulation hint.
type Category string

const (
	CategoryCreate       Category = "create"
	CategoryUpdate       Category = "update"
	CategoryDelete       Category = "delete"
	CategoryAdmin        Category = "admin"
	CategoryProcedure    Category = "procedure"
	CategorySchema       Category = "schema"
	CategoryComplexity   Category = "complexity"
	CategoryUnrecognized Category = "unrecognized"
	CategoryDefault      Category = "default"
)

// UnmarshalYAML rejects categories the classifier does not know about.
func (c *Category) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch Category(s) {
	case CategoryCreate, CategoryUpdate, CategoryDelete, CategoryAdmin, CategoryProcedure,
		CategorySchema, CategoryComplexity, CategoryUnrecognized, CategoryDefault:
		*c = Category(s)
		return nil
	default:
		return fmt.Errorf("unknown category %q", s)
	}
}

// ClauseRule matches a keyword sequence at clause position.
type ClauseRule struct {
	Name     string   `yaml:"name"`
	Category Category `yaml:"category"`
	Priority int      `yaml:"priority"`
	Tokens   []string `yaml:"tokens"`
	Reason   string   `yaml:"reason"`
}

// ProcedureRule matches procedure (and, when Anywhere is set, function) names
// against glob patterns such as "apoc.create.*".
type ProcedureRule struct {
	Name     string   `yaml:"name"`
	Category Category `yaml:"category"`
	Priority int      `yaml:"priority"`
	Anywhere bool     `yaml:"anywhere"`
	Reason   string   `yaml:"reason"`
	Names    []string `yaml:"names"`
}

// IntentRules drives the natural-language pass.
type IntentRules struct {
	Verbs               map[Category][]string `yaml:"verbs"`
	DataNouns           []string              `yaml:"data_nouns"`
	PresentationNouns   []string              `yaml:"presentation_nouns"`
	ConversationObjects []string              `yaml:"conversation_objects"`
	DropObjects         []string              `yaml:"drop_objects"`
	SafeFramings        []string              `yaml:"safe_framings"`
	MaxFillerWords      int                   `yaml:"max_filler_words"`
}

// Table is the compiled, immutable rule set shared by both passes.
type Table struct {
	MaxMatchClauses int          `yaml:"max_match_clauses"`
	ReadClauses     []string     `yaml:"read_clauses"`
	Clauses         []ClauseRule `yaml:"clauses"`
	Procedures      struct {
		ReadAllowlist []string        `yaml:"read_allowlist"`
		Blocked       []ProcedureRule `yaml:"blocked"`
	} `yaml:"procedures"`
	Hints  map[Category]string `yaml:"hints"`
	Intent IntentRules         `yaml:"intent"`

	readClauses  map[string]struct{}
	verbCategory map[string]Category
	dataNouns    map[string]struct{}
	presentation map[string]struct{}
	conversation map[string]struct{}
	dropObjects  map[string]struct{}
}

// LoadTable parses and validates a pattern table.
func LoadTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse pattern table: %w", err)
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) compile() error {
	if t.MaxMatchClauses <= 0 {
		return fmt.Errorf("max_match_clauses must be positive")
	}
	if len(t.ReadClauses) == 0 {
		return fmt.Errorf("read_clauses must not be empty")
	}
	for i, r := range t.Clauses {
		if r.Name == "" || len(r.Tokens) == 0 || r.Reason == "" {
			return fmt.Errorf("clause rule %d is incomplete", i)
		}
		for j, tok := range r.Tokens {
			t.Clauses[i].Tokens[j] = strings.ToLower(tok)
		}
	}
	for i, r := range t.Procedures.Blocked {
		if r.Name == "" || len(r.Names) == 0 || r.Reason == "" {
			return fmt.Errorf("procedure rule %d is incomplete", i)
		}
		for j, n := range r.Names {
			n = strings.ToLower(n)
			if _, err := path.Match(n, ""); err != nil {
				return fmt.Errorf("procedure rule %s: bad pattern %q: %w", r.Name, n, err)
			}
			t.Procedures.Blocked[i].Names[j] = n
		}
	}
	for i, n := range t.Procedures.ReadAllowlist {
		n = strings.ToLower(n)
		if _, err := path.Match(n, ""); err != nil {
			return fmt.Errorf("read allowlist: bad pattern %q: %w", n, err)
		}
		t.Procedures.ReadAllowlist[i] = n
	}
	if _, ok := t.Hints[CategoryDefault]; !ok {
		return fmt.Errorf("hints must define a default")
	}

	sort.SliceStable(t.Clauses, func(i, j int) bool { return t.Clauses[i].Priority > t.Clauses[j].Priority })
	sort.SliceStable(t.Procedures.Blocked, func(i, j int) bool {
		return t.Procedures.Blocked[i].Priority > t.Procedures.Blocked[j].Priority
	})

	t.readClauses = toSet(t.ReadClauses)
	t.dataNouns = toSet(t.Intent.DataNouns)
	t.presentation = toSet(t.Intent.PresentationNouns)
	t.conversation = toSet(t.Intent.ConversationObjects)
	t.dropObjects = toSet(t.Intent.DropObjects)
	t.verbCategory = make(map[string]Category)
	for cat, verbs := range t.Intent.Verbs {
		for _, v := range verbs {
			t.verbCategory[strings.ToLower(v)] = cat
		}
	}
	for i, f := range t.Intent.SafeFramings {
		t.Intent.SafeFramings[i] = strings.ToLower(f)
	}
	if t.Intent.MaxFillerWords < 0 {
		return fmt.Errorf("max_filler_words must not be negative")
	}
	return nil
}

// Hint returns the reformulation hint for a category.
func (t *Table) Hint(c Category) string {
	if h, ok := t.Hints[c]; ok {
		return h
	}
	return t.Hints[CategoryDefault]
}

func (t *Table) procedureAllowed(name string) bool {
	for _, p := range t.Procedures.ReadAllowlist {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (t *Table) blockedProcedure(name string, anywhereOnly bool) (ProcedureRule, bool) {
	for _, r := range t.Procedures.Blocked {
		if anywhereOnly && !r.Anywhere {
			continue
		}
		for _, p := range r.Names {
			if ok, _ := path.Match(p, name); ok {
				return r, true
			}
		}
	}
	return ProcedureRule{}, false
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[strings.ToLower(it)] = struct{}{}
	}
	return s
}

var defaultTable = mustLoadDefault()

func mustLoadDefault() *Table {
	t, err := LoadTable(embeddedPatterns)
	if err != nil {
		panic(fmt.Sprintf("classifier: embedded pattern table is invalid: %v", err))
	}
	return t
}

// DefaultTable returns the embedded pattern table.
func DefaultTable() *Table { return defaultTable }
