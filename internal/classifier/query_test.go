package classifier

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
)

func TestClassifyQuery_AllowsReads(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"count customers", "MATCH (c:Customer) RETURN count(c) AS total"},
		{"keyword inside string literal", "MATCH (n) WHERE n.note = 'delete me' RETURN n"},
		{"keyword inside double quotes", `MATCH (n) WHERE n.note = "SET x = 1; CREATE (m)" RETURN n`},
		{"escaped quote inside literal", `MATCH (n) WHERE n.note = 'it\'s a DELETE' RETURN n`},
		{"keywords as label and property", "MATCH (n:Delete) RETURN n.set, n.create"},
		{"keyword as relationship type", "MATCH (a)-[:CREATE]->(b) RETURN a, b"},
		{"keyword as parameter", "MATCH (n) WHERE n.status = $delete RETURN n"},
		{"backtick identifier", "MATCH (n) RETURN n.`delete` AS x"},
		{"allowlisted procedure", "CALL db.info() YIELD name RETURN name"},
		{"allowlisted dbms procedure", "CALL dbms.components() YIELD versions RETURN versions"},
		{"read subquery", "CALL { MATCH (n) RETURN n } RETURN count(*)"},
		{"apoc read function", "MATCH (p:Product) RETURN apoc.text.join([p.name, p.sku], ',') AS s"},
		{"comment mentioning delete", "// delete nothing, just list\nMATCH (c:Customer) RETURN c LIMIT 5"},
		{"block comment mentioning merge", "MATCH (c) /* MERGE would be bad */ RETURN c"},
		{"unwind", "UNWIND [1, 2, 3] AS x RETURN x"},
		{"explain", "EXPLAIN MATCH (n) RETURN n"},
		{"starts with", "MATCH (n) WHERE n.name STARTS WITH 'A' RETURN n"},
		{"ten match clauses", strings.Repeat("MATCH (a) ", 10) + "RETURN a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ClassifyQuery(tt.query)
			assert.True(t, v.Allowed, "expected allow, got %+v", v)
			assert.Empty(t, v.BlockedReason)
		})
	}
}

func TestClassifyQuery_BlocksWrites(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		category Category
		matched  string
		reason   string
	}{
		{"detach delete", "MATCH (n) DETACH DELETE n", CategoryDelete, "detach delete", "DETACH DELETE"},
		{"delete", "MATCH (n) DELETE n", CategoryDelete, "delete", "DELETE clause"},
		{"create", "CREATE (n:Person {name: 'x'})", CategoryCreate, "create", "CREATE clause"},
		{"merge", "MERGE (n:Person {id: 1})", CategoryUpdate, "merge", "MERGE clause"},
		{"set", "MATCH (n) SET n.x = 1", CategoryUpdate, "set", "SET clause"},
		{"remove", "MATCH (n) REMOVE n:Label", CategoryUpdate, "remove", "REMOVE clause"},
		{"foreach", "MATCH p = (a)-->(b) FOREACH (x IN nodes(p) | x)", CategoryUpdate, "foreach", "FOREACH"},
		{"load csv", "LOAD CSV FROM 'file:///x.csv' AS row RETURN row", CategoryCreate, "load csv", "LOAD CSV"},
		{"drop index", "DROP INDEX person_name", CategoryDelete, "drop", "DROP"},
		{"show", "SHOW DATABASES", CategorySchema, "show", "SHOW"},
		{"grant", "GRANT ROLE admin TO bob", CategoryAdmin, "grant", "GRANT"},
		{"use", "USE system MATCH (n) RETURN n", CategoryAdmin, "use", "USE"},
		{"write inside subquery", "MATCH (n) CALL { WITH n DELETE n } RETURN count(*)", CategoryDelete, "delete", "DELETE"},
		{"write inside scoped subquery", "MATCH (n) CALL (n) { SET n.x = 1 } RETURN n", CategoryUpdate, "set", "SET"},
		{"mutating procedure", "CALL apoc.create.node(['X'], {})", CategoryProcedure, "apoc.create.node", "modify the database"},
		{"dbms admin procedure", "CALL dbms.security.createUser('x', 'y', false)", CategoryProcedure, "dbms.security.createuser", "modify the database"},
		{"dynamic cypher procedure", "CALL apoc.cypher.doIt('CREATE (n)', {})", CategoryProcedure, "apoc.cypher.doit", "dynamically built"},
		{"dynamic cypher function", "RETURN apoc.cypher.runFirstColumnSingle('MATCH (n) RETURN n', {})", CategoryProcedure, "apoc.cypher.runfirstcolumnsingle", "dynamically built"},
		{"schema procedure", "CALL db.labels() YIELD label RETURN label", CategorySchema, "db.labels", "schema"},
		{"schema visualization", "CALL db.schema.visualization()", CategorySchema, "db.schema.visualization", "schema"},
		{"unknown procedure", "CALL custom.cleanup()", CategoryProcedure, "custom.cleanup", "unrecognized procedure"},
		{"quoted procedure name", "CALL `apoc`.`create`.node(['X'], {})", CategoryProcedure, "apoc.create.node", "modify the database"},
		{"quoted namespace on dynamic function", "RETURN `apoc`.cypher.runFirstColumnSingle('MATCH (n) DETACH DELETE n RETURN 1', {})", CategoryProcedure, "apoc.cypher.runfirstcolumnsingle", "dynamically built"},
		{"fully quoted dynamic function", "RETURN `apoc`.`cypher`.`runFirstColumnSingle`('MATCH (n) DETACH DELETE n RETURN 1', {})", CategoryProcedure, "apoc.cypher.runfirstcolumnsingle", "dynamically built"},
		{"quoted unknown function", "RETURN `my.lib`.go('x')", CategoryProcedure, "my_lib.go", "quoted name"},
		{"quoted allowlisted procedure", "CALL `apoc`.text.join(['a'], ',') YIELD value RETURN value", CategoryProcedure, "apoc.text.join", "quoted name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ClassifyQuery(tt.query)
			assert.False(t, v.Allowed)
			assert.Equal(t, tt.category, v.Category)
			assert.Equal(t, tt.matched, v.MatchedPattern)
			assert.Contains(t, v.BlockedReason, tt.reason)
			assert.NotEmpty(t, v.Hint)
		})
	}
}

func TestClassifyQuery_DeleteReasonIsActionable(t *testing.T) {
	v := ClassifyQuery("MATCH (n) DETACH DELETE n")
	assert.False(t, v.Allowed)
	assert.Contains(t, strings.ToLower(v.BlockedReason), "delete")
	assert.Contains(t, v.BlockedReason, "rephrase without requesting data modification")
	assert.Equal(t, DefaultTable().Hint(CategoryDelete), v.Hint)
}

func TestClassifyQuery_Unrecognized(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"empty", ""},
		{"whitespace", "  \n\t "},
		{"only a comment", "/* nothing here */"},
		{"only a line comment", "// nothing"},
		{"prose", "please list the customers"},
		{"unterminated string", "MATCH (n) WHERE n.name = 'open RETURN n"},
		{"unterminated comment", "MATCH (n) RETURN n /* open"},
		{"unterminated backtick", "MATCH (n) RETURN n.`open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ClassifyQuery(tt.query)
			assert.False(t, v.Allowed)
			assert.Equal(t, reasonUnrecognized, v.BlockedReason)
			assert.Equal(t, CategoryUnrecognized, v.Category)
		})
	}
}

func TestClassifyQuery_TooManyMatches(t *testing.T) {
	v := ClassifyQuery(strings.Repeat("MATCH (a) ", 11) + "RETURN a")
	assert.False(t, v.Allowed)
	assert.Equal(t, CategoryComplexity, v.Category)
	assert.Contains(t, v.BlockedReason, "11 MATCH clauses")
}

// Clause keywords are matched wherever they appear as bare words, so an alias
// that spells one is refused. Quoting the alias makes it an identifier.
func TestClassifyQuery_ClauseWordAliases(t *testing.T) {
	for _, q := range []string{
		"MATCH (n) RETURN count(n) AS set",
		"MATCH (n) RETURN n.name AS show",
	} {
		v := ClassifyQuery(q)
		assert.False(t, v.Allowed, q)
	}
	for _, q := range []string{
		"MATCH (n) RETURN count(n) AS `set`",
		"MATCH (n) RETURN n.name AS `show`",
	} {
		v := ClassifyQuery(q)
		assert.True(t, v.Allowed, "%s: %s", q, v.BlockedReason)
	}
}

// The obfuscation grid: every write construct stays blocked under case
// changes, inserted whitespace, comments and comment splicing.
func TestClassifyQuery_ObfuscationGrid(t *testing.T) {
	writes := []string{
		"CREATE (m:X)",
		"MERGE (m:X {id: 1})",
		"SET n.flag = true",
		"DELETE n",
		"DETACH DELETE n",
		"REMOVE n.flag",
		"CALL apoc.create.node(['X'], {})",
		"CALL apoc.refactor.mergeNodes([n, n])",
		"DROP CONSTRAINT c",
		"CALL `apoc`.`create`.node(['X'], {})",
		"WITH `apoc`.cypher.runFirstColumnSingle('MATCH (m) DETACH DELETE m RETURN 1', {}) AS x",
	}
	variants := map[string]func(string) string{
		"upper":            strings.ToUpper,
		"lower":            strings.ToLower,
		"alternating case": alternateCase,
		"extra whitespace": func(s string) string { return strings.ReplaceAll(s, " ", " \n\t  ") },
		"leading comment":  func(s string) string { return "/* read only */ " + s },
		"line comment":     func(s string) string { return "// harmless\n" + s },
		"spliced comment":  spliceComment,
		"spliced space":    func(s string) string { return strings.Replace(s, " ", "/* */ ", 1) },
		"inside subquery":  func(s string) string { return "CALL { WITH n " + s + " }" },
	}

	for _, w := range writes {
		for name, fn := range variants {
			query := "MATCH (n) " + fn(w) + " RETURN n"
			t.Run(name+"/"+w, func(t *testing.T) {
				v := ClassifyQuery(query)
				assert.False(t, v.Allowed, "query %q slipped through", query)
				assert.NotEmpty(t, v.BlockedReason)
			})
		}
	}
}

func alternateCase(s string) string {
	rs := []rune(s)
	for i, r := range rs {
		if i%2 == 0 {
			rs[i] = unicode.ToUpper(r)
		} else {
			rs[i] = unicode.ToLower(r)
		}
	}
	return string(rs)
}

// spliceComment puts an empty block comment inside the first keyword.
func spliceComment(s string) string {
	if len(s) < 3 {
		return s
	}
	return s[:2] + "/**/" + s[2:]
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		repl  string
		want  string
		valid bool
	}{
		{"case and whitespace", "MATCH   (n)\n\tRETURN n", "", "match (n) return n", true},
		{"strings masked", "RETURN 'Delete' AS x", "", "return '' as x", true},
		{"comment spliced", "DE/**/LETE", "", "delete", true},
		{"comment separated", "DE/**/LETE", " ", "de lete", true},
		{"url in string is not a comment", "RETURN 'http://x' AS u", "", "return '' as u", true},
		{"doubled backtick", "RETURN 1 AS `a``b`", "", "return 1 as `a__b`", true},
		{"quoted identifier lowered", "RETURN `APOC`.Cypher", "", "return `apoc`.cypher", true},
		{"open string", "RETURN 'x", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalize(tt.in, tt.repl)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
