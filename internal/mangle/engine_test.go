package mangle

import (
	"context"
	"testing"
)

func newTestEngine(t *testing.T, schema string) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if err := engine.LoadSchemaString(schema); err != nil {
		t.Fatalf("LoadSchemaString() error = %v", err)
	}
	return engine
}

const whitelistSchema = `
Decl whitelisted_issue_type(IssueType)
  descr [mode(+)].
Decl hard_disqualified_issue_type(IssueType)
  descr [mode(+)].

whitelisted_issue_type("whitespace_cleanup").
whitelisted_issue_type("typo_corrections").

hard_disqualified_issue_type("security").
hard_disqualified_issue_type("performance").
`

func TestQuery_MembershipMatches(t *testing.T) {
	engine := newTestEngine(t, whitelistSchema)

	result, err := engine.Query(context.Background(), `whitelisted_issue_type("typo_corrections")`)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(result.Bindings) != 1 {
		t.Fatalf("expected one binding for a known whitelisted type, got %d", len(result.Bindings))
	}
}

func TestQuery_MembershipMisses(t *testing.T) {
	engine := newTestEngine(t, whitelistSchema)

	result, err := engine.Query(context.Background(), `whitelisted_issue_type("logic")`)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(result.Bindings) != 0 {
		t.Fatalf("expected no bindings for an undeclared fact, got %d", len(result.Bindings))
	}
}

func TestQuery_DisqualifiedTypesAreDistinctFromWhitelisted(t *testing.T) {
	engine := newTestEngine(t, whitelistSchema)

	for _, tt := range []struct {
		predicate string
		value     string
		want      bool
	}{
		{"whitelisted_issue_type", "whitespace_cleanup", true},
		{"hard_disqualified_issue_type", "whitespace_cleanup", false},
		{"hard_disqualified_issue_type", "security", true},
		{"whitelisted_issue_type", "security", false},
	} {
		result, err := engine.Query(context.Background(), tt.predicate+`("`+tt.value+`")`)
		if err != nil {
			t.Fatalf("Query(%s, %s) error = %v", tt.predicate, tt.value, err)
		}
		got := len(result.Bindings) > 0
		if got != tt.want {
			t.Errorf("%s(%q) membership = %v, want %v", tt.predicate, tt.value, got, tt.want)
		}
	}
}

func TestQuery_BeforeAnySchemaLoadedFails(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if _, err := engine.Query(context.Background(), `whitelisted_issue_type("x")`); err == nil {
		t.Fatal("expected an error querying an engine with no schema loaded")
	}
}

func TestQuery_UndeclaredPredicateFails(t *testing.T) {
	engine := newTestEngine(t, whitelistSchema)

	if _, err := engine.Query(context.Background(), `nonexistent_predicate("x")`); err == nil {
		t.Fatal("expected an error querying an undeclared predicate")
	}
}

func TestLoadSchemaString_MalformedSchemaFails(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if err := engine.LoadSchemaString("this is not valid mangle syntax ((("); err == nil {
		t.Fatal("expected LoadSchemaString to reject malformed input")
	}
}

func TestFact_StringRendersDatalogNotation(t *testing.T) {
	f := Fact{Predicate: "whitelisted_issue_type", Args: []interface{}{"typo_corrections"}}
	want := `whitelisted_issue_type("typo_corrections").`
	if got := f.String(); got != want {
		t.Errorf("Fact.String() = %q, want %q", got, want)
	}
}
