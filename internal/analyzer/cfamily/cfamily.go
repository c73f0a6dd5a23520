// Package cfamily implements the systems-language (C/C++-family) analyzer,
// grounded on original_source's cognitive/analyzers/cpp_analyzer.py: AI
// mistake-pattern detection, include-graph analysis, and memory/security/
// performance heuristics. Brace balance uses tree-sitter rather than a
// naive rune count so braces inside string and comment literals don't
// produce false imbalances.
package cfamily

import (
	"context"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/analyzer"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
)

// Analyzer implements analyzer.Analyzer for C/C++ source.
type Analyzer struct {
	parser *sitter.Parser
}

// New returns a ready C/C++-family analyzer.
func New() *Analyzer {
	p := sitter.NewParser()
	p.SetLanguage(cpp.GetLanguage())
	return &Analyzer{parser: p}
}

func (*Analyzer) LanguageName() string { return "cpp" }
func (*Analyzer) FileExtensions() []string {
	return []string{".cpp", ".hpp", ".h", ".c", ".cc", ".cxx", ".hxx"}
}
func (*Analyzer) SiblingLanguages() []string { return []string{"c", "rust", "go"} }

type simplePattern struct {
	issueType   string
	re          *regexp.Regexp
	severity    domain.Severity
	description string
	suggestion  string
}

var aiPatterns = []simplePattern{
	{"cpp_incorrect_include_paths", regexp.MustCompile(`"\.\./\.\./\.\./[^"]*"`), domain.SeverityHigh,
		"AI creates incorrect relative include paths due to lack of project structure context", ""},
	{"cpp_const_duplication", regexp.MustCompile(`\bconst\s+const\b`), domain.SeverityMedium,
		"duplicated const keyword", ""},
	{"cpp_static_duplication", regexp.MustCompile(`\bstatic\s+static\b`), domain.SeverityMedium,
		"duplicated static keyword", ""},
	{"cpp_platform_specific_includes", regexp.MustCompile(`#include\s+<OpenGL/gl3\.h>`), domain.SeverityMedium,
		"platform-specific include without a guard", ""},
	{"cpp_namespace_pollution", regexp.MustCompile(`using\s+namespace\s+std\s*;\s*namespace`), domain.SeverityMedium,
		"using-declaration placed in the wrong scope", ""},
	{"cpp_excessive_namespace_nesting", regexp.MustCompile(`namespace\s+\w+\s*\{\s*namespace\s+\w+\s*\{\s*namespace\s+\w+\s*\{`), domain.SeverityMedium,
		"excessive namespace nesting detected; consider flattening", ""},
}

var securityPatterns = []simplePattern{
	{"cpp_security_buffer_overflow_risk", regexp.MustCompile(`\b(strcpy|strcat|sprintf|gets)\s*\(`), domain.SeverityHigh,
		"unsafe C string function can cause a buffer overflow", "use strcpy_s/strcat_s/snprintf or std::string"},
	{"cpp_security_unsafe_cast", regexp.MustCompile(`\([\w\s\*]+\)\s*\w+`), domain.SeverityMedium,
		"C-style cast detected, may be unsafe", "use static_cast/dynamic_cast/const_cast/reinterpret_cast"},
}

var performancePatterns = []simplePattern{
	{"cpp_performance_inefficient_string_concat", regexp.MustCompile(`std::string\s+\w+\s*=\s*[^;]*\+[^;]*\+`), domain.SeverityMedium,
		"inefficient string concatenation with multiple + operators", "use std::stringstream or reserve()+= "},
	{"cpp_performance_pass_by_value_large", regexp.MustCompile(`void\s+\w+\s*\(\s*std::(?:vector|string|map|set)\s+\w+\s*\)`), domain.SeverityMedium,
		"passing a large object by value instead of const reference", "pass by const reference"},
	{"cpp_performance_iostream_sync", regexp.MustCompile(`std::endl`), domain.SeverityLow,
		"std::endl flushes the buffer unnecessarily", "use '\\n' instead of std::endl"},
}

var symbolToHeader = []struct {
	symbol *regexp.Regexp
	header string
}{
	{regexp.MustCompile(`\bstd::(cout|cin|endl)\b`), "iostream"},
	{regexp.MustCompile(`\bstd::string\b`), "string"},
	{regexp.MustCompile(`\bstd::vector\b`), "vector"},
	{regexp.MustCompile(`\bstd::(map|multimap)\b`), "map"},
	{regexp.MustCompile(`\bstd::(set|multiset)\b`), "set"},
	{regexp.MustCompile(`\bstd::(shared_ptr|unique_ptr|weak_ptr)\b`), "memory"},
	{regexp.MustCompile(`\bstd::(mutex|lock_guard)\b`), "mutex"},
	{regexp.MustCompile(`\bstd::(sort|find)\b`), "algorithm"},
	{regexp.MustCompile(`\b(malloc|free|calloc|realloc)\b`), "cstdlib"},
	{regexp.MustCompile(`\b(strcpy|strlen|strcmp|strcat)\b`), "cstring"},
	{regexp.MustCompile(`\bassert\b`), "cassert"},
}

var includePattern = regexp.MustCompile(`#include\s+([<"][^>"]*[>"])`)
var includeHeaderPattern = regexp.MustCompile(`#include\s+[<"]([^>"]*)[>"]`)
var excessiveRelativePattern = regexp.MustCompile(`#include\s+"(?:\.\./){3,}[^"]*"`)
var windowsPathPattern = regexp.MustCompile(`#include\s+"[^"]*\\[^"]*"`)
var includeCppFilePattern = regexp.MustCompile(`#include\s+<[^>]*\.cpp>`)

func (a *Analyzer) AnalyzeFile(ctx context.Context, path string, content []byte, local, global analyzer.Memory) ([]domain.Issue, error) {
	var issues []domain.Issue
	src := string(content)

	issues = append(issues, matchPatterns(path, src, aiPatterns)...)
	issues = append(issues, matchPatterns(path, src, securityPatterns)...)
	issues = append(issues, matchPatterns(path, src, performancePatterns)...)
	issues = append(issues, a.braceBalance(ctx, path, content)...)
	issues = append(issues, includeIssues(path, src)...)
	issues = append(issues, missingIncludes(path, src)...)

	return issues, nil
}

func matchPatterns(path, content string, patterns []simplePattern) []domain.Issue {
	var issues []domain.Issue
	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(content, -1) {
			line := strings.Count(content[:loc[0]], "\n") + 1
			issues = append(issues, issueWithSuggestion(path, line, p.issueType, p.severity, p.description, p.suggestion))
		}
	}
	return issues
}

// braceBalance parses with tree-sitter's C++ grammar and flags the file
// when the parser had to synthesize ERROR nodes, which is what an
// unbalanced or otherwise malformed brace structure looks like to the
// grammar (more reliable than counting '{'/'}' runes, since those also
// appear inside string and comment literals).
func (a *Analyzer) braceBalance(ctx context.Context, path string, content []byte) []domain.Issue {
	tree, err := a.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}

	var errLine int
	var found bool
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found {
			return
		}
		if n.IsError() || n.IsMissing() {
			errLine = int(n.StartPoint().Row) + 1
			found = true
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)

	return []domain.Issue{issueWithSuggestion(path, errLine, "cpp_brace_imbalance", domain.SeverityHigh,
		"parser encountered a syntax error, commonly an unbalanced brace structure", "")}
}

func includeIssues(path, content string) []domain.Issue {
	var issues []domain.Issue

	seen := make(map[string]bool)
	var systemLines, localLines []int
	for _, m := range includePattern.FindAllStringSubmatchIndex(content, -1) {
		header := content[m[2]:m[3]]
		line := strings.Count(content[:m[0]], "\n") + 1
		if seen[header] {
			issues = append(issues, issueWithSuggestion(path, line, "cpp_duplicate_include", domain.SeverityLow,
				"duplicate include: "+header, "remove the duplicate"))
		}
		seen[header] = true
		if strings.HasPrefix(header, "<") {
			systemLines = append(systemLines, line)
		} else {
			localLines = append(localLines, line)
		}
	}

	if len(systemLines) > 0 && len(localLines) > 0 {
		firstLocal := minInt(localLines)
		lastSystem := maxInt(systemLines)
		if firstLocal < lastSystem {
			issues = append(issues, issueWithSuggestion(path, firstLocal, "cpp_include_order", domain.SeverityLow,
				"local includes should come after system includes", "reorganize: system headers first, then local headers"))
		}
	}

	for _, m := range excessiveRelativePattern.FindAllStringIndex(content, -1) {
		line := strings.Count(content[:m[0]], "\n") + 1
		issues = append(issues, issueWithSuggestion(path, line, "cpp_incorrect_include_path", domain.SeverityMedium,
			"excessive relative path depth (../../../...)", "use an absolute path from the project root"))
	}
	for _, m := range windowsPathPattern.FindAllStringIndex(content, -1) {
		line := strings.Count(content[:m[0]], "\n") + 1
		issues = append(issues, issueWithSuggestion(path, line, "cpp_incorrect_include_path", domain.SeverityMedium,
			"Windows-style path separator in include", "use forward slashes for cross-platform compatibility"))
	}
	for _, m := range includeCppFilePattern.FindAllStringIndex(content, -1) {
		line := strings.Count(content[:m[0]], "\n") + 1
		issues = append(issues, issueWithSuggestion(path, line, "cpp_incorrect_include_path", domain.SeverityMedium,
			"including a .cpp file instead of a header", "include the corresponding .h/.hpp file instead"))
	}

	return issues
}

func missingIncludes(path, content string) []domain.Issue {
	current := make(map[string]bool)
	for _, m := range includeHeaderPattern.FindAllStringSubmatch(content, -1) {
		current[strings.TrimSuffix(m[1], ".h")] = true
	}

	var issues []domain.Issue
	for _, s := range symbolToHeader {
		if !s.symbol.MatchString(content) {
			continue
		}
		if current[s.header] {
			continue
		}
		issues = append(issues, issueWithSuggestion(path, 1, "cpp_missing_include", domain.SeverityMedium,
			"missing include for <"+s.header+"> (used symbols detected)", "add: #include <"+s.header+">"))
	}
	return issues
}

func issueWithSuggestion(path string, line int, issueType string, severity domain.Severity, description, suggestion string) domain.Issue {
	l := line
	desc := description
	if suggestion != "" {
		desc = description + " (" + suggestion + ")"
	}
	return domain.Issue{
		FilePath:    path,
		Line:        &l,
		IssueType:   issueType,
		Severity:    severity,
		Description: desc,
		Suggestion:  suggestion,
	}
}

func minInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
