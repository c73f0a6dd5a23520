// Package pyfamily implements the Python-family line-scan analyzer,
// grounded on original_source's cognitive/analyzers/python_analyzer.py and
// base_analyzer.py: a single pass over lines classifying each against a
// fixed set of textual heuristics.
package pyfamily

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/analyzer"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
)

// Analyzer implements analyzer.Analyzer for Python source.
type Analyzer struct{}

// New returns a ready Python-family analyzer.
func New() *Analyzer { return &Analyzer{} }

func (*Analyzer) LanguageName() string     { return "python" }
func (*Analyzer) FileExtensions() []string { return []string{".py"} }
func (*Analyzer) SiblingLanguages() []string {
	return []string{"ruby", "javascript"}
}

var maintenanceKeywords = []string{"TODO", "FIXME", "XXX", "HACK", "BUG"}
var credentialNames = []string{"password", "secret", "key", "token"}
var credentialSafeHints = []string{"getenv", "environ", "config", "input"}
var sqlWords = []string{"execute(", "cursor.execute", "query"}

func (a *Analyzer) AnalyzeFile(ctx context.Context, path string, content []byte, local, global analyzer.Memory) ([]domain.Issue, error) {
	var issues []domain.Issue
	lines := strings.Split(string(content), "\n")
	isTest := isTestFile(path)

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		lineNo := i + 1

		switch {
		case containsAny(line, maintenanceKeywords):
			issues = append(issues, issue(path, lineNo, "maintenance", domain.SeverityMedium,
				"maintenance comment: "+truncate(line, 100)))

		case strings.HasPrefix(line, "except Exception as e:") || strings.Contains(line, "except Exception as e:"):
			issues = append(issues, issue(path, lineNo, "exception_handling", domain.SeverityHigh,
				"bare except clause catches all exceptions"))

		case strings.HasPrefix(line, "except:"):
			issues = append(issues, issue(path, lineNo, "exception_handling", domain.SeverityHigh,
				"bare except clause catches all exceptions"))

		case strings.Contains(line, "import *") && strings.Contains(line, "from"):
			issues = append(issues, issue(path, lineNo, "code_quality", domain.SeverityMedium,
				"wildcard import: "+line))

		case strings.HasPrefix(line, "print(") && !isTest:
			issues = append(issues, issue(path, lineNo, "debugging", domain.SeverityLow,
				"debug print statement in production code"))

		case looksLikeHardcodedCredential(line, lower):
			issues = append(issues, issue(path, lineNo, "security", domain.SeverityCritical,
				"potential hardcoded credential"))

		case containsAny(lower, sqlWords) && (strings.Contains(line, "+") || strings.Contains(line, "%")):
			issues = append(issues, issue(path, lineNo, "security", domain.SeverityCritical,
				"potential SQL injection vulnerability"))

		case strings.Contains(line, "open(") && !precededByErrorHandling(lines, i):
			issues = append(issues, issue(path, lineNo, "exception_handling", domain.SeverityMedium,
				"file open without enclosing error handling"))
		}
	}

	return issues, nil
}

func looksLikeHardcodedCredential(line, lower string) bool {
	if !containsAny(lower, credentialNames) {
		return false
	}
	if !strings.Contains(line, "=") {
		return false
	}
	if !strings.Contains(line, "'") && !strings.Contains(line, `"`) {
		return false
	}
	return !containsAny(lower, credentialSafeHints)
}

// precededByErrorHandling looks at the 5 lines before idx for a try/with/except
// that would make the open() call's failure mode already handled.
func precededByErrorHandling(lines []string, idx int) bool {
	start := idx - 5
	if start < 0 {
		start = 0
	}
	for j := start; j < idx; j++ {
		trimmed := strings.TrimSpace(lines[j])
		if strings.HasPrefix(trimmed, "try:") || strings.HasPrefix(trimmed, "with ") || strings.HasPrefix(trimmed, "except") {
			return true
		}
	}
	return false
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func isTestFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, "test_") ||
		strings.Contains(path, "/test") ||
		strings.Contains(path, "tests/") ||
		strings.HasSuffix(base, "_test.py")
}

func issue(path string, line int, issueType string, severity domain.Severity, description string) domain.Issue {
	l := line
	return domain.Issue{
		FilePath:    path,
		Line:        &l,
		IssueType:   issueType,
		Severity:    severity,
		Description: description,
	}
}
