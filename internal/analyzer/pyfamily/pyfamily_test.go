package pyfamily

import (
	"context"
	"testing"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, path, content string) []domain.Issue {
	t.Helper()
	a := New()
	issues, err := a.AnalyzeFile(context.Background(), path, []byte(content), nil, nil)
	require.NoError(t, err)
	return issues
}

func TestAnalyzeFile_MaintenanceComment(t *testing.T) {
	issues := analyze(t, "app.py", "# TODO: fix this later\n")
	require.Len(t, issues, 1)
	assert.Equal(t, "maintenance", issues[0].IssueType)
	assert.Equal(t, domain.SeverityMedium, issues[0].Severity)
}

func TestAnalyzeFile_BareExcept(t *testing.T) {
	issues := analyze(t, "app.py", "except Exception as e:\n    pass\n")
	require.Len(t, issues, 1)
	assert.Equal(t, "exception_handling", issues[0].IssueType)
	assert.Equal(t, domain.SeverityHigh, issues[0].Severity)
}

func TestAnalyzeFile_WildcardImport(t *testing.T) {
	issues := analyze(t, "app.py", "from os import *\n")
	require.Len(t, issues, 1)
	assert.Equal(t, "code_quality", issues[0].IssueType)
}

func TestAnalyzeFile_PrintIgnoredInTestFile(t *testing.T) {
	issues := analyze(t, "test_app.py", "print('debug')\n")
	assert.Empty(t, issues)
}

func TestAnalyzeFile_PrintFlaggedInProductionFile(t *testing.T) {
	issues := analyze(t, "app.py", "print('debug')\n")
	require.Len(t, issues, 1)
	assert.Equal(t, "debugging", issues[0].IssueType)
}

func TestAnalyzeFile_HardcodedCredential(t *testing.T) {
	issues := analyze(t, "app.py", `password = "hunter2"`+"\n")
	require.Len(t, issues, 1)
	assert.Equal(t, "security", issues[0].IssueType)
	assert.Equal(t, domain.SeverityCritical, issues[0].Severity)
}

func TestAnalyzeFile_CredentialFromEnvNotFlagged(t *testing.T) {
	issues := analyze(t, "app.py", `password = os.getenv("PASSWORD")`+"\n")
	assert.Empty(t, issues)
}

func TestAnalyzeFile_SQLInjectionConcatenation(t *testing.T) {
	issues := analyze(t, "app.py", `cursor.execute("SELECT * FROM users WHERE id=" + user_id)`+"\n")
	require.Len(t, issues, 1)
	assert.Equal(t, "security", issues[0].IssueType)
}

func TestAnalyzeFile_OpenWithoutTryIsFlagged(t *testing.T) {
	issues := analyze(t, "app.py", "f = open('data.txt')\n")
	require.Len(t, issues, 1)
	assert.Equal(t, "exception_handling", issues[0].IssueType)
}

func TestAnalyzeFile_OpenInsideTryIsNotFlagged(t *testing.T) {
	issues := analyze(t, "app.py", "try:\n    f = open('data.txt')\nexcept IOError:\n    pass\n")
	for _, iss := range issues {
		assert.NotEqual(t, "file open without enclosing error handling", iss.Description)
	}
}
