// Package fixgen turns an Issue into a candidate FixProposal, dispatching
// per issue_type the same way internal/tools/registry.go's name->value map
// dispatches tool lookups — here keyed by issue type instead of tool name.
package fixgen

import (
	"strings"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
)

// Generator attempts to produce an (original, proposed) pair for one line
// of source given the full file content. Returning two empty strings means
// "no safe fix available" and the caller abstains.
type Generator func(issue domain.Issue, line string, fileContent string) (original, proposed string)

var generators = map[string]Generator{
	"exception_handling": bareExceptFix,
	"debugging":           debugPrintFix,
	"maintenance":         noAutoFix,
	"security":            evalWarningFix,
}

// Generate dispatches issue.IssueType to its generator and returns a
// FixProposal, or false if no fix applies (no generator registered, the
// generator abstained, or the proposed fix didn't change anything).
func Generate(issue domain.Issue, fileContent string) (domain.FixProposal, bool) {
	gen, ok := generators[issue.IssueType]
	if !ok {
		return domain.FixProposal{}, false
	}

	line := ""
	lineNo := 0
	if issue.Line != nil {
		lineNo = *issue.Line
		line = lineAt(fileContent, lineNo)
	}

	original, proposed := gen(issue, line, fileContent)
	if original == "" || proposed == "" || original == proposed {
		return domain.FixProposal{}, false
	}

	return domain.FixProposal{
		FilePath:       issue.FilePath,
		IssueType:      issue.IssueType,
		Severity:       issue.Severity,
		Description:    issue.Description,
		OriginalCode:   original,
		ProposedFix:    proposed,
		LineNumber:     lineNo,
		Context:        issue.Context,
		AutoApprovable: true,
	}, true
}

func lineAt(content string, lineNo int) string {
	if lineNo < 1 {
		return ""
	}
	lines := strings.Split(content, "\n")
	if lineNo > len(lines) {
		return ""
	}
	return lines[lineNo-1]
}

// bareExceptFix rewrites a bare `except:` into `except Exception as e:`, or
// injects `as e` into an `except Exception:` that's missing the binding.
func bareExceptFix(issue domain.Issue, line, fileContent string) (string, string) {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "except:":
		return line, strings.Replace(line, "except:", "except Exception as e:", 1)
	case strings.HasPrefix(trimmed, "except Exception:"):
		return line, strings.Replace(line, "except Exception:", "except Exception as e:", 1)
	default:
		return "", ""
	}
}

// debugPrintFix only proposes a fix when the file already imports a
// logger; otherwise a blanket print->logger rewrite could break files with
// no logging setup, so the generator abstains.
func debugPrintFix(issue domain.Issue, line, fileContent string) (string, string) {
	if !strings.Contains(fileContent, "import logging") {
		return "", ""
	}
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "print(") {
		return "", ""
	}
	proposed := strings.Replace(line, "print(", "logging.debug(", 1)
	return line, proposed
}

// noAutoFix never proposes a change; TODO/FIXME-style maintenance comments
// are a human decision per SPEC_FULL.md §4.5.
func noAutoFix(issue domain.Issue, line, fileContent string) (string, string) {
	return "", ""
}

// evalWarningFix never deletes the dangerous call; it only prepends a
// warning comment at the same indentation, leaving removal to a human.
func evalWarningFix(issue domain.Issue, line, fileContent string) (string, string) {
	if !strings.Contains(line, "eval(") {
		return "", ""
	}
	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	warning := indent + "# SECURITY WARNING: eval() can execute arbitrary code\n"
	return line, warning + line
}
