package sandbox

import (
	"regexp"
	"strings"
)

// securityViolationTokens is the substring list from §4.9's runtime-output
// scan, shared between strict and whole-word modes.
var securityViolationTokens = []string{
	"backdoor", "admin", "password", "eval(", "exec(",
	"os.system", "subprocess", "rm -rf", "delete",
}

var wholeWordPattern = buildWholeWordPattern()

// buildWholeWordPattern compiles one alternation of all tokens, anchored
// at the start of a line (ignoring leading whitespace) and word-bounded,
// per the Open Question resolution: the reference's plain substring match
// over-fires on legitimate identifiers like "password_hash", so the
// default mode only flags a token appearing at the start of an output
// line.
func buildWholeWordPattern() *regexp.Regexp {
	var quoted []string
	for _, tok := range securityViolationTokens {
		quoted = append(quoted, regexp.QuoteMeta(tok))
	}
	return regexp.MustCompile(`(?im)^\s*(` + strings.Join(quoted, "|") + `)\b`)
}

// scanForViolations returns every matched security-violation token found
// in output. strictSubstring reproduces the reference implementation's
// exact (more trigger-happy) plain-substring behavior; the default
// (false) uses the whole-word/line-start match from buildWholeWordPattern.
func scanForViolations(output string, strictSubstring bool) []string {
	if strictSubstring {
		return scanSubstring(output)
	}
	return scanWholeWord(output)
}

func scanSubstring(output string) []string {
	lower := strings.ToLower(output)
	var found []string
	for _, tok := range securityViolationTokens {
		if strings.Contains(lower, tok) {
			found = append(found, "suspicious pattern in output: "+tok)
		}
	}
	return found
}

func scanWholeWord(output string) []string {
	var found []string
	for _, line := range strings.Split(output, "\n") {
		matches := wholeWordPattern.FindAllStringSubmatch(line, -1)
		for _, m := range matches {
			found = append(found, "suspicious pattern at line start: "+strings.ToLower(m[1]))
		}
	}
	return found
}

// containsBlockedMessage detects the restrictions preamble's own
// PermissionError text surfacing in captured output, per §4.9's "also
// trigger on observed 'Network access blocked' or 'Command ... blocked'
// messages".
func containsBlockedMessage(output string) bool {
	if strings.Contains(output, "Network access blocked") {
		return true
	}
	idx := strings.Index(output, "Command")
	return idx >= 0 && strings.Contains(output[idx:], "blocked")
}
