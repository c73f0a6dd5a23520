// Package emergency implements the last content-only safety check (C9)
// applied to the full proposed file content just before disk write, after
// interactive approval has already signed off on the diff. A proposal can
// pass approval on the strength of its OriginalCode/ProposedFix pair alone
// and still corrupt the surrounding file when applied; this package scans
// the whole pre- and post-content, not just the proposed lines, grounded on
// the reference CLI's validate_fix_application call (mesopredator_cli.py)
// which runs after approval and before the file write, logging any block to
// an append-only JSON-lines file via internal/logging/audit.go.
package emergency

import (
	"strings"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/safety"
)

// novelCallTokens are dangerous call forms checked independently of the
// shared safety.dangerousPatterns list, since §4.8 names them explicitly
// and some (os.system() with the exact open-paren) are more specific than
// that list's bare substring entries.
var novelCallTokens = []string{
	"os.system(", "subprocess.", "exec(", "eval(",
}

// urlSchemes flags a newly introduced network destination.
var urlSchemes = []string{"http://", "https://", "ftp://", "ws://", "wss://"}

// privilegeAttributes are top-level mutation targets that must never be
// newly introduced by a fix, regardless of the issue type being fixed.
var privilegeAttributes = []string{
	"role", "permissions", "__class__",
}

// Log is the narrow audit-logging contract this package needs.
type Log interface {
	Log(event logging.AuditEvent) error
}

// Validator runs the C9 content-diff scan.
type Validator struct {
	audit Log
}

// New returns a Validator that writes blocks through audit. audit may be
// nil, in which case blocks are still detected but not recorded.
func New(audit Log) *Validator {
	return &Validator{audit: audit}
}

// Validate compares originalContent (the file before the fix) against
// newContent (the file as it would be written) and returns whether the
// fix is safe to apply. On safe == false, a structured block record is
// written to the audit log (when one was configured) before returning.
func (v *Validator) Validate(p domain.FixProposal, originalContent, newContent string) (safe bool, reason string) {
	if pattern, newlyIntroduced := newDangerousToken(originalContent, newContent); newlyIntroduced {
		return v.block(p, "introduced new dangerous pattern: "+pattern)
	}

	if token, found := newNovelCall(originalContent, newContent); found {
		return v.block(p, "introduced a novel dangerous call: "+token)
	}

	if scheme, found := newURLScheme(originalContent, newContent); found {
		return v.block(p, "introduced a new network destination scheme: "+scheme)
	}

	if lit, found := newCredentialLiteral(originalContent, newContent); found {
		return v.block(p, "introduced a credential-like string literal: "+lit)
	}

	if attr, found := newPrivilegeMutation(originalContent, newContent); found {
		return v.block(p, "introduced a top-level mutation of a privileged attribute: "+attr)
	}

	return true, "emergency validation passed"
}

func (v *Validator) block(p domain.FixProposal, reason string) (bool, string) {
	logging.Approval("emergency block for %s:%d: %s", p.FilePath, p.LineNumber, reason)
	if v.audit != nil {
		_ = v.audit.Log(logging.AuditEvent{
			Action:   "EMERGENCY_APPLICATION_BLOCK",
			FilePath: p.FilePath,
			FixType:  p.IssueType,
			Reason:   reason,
			Extra: map[string]any{
				"proposed_fix": p.ProposedFix,
			},
		})
	}
	return false, reason
}

// newDangerousToken reuses the shared safety dangerous-pattern list but
// only flags a match that is new in newContent, not one already present
// in the original file (an existing `import os` elsewhere in the file
// must not block an unrelated fix).
func newDangerousToken(original, updated string) (string, bool) {
	for _, tok := range safety.DangerousPatterns() {
		if strings.Contains(updated, tok) && !strings.Contains(original, tok) {
			return tok, true
		}
	}
	return "", false
}

func newNovelCall(original, updated string) (string, bool) {
	return firstNewToken(original, updated, novelCallTokens)
}

func newURLScheme(original, updated string) (string, bool) {
	return firstNewToken(original, updated, urlSchemes)
}

func firstNewToken(original, updated string, tokens []string) (string, bool) {
	for _, tok := range tokens {
		if strings.Contains(updated, tok) && !strings.Contains(original, tok) {
			return tok, true
		}
	}
	return "", false
}

// newCredentialLiteral looks for a newly introduced assignment whose
// right-hand side is a quoted literal and whose left-hand side names a
// credential-shaped variable.
func newCredentialLiteral(original, updated string) (string, bool) {
	for _, line := range diffLines(original, updated) {
		if lit, ok := credentialAssignment(line); ok {
			return lit, true
		}
	}
	return "", false
}

func credentialAssignment(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	eq := strings.Index(trimmed, "=")
	if eq <= 0 || eq == len(trimmed)-1 {
		return "", false
	}
	lhs := strings.ToLower(strings.TrimSpace(trimmed[:eq]))
	rhs := strings.TrimSpace(trimmed[eq+1:])
	if !looksLikeCredentialName(lhs) {
		return "", false
	}
	if isQuotedLiteral(rhs) {
		return trimmed, true
	}
	return "", false
}

func looksLikeCredentialName(name string) bool {
	for _, kw := range []string{"password", "secret", "api_key", "apikey", "token", "credential"} {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func isQuotedLiteral(s string) bool {
	if len(s) < 2 {
		return false
	}
	quote := s[0]
	if quote != '"' && quote != '\'' {
		return false
	}
	return strings.HasSuffix(s, string(quote))
}

// newPrivilegeMutation looks for a newly introduced top-level assignment
// to one of privilegeAttributes, e.g. `self.role = "admin"` or
// `user.__class__ = Admin`. "Top-level" here means it appears as an
// attribute-style assignment (`<name>.<attr> =` or `<attr> =`), matching
// the reference's `.role =` / `user.role =` dangerous-pattern entries but
// generalized to the other privileged attribute names §4.8 adds.
func newPrivilegeMutation(original, updated string) (string, bool) {
	for _, line := range diffLines(original, updated) {
		if attr, ok := privilegeAssignment(line); ok {
			return attr, true
		}
	}
	return "", false
}

func privilegeAssignment(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	for _, attr := range privilegeAttributes {
		if strings.Contains(trimmed, attr+" =") || strings.Contains(trimmed, attr+"=") {
			return attr, true
		}
	}
	return "", false
}

// diffLines returns every line present in updated but absent from original,
// by simple line-set membership; this is intentionally cruder than a real
// diff (internal/diff) since §4.8 only needs "is this line new", not a
// hunk-aligned comparison.
func diffLines(original, updated string) []string {
	seen := make(map[string]bool)
	for _, l := range strings.Split(original, "\n") {
		seen[l] = true
	}
	var out []string
	for _, l := range strings.Split(updated, "\n") {
		if !seen[l] {
			out = append(out, l)
		}
	}
	return out
}
