package app

import (
	"context"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
)

// sandboxValidate is the narrow contract *sandbox.Validator satisfies.
type sandboxValidate interface {
	Validate(ctx context.Context, projectRoot string, p domain.FixProposal, newContent string) (bool, string, domain.SandboxResult)
}

// auditingSandbox wraps a sandbox validator with the sandbox_application_blocks.log
// write mesopredator_cli.py's apply_fix does itself around the sandbox
// validation call, rather than inside the validator (which, unlike
// emergency.Validator, has no audit dependency of its own).
type auditingSandbox struct {
	validator sandboxValidate
	audit     *logging.AuditLogger
}

func (a *auditingSandbox) Validate(ctx context.Context, projectRoot string, p domain.FixProposal, newContent string) (bool, string, domain.SandboxResult) {
	safe, reason, result := a.validator.Validate(ctx, projectRoot, p, newContent)
	if !safe {
		_ = a.audit.Log(logging.AuditEvent{
			Action:   "SANDBOX_APPLICATION_BLOCK",
			FilePath: p.FilePath,
			FixType:  p.IssueType,
			Reason:   reason,
			Extra: map[string]any{
				"build_passed":        result.BuildPassed,
				"tests_passed":        result.TestsPassed,
				"runtime_safe":        result.RuntimeSafe,
				"execution_time_s":    result.ExecutionTime.Seconds(),
				"issues":              result.Issues,
				"security_violations": result.SecurityViolations,
			},
		})
	}
	return safe, reason, result
}
