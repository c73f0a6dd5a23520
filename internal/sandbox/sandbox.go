// Package sandbox implements the sandbox validator (C10): the last
// pre-write safety layer, testing a proposed fix's effect by copying the
// project into an isolated temp directory, applying the fix there, and
// running build/test/runtime-probe phases under a shared time budget.
// Grounded on original_source/.../safety/sandboxed_validation.py's
// SandboxedValidator (create-sandbox / copy-safely / apply-fix / three
// validation phases / verdict shape) and, for the Go-target runtime probe,
// internal/autopoiesis/yaegi_executor.go's import-whitelisted yaegi
// interpreter pattern.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/resilience"
)

// Config tunes sandbox validation. Zero values fall back to DefaultConfig.
type Config struct {
	TotalBudget         time.Duration
	PerPhaseTimeout     time.Duration
	RunTests            bool
	StrictSubstringMode bool
	SafeCommands        []string
}

// DefaultConfig matches SPEC_FULL.md §4.9/§2.1's stated defaults.
func DefaultConfig() Config {
	return Config{
		TotalBudget:     30 * time.Second,
		PerPhaseTimeout: 10 * time.Second,
		RunTests:        false,
		SafeCommands:    []string{"python", "pytest", "pip", "coverage", "cargo", "npm", "go"},
	}
}

func (c Config) resolved() Config {
	d := DefaultConfig()
	if c.TotalBudget == 0 {
		c.TotalBudget = d.TotalBudget
	}
	if c.PerPhaseTimeout == 0 {
		c.PerPhaseTimeout = d.PerPhaseTimeout
	}
	if len(c.SafeCommands) == 0 {
		c.SafeCommands = d.SafeCommands
	}
	return c
}

// Validator runs the three-phase sandbox validation protocol.
type Validator struct {
	cfg Config
	cb  *resilience.CircuitBreaker
}

// New returns a Validator with cfg applied over DefaultConfig. Every
// subprocess the validator spawns (build/test/runtime-probe phases) runs
// through a shared CircuitBreaker per §2.1, so a toolchain that is
// consistently failing (missing compiler, broken PATH) stops being
// reinvoked phase after phase once it has failed enough times in a row.
func New(cfg Config) *Validator {
	return &Validator{cfg: cfg.resolved(), cb: resilience.NewCircuitBreaker(5, 30*time.Second)}
}

// Validate copies projectRoot into an isolated sandbox, applies p
// (newContent replacing the current content of p.FilePath), and runs the
// build/test/runtime phases. The temp sandbox directory is always removed
// on return, including on panic.
func (v *Validator) Validate(ctx context.Context, projectRoot string, p domain.FixProposal, newContent string) (safe bool, reason string, result domain.SandboxResult) {
	start := time.Now()
	defer func() {
		result.ExecutionTime = time.Since(start)
		if r := recover(); r != nil {
			safe = false
			reason = fmt.Sprintf("sandbox validation panicked: %v", r)
			result.Issues = append(result.Issues, reason)
		}
	}()

	sandboxDir, cleanup, err := v.createSandbox(projectRoot)
	if err != nil {
		return false, fmt.Sprintf("sandbox creation failed: %v", err), domain.SandboxResult{
			Issues: []string{err.Error()},
		}
	}
	defer cleanup()

	if err := applyFix(sandboxDir, p, newContent); err != nil {
		return false, fmt.Sprintf("applying fix in sandbox failed: %v", err), domain.SandboxResult{
			Issues: []string{err.Error()},
		}
	}

	budgetCtx, cancel := context.WithTimeout(ctx, v.cfg.TotalBudget)
	defer cancel()

	buildOK, buildIssues := v.runBuildPhase(budgetCtx, sandboxDir)
	testsOK, testIssues := true, []string(nil)
	if v.cfg.RunTests {
		testsOK, testIssues = v.runTestPhase(budgetCtx, sandboxDir)
	}
	runtimeSafe, runtimeIssues, violations := v.runRuntimeProbe(budgetCtx, sandboxDir, p)

	result.BuildPassed = buildOK
	result.TestsPassed = testsOK
	result.RuntimeSafe = runtimeSafe
	result.Issues = append(result.Issues, buildIssues...)
	result.Issues = append(result.Issues, testIssues...)
	result.Issues = append(result.Issues, runtimeIssues...)
	result.SecurityViolations = violations

	safe = buildOK && testsOK && runtimeSafe && len(violations) == 0
	if safe {
		return true, "passed sandbox validation", result
	}

	reason = summarizeFailure(result)
	return false, reason, result
}

func summarizeFailure(r domain.SandboxResult) string {
	reason := "sandbox validation failed"
	if len(r.Issues) > 0 {
		reason += ": " + firstN(r.Issues, 3)
	}
	if len(r.SecurityViolations) > 0 {
		reason += " | security: " + firstN(r.SecurityViolations, 3)
	}
	return reason
}

func firstN(items []string, n int) string {
	if len(items) < n {
		n = len(items)
	}
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += "; "
		}
		out += items[i]
	}
	return out
}

// createSandbox makes a uuid-named temp directory outside projectRoot and
// copies the project into it, then writes the restrictions preamble.
func (v *Validator) createSandbox(projectRoot string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "pri-sandbox-"+uuid.NewString())
	if err != nil {
		return "", nil, fmt.Errorf("create sandbox dir: %w", err)
	}
	logging.Sandbox("created sandbox %s for %s", dir, projectRoot)

	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			logging.SandboxWarn("failed to clean up sandbox %s: %v", dir, err)
		} else {
			logging.SandboxDebug("cleaned up sandbox %s", dir)
		}
	}

	if err := copyProjectSafely(projectRoot, dir); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("copy project into sandbox: %w", err)
	}

	if err := writeRestrictionsPreamble(dir, v.cfg.SafeCommands); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write sandbox restrictions: %w", err)
	}

	return dir, cleanup, nil
}

func applyFix(sandboxDir string, p domain.FixProposal, newContent string) error {
	target := filepath.Join(sandboxDir, p.FilePath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", p.FilePath, err)
	}
	if err := os.WriteFile(target, []byte(newContent), 0o644); err != nil {
		return fmt.Errorf("write modified %s: %w", p.FilePath, err)
	}
	logging.SandboxDebug("applied fix to sandbox copy of %s", p.FilePath)
	return nil
}
