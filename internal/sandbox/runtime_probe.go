package sandbox

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
)

// runRuntimeProbe executes the §4.9 step-5 runtime phase: for a Go target
// the modified file is interpreted with yaegi (a genuinely sandboxed
// interpreter, rather than a child process with a filtered environment);
// for any other target language it is syntax/compile-checked by shelling
// out through the same safe-command path the build phase uses, and the
// combined stdout/stderr is scanned for security violations.
func (v *Validator) runRuntimeProbe(ctx context.Context, sandboxDir string, p domain.FixProposal) (safe bool, issues, violations []string) {
	target := filepath.Join(sandboxDir, p.FilePath)
	content, err := os.ReadFile(target)
	if err != nil {
		return false, []string{"runtime probe: could not read modified file: " + err.Error()}, nil
	}

	var output string
	if isGoTarget(sandboxDir) && filepath.Ext(p.FilePath) == ".go" {
		output, err = v.probeGoSource(string(content))
	} else {
		output, err = v.probeGenericSource(ctx, sandboxDir, p.FilePath)
	}

	if err != nil {
		issues = append(issues, "runtime probe failed: "+err.Error())
	}

	violations = scanForViolations(output, v.cfg.StrictSubstringMode)
	if containsBlockedMessage(output) {
		violations = append(violations, "sandbox restriction triggered during runtime probe")
	}

	safe = err == nil && len(violations) == 0
	return safe, issues, violations
}

// probeGoSource interprets src with yaegi, restricted to stdlib symbols
// only (no external imports, matching internal/autopoiesis/yaegi_executor.go's
// allow-listed-stdlib approach), and returns whatever the interpreted code
// printed plus any evaluation error's text.
func (v *Validator) probeGoSource(src string) (string, error) {
	var out bytes.Buffer
	i := interp.New(interp.Options{Stdout: &out, Stderr: &out})
	if err := i.Use(stdlib.Symbols); err != nil {
		return "", err
	}

	_, err := i.Eval(src)
	return out.String(), err
}

// probeGenericSource runs a best-effort syntax/compile check for
// non-Go targets via the matching interpreter's own check subcommand,
// e.g. `python -m py_compile <file>`.
func (v *Validator) probeGenericSource(ctx context.Context, sandboxDir, relPath string) (string, error) {
	switch filepath.Ext(relPath) {
	case ".py":
		out, err := v.runCommand(ctx, sandboxDir, []string{"python", "-m", "py_compile", relPath})
		return out, err
	default:
		logging.SandboxDebug("no runtime probe defined for %s, treating as pass", relPath)
		return "", nil
	}
}
