package sandbox

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/build"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/resilience"
)

// buildCommandsByMarker mirrors internal/tools/shell/execute.go's
// detectBuildCommand table, reproduced here since that package's detection
// tables are unexported and tied to its Tool/ToolSchema wiring rather than
// the sandbox's bare exec.CommandContext use.
var buildCommandsByMarker = []struct {
	marker  string
	command []string
}{
	{"go.mod", []string{"go", "build", "./..."}},
	{"Cargo.toml", []string{"cargo", "build"}},
	{"package.json", []string{"npm", "run", "build"}},
	{"setup.py", []string{"python", "setup.py", "build"}},
	{"pyproject.toml", []string{"python", "-m", "build"}},
}

var testCommandsByMarker = []struct {
	marker  string
	command []string
}{
	{"go.mod", []string{"go", "test", "./..."}},
	{"Cargo.toml", []string{"cargo", "test"}},
	{"package.json", []string{"npm", "test"}},
	{"pyproject.toml", []string{"pytest"}},
	{"setup.py", []string{"python", "-m", "pytest"}},
}

func detectCommand(dir string, table []struct {
	marker  string
	command []string
}) []string {
	for _, entry := range table {
		if _, err := os.Stat(filepath.Join(dir, entry.marker)); err == nil {
			return entry.command
		}
	}
	return nil
}

func isGoTarget(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "go.mod"))
	return err == nil
}

// runBuildPhase runs the first auto-detected build command, best-effort:
// a project type we can't detect is not itself a failure, since not every
// fixed file belongs to a buildable project (e.g. a lone config file).
func (v *Validator) runBuildPhase(ctx context.Context, sandboxDir string) (bool, []string) {
	cmd := detectCommand(sandboxDir, buildCommandsByMarker)
	if cmd == nil {
		logging.SandboxDebug("no recognized build marker in %s, skipping build phase", sandboxDir)
		return true, nil
	}

	out, err := v.runCommand(ctx, sandboxDir, cmd)
	if err != nil {
		return false, []string{"build failed: " + truncateOutput(out, err)}
	}
	return true, nil
}

// runTestPhase checks a Go target with go vet ./... (a compile check of the
// packages and their test files) rather than executing the suite. Any other
// detected target runs its test command (pytest, npm test, cargo test), which
// executes that suite in full.
func (v *Validator) runTestPhase(ctx context.Context, sandboxDir string) (bool, []string) {
	cmd := detectCommand(sandboxDir, testCommandsByMarker)
	if cmd == nil {
		return true, nil
	}

	if isGoTarget(sandboxDir) {
		out, err := v.runCommand(ctx, sandboxDir, []string{"go", "vet", "./..."})
		if err != nil {
			return false, []string{"test syntax check failed: " + truncateOutput(out, err)}
		}
		return true, nil
	}

	out, err := v.runCommand(ctx, sandboxDir, cmd)
	if err != nil {
		return false, []string{"test phase failed: " + truncateOutput(out, err)}
	}
	return true, nil
}

// runCommand executes name under sandboxDir with the constructed build
// environment, enforcing the safe-command allow-list from the restrictions
// preamble at the Go level too (not just inside any Python subprocess that
// imports sandbox_restrictions.py). When the phase context ends, the child
// gets SIGTERM and, if still running after a grace period, SIGKILL.
func (v *Validator) runCommand(ctx context.Context, sandboxDir string, args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	if !v.isSafeCommand(args[0]) {
		return "", &disallowedCommandError{command: args[0]}
	}

	phaseCtx, cancel := context.WithTimeout(ctx, v.cfg.PerPhaseTimeout)
	defer cancel()

	cmd := exec.CommandContext(phaseCtx, args[0], args[1:]...)
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = 2 * time.Second
	cmd.Dir = sandboxDir
	cmd.Env = build.GetBuildEnv(sandboxDir)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := v.cb.Call(cmd.Run)
	if err == resilience.ErrOpen {
		logging.SandboxWarn("circuit breaker open for %s, skipping invocation", args[0])
	}
	return out.String(), err
}

func (v *Validator) isSafeCommand(name string) bool {
	for _, safe := range v.cfg.SafeCommands {
		if safe == name {
			return true
		}
	}
	return false
}

type disallowedCommandError struct{ command string }

func (e *disallowedCommandError) Error() string {
	return "command '" + e.command + "' is not on the sandbox safe-list"
}

func truncateOutput(out string, err error) string {
	const maxLen = 500
	msg := strings.TrimSpace(out)
	if msg == "" {
		msg = err.Error()
	}
	if len(msg) > maxLen {
		msg = msg[:maxLen] + "..."
	}
	return msg
}
