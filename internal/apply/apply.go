// Package apply implements the atomic fix applier (C11), the last stage of
// the pipeline and the only component allowed to touch the project's real
// files. Grounded on mesopredator_cli.py's apply_fix (read file, validate
// original_code against line_number, run emergency then sandbox validation,
// .bak backup, write) and internal/shards/coder/transaction.go's
// FileTransaction (stage/commit/rollback backup bookkeeping), adapted from
// a temp-file-per-edit model to the project-wide backup model §4.10 calls
// for at the IntegrationStep level.
package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/diff"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
)

// EmergencyValidator is the narrow C9 contract the applier depends on.
type EmergencyValidator interface {
	Validate(p domain.FixProposal, originalContent, newContent string) (safe bool, reason string)
}

// SandboxValidator is the narrow C10 contract the applier depends on.
type SandboxValidator interface {
	Validate(ctx context.Context, projectRoot string, p domain.FixProposal, newContent string) (safe bool, reason string, result domain.SandboxResult)
}

// Result reports the outcome of applying a single FixProposal.
type Result struct {
	Proposal      domain.FixProposal
	Applied       bool
	Reason        string
	SandboxResult domain.SandboxResult
	BackupPath    string
}

// Applier is the sole writer of project files in the pipeline. §5's
// ordering guarantee ("fix application is strictly serial... enforced by a
// single applier-wide mutex") is implemented by mu: Apply and ApplyStep
// both hold it for their full duration.
type Applier struct {
	mu             sync.Mutex
	emergencyCheck EmergencyValidator
	sandboxCheck   SandboxValidator
	skipSandbox    bool
	diffEngine     *diff.Engine
}

// New builds an Applier. sandboxCheck may be nil, in which case sandbox
// validation is skipped (useful for fixes to non-buildable files, or when
// the caller has already sandboxed the whole batch upstream); emergency
// validation is never optional.
func New(emergencyCheck EmergencyValidator, sandboxCheck SandboxValidator) *Applier {
	return &Applier{
		emergencyCheck: emergencyCheck,
		sandboxCheck:   sandboxCheck,
		skipSandbox:    sandboxCheck == nil,
		diffEngine:     diff.NewEngine(),
	}
}

// Apply runs the full §4.10 per-proposal sequence against a single file
// under projectRoot: verify original_code at line_number, compute pre/post
// image, pass through C9 then C10, back up to a .bak sibling, atomically
// replace the file, and roll back from .bak on any failure in that last
// step.
func (a *Applier) Apply(ctx context.Context, projectRoot string, p domain.FixProposal) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	target := filepath.Join(projectRoot, p.FilePath)
	original, err := os.ReadFile(target)
	if err != nil {
		return Result{Proposal: p, Reason: "could not read target file: " + err.Error()}
	}

	newContent, reason, ok := computeNewContent(string(original), p)
	if !ok {
		logging.ApplyErr("rejecting proposal for %s: %s", p.FilePath, reason)
		return Result{Proposal: p, Reason: reason}
	}

	if a.emergencyCheck != nil {
		if safe, why := a.emergencyCheck.Validate(p, string(original), newContent); !safe {
			return Result{Proposal: p, Reason: "blocked by emergency validation: " + why}
		}
	}

	var sandboxResult domain.SandboxResult
	if !a.skipSandbox {
		safe, why, result := a.sandboxCheck.Validate(ctx, projectRoot, p, newContent)
		sandboxResult = result
		if !safe {
			return Result{Proposal: p, Reason: "blocked by sandbox validation: " + why, SandboxResult: result}
		}
	}

	backupPath, err := backupFile(target)
	if err != nil {
		return Result{Proposal: p, Reason: "failed to create backup: " + err.Error()}
	}

	if err := writeAtomic(target, []byte(newContent)); err != nil {
		logging.ApplyErr("atomic write failed for %s, rolling back: %v", p.FilePath, err)
		if rerr := restoreFile(backupPath, target); rerr != nil {
			logging.ApplyErr("rollback also failed for %s: %v", p.FilePath, rerr)
			return Result{Proposal: p, Reason: fmt.Sprintf("write failed (%v) and rollback failed (%v)", err, rerr), BackupPath: backupPath}
		}
		return Result{Proposal: p, Reason: "write failed, rolled back: " + err.Error(), BackupPath: backupPath}
	}

	logging.Apply("applied fix for %s (%s)", p.FilePath, p.IssueType)
	return Result{Proposal: p, Applied: true, SandboxResult: sandboxResult, BackupPath: backupPath}
}

// PreviewDiff computes the pre/post FileDiff for a proposal without
// applying it, for callers (the approval gate, a CLI --dry-run) that want
// to show what Apply would write.
func (a *Applier) PreviewDiff(p domain.FixProposal, currentContent string) (*diff.FileDiff, error) {
	newContent, reason, ok := computeNewContent(currentContent, p)
	if !ok {
		return nil, fmt.Errorf("cannot preview: %s", reason)
	}
	return a.diffEngine.ComputeDiff(p.FilePath, p.FilePath, currentContent, newContent), nil
}

// computeNewContent implements §4.10 step 1: original_code must appear on
// line_number of the current file's content, otherwise the proposal is
// rejected before any validation runs.
func computeNewContent(content string, p domain.FixProposal) (string, string, bool) {
	lines := splitLines(content)
	idx := p.LineNumber - 1
	if idx < 0 || idx >= len(lines) {
		return "", "line out of bounds", false
	}
	if !containsOriginal(lines[idx], p.OriginalCode) {
		return "", "original not found", false
	}
	lines[idx] = replaceFirst(lines[idx], p.OriginalCode, p.ProposedFix)
	return joinLines(lines), "", true
}
