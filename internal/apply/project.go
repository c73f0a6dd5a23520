package apply

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
)

// ProjectBackup is the rollback ground truth for a multi-step integration
// map (§4.10: "at project scope... creates a full project backup into an
// isolated backup directory... restoration is file-by-file copy, never a
// rename of the project directory"). Unlike sandbox.copyProjectSafely,
// which deliberately excludes VCS metadata and sensitive files for an
// analysis copy, a backup must be byte-for-byte faithful, so nothing is
// excluded here.
type ProjectBackup struct {
	projectRoot string
	backupRoot  string
}

// NewProjectBackup validates that backupRoot is not a subdirectory of
// projectRoot (copying a directory into its own subtree recurses forever)
// and returns a ProjectBackup ready for Create.
func NewProjectBackup(projectRoot, backupRoot string) (*ProjectBackup, error) {
	absProject, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	absBackup, err := filepath.Abs(backupRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve backup root: %w", err)
	}

	rel, err := filepath.Rel(absProject, absBackup)
	if err == nil && rel != ".." && !hasDotDotPrefix(rel) {
		return nil, fmt.Errorf("backup directory %s must not be inside project directory %s", backupRoot, projectRoot)
	}

	return &ProjectBackup{projectRoot: absProject, backupRoot: absBackup}, nil
}

func hasDotDotPrefix(rel string) bool {
	return rel == ".." || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

// Create copies the entire project tree into the backup directory.
func (pb *ProjectBackup) Create() error {
	if err := os.MkdirAll(pb.backupRoot, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	logging.Apply("creating full project backup: %s -> %s", pb.projectRoot, pb.backupRoot)
	return copyTree(pb.projectRoot, pb.backupRoot)
}

// Restore copies every file back from the backup directory over the
// project, file by file, never by renaming a directory over another.
func (pb *ProjectBackup) Restore() error {
	logging.Apply("restoring project from backup: %s -> %s", pb.backupRoot, pb.projectRoot)
	return copyTree(pb.backupRoot, pb.projectRoot)
}

// Remove deletes the backup directory once it is no longer needed.
func (pb *ProjectBackup) Remove() error {
	return os.RemoveAll(pb.backupRoot)
}

func copyTree(source, destination string) error {
	return filepath.Walk(source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(source, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		dst := filepath.Join(destination, rel)
		if info.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}
		return copyFileWithMode(path, dst, info)
	})
}

func copyFileWithMode(src, dst string, info os.FileInfo) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", dst, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return nil
}

// StepResult reports the outcome of applying one IntegrationStep.
type StepResult struct {
	Step        domain.IntegrationStep
	Applied     bool
	Reason      string
	FileResults []Result
	RolledBack  bool
}

// ApplyStep applies every FileModification in step against projectRoot as
// one unit: a full project backup is taken first, each modification runs
// through Apply's normal C9/C10/atomic-write sequence, and any single
// failure restores the entire project from the pre-step backup so the
// step leaves no partial edits behind.
func (a *Applier) ApplyStep(ctx context.Context, projectRoot, backupRoot string, step domain.IntegrationStep) StepResult {
	backup, err := NewProjectBackup(projectRoot, backupRoot)
	if err != nil {
		return StepResult{Step: step, Reason: "invalid backup location: " + err.Error()}
	}
	if err := backup.Create(); err != nil {
		return StepResult{Step: step, Reason: "failed to create project backup: " + err.Error()}
	}
	defer backup.Remove()

	var results []Result
	for _, mod := range step.Modifications {
		proposal := domain.FixProposal{
			FilePath:     mod.FilePath,
			IssueType:    "integration_step:" + step.Name,
			OriginalCode: mod.OriginalCode,
			ProposedFix:  mod.ProposedFix,
			LineNumber:   mod.LineNumber,
		}
		result := a.Apply(ctx, projectRoot, proposal)
		results = append(results, result)

		if !result.Applied {
			logging.ApplyErr("integration step %q failed on %s (%s), rolling back entire step", step.Name, mod.FilePath, result.Reason)
			if rerr := backup.Restore(); rerr != nil {
				logging.ApplyErr("project-wide rollback failed for step %q: %v", step.Name, rerr)
				return StepResult{Step: step, Reason: fmt.Sprintf("modification failed (%s) and rollback failed (%v)", result.Reason, rerr), FileResults: results}
			}
			return StepResult{Step: step, Reason: "modification failed, step rolled back: " + result.Reason, FileResults: results, RolledBack: true}
		}
	}

	return StepResult{Step: step, Applied: true, FileResults: results}
}
