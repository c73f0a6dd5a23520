// Package approval implements the interactive approval gate (C8): given a
// batch of fix proposals and a mode, it partitions them into approved and
// rejected, either by an automatic safety check or by prompting a human on
// stdin. The retry-until-resolved shape is grounded on
// internal/verification/verifier.go's VerifyWithRetry loop, generalized
// from "retry with corrective action" to "ask the human for a decision and
// act on it"; diff rendering is delegated to internal/diff.
package approval

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/diff"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/safety"
)

// Mode selects how proposals that fail the auto-approve gate are handled.
type Mode string

const (
	ModeAutoApproveSafe Mode = "auto_approve_safe"
	ModeInteractive     Mode = "interactive"
)

// defaultAutoThreshold is the conservative floor from SPEC_FULL.md §4.7;
// Config.AutoThreshold is never allowed below it when DynamicApproval is set.
const defaultAutoThreshold = 0.9

// Decision is the outcome of one proposal being offered to the approver.
type Decision string

const (
	DecisionApprove     Decision = "approve"
	DecisionReject      Decision = "reject"
	DecisionSkip        Decision = "skip"
	DecisionAlternative Decision = "alternative"
)

// Scorer is the narrow contract this package needs from internal/safety.
type Scorer interface {
	Score(p domain.FixProposal) float64
}

// Config tunes the approval gate.
type Config struct {
	Mode Mode
	// AutoThreshold is the minimum score for auto-approval. Zero means
	// "use the default (0.9)".
	AutoThreshold float64
	// DynamicApproval raises AutoThreshold to max(AutoThreshold, 0.9),
	// per the spec's "--dynamic-approval" knob.
	DynamicApproval bool
}

// resolvedThreshold applies defaults and the dynamic-approval floor, returning the
// threshold actually in effect.
func (c Config) resolvedThreshold() float64 {
	t := c.AutoThreshold
	if t == 0 {
		t = defaultAutoThreshold
	}
	if c.DynamicApproval && t < defaultAutoThreshold {
		t = defaultAutoThreshold
	}
	return t
}

var autoApprovableSeverities = map[domain.Severity]bool{
	domain.SeverityLow:      true,
	domain.SeverityCosmetic: true,
}

// Outcome is one proposal paired with the decision made about it and, for
// rejected/skipped proposals, the reason.
type Outcome struct {
	Proposal domain.FixProposal
	Decision Decision
	Reason   string
}

// Gate partitions a batch of proposals into approved and rejected,
// prompting on in/out for anything that falls through to interactive
// mode. in/out may be nil when Mode is ModeAutoApproveSafe, since
// nothing is ever read or written in that mode.
type Gate struct {
	cfg     Config
	scorer  Scorer
	diffEng *diff.Engine
	reader  *bufio.Reader
	out     io.Writer
}

// New returns a Gate. scorer computes the 0.0-1.0 safety score; out/in
// drive the interactive stdin loop and may be nil in auto-only mode.
func New(cfg Config, scorer Scorer, in io.Reader, out io.Writer) *Gate {
	g := &Gate{cfg: cfg, scorer: scorer, diffEng: diff.NewEngine(), out: out}
	if in != nil {
		g.reader = bufio.NewReader(in)
	}
	return g
}

// Run evaluates every proposal in order and returns the approved and
// rejected partitions along with the full per-proposal outcome list.
func (g *Gate) Run(proposals []domain.FixProposal, fileContents map[string]string) (approved, rejected []domain.FixProposal, outcomes []Outcome) {
	threshold := g.cfg.resolvedThreshold()

	for _, p := range proposals {
		score := g.scorer.Score(p)

		if autoApprove(p, score, threshold) {
			logging.ApprovalDebug("auto-approved %s:%d (%s), score=%.2f", p.FilePath, p.LineNumber, p.IssueType, score)
			approved = append(approved, p)
			outcomes = append(outcomes, Outcome{Proposal: p, Decision: DecisionApprove, Reason: "auto-approved: safe and above threshold"})
			continue
		}

		if g.cfg.Mode != ModeInteractive {
			logging.Approval("rejecting %s:%d (%s): not auto-approvable and mode is not interactive", p.FilePath, p.LineNumber, p.IssueType)
			rejected = append(rejected, p)
			outcomes = append(outcomes, Outcome{Proposal: p, Decision: DecisionReject, Reason: "fail-closed: below auto-threshold, non-interactive mode"})
			continue
		}

		decision, reason := g.ask(p, fileContents[p.FilePath])
		outcomes = append(outcomes, Outcome{Proposal: p, Decision: decision, Reason: reason})
		if decision == DecisionApprove {
			approved = append(approved, p)
		} else {
			rejected = append(rejected, p)
		}
	}

	return approved, rejected, outcomes
}

// autoApprove implements the §4.7 decision rule's first branch.
func autoApprove(p domain.FixProposal, score, threshold float64) bool {
	if !p.AutoApprovable || score < threshold {
		return false
	}
	if !autoApprovableSeverities[p.Severity] {
		return false
	}
	if _, found := safety.FindDangerousPattern(p.ProposedFix); found {
		return false
	}
	return true
}

// ask renders the proposal's diff and prompts stdin for a decision. An
// "alternative-N" response is recorded but treated as a rejection of the
// offered proposal, since generating the Nth alternative fix is outside
// this package's scope.
func (g *Gate) ask(p domain.FixProposal, original string) (Decision, string) {
	if g.reader == nil || g.out == nil {
		return DecisionReject, "fail-closed: interactive mode requested but no terminal attached"
	}

	g.render(p, original)

	for {
		fmt.Fprint(g.out, "approve / reject / skip / alternative-N? ")
		line, err := g.reader.ReadString('\n')
		if err != nil {
			return DecisionReject, "fail-closed: could not read a decision"
		}
		answer := strings.ToLower(strings.TrimSpace(line))

		switch {
		case answer == "approve" || answer == "a":
			return DecisionApprove, "human approved"
		case answer == "reject" || answer == "r":
			return DecisionReject, "human rejected"
		case answer == "skip" || answer == "s":
			return DecisionSkip, "human skipped"
		case strings.HasPrefix(answer, "alternative-"):
			n, convErr := strconv.Atoi(strings.TrimPrefix(answer, "alternative-"))
			if convErr != nil {
				fmt.Fprintln(g.out, "couldn't parse alternative index, try again")
				continue
			}
			return DecisionReject, fmt.Sprintf("human requested alternative-%d", n)
		default:
			fmt.Fprintln(g.out, "unrecognized response, try again")
		}
	}
}

func (g *Gate) render(p domain.FixProposal, original string) {
	fmt.Fprintf(g.out, "\n%s:%d [%s/%s]\n%s\n", p.FilePath, p.LineNumber, p.IssueType, p.Severity, p.Description)

	fd := g.diffEng.ComputeDiff(p.FilePath, p.FilePath, original, applyProposal(original, p))
	for _, hunk := range fd.Hunks {
		for _, line := range hunk.Lines {
			prefix := " "
			switch line.Type {
			case diff.LineAdded:
				prefix = "+"
			case diff.LineRemoved:
				prefix = "-"
			}
			fmt.Fprintf(g.out, "%s%s\n", prefix, line.Content)
		}
	}
}

// applyProposal replaces the first OriginalCode with ProposedFix within the full
// file content, for diff-rendering purposes only; it never touches disk.
func applyProposal(content string, p domain.FixProposal) string {
	if p.OriginalCode == "" {
		return content
	}
	return strings.Replace(content, p.OriginalCode, p.ProposedFix, 1)
}
