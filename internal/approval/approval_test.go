package approval

import (
	"bytes"
	"strings"
	"testing"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScorer struct {
	score float64
}

func (f fakeScorer) Score(p domain.FixProposal) float64 { return f.score }

func proposal(severity domain.Severity, autoApprovable bool, fix string) domain.FixProposal {
	return domain.FixProposal{
		FilePath:       "app.py",
		IssueType:      "exception_handling",
		Severity:       severity,
		OriginalCode:   "except:",
		ProposedFix:    fix,
		LineNumber:     3,
		AutoApprovable: autoApprovable,
	}
}

func TestRun_AutoApprovesSafeHighScoreProposal(t *testing.T) {
	g := New(Config{Mode: ModeAutoApproveSafe}, fakeScorer{score: 0.95}, nil, nil)
	p := proposal(domain.SeverityLow, true, "except Exception as e:")

	approved, rejected, outcomes := g.Run([]domain.FixProposal{p}, nil)

	assert.Len(t, approved, 1)
	assert.Empty(t, rejected)
	require.Len(t, outcomes, 1)
	assert.Equal(t, DecisionApprove, outcomes[0].Decision)
}

func TestRun_RejectsBelowThresholdInAutoOnlyMode(t *testing.T) {
	g := New(Config{Mode: ModeAutoApproveSafe}, fakeScorer{score: 0.5}, nil, nil)
	p := proposal(domain.SeverityLow, true, "except Exception as e:")

	approved, rejected, _ := g.Run([]domain.FixProposal{p}, nil)

	assert.Empty(t, approved)
	assert.Len(t, rejected, 1)
}

func TestRun_RejectsHighSeverityEvenWithHighScore(t *testing.T) {
	g := New(Config{Mode: ModeAutoApproveSafe}, fakeScorer{score: 0.99}, nil, nil)
	p := proposal(domain.SeverityHigh, true, "except Exception as e:")

	approved, rejected, _ := g.Run([]domain.FixProposal{p}, nil)

	assert.Empty(t, approved)
	assert.Len(t, rejected, 1)
}

func TestRun_RejectsDangerousPatternEvenWhenAutoApprovable(t *testing.T) {
	g := New(Config{Mode: ModeAutoApproveSafe}, fakeScorer{score: 0.99}, nil, nil)
	p := proposal(domain.SeverityLow, true, "subprocess.run(cmd)")

	approved, rejected, _ := g.Run([]domain.FixProposal{p}, nil)

	assert.Empty(t, approved)
	assert.Len(t, rejected, 1)
}

func TestRun_DynamicApprovalRaisesThresholdToFloor(t *testing.T) {
	g := New(Config{Mode: ModeAutoApproveSafe, AutoThreshold: 0.5, DynamicApproval: true}, fakeScorer{score: 0.6}, nil, nil)
	p := proposal(domain.SeverityLow, true, "except Exception as e:")

	approved, rejected, _ := g.Run([]domain.FixProposal{p}, nil)

	assert.Empty(t, approved)
	assert.Len(t, rejected, 1)
}

func TestRun_InteractiveModePromptsAndApprovesOnApprove(t *testing.T) {
	in := strings.NewReader("approve\n")
	var out bytes.Buffer
	g := New(Config{Mode: ModeInteractive}, fakeScorer{score: 0.1}, in, &out)
	p := proposal(domain.SeverityHigh, false, "except Exception as e:")

	approved, rejected, outcomes := g.Run([]domain.FixProposal{p}, map[string]string{"app.py": "try:\n    do()\nexcept:\n    pass\n"})

	assert.Len(t, approved, 1)
	assert.Empty(t, rejected)
	assert.Equal(t, DecisionApprove, outcomes[0].Decision)
	assert.Contains(t, out.String(), "app.py:3")
}

func TestRun_InteractiveModeRejectsOnReject(t *testing.T) {
	in := strings.NewReader("reject\n")
	var out bytes.Buffer
	g := New(Config{Mode: ModeInteractive}, fakeScorer{score: 0.1}, in, &out)
	p := proposal(domain.SeverityHigh, false, "except Exception as e:")

	approved, rejected, _ := g.Run([]domain.FixProposal{p}, map[string]string{"app.py": "except:\n"})

	assert.Empty(t, approved)
	assert.Len(t, rejected, 1)
}

func TestRun_InteractiveModeSkipIsNotApprovedAndLandsInRejected(t *testing.T) {
	in := strings.NewReader("skip\n")
	var out bytes.Buffer
	g := New(Config{Mode: ModeInteractive}, fakeScorer{score: 0.1}, in, &out)
	p := proposal(domain.SeverityHigh, false, "except Exception as e:")

	approved, rejected, outcomes := g.Run([]domain.FixProposal{p}, map[string]string{"app.py": "except:\n"})

	assert.Empty(t, approved)
	assert.Len(t, rejected, 1)
	assert.Equal(t, DecisionSkip, outcomes[0].Decision)
}

func TestRun_InteractiveModeRepromptsOnUnrecognizedThenAcceptsReject(t *testing.T) {
	in := strings.NewReader("unrecognized\nreject\n")
	var out bytes.Buffer
	g := New(Config{Mode: ModeInteractive}, fakeScorer{score: 0.1}, in, &out)
	p := proposal(domain.SeverityHigh, false, "except Exception as e:")

	_, rejected, _ := g.Run([]domain.FixProposal{p}, map[string]string{"app.py": "except:\n"})

	assert.Len(t, rejected, 1)
	assert.Contains(t, out.String(), "unrecognized response")
}

func TestRun_NonInteractiveFailsClosedOnNonAutoApprovable(t *testing.T) {
	g := New(Config{Mode: ModeAutoApproveSafe}, fakeScorer{score: 0.95}, nil, nil)
	p := proposal(domain.SeverityMedium, false, "except Exception as e:")

	approved, rejected, outcomes := g.Run([]domain.FixProposal{p}, nil)

	assert.Empty(t, approved)
	require.Len(t, rejected, 1)
	assert.Contains(t, outcomes[0].Reason, "fail-closed")
}
