package safety

import (
	"sync"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
)

// Scorer computes the deterministic safety score for fix proposals. It
// owns a single Mangle classifier instance since rebuilding the rule
// program per call would be wasteful; Score is safe for concurrent use.
type Scorer struct {
	mu         sync.Mutex
	classifier *classifier
}

// NewScorer loads the safety rule set and returns a ready Scorer.
func NewScorer() (*Scorer, error) {
	c, err := newClassifier()
	if err != nil {
		return nil, err
	}
	return &Scorer{classifier: c}, nil
}

// Close releases the underlying Mangle engine.
func (s *Scorer) Close() error {
	return s.classifier.close()
}

const baseScore = 0.1

// Score implements the §4.6 rule table in order, with early exit to 0.0 on
// any hard disqualifier. The existing-safety_score cap is applied last,
// after every additive/penalizing rule — see SPEC_FULL.md §4.6 and §9 for
// why this interpretation (and not an interleaved one) was chosen.
func (s *Scorer) Score(p domain.FixProposal) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	score := baseScore

	if s.classifier.isWhitelisted(p.IssueType) {
		score += 0.4
	}
	if s.classifier.isHardDisqualified(p.IssueType) {
		return 0.0
	}

	origLines := countLines(p.OriginalCode)
	propLines := countLines(p.ProposedFix)
	if origLines != propLines {
		score -= 0.3
	}

	if ratio, ok := lengthRatio(p.OriginalCode, p.ProposedFix); ok {
		if ratio < 0.8 || ratio > 1.2 {
			score -= 0.2
		}
	}

	if pattern, found := findDangerousPattern(p.ProposedFix); found {
		logging.SafetyDebug("dangerous pattern %q found in proposed fix for %s:%d", pattern, p.FilePath, p.LineNumber)
		return 0.0
	}

	if containsAssignment(p.ProposedFix) {
		score = min(score, 0.1)
	}

	switch p.Context {
	case domain.ContextProduction:
		score -= 0.2
	case domain.ContextConfig:
		score -= 0.3
	}

	switch p.Severity {
	case domain.SeverityHigh, domain.SeverityCritical:
		return 0.0
	case domain.SeverityMedium:
		score -= 0.2
	}

	if p.SafetyScore != nil {
		cap := 0.8 * (float64(*p.SafetyScore) / 100.0)
		score = min(score, cap)
	}

	return clamp(score, 0.0, 1.0)
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := 1
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}

func lengthRatio(original, proposed string) (float64, bool) {
	if len(original) == 0 {
		return 0, false
	}
	return float64(len(proposed)) / float64(len(original)), true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
