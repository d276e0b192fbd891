package score

import (
	"fmt"
	"strings"

	"github.com/credence-dev/credence/internal/model"
)

// Scorer derives the base credibility score deterministically from the
// analyzer's structured sub-signals. The language model reports what it
// found (claim verdicts, bias signals); the arithmetic that turns findings
// into a number lives here, where it is transparent and testable.
type Scorer struct {
	cfg     *model.ScoreConfig
	sources *SourceClassifier
}

// NewScorer creates a scorer with the given policy
func NewScorer(cfg *model.ScoreConfig) *Scorer {
	if cfg == nil {
		cfg = model.DefaultScoreConfig()
	}
	return &Scorer{
		cfg:     cfg,
		sources: NewSourceClassifier(),
	}
}

// ComputeInput carries everything the scorer needs for one assessment
type ComputeInput struct {
	SourceURL     string // Empty for direct text input
	HasURL        bool
	Claims        []model.Claim
	Verifications []model.ClaimVerification // Aligned: one per claim
	BiasSignals   []string                  // Raw signal names from the bias analysis
}

// ComputeResult is the deterministic part of an assessment
type ComputeResult struct {
	Score           int
	Confidence      float64
	Breakdown       model.Breakdown
	SourceQuality   string
	BiasIndicator   string
	PositiveSignals []string
	NegativeSignals []string
}

// Compute applies the scoring policy: a base score adjusted by claim
// verdicts, source credibility, evidence quality, and bias penalties,
// clamped to [0,100].
func (s *Scorer) Compute(in ComputeInput) ComputeResult {
	var positive, negative []string

	claimAdj, claimPos, claimNeg := s.claimAdjustment(in.Verifications)
	positive = append(positive, claimPos...)
	negative = append(negative, claimNeg...)

	sourceAdj, class := s.sourceAdjustment(in.SourceURL, in.HasURL)
	switch class {
	case ClassInstitutional, ClassJournalism:
		positive = append(positive, fmt.Sprintf("Published by %s source", class.Label()))
	case ClassMisinformation:
		negative = append(negative, "Domain matches a known misinformation pattern")
	}

	evidenceAdj := s.evidenceAdjustment(in.Verifications)
	if evidenceAdj > 0 {
		positive = append(positive, "Claim verifications carry high confidence")
	} else if evidenceAdj < 0 && len(in.Claims) > 0 {
		negative = append(negative, "Weak or missing supporting evidence")
	}

	biasAdj := s.biasAdjustment(in.BiasSignals)
	for _, sig := range in.BiasSignals {
		negative = append(negative, "Bias signal: "+sig)
	}

	score := clamp(s.cfg.BaseScore + claimAdj + sourceAdj + evidenceAdj + biasAdj)

	return ComputeResult{
		Score:      score,
		Confidence: s.confidence(in.Verifications),
		Breakdown: model.Breakdown{
			FactCheck:         clamp(s.cfg.BaseScore + claimAdj + evidenceAdj),
			SourceCredibility: clamp(s.cfg.BaseScore + sourceAdj),
			SentimentBias:     clamp(100 + biasAdj),
		},
		SourceQuality:   string(class),
		BiasIndicator:   biasIndicator(len(in.BiasSignals)),
		PositiveSignals: positive,
		NegativeSignals: negative,
	}
}

// claimAdjustment sums the per-status deltas across verifications
func (s *Scorer) claimAdjustment(verifications []model.ClaimVerification) (int, []string, []string) {
	var adj int
	counts := make(map[model.VerificationStatus]int)

	for _, v := range verifications {
		counts[v.Status]++
		switch v.Status {
		case model.StatusVerified:
			adj += s.cfg.VerifiedDelta
		case model.StatusPartiallyTrue:
			adj += s.cfg.PartiallyTrueDelta
		case model.StatusUnverifiable:
			adj += s.cfg.UnverifiableDelta
		case model.StatusMisleading:
			adj += s.cfg.MisleadingDelta
		case model.StatusFalse:
			adj += s.cfg.FalseDelta
		}
	}

	var positive, negative []string
	if n := counts[model.StatusVerified]; n > 0 {
		positive = append(positive, fmt.Sprintf("%d claim(s) verified against retrieved context", n))
	}
	if n := counts[model.StatusPartiallyTrue]; n > 0 {
		positive = append(positive, fmt.Sprintf("%d claim(s) partially supported", n))
	}
	if n := counts[model.StatusFalse]; n > 0 {
		negative = append(negative, fmt.Sprintf("%d claim(s) contradicted by retrieved context", n))
	}
	if n := counts[model.StatusMisleading]; n > 0 {
		negative = append(negative, fmt.Sprintf("%d claim(s) presented misleadingly", n))
	}
	if n := counts[model.StatusUnverifiable]; n > 0 {
		negative = append(negative, fmt.Sprintf("%d claim(s) could not be verified", n))
	}

	return adj, positive, negative
}

// sourceAdjustment scores the publishing domain
func (s *Scorer) sourceAdjustment(sourceURL string, hasURL bool) (int, SourceClass) {
	if !hasURL || sourceURL == "" {
		return s.cfg.NoURLPenalty, ClassUnknown
	}

	class := s.sources.Classify(sourceURL)
	switch class {
	case ClassInstitutional:
		return s.cfg.InstitutionalBonus, class
	case ClassJournalism:
		return s.cfg.JournalismBonus, class
	case ClassMisinformation:
		return s.cfg.MisinfoPenalty, class
	default:
		return s.cfg.UnknownDomainPenalty, class
	}
}

// evidenceAdjustment scores the average verification confidence
func (s *Scorer) evidenceAdjustment(verifications []model.ClaimVerification) int {
	if len(verifications) == 0 {
		return s.cfg.NoEvidencePenalty
	}

	allUnverifiable := true
	var sum float64
	for _, v := range verifications {
		if v.Status != model.StatusUnverifiable {
			allUnverifiable = false
		}
		sum += v.Confidence
	}
	if allUnverifiable {
		return s.cfg.NoEvidencePenalty
	}

	avg := sum / float64(len(verifications))
	switch {
	case avg >= 0.8:
		return s.cfg.StrongEvidenceBonus
	case avg >= 0.6:
		return s.cfg.ModerateEvidenceBonus
	case avg >= 0.4:
		return 0
	default:
		return s.cfg.WeakEvidencePenalty
	}
}

// biasAdjustment sums penalties for reported bias signals. Signals are
// matched loosely against the policy's penalty table; an unrecognized
// signal still costs the default penalty.
func (s *Scorer) biasAdjustment(signals []string) int {
	var adj int
	for _, sig := range signals {
		adj += s.penaltyFor(sig)
	}
	return adj
}

func (s *Scorer) penaltyFor(signal string) int {
	lower := strings.ToLower(strings.TrimSpace(signal))
	if p, ok := s.cfg.BiasPenalties[lower]; ok {
		return p
	}
	// Signals arrive as free text ("heavy sensationalism in headline").
	// Match by containment, longest penalty name first so the result does
	// not depend on map order.
	best := ""
	for name := range s.cfg.BiasPenalties {
		if strings.Contains(lower, name) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return s.cfg.BiasPenalties[best]
	}
	return s.cfg.UnknownBiasPenalty
}

// confidence is the mean verification confidence, or the configured
// default when there were no claims to verify.
func (s *Scorer) confidence(verifications []model.ClaimVerification) float64 {
	if len(verifications) == 0 {
		return s.cfg.DefaultConfidence
	}
	var sum float64
	for _, v := range verifications {
		sum += v.Confidence
	}
	return sum / float64(len(verifications))
}

func biasIndicator(signalCount int) string {
	switch {
	case signalCount == 0:
		return "low"
	case signalCount <= 2:
		return "moderate"
	default:
		return "high"
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
