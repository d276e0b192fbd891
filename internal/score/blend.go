package score

import (
	"math"

	"github.com/credence-dev/credence/internal/model"
)

// Warning text attached by the content-type adjustment
const (
	WarningSatire   = "Content appears to be satire; the score does not reflect factual accuracy"
	WarningBreaking = "Breaking news: details may be incomplete or unconfirmed"
	WarningOpinion  = "Opinion content: claims reflect the author's viewpoint"
)

// Tier categories and their display vocabulary
const (
	CategoryAuthorized = "authorized"
	CategorySuspicious = "suspicious"
	CategoryFlagged    = "flagged"

	BadgeVerified   = "VERIFIED"
	BadgeUnverified = "UNVERIFIED"
	BadgeFake       = "FAKE"

	ActionBlueBadge = "show_blue_badge"
	ActionRedBadge  = "show_red_badge"
	ActionOverlay   = "show_overlay"
)

// Verdict is the tier a blended score falls into. Category drives
// downstream automation, Badge and Action drive display.
type Verdict struct {
	Category    string `json:"category"`
	Badge       string `json:"badge"`
	Action      string `json:"action"`
	FeedVisible bool   `json:"feed_visible"`
}

// BlendResult is the final score after content-type adjustment and
// secondary-classifier blending, with its tier and any warnings attached.
type BlendResult struct {
	FinalScore int
	Confidence float64
	Warnings   []string
	Verdict    Verdict
}

// Engine combines the analyzer score with the secondary classifier and
// classifies the result into a tier. Pure and stateless: identical inputs
// always produce identical output.
type Engine struct {
	cfg *model.ScoreConfig
}

// NewEngine creates a blending engine with the given policy
func NewEngine(cfg *model.ScoreConfig) *Engine {
	if cfg == nil {
		cfg = model.DefaultScoreConfig()
	}
	return &Engine{cfg: cfg}
}

// Blend runs the three blending steps in order: content-type adjustment,
// secondary-classifier weighting, tier classification. A nil secondary
// prediction leaves the analyzer score as the final score.
func (e *Engine) Blend(llmScore int, llmConfidence float64, contentType model.ContentType, secondary *model.SecondaryPrediction) BlendResult {
	score := clamp(llmScore)
	confidence := clampUnit(llmConfidence)
	var warnings []string

	switch contentType {
	case model.ContentTypeSatire:
		confidence = 0
		warnings = append(warnings, WarningSatire)
	case model.ContentTypeBreaking:
		if confidence > e.cfg.BreakingConfidenceCeiling {
			confidence = e.cfg.BreakingConfidenceCeiling
		}
		warnings = append(warnings, WarningBreaking)
	case model.ContentTypeOpinion:
		warnings = append(warnings, WarningOpinion)
	}

	if secondary != nil {
		weighted := float64(score)*e.cfg.LLMWeight + secondary.RealProbability*e.cfg.SecondaryWeight
		score = clamp(int(math.Round(weighted)))
	}

	return BlendResult{
		FinalScore: score,
		Confidence: confidence,
		Warnings:   warnings,
		Verdict:    e.Classify(score),
	}
}

// Classify maps a final score onto its tier. The partition is strict and
// non-overlapping; scores exactly on a boundary take the higher tier.
func (e *Engine) Classify(score int) Verdict {
	switch {
	case score >= e.cfg.AuthorizedMin:
		return Verdict{Category: CategoryAuthorized, Badge: BadgeVerified, Action: ActionBlueBadge, FeedVisible: true}
	case score >= e.cfg.SuspiciousMin:
		return Verdict{Category: CategorySuspicious, Badge: BadgeUnverified, Action: ActionRedBadge, FeedVisible: true}
	default:
		return Verdict{Category: CategoryFlagged, Badge: BadgeFake, Action: ActionOverlay, FeedVisible: false}
	}
}

// CategoryLabel buckets a score for the browser-extension projection
func CategoryLabel(score int) string {
	switch {
	case score >= 85:
		return "high"
	case score >= 70:
		return "good"
	case score >= 55:
		return "mixed"
	case score >= 35:
		return "low"
	default:
		return "very-low"
	}
}

// ColorCode is the UI color hint for a score
func ColorCode(score int) string {
	switch {
	case score >= 85:
		return "green"
	case score >= 65:
		return "yellow"
	default:
		return "red"
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
