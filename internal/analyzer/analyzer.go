package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/credence-dev/credence/internal/llm"
	"github.com/credence-dev/credence/internal/model"
	"github.com/credence-dev/credence/internal/score"
)

// Confidence assigned to claims the model never returned a verdict for
const unverifiedConfidence = 0.3

// Analyzer wraps the language-model client behind the degradation contract
// the pipeline depends on: claim extraction never fails (worst case, zero
// claims), verification never drops or reorders claims, and only the
// overall assessment is allowed to fail the analysis.
type Analyzer struct {
	client *llm.Client
	scorer *score.Scorer
	logger zerolog.Logger
}

// New creates an analyzer over the given client and scoring policy
func New(client *llm.Client, scorer *score.Scorer, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		client: client,
		scorer: scorer,
		logger: logger.With().Str("component", "analyzer").Logger(),
	}
}

// ModelVersion identifies the underlying provider/model pair
func (a *Analyzer) ModelVersion() string {
	return a.client.ModelVersion()
}

// ExtractClaims pulls checkable claims from the content. Extraction
// failure degrades to zero claims; the analysis continues without them.
func (a *Analyzer) ExtractClaims(ctx context.Context, content, title string) []model.Claim {
	claims, err := a.client.ExtractClaims(ctx, content, title)
	if err != nil {
		a.logger.Warn().Err(err).Msg("claim extraction failed, continuing without claims")
		return []model.Claim{}
	}
	return claims
}

// VerifyClaims checks each claim against the retrieved context and returns
// exactly one verification per claim, in claim order. Verifications whose
// claim_index matches no claim are dropped; claims the model skipped get an
// UNVERIFIABLE placeholder. Verification failure degrades every claim to
// UNVERIFIABLE rather than failing the analysis.
func (a *Analyzer) VerifyClaims(ctx context.Context, claims []model.Claim, contexts []model.RetrievedContext) []model.ClaimVerification {
	if len(claims) == 0 {
		return []model.ClaimVerification{}
	}

	raw, err := a.client.VerifyClaims(ctx, claims, contexts)
	if err != nil {
		a.logger.Warn().Err(err).Int("claims", len(claims)).Msg("claim verification failed, marking all unverifiable")
		raw = nil
	}

	return align(claims, raw)
}

// align enforces the positional coupling between claims and verifications
func align(claims []model.Claim, raw []model.ClaimVerification) []model.ClaimVerification {
	aligned := make([]model.ClaimVerification, len(claims))
	for i := range aligned {
		aligned[i] = model.ClaimVerification{
			ClaimIndex: i,
			Status:     model.StatusUnverifiable,
			Confidence: unverifiedConfidence,
			Evidence:   "No verification was returned for this claim.",
		}
	}

	filled := make([]bool, len(claims))
	for _, v := range raw {
		if v.ClaimIndex < 0 || v.ClaimIndex >= len(claims) {
			continue
		}
		if filled[v.ClaimIndex] {
			continue
		}
		aligned[v.ClaimIndex] = v
		filled[v.ClaimIndex] = true
	}
	return aligned
}

// AssessInput carries everything Assess needs for one analysis
type AssessInput struct {
	Content       *model.ParsedContent
	Claims        []model.Claim
	Verifications []model.ClaimVerification
}

// Assess produces the overall credibility judgment: the model's summary,
// bias signals, and reader guidance, merged with the deterministic score.
// Unlike extraction and verification, a failure here is fatal to the
// analysis; there is nothing meaningful to return without it.
func (a *Analyzer) Assess(ctx context.Context, in AssessInput) (*model.Assessment, error) {
	start := time.Now()
	body := in.Content.BodyText

	var (
		wg      sync.WaitGroup
		summary string
		signals []llm.BiasSignal
		sumErr  error
		biasErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		summary, sumErr = a.client.Summarize(ctx, body)
	}()
	go func() {
		defer wg.Done()
		signals, biasErr = a.client.AnalyzeBias(ctx, body)
	}()
	wg.Wait()

	if sumErr != nil {
		return nil, fmt.Errorf("summarize content: %w", sumErr)
	}
	if biasErr != nil {
		return nil, fmt.Errorf("analyze bias: %w", biasErr)
	}

	computed := a.scorer.Compute(score.ComputeInput{
		SourceURL:     in.Content.OriginalURL,
		HasURL:        in.Content.OriginalURL != "",
		Claims:        in.Claims,
		Verifications: in.Verifications,
		BiasSignals:   signalStrings(signals),
	})

	recommendations, err := a.client.Recommend(ctx, summary, in.Claims, in.Verifications, signals)
	if err != nil {
		return nil, fmt.Errorf("generate guidance: %w", err)
	}

	return &model.Assessment{
		Score:            computed.Score,
		Confidence:       computed.Confidence,
		Explanation:      buildExplanation(in.Verifications, computed, len(signals)),
		Summary:          summary,
		SourceQuality:    computed.SourceQuality,
		BiasIndicator:    computed.BiasIndicator,
		PositiveSignals:  computed.PositiveSignals,
		NegativeSignals:  computed.NegativeSignals,
		Recommendations:  recommendations,
		Breakdown:        computed.Breakdown,
		ModelVersion:     a.client.ModelVersion(),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// signalStrings flattens bias signals for the scorer's penalty matching
func signalStrings(signals []llm.BiasSignal) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		if s.Detail != "" {
			out[i] = s.Signal + ": " + s.Detail
		} else {
			out[i] = s.Signal
		}
	}
	return out
}

// buildExplanation summarizes the verdict arithmetic in one paragraph
func buildExplanation(verifications []model.ClaimVerification, computed score.ComputeResult, signalCount int) string {
	counts := make(map[model.VerificationStatus]int)
	for _, v := range verifications {
		counts[v.Status]++
	}

	return fmt.Sprintf(
		"Out of %d extracted claim(s), %d verified, %d partially true, %d misleading, %d false, and %d unverifiable. "+
			"Source classified as %s. %d bias/manipulation signal(s) detected. Base credibility score: %d/100.",
		len(verifications),
		counts[model.StatusVerified],
		counts[model.StatusPartiallyTrue],
		counts[model.StatusMisleading],
		counts[model.StatusFalse],
		counts[model.StatusUnverifiable],
		computed.SourceQuality,
		signalCount,
		computed.Score,
	)
}
