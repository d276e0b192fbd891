package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/credence-dev/credence/internal/model"
)

// BiasSignal is one manipulation indicator reported by the bias analysis
type BiasSignal struct {
	Signal string `json:"signal"`
	Detail string `json:"detail,omitempty"`
}

// fallbackSummary is returned when the model replies with an empty summary
const fallbackSummary = "The content could not be summarized."

// maxRecommendations caps reader guidance length
const maxRecommendations = 4

// Client runs the analysis calls against a Provider: prompt construction,
// reply parsing, and bounded retries with exponential backoff. The Client
// reports transport and parse errors as-is; degradation policy (empty
// claims, per-claim UNVERIFIABLE fallbacks) belongs to the caller.
type Client struct {
	provider Provider
	config   Config
	logger   zerolog.Logger
}

// NewClient creates a client over the given provider
func NewClient(provider Provider, config Config, logger zerolog.Logger) *Client {
	return &Client{
		provider: provider,
		config:   config,
		logger:   logger.With().Str("component", "llm").Str("provider", provider.Name()).Logger(),
	}
}

// ModelVersion identifies the provider/model pair for result records
func (c *Client) ModelVersion() string {
	if c.config.Model != "" {
		return c.provider.Name() + "/" + c.config.Model
	}
	return c.provider.Name()
}

// IsAvailable reports whether the underlying provider is reachable
func (c *Client) IsAvailable(ctx context.Context) bool {
	return c.provider.IsAvailable(ctx)
}

// Summarize returns a neutral 2-3 sentence summary of the content
func (c *Client) Summarize(ctx context.Context, content string) (string, error) {
	raw, err := c.completeWithRetry(ctx, summaryPrompt, content)
	if err != nil {
		return "", err
	}

	var out struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(extractJSON(raw), &out); err != nil {
		return "", fmt.Errorf("parse summary reply: %w", err)
	}

	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		c.logger.Warn().Msg("model returned empty summary, using fallback")
		return fallbackSummary, nil
	}
	return summary, nil
}

// ExtractClaims pulls checkable claims out of content. Replies are
// deduplicated case-insensitively and capped at the configured maximum.
func (c *Client) ExtractClaims(ctx context.Context, content, title string) ([]model.Claim, error) {
	maxClaims := c.config.MaxClaims
	if maxClaims <= 0 {
		maxClaims = 10
	}

	input := content
	if title != "" {
		input = "Title: " + title + "\n\n" + content
	}

	raw, err := c.completeWithRetry(ctx, extractionPrompt(maxClaims), input)
	if err != nil {
		return nil, err
	}

	var out struct {
		Claims []struct {
			Text       string  `json:"text"`
			Type       string  `json:"type"`
			Importance float64 `json:"importance"`
		} `json:"claims"`
	}
	if err := json.Unmarshal(extractJSON(raw), &out); err != nil {
		return nil, fmt.Errorf("parse claims reply: %w", err)
	}

	seen := make(map[string]bool)
	claims := make([]model.Claim, 0, len(out.Claims))
	for _, item := range out.Claims {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if seen[key] {
			continue
		}
		seen[key] = true

		claims = append(claims, model.Claim{
			Text:       text,
			Type:       parseClaimType(item.Type),
			Importance: clampConfidence(item.Importance),
		})
		if len(claims) == maxClaims {
			break
		}
	}

	return claims, nil
}

// VerifyClaims checks each claim against the retrieved context. The reply's
// claim_index values are passed through untouched; positional alignment
// against the claim list is the caller's concern.
func (c *Client) VerifyClaims(ctx context.Context, claims []model.Claim, contexts []model.RetrievedContext) ([]model.ClaimVerification, error) {
	if len(claims) == 0 {
		return []model.ClaimVerification{}, nil
	}

	var b strings.Builder
	b.WriteString("Claims to verify:\n")
	for i, claim := range claims {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i, claim.Type, claim.Text)
	}
	if len(contexts) > 0 {
		b.WriteString("\nRetrieved context passages:\n")
		for _, rc := range contexts {
			fmt.Fprintf(&b, "- (%s, similarity %.2f) %s\n", rc.Source, rc.Similarity, rc.Text)
		}
	}

	raw, err := c.completeWithRetry(ctx, verificationPrompt, b.String())
	if err != nil {
		return nil, err
	}

	var out struct {
		Results []struct {
			ClaimIndex int      `json:"claim_index"`
			Status     string   `json:"status"`
			Confidence float64  `json:"confidence"`
			Evidence   string   `json:"evidence"`
			Sources    []string `json:"sources"`
		} `json:"results"`
	}
	if err := json.Unmarshal(extractJSON(raw), &out); err != nil {
		return nil, fmt.Errorf("parse verification reply: %w", err)
	}

	verifications := make([]model.ClaimVerification, 0, len(out.Results))
	for _, r := range out.Results {
		verifications = append(verifications, model.ClaimVerification{
			ClaimIndex: r.ClaimIndex,
			Status:     parseStatus(r.Status),
			Confidence: clampConfidence(r.Confidence),
			Evidence:   r.Evidence,
			Sources:    r.Sources,
		})
	}
	return verifications, nil
}

// AnalyzeBias detects manipulation signals in the content
func (c *Client) AnalyzeBias(ctx context.Context, content string) ([]BiasSignal, error) {
	raw, err := c.completeWithRetry(ctx, biasPrompt, content)
	if err != nil {
		return nil, err
	}

	var out struct {
		BiasSignals []BiasSignal `json:"bias_signals"`
	}
	if err := json.Unmarshal(extractJSON(raw), &out); err != nil {
		return nil, fmt.Errorf("parse bias reply: %w", err)
	}

	signals := make([]BiasSignal, 0, len(out.BiasSignals))
	for _, s := range out.BiasSignals {
		if strings.TrimSpace(s.Signal) == "" {
			continue
		}
		signals = append(signals, s)
	}
	return signals, nil
}

// Recommend generates 2-4 reader suggestions from the analysis so far
func (c *Client) Recommend(ctx context.Context, summary string, claims []model.Claim, verifications []model.ClaimVerification, signals []BiasSignal) ([]string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary: %s\n", summary)
	b.WriteString("Claims:\n")
	for i, claim := range claims {
		status := model.StatusUnverifiable
		if i < len(verifications) {
			status = verifications[i].Status
		}
		fmt.Fprintf(&b, "  - [%s] %s\n", status, claim.Text)
	}
	b.WriteString("Bias signals:\n")
	for _, s := range signals {
		if s.Detail != "" {
			fmt.Fprintf(&b, "  - %s: %s\n", s.Signal, s.Detail)
		} else {
			fmt.Fprintf(&b, "  - %s\n", s.Signal)
		}
	}

	raw, err := c.completeWithRetry(ctx, guidancePrompt, b.String())
	if err != nil {
		return nil, err
	}

	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal(extractJSON(raw), &out); err != nil {
		return nil, fmt.Errorf("parse guidance reply: %w", err)
	}

	suggestions := make([]string, 0, maxRecommendations)
	for _, s := range out.Suggestions {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		suggestions = append(suggestions, s)
		if len(suggestions) == maxRecommendations {
			break
		}
	}
	return suggestions, nil
}

// completeWithRetry calls the provider with exponential backoff on failure
func (c *Client) completeWithRetry(ctx context.Context, systemPrompt, userMessage string) ([]byte, error) {
	attempts := c.config.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	delay := c.config.RetryBaseDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	maxDelay := c.config.RetryMaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := c.provider.CompleteJSON(ctx, systemPrompt, userMessage)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		c.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("model call failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return nil, fmt.Errorf("model call failed after %d attempts: %w", attempts, lastErr)
}

// extractJSON trims markdown fences and surrounding prose some models wrap
// around a JSON reply
func extractJSON(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			return []byte(s[i : j+1])
		}
	}
	return []byte(s)
}

// parseClaimType normalizes the model's claim type string
func parseClaimType(raw string) model.ClaimType {
	switch model.ClaimType(strings.ToUpper(strings.TrimSpace(raw))) {
	case model.ClaimTypeFactual:
		return model.ClaimTypeFactual
	case model.ClaimTypeStatistical:
		return model.ClaimTypeStatistical
	case model.ClaimTypeQuote:
		return model.ClaimTypeQuote
	case model.ClaimTypeOpinion:
		return model.ClaimTypeOpinion
	case model.ClaimTypePrediction:
		return model.ClaimTypePrediction
	default:
		return model.ClaimTypeFactual
	}
}

// parseStatus normalizes the model's verification status string.
// Unrecognized statuses default to UNVERIFIABLE rather than failing the run.
func parseStatus(raw string) model.VerificationStatus {
	switch model.VerificationStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case model.StatusVerified:
		return model.StatusVerified
	case model.StatusFalse:
		return model.StatusFalse
	case model.StatusMisleading:
		return model.StatusMisleading
	case model.StatusPartiallyTrue:
		return model.StatusPartiallyTrue
	case model.StatusUnverifiable:
		return model.StatusUnverifiable
	default:
		return model.StatusUnverifiable
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
