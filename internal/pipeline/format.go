package pipeline

import (
	"time"

	"github.com/credence-dev/credence/internal/model"
	"github.com/credence-dev/credence/internal/score"
)

// The three client shapes below are pure projections over one Outcome.
// They exist for backward compatibility with historically separate
// consumers; no shape is ever stored.

// FactCheck summarizes claim verification for the flat shape.
type FactCheck struct {
	ClaimsAnalyzed int `json:"claimsAnalyzed"`
	ClaimsVerified int `json:"claimsVerified"`
	ClaimsFalse    int `json:"claimsFalse"`
}

// Flat is the original flat client shape.
type Flat struct {
	Score       int       `json:"score"`
	Verdict     string    `json:"verdict"`
	Confidence  float64   `json:"confidence"`
	FactCheck   FactCheck `json:"factCheck"`
	Sources     []string  `json:"sources"`
	Explanation string    `json:"explanation"`
	Cached      bool      `json:"cached"`
	ResultID    string    `json:"resultId"`
}

// BreakdownView renders the sub-scores with the camelCase keys the nested
// shapes use.
type BreakdownView struct {
	FactCheck         int `json:"factCheck"`
	SourceCredibility int `json:"sourceCredibility"`
	SentimentBias     int `json:"sentimentBias"`
}

// VerdictDetail is the tier block of the web shape.
type VerdictDetail struct {
	Category    string   `json:"category"`
	Badge       string   `json:"badge"`
	Action      string   `json:"action"`
	FeedVisible bool     `json:"feedVisible"`
	Warnings    []string `json:"warnings"`
}

// ClaimView is one claim plus its verdict, shared by the nested shapes.
type ClaimView struct {
	Text       string   `json:"text"`
	Type       string   `json:"type"`
	Status     string   `json:"status"`
	Confidence float64  `json:"confidence"`
	Evidence   string   `json:"evidence,omitempty"`
	Sources    []string `json:"sources"`
}

// ArticleView is the article block of the web shape.
type ArticleView struct {
	URL         string     `json:"url,omitempty"`
	Title       string     `json:"title"`
	Author      string     `json:"author,omitempty"`
	Source      string     `json:"source,omitempty"`
	ContentType string     `json:"contentType"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// Meta carries result identity and provenance, shared by the nested shapes.
type Meta struct {
	ResultID         string    `json:"resultId"`
	Cached           bool      `json:"cached"`
	ModelVersion     string    `json:"modelVersion"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
	ProcessedAt      time.Time `json:"processedAt"`
}

// Web is the richer shape the web frontend consumes.
type Web struct {
	TrustScore      int           `json:"trustScore"`
	VerdictDetail   VerdictDetail `json:"verdictDetail"`
	Breakdown       BreakdownView `json:"breakdown"`
	Summary         string        `json:"summary"`
	Recommendations []string      `json:"recommendations"`
	Claims          []ClaimView   `json:"claims"`
	Article         *ArticleView  `json:"article,omitempty"`
	Meta            Meta          `json:"meta"`
}

// CredibilityView is the score block of the extension shape. Category and
// color use the descriptive five-bucket vocabulary, not the tier names.
type CredibilityView struct {
	Score      int     `json:"score"`
	Category   string  `json:"category"`
	Color      string  `json:"color"`
	Confidence float64 `json:"confidence"`
}

// ExtensionDirectives tells the browser extension what to display.
type ExtensionDirectives struct {
	Action      string   `json:"action"`
	Badge       string   `json:"badge"`
	FeedVisible bool     `json:"feedVisible"`
	Warnings    []string `json:"warnings"`
}

// AnalysisView is the narrative block of the extension shape.
type AnalysisView struct {
	Summary       string        `json:"summary"`
	Explanation   string        `json:"explanation"`
	SourceQuality string        `json:"sourceQuality"`
	BiasIndicator string        `json:"biasIndicator"`
	Breakdown     BreakdownView `json:"breakdown"`
}

// Extension is the fully nested shape the browser extension consumes.
type Extension struct {
	Credibility CredibilityView     `json:"credibility"`
	Extension   ExtensionDirectives `json:"extension"`
	Analysis    AnalysisView        `json:"analysis"`
	Claims      []ClaimView         `json:"claims"`
	Meta        Meta                `json:"meta"`
}

// FormatFlat projects the outcome into the flat legacy shape. Verdict
// carries the tier category.
func FormatFlat(out *Outcome) Flat {
	r := out.Result
	return Flat{
		Score:      r.Score,
		Verdict:    r.Category,
		Confidence: r.Confidence,
		FactCheck: FactCheck{
			ClaimsAnalyzed: r.ClaimsAnalyzed,
			ClaimsVerified: r.ClaimsVerified,
			ClaimsFalse:    r.ClaimsFalse,
		},
		Sources:     nonNil(r.Sources),
		Explanation: r.Explanation,
		Cached:      out.Cached,
		ResultID:    r.ID,
	}
}

// FormatWeb projects the outcome into the web shape.
func FormatWeb(out *Outcome) Web {
	r := out.Result
	action, feedVisible := actionFor(r.Category)
	return Web{
		TrustScore: r.Score,
		VerdictDetail: VerdictDetail{
			Category:    r.Category,
			Badge:       r.Badge,
			Action:      action,
			FeedVisible: feedVisible,
			Warnings:    nonNil(r.Warnings),
		},
		Breakdown:       breakdownView(r.Breakdown),
		Summary:         r.Summary,
		Recommendations: nonNil(r.Recommendations),
		Claims:          claimViews(out.Claims),
		Article:         articleView(out.Article),
		Meta:            meta(out),
	}
}

// FormatExtension projects the outcome into the browser-extension shape.
func FormatExtension(out *Outcome) Extension {
	r := out.Result
	action, feedVisible := actionFor(r.Category)
	return Extension{
		Credibility: CredibilityView{
			Score:      r.Score,
			Category:   score.CategoryLabel(r.Score),
			Color:      score.ColorCode(r.Score),
			Confidence: r.Confidence,
		},
		Extension: ExtensionDirectives{
			Action:      action,
			Badge:       r.Badge,
			FeedVisible: feedVisible,
			Warnings:    nonNil(r.Warnings),
		},
		Analysis: AnalysisView{
			Summary:       r.Summary,
			Explanation:   r.Explanation,
			SourceQuality: r.SourceQuality,
			BiasIndicator: r.BiasIndicator,
			Breakdown:     breakdownView(r.Breakdown),
		},
		Claims: claimViews(out.Claims),
		Meta:   meta(out),
	}
}

func actionFor(category string) (string, bool) {
	switch category {
	case score.CategoryAuthorized:
		return score.ActionBlueBadge, true
	case score.CategorySuspicious:
		return score.ActionRedBadge, true
	default:
		return score.ActionOverlay, false
	}
}

func breakdownView(b model.Breakdown) BreakdownView {
	return BreakdownView{
		FactCheck:         b.FactCheck,
		SourceCredibility: b.SourceCredibility,
		SentimentBias:     b.SentimentBias,
	}
}

func claimViews(records []model.ClaimRecord) []ClaimView {
	views := make([]ClaimView, 0, len(records))
	for _, rec := range records {
		views = append(views, ClaimView{
			Text:       rec.Claim.Text,
			Type:       string(rec.Claim.Type),
			Status:     string(rec.Status),
			Confidence: rec.Confidence,
			Evidence:   rec.Evidence,
			Sources:    nonNil(rec.Sources),
		})
	}
	return views
}

func articleView(a *model.Article) *ArticleView {
	if a == nil {
		return nil
	}
	return &ArticleView{
		URL:         a.URL,
		Title:       a.Title,
		Author:      a.Author,
		Source:      a.Source,
		ContentType: string(a.ContentType),
		PublishedAt: a.PublishedAt,
	}
}

func meta(out *Outcome) Meta {
	r := out.Result
	return Meta{
		ResultID:         r.ID,
		Cached:           out.Cached,
		ModelVersion:     r.ModelVersion,
		ProcessingTimeMs: r.ProcessingTimeMs,
		ProcessedAt:      r.CreatedAt,
	}
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
