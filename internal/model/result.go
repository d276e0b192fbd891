package model

import "time"

// PredictionLabel is the secondary classifier's binary verdict
type PredictionLabel string

const (
	LabelReal PredictionLabel = "REAL"
	LabelFake PredictionLabel = "FAKE"
)

// SecondaryPrediction is the output of the independent authenticity
// classifier. All values are percentages in [0,100]. A nil
// *SecondaryPrediction means the classifier was unavailable or timed out;
// that is a degraded signal, never a pipeline failure.
type SecondaryPrediction struct {
	Label           PredictionLabel `json:"label"`
	Confidence      float64         `json:"confidence"`
	RealProbability float64         `json:"real_probability"`
	FakeProbability float64         `json:"fake_probability"`
}

// Breakdown holds the per-dimension sub-scores, each in [0,100]
type Breakdown struct {
	FactCheck         int `json:"fact_check"`
	SourceCredibility int `json:"source_credibility"`
	SentimentBias     int `json:"sentiment_bias"`
}

// Assessment is the overall credibility judgment produced by the language
// analyzer (model signals plus the deterministic scorer) BEFORE blending.
type Assessment struct {
	Score            int       `json:"score"`      // Base credibility score [0,100]
	Confidence       float64   `json:"confidence"` // [0,1]
	Explanation      string    `json:"explanation"`
	Summary          string    `json:"summary"`
	SourceQuality    string    `json:"source_quality"` // institutional/journalism/misinformation/unknown
	BiasIndicator    string    `json:"bias_indicator"` // low/moderate/high
	PositiveSignals  []string  `json:"positive_signals,omitempty"`
	NegativeSignals  []string  `json:"negative_signals,omitempty"`
	Recommendations  []string  `json:"recommendations,omitempty"` // 2-4 reader suggestions
	Breakdown        Breakdown `json:"breakdown"`
	ModelVersion     string    `json:"model_version"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}

// Article is the persisted record for one fingerprint. Upserted on every
// analysis of the same fingerprint: mutable, always reflecting the latest
// parse. Long-lived across repeated analyses.
type Article struct {
	URLHash        string      `json:"url_hash"` // ContentFingerprint; primary key
	URL            string      `json:"url,omitempty"`
	Title          string      `json:"title"`
	Author         string      `json:"author,omitempty"`
	Source         string      `json:"source,omitempty"`
	ContentType    ContentType `json:"content_type"`
	BodyText       string      `json:"body_text,omitempty"`
	PublishedAt    *time.Time  `json:"published_at,omitempty"`
	FirstSeenAt    time.Time   `json:"first_seen_at"`
	LastAnalyzedAt time.Time   `json:"last_analyzed_at"`
}

// AnalysisResult is the persisted outcome of one completed analysis.
// Immutable once created; an Article accumulates results latest-first.
// Score is the final blended score and is always clamped to [0,100].
type AnalysisResult struct {
	ID               string    `json:"id"` // UUID
	URLHash          string    `json:"url_hash"`
	Score            int       `json:"score"`
	Confidence       float64   `json:"confidence"` // [0,1], post content-type adjustment
	Category         string    `json:"category"`   // authorized/suspicious/flagged
	Badge            string    `json:"badge"`      // VERIFIED/UNVERIFIED/FAKE
	Explanation      string    `json:"explanation"`
	Summary          string    `json:"summary"`
	ClaimsAnalyzed   int       `json:"claims_analyzed"`
	ClaimsVerified   int       `json:"claims_verified"`
	ClaimsFalse      int       `json:"claims_false"`
	SourceQuality    string    `json:"source_quality"`
	BiasIndicator    string    `json:"bias_indicator"`
	Breakdown        Breakdown `json:"breakdown"`
	Sources          []string  `json:"sources,omitempty"`
	Warnings         []string  `json:"warnings,omitempty"`
	Recommendations  []string  `json:"recommendations,omitempty"`
	SecondaryLabel   string    `json:"secondary_label,omitempty"` // Empty when the classifier degraded
	ModelVersion     string    `json:"model_version"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// RequestType distinguishes the two analysis entry points
type RequestType string

const (
	RequestTypeURL  RequestType = "URL"
	RequestTypeText RequestType = "TEXT"
)

// RequestStatus is the lifecycle state of one audit row
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestCached    RequestStatus = "CACHED"
	RequestCompleted RequestStatus = "COMPLETED"
	RequestFailed    RequestStatus = "FAILED"
)

// AnalysisRequest is the append-only audit record of one analysis attempt.
// Exactly one row is written per analyze call regardless of outcome (cache
// hit, fresh run, or failure); rows are never deleted by the pipeline.
type AnalysisRequest struct {
	ID           string        `json:"id"` // UUID
	SessionID    string        `json:"session_id,omitempty"`
	RequestType  RequestType   `json:"request_type"`
	InputURL     string        `json:"input_url,omitempty"`
	InputHash    string        `json:"input_hash"`
	Status       RequestStatus `json:"status"`
	ResultID     string        `json:"result_id,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}
