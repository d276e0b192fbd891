package model

// Claim represents a checkable assertion extracted from the content
type Claim struct {
	Text       string    `json:"text"`
	Type       ClaimType `json:"type"`
	Importance float64   `json:"importance,omitempty"` // [0,1], extraction-time salience
}

// ClaimType categorizes the nature of the claim
type ClaimType string

const (
	ClaimTypeFactual     ClaimType = "FACTUAL"     // Concrete statements of fact
	ClaimTypeStatistical ClaimType = "STATISTICAL" // Numbers, percentages, measurements
	ClaimTypeQuote       ClaimType = "QUOTE"       // Attributed statements
	ClaimTypeOpinion     ClaimType = "OPINION"     // Subjective judgments
	ClaimTypePrediction  ClaimType = "PREDICTION"  // Forward-looking statements
)

// VerificationStatus is the outcome of checking one claim against context
type VerificationStatus string

const (
	StatusVerified      VerificationStatus = "VERIFIED"
	StatusFalse         VerificationStatus = "FALSE"
	StatusMisleading    VerificationStatus = "MISLEADING"
	StatusPartiallyTrue VerificationStatus = "PARTIALLY_TRUE"
	StatusUnverifiable  VerificationStatus = "UNVERIFIABLE"
)

// ClaimVerification is the verdict for one extracted claim.
// ClaimIndex ties the verification back to the claim by position in the
// extraction order; a verification whose index matches no claim is dropped.
type ClaimVerification struct {
	ClaimIndex int                `json:"claim_index"`
	Status     VerificationStatus `json:"status"`
	Confidence float64            `json:"confidence"` // [0,1]
	Evidence   string             `json:"evidence,omitempty"`
	Sources    []string           `json:"sources,omitempty"`
}

// ClaimRecord is a persisted Claim plus its verification, owned by an
// Article. Written once per analysis run and never mutated; re-analysis
// creates new records.
type ClaimRecord struct {
	ID       int64              `json:"id"`
	ResultID string             `json:"result_id"`
	URLHash  string             `json:"url_hash"`
	Claim    Claim              `json:"claim"`
	Status   VerificationStatus `json:"status"`
	// Confidence, Evidence and Sources mirror the verification at analysis time.
	Confidence float64  `json:"confidence"`
	Evidence   string   `json:"evidence,omitempty"`
	Sources    []string `json:"sources,omitempty"`
}
