// Package pipeline orchestrates a full credibility analysis: cache and
// store lookups, fetch/parse, claim extraction and verification, secondary
// prediction, retrieval, assessment, blending, and persistence. Every
// external dependency except the credibility assessment may fail without
// failing the analysis.
package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/credence-dev/credence/internal/analyzer"
	"github.com/credence-dev/credence/internal/cache"
	"github.com/credence-dev/credence/internal/model"
	"github.com/credence-dev/credence/internal/normalize"
	"github.com/credence-dev/credence/internal/score"
)

// URLParser turns a URL into parsed content.
type URLParser interface {
	Parse(ctx context.Context, rawURL string) (*model.ParsedContent, error)
}

// CredibilityAnalyzer is the language-model side of the pipeline.
// Extraction and verification degrade internally; Assess is the one call
// whose failure aborts the analysis.
type CredibilityAnalyzer interface {
	ExtractClaims(ctx context.Context, content, title string) []model.Claim
	VerifyClaims(ctx context.Context, claims []model.Claim, contexts []model.RetrievedContext) []model.ClaimVerification
	Assess(ctx context.Context, in analyzer.AssessInput) (*model.Assessment, error)
	ModelVersion() string
}

// SecondaryClassifier is the independent authenticity predictor. A nil
// prediction is the degraded signal.
type SecondaryClassifier interface {
	Predict(ctx context.Context, text string) *model.SecondaryPrediction
}

// ContextRetriever supplies verification context and grows the corpus.
type ContextRetriever interface {
	RetrieveForClaims(ctx context.Context, claims []model.Claim) []model.RetrievedContext
	Index(ctx context.Context, parsed *model.ParsedContent) error
}

// ResultStore is the persistence layer the orchestrator writes through.
type ResultStore interface {
	GetArticle(urlHash string) (*model.Article, error)
	LatestResultByHash(urlHash string) (*model.AnalysisResult, error)
	ClaimsByResult(resultID string) ([]model.ClaimRecord, error)
	UpsertArticle(a *model.Article) error
	CreateResult(result *model.AnalysisResult, claims []model.ClaimRecord) error
	CreateRequest(req *model.AnalysisRequest) error
	UpdateRequest(id string, status model.RequestStatus, resultID, errMsg string) error
}

// OutcomeArchiver uploads completed outcomes somewhere durable.
type OutcomeArchiver interface {
	Enabled() bool
	Archive(ctx context.Context, urlHash, resultID string, payload any) error
}

// Outcome is the canonical analysis output. The three client shapes in
// format.go are pure projections over it.
type Outcome struct {
	Result  *model.AnalysisResult `json:"result"`
	Article *model.Article        `json:"article,omitempty"`
	Claims  []model.ClaimRecord   `json:"claims,omitempty"`
	Cached  bool                  `json:"cached"`
}

// Deps are the orchestrator's collaborators, constructed and owned by the
// caller. Parser, Analyzer, Store, Cache, and Blender are required;
// Classifier, Retriever, and Archiver may be nil when the capability is
// not configured.
type Deps struct {
	Parser     URLParser
	Analyzer   CredibilityAnalyzer
	Classifier SecondaryClassifier
	Retriever  ContextRetriever
	Store      ResultStore
	Cache      cache.Cache
	Archiver   OutcomeArchiver
	Blender    *score.Engine
	Config     *model.Config
	Logger     zerolog.Logger
}

// Orchestrator sequences one analysis end to end.
type Orchestrator struct {
	parser       URLParser
	analyzer     CredibilityAnalyzer
	classifier   SecondaryClassifier
	retriever    ContextRetriever
	store        ResultStore
	cache        cache.Cache
	archiver     OutcomeArchiver
	blender      *score.Engine
	cacheTTL     time.Duration
	cacheEnabled bool
	logger       zerolog.Logger
}

// New creates an orchestrator from its collaborators.
func New(deps Deps) *Orchestrator {
	cfg := deps.Config
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	blender := deps.Blender
	if blender == nil {
		blender = score.NewEngine(&cfg.Score)
	}
	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Orchestrator{
		parser:       deps.Parser,
		analyzer:     deps.Analyzer,
		classifier:   deps.Classifier,
		retriever:    deps.Retriever,
		store:        deps.Store,
		cache:        deps.Cache,
		archiver:     deps.Archiver,
		blender:      blender,
		cacheTTL:     ttl,
		cacheEnabled: cfg.Cache.Enabled,
		logger:       deps.Logger.With().Str("component", "pipeline").Logger(),
	}
}

// AnalyzeURL runs the full pipeline for a URL input.
func (o *Orchestrator) AnalyzeURL(ctx context.Context, rawURL, sessionID string) (*Outcome, error) {
	start := time.Now()
	fingerprint := normalize.FingerprintURL(rawURL)
	audit := o.beginAudit(model.RequestTypeURL, rawURL, fingerprint, sessionID)

	if out := o.reusable(fingerprint); out != nil {
		o.finishAudit(audit, model.RequestCached, out.Result.ID, "")
		return out, nil
	}

	parsed, err := o.parser.Parse(ctx, rawURL)
	if err != nil {
		perr := &ParseError{Input: rawURL, Err: err}
		o.finishAudit(audit, model.RequestFailed, "", perr.Error())
		return nil, perr
	}

	return o.analyze(ctx, parsed, audit, start)
}

// AnalyzeText runs the full pipeline for raw text input. The fetch step
// is skipped: the text is normalized directly into parsed content.
func (o *Orchestrator) AnalyzeText(ctx context.Context, text, title, sessionID string) (*Outcome, error) {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		fingerprint := normalize.FingerprintText(text)
		audit := o.beginAudit(model.RequestTypeText, "", fingerprint, sessionID)
		perr := &ParseError{Input: "text", Err: errEmptyText}
		o.finishAudit(audit, model.RequestFailed, "", perr.Error())
		return nil, perr
	}

	parsed := normalize.FromText(text, title)
	audit := o.beginAudit(model.RequestTypeText, "", parsed.Fingerprint, sessionID)

	if out := o.reusable(parsed.Fingerprint); out != nil {
		o.finishAudit(audit, model.RequestCached, out.Result.ID, "")
		return out, nil
	}

	return o.analyze(ctx, parsed, audit, start)
}

// analyze runs steps 4 through 10 on already-parsed content.
func (o *Orchestrator) analyze(ctx context.Context, parsed *model.ParsedContent, audit *model.AnalysisRequest, start time.Time) (*Outcome, error) {
	// Claim extraction and secondary prediction settle in parallel; both
	// degrade rather than fail.
	var (
		claims     []model.Claim
		prediction *model.SecondaryPrediction
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		claims = o.analyzer.ExtractClaims(ctx, parsed.BodyText, parsed.Title)
	}()
	go func() {
		defer wg.Done()
		if o.classifier != nil {
			prediction = o.classifier.Predict(ctx, parsed.BodyText)
		}
	}()
	wg.Wait()

	var contexts []model.RetrievedContext
	if o.retriever != nil {
		contexts = o.retriever.RetrieveForClaims(ctx, claims)
	}

	verifications := o.analyzer.VerifyClaims(ctx, claims, contexts)

	assessment, err := o.analyzer.Assess(ctx, analyzer.AssessInput{
		Content:       parsed,
		Claims:        claims,
		Verifications: verifications,
	})
	if err != nil {
		aerr := &AnalysisError{Err: err}
		o.finishAudit(audit, model.RequestFailed, "", aerr.Error())
		return nil, aerr
	}

	blend := o.blender.Blend(assessment.Score, assessment.Confidence, parsed.ContentType, prediction)

	result := buildResult(parsed, assessment, blend, verifications, prediction)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	records := claimRecords(parsed.Fingerprint, result.ID, claims, verifications)
	article := articleFromParsed(parsed)

	out := &Outcome{Result: result, Article: article, Claims: records, Cached: false}

	// Persistence failures are logged and the computed result is still
	// returned: losing a cache fill is acceptable, losing the answer is not.
	if err := o.store.UpsertArticle(article); err != nil {
		o.logger.Error().Err(&PersistenceError{Op: "article", Err: err}).Str("url_hash", parsed.Fingerprint).Msg("article upsert failed")
	}
	if err := o.store.CreateResult(result, records); err != nil {
		o.logger.Error().Err(&PersistenceError{Op: "result", Err: err}).Str("url_hash", parsed.Fingerprint).Msg("result write failed")
	}

	o.finishAudit(audit, model.RequestCompleted, result.ID, "")
	o.populateCache(parsed.Fingerprint, out)

	if o.archiver != nil && o.archiver.Enabled() {
		if err := o.archiver.Archive(ctx, parsed.Fingerprint, result.ID, out); err != nil {
			o.logger.Warn().Err(err).Msg("archive failed")
		}
	}
	if o.retriever != nil {
		if err := o.retriever.Index(ctx, parsed); err != nil {
			o.logger.Warn().Err(err).Msg("corpus indexing failed")
		}
	}

	o.logger.Info().
		Str("url_hash", parsed.Fingerprint).
		Int("score", result.Score).
		Str("category", result.Category).
		Int("claims", len(claims)).
		Int64("ms", result.ProcessingTimeMs).
		Msg("analysis complete")

	return out, nil
}

// reusable returns a prior outcome for the fingerprint, from cache first
// and from the store second. A store hit re-populates the cache.
func (o *Orchestrator) reusable(fingerprint string) *Outcome {
	if out := o.cachedOutcome(fingerprint); out != nil {
		return out
	}

	result, err := o.store.LatestResultByHash(fingerprint)
	if err != nil || result == nil {
		if err != nil {
			o.logger.Warn().Err(err).Msg("store lookup failed, analyzing fresh")
		}
		return nil
	}
	article, err := o.store.GetArticle(fingerprint)
	if err != nil {
		o.logger.Warn().Err(err).Msg("article lookup failed")
	}
	claims, err := o.store.ClaimsByResult(result.ID)
	if err != nil {
		o.logger.Warn().Err(err).Msg("claim lookup failed")
	}

	out := &Outcome{Result: result, Article: article, Claims: claims, Cached: true}
	o.populateCache(fingerprint, out)
	return out
}

func (o *Orchestrator) cachedOutcome(fingerprint string) *Outcome {
	if !o.cacheEnabled || o.cache == nil {
		return nil
	}
	raw, ok := o.cache.Get(cache.ResultKey(fingerprint))
	if !ok {
		return nil
	}
	var out Outcome
	if err := json.Unmarshal(raw, &out); err != nil || out.Result == nil {
		o.logger.Warn().Err(err).Msg("discarding undecodable cache entry")
		return nil
	}
	out.Cached = true
	return &out
}

func (o *Orchestrator) populateCache(fingerprint string, out *Outcome) {
	if !o.cacheEnabled || o.cache == nil {
		return
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return
	}
	if err := o.cache.Set(cache.ResultKey(fingerprint), raw, o.cacheTTL); err != nil {
		o.logger.Warn().Err(err).Msg("cache populate failed")
	}
}

// beginAudit writes the single audit row for this call. Audit failures
// are logged and swallowed, never surfaced.
func (o *Orchestrator) beginAudit(t model.RequestType, inputURL, fingerprint, sessionID string) *model.AnalysisRequest {
	req := &model.AnalysisRequest{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		RequestType: t,
		InputURL:    inputURL,
		InputHash:   fingerprint,
		Status:      model.RequestPending,
	}
	if err := o.store.CreateRequest(req); err != nil {
		o.logger.Warn().Err(err).Msg("audit write failed")
	}
	return req
}

func (o *Orchestrator) finishAudit(req *model.AnalysisRequest, status model.RequestStatus, resultID, errMsg string) {
	if err := o.store.UpdateRequest(req.ID, status, resultID, errMsg); err != nil {
		o.logger.Warn().Err(err).Msg("audit update failed")
	}
}

func buildResult(parsed *model.ParsedContent, assessment *model.Assessment, blend score.BlendResult, verifications []model.ClaimVerification, prediction *model.SecondaryPrediction) *model.AnalysisResult {
	verifiedCount, falseCount := 0, 0
	for _, v := range verifications {
		switch v.Status {
		case model.StatusVerified:
			verifiedCount++
		case model.StatusFalse:
			falseCount++
		}
	}

	secondaryLabel := ""
	if prediction != nil {
		secondaryLabel = string(prediction.Label)
	}

	return &model.AnalysisResult{
		ID:               uuid.NewString(),
		URLHash:          parsed.Fingerprint,
		Score:            blend.FinalScore,
		Confidence:       blend.Confidence,
		Category:         blend.Verdict.Category,
		Badge:            blend.Verdict.Badge,
		Explanation:      assessment.Explanation,
		Summary:          assessment.Summary,
		ClaimsAnalyzed:   len(verifications),
		ClaimsVerified:   verifiedCount,
		ClaimsFalse:      falseCount,
		SourceQuality:    assessment.SourceQuality,
		BiasIndicator:    assessment.BiasIndicator,
		Breakdown:        assessment.Breakdown,
		Sources:          collectSources(verifications),
		Warnings:         blend.Warnings,
		Recommendations:  assessment.Recommendations,
		SecondaryLabel:   secondaryLabel,
		ModelVersion:     assessment.ModelVersion,
		CreatedAt:        time.Now().UTC(),
	}
}

func claimRecords(urlHash, resultID string, claims []model.Claim, verifications []model.ClaimVerification) []model.ClaimRecord {
	if len(claims) == 0 {
		return nil
	}
	records := make([]model.ClaimRecord, 0, len(claims))
	for i, c := range claims {
		rec := model.ClaimRecord{
			ResultID: resultID,
			URLHash:  urlHash,
			Claim:    c,
			Status:   model.StatusUnverifiable,
		}
		if i < len(verifications) {
			rec.Status = verifications[i].Status
			rec.Confidence = verifications[i].Confidence
			rec.Evidence = verifications[i].Evidence
			rec.Sources = verifications[i].Sources
		}
		records = append(records, rec)
	}
	return records
}

func articleFromParsed(parsed *model.ParsedContent) *model.Article {
	return &model.Article{
		URLHash:     parsed.Fingerprint,
		URL:         parsed.OriginalURL,
		Title:       parsed.Title,
		Author:      parsed.Author,
		Source:      parsed.Source,
		ContentType: parsed.ContentType,
		BodyText:    parsed.BodyText,
		PublishedAt: parsed.PublishedAt,
	}
}

// collectSources merges per-claim source lists, deduplicated in first-seen
// order.
func collectSources(verifications []model.ClaimVerification) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range verifications {
		for _, s := range v.Sources {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
