package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/credence-dev/credence/internal/analyzer"
	"github.com/credence-dev/credence/internal/cache"
	"github.com/credence-dev/credence/internal/model"
	"github.com/credence-dev/credence/internal/normalize"
)

const testURL = "https://www.reuters.com/markets/rate-cut-outlook"

type fakeParser struct {
	parsed *model.ParsedContent
	err    error
	calls  int
}

func (f *fakeParser) Parse(ctx context.Context, rawURL string) (*model.ParsedContent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.parsed, nil
}

type fakeAnalyzer struct {
	claims        []model.Claim
	verifications []model.ClaimVerification
	assessment    *model.Assessment
	assessErr     error

	mu           sync.Mutex
	extractCalls int
	verifyCalls  int
	gotContexts  []model.RetrievedContext
}

func (f *fakeAnalyzer) ExtractClaims(ctx context.Context, content, title string) []model.Claim {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractCalls++
	return f.claims
}

func (f *fakeAnalyzer) VerifyClaims(ctx context.Context, claims []model.Claim, contexts []model.RetrievedContext) []model.ClaimVerification {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	f.gotContexts = contexts
	return f.verifications
}

func (f *fakeAnalyzer) Assess(ctx context.Context, in analyzer.AssessInput) (*model.Assessment, error) {
	if f.assessErr != nil {
		return nil, f.assessErr
	}
	return f.assessment, nil
}

func (f *fakeAnalyzer) ModelVersion() string { return "fake-model" }

type fakeClassifier struct {
	mu         sync.Mutex
	prediction *model.SecondaryPrediction
	calls      int
}

func (f *fakeClassifier) Predict(ctx context.Context, text string) *model.SecondaryPrediction {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.prediction
}

type fakeRetriever struct {
	contexts      []model.RetrievedContext
	indexErr      error
	retrieveCalls int
	gotClaims     []model.Claim
	indexed       []string
}

func (f *fakeRetriever) RetrieveForClaims(ctx context.Context, claims []model.Claim) []model.RetrievedContext {
	f.retrieveCalls++
	f.gotClaims = claims
	return f.contexts
}

func (f *fakeRetriever) Index(ctx context.Context, parsed *model.ParsedContent) error {
	if f.indexErr != nil {
		return f.indexErr
	}
	f.indexed = append(f.indexed, parsed.Fingerprint)
	return nil
}

type fakeArchiver struct {
	enabled  bool
	err      error
	archived []string
}

func (f *fakeArchiver) Enabled() bool { return f.enabled }

func (f *fakeArchiver) Archive(ctx context.Context, urlHash, resultID string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.archived = append(f.archived, resultID)
	return nil
}

type fakeStore struct {
	mu       sync.Mutex
	requests map[string]*model.AnalysisRequest
	articles map[string]*model.Article
	results  map[string][]*model.AnalysisResult
	claims   map[string][]model.ClaimRecord

	failUpsert        error
	failCreateResult  error
	failCreateRequest error
	failUpdateRequest error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		requests: make(map[string]*model.AnalysisRequest),
		articles: make(map[string]*model.Article),
		results:  make(map[string][]*model.AnalysisResult),
		claims:   make(map[string][]model.ClaimRecord),
	}
}

func (f *fakeStore) GetArticle(urlHash string) (*model.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.articles[urlHash], nil
}

func (f *fakeStore) LatestResultByHash(urlHash string) (*model.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rs := f.results[urlHash]
	if len(rs) == 0 {
		return nil, nil
	}
	return rs[len(rs)-1], nil
}

func (f *fakeStore) ClaimsByResult(resultID string) ([]model.ClaimRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claims[resultID], nil
}

func (f *fakeStore) UpsertArticle(a *model.Article) error {
	if f.failUpsert != nil {
		return f.failUpsert
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.articles[a.URLHash] = a
	return nil
}

func (f *fakeStore) CreateResult(result *model.AnalysisResult, claims []model.ClaimRecord) error {
	if f.failCreateResult != nil {
		return f.failCreateResult
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[result.URLHash] = append(f.results[result.URLHash], result)
	f.claims[result.ID] = claims
	return nil
}

func (f *fakeStore) CreateRequest(req *model.AnalysisRequest) error {
	if f.failCreateRequest != nil {
		return f.failCreateRequest
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[req.ID] = req
	return nil
}

func (f *fakeStore) UpdateRequest(id string, status model.RequestStatus, resultID, errMsg string) error {
	if f.failUpdateRequest != nil {
		return f.failUpdateRequest
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return fmt.Errorf("request %s not found", id)
	}
	req.Status = status
	req.ResultID = resultID
	req.ErrorMessage = errMsg
	return nil
}

// auditRows returns all audit rows with the given status.
func (f *fakeStore) auditRows(status model.RequestStatus) []*model.AnalysisRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.AnalysisRequest
	for _, req := range f.requests {
		if req.Status == status {
			out = append(out, req)
		}
	}
	return out
}

type testEnv struct {
	parser     *fakeParser
	analyzer   *fakeAnalyzer
	classifier *fakeClassifier
	retriever  *fakeRetriever
	archiver   *fakeArchiver
	store      *fakeStore
	cache      cache.Cache
	orch       *Orchestrator
}

func sampleParsed() *model.ParsedContent {
	return &model.ParsedContent{
		Fingerprint: normalize.FingerprintURL(testURL),
		OriginalURL: testURL,
		Title:       "Central Bank Signals Rate Cut",
		Author:      "Jane Doe",
		Source:      "www.reuters.com",
		BodyText:    "The central bank signaled a quarter-point cut at its next meeting. Inflation fell to 2.4 percent in July.",
		ContentType: model.ContentTypeNews,
	}
}

func newTestEnv() *testEnv {
	env := &testEnv{
		parser: &fakeParser{parsed: sampleParsed()},
		analyzer: &fakeAnalyzer{
			claims: []model.Claim{
				{Text: "Inflation fell to 2.4 percent in July", Type: model.ClaimTypeStatistical, Importance: 0.9},
				{Text: "The bank will cut rates at its next meeting", Type: model.ClaimTypePrediction, Importance: 0.7},
			},
			verifications: []model.ClaimVerification{
				{ClaimIndex: 0, Status: model.StatusVerified, Confidence: 0.9, Evidence: "Matches the July CPI release.", Sources: []string{"https://stats.example.gov/cpi-july"}},
				{ClaimIndex: 1, Status: model.StatusFalse, Confidence: 0.8, Evidence: "The bank made no such commitment.", Sources: []string{"https://centralbank.example/statement"}},
			},
			assessment: &model.Assessment{
				Score:           80,
				Confidence:      0.9,
				Explanation:     "Out of 2 extracted claim(s), 1 verified, 1 false.",
				Summary:         "An article on expected rate cuts.",
				SourceQuality:   "journalism",
				BiasIndicator:   "low",
				Recommendations: []string{"Check the bank's official statement"},
				Breakdown:       model.Breakdown{FactCheck: 70, SourceCredibility: 62, SentimentBias: 100},
				ModelVersion:    "fake-model",
			},
		},
		classifier: &fakeClassifier{},
		retriever:  &fakeRetriever{},
		archiver:   &fakeArchiver{enabled: true},
		store:      newFakeStore(),
		cache:      cache.NewMemoryCache(time.Hour, time.Hour),
	}
	env.orch = New(Deps{
		Parser:     env.parser,
		Analyzer:   env.analyzer,
		Classifier: env.classifier,
		Retriever:  env.retriever,
		Store:      env.store,
		Cache:      env.cache,
		Archiver:   env.archiver,
		Config:     model.DefaultConfig(),
		Logger:     zerolog.Nop(),
	})
	return env
}

func TestAnalyzeURL_FreshRun(t *testing.T) {
	env := newTestEnv()

	out, err := env.orch.AnalyzeURL(context.Background(), testURL, "session-1")
	if err != nil {
		t.Fatalf("AnalyzeURL failed: %v", err)
	}

	if out.Cached {
		t.Error("Expected a fresh result, got cached")
	}
	r := out.Result
	// No secondary prediction, so the final score equals the analyzer score
	if r.Score != 80 {
		t.Errorf("Expected score 80, got %d", r.Score)
	}
	if r.Category != "suspicious" || r.Badge != "UNVERIFIED" {
		t.Errorf("Expected suspicious/UNVERIFIED tier, got %s/%s", r.Category, r.Badge)
	}
	if r.ClaimsAnalyzed != 2 || r.ClaimsVerified != 1 || r.ClaimsFalse != 1 {
		t.Errorf("Expected claim counts 2/1/1, got %d/%d/%d", r.ClaimsAnalyzed, r.ClaimsVerified, r.ClaimsFalse)
	}
	if len(r.Sources) != 2 {
		t.Errorf("Expected 2 merged sources, got %v", r.Sources)
	}
	if r.SecondaryLabel != "" {
		t.Errorf("Expected no secondary label, got %q", r.SecondaryLabel)
	}
	if r.ID == "" {
		t.Error("Expected a result ID")
	}

	fingerprint := normalize.FingerprintURL(testURL)
	if env.store.articles[fingerprint] == nil {
		t.Error("Expected the article to be persisted")
	}
	if len(env.store.results[fingerprint]) != 1 {
		t.Errorf("Expected 1 persisted result, got %d", len(env.store.results[fingerprint]))
	}
	if len(env.store.claims[r.ID]) != 2 {
		t.Errorf("Expected 2 claim records, got %d", len(env.store.claims[r.ID]))
	}

	completed := env.store.auditRows(model.RequestCompleted)
	if len(completed) != 1 {
		t.Fatalf("Expected 1 COMPLETED audit row, got %d", len(completed))
	}
	if completed[0].ResultID != r.ID {
		t.Errorf("Expected audit row to reference %s, got %s", r.ID, completed[0].ResultID)
	}
	if completed[0].SessionID != "session-1" {
		t.Errorf("Expected session-1 on the audit row, got %q", completed[0].SessionID)
	}

	if len(env.retriever.indexed) != 1 || env.retriever.indexed[0] != fingerprint {
		t.Errorf("Expected the content indexed into the corpus, got %v", env.retriever.indexed)
	}
	if len(env.archiver.archived) != 1 || env.archiver.archived[0] != r.ID {
		t.Errorf("Expected the outcome archived, got %v", env.archiver.archived)
	}
}

func TestAnalyzeURL_ParallelStepsBothSettle(t *testing.T) {
	env := newTestEnv()

	if _, err := env.orch.AnalyzeURL(context.Background(), testURL, ""); err != nil {
		t.Fatalf("AnalyzeURL failed: %v", err)
	}

	if env.analyzer.extractCalls != 1 {
		t.Errorf("Expected 1 extraction call, got %d", env.analyzer.extractCalls)
	}
	if env.classifier.calls != 1 {
		t.Errorf("Expected 1 prediction call, got %d", env.classifier.calls)
	}
	if env.retriever.retrieveCalls != 1 || len(env.retriever.gotClaims) != 2 {
		t.Errorf("Expected retrieval keyed by the 2 extracted claims, got %d calls with %d claims",
			env.retriever.retrieveCalls, len(env.retriever.gotClaims))
	}
	if env.analyzer.verifyCalls != 1 {
		t.Errorf("Expected 1 verification call, got %d", env.analyzer.verifyCalls)
	}
}

func TestAnalyzeURL_BlendsSecondaryPrediction(t *testing.T) {
	env := newTestEnv()
	env.classifier.prediction = &model.SecondaryPrediction{
		Label:           model.LabelReal,
		Confidence:      60,
		RealProbability: 60,
		FakeProbability: 40,
	}

	out, err := env.orch.AnalyzeURL(context.Background(), testURL, "")
	if err != nil {
		t.Fatalf("AnalyzeURL failed: %v", err)
	}

	// round(80*0.7 + 60*0.3) = 74
	if out.Result.Score != 74 {
		t.Errorf("Expected blended score 74, got %d", out.Result.Score)
	}
	if out.Result.SecondaryLabel != "REAL" {
		t.Errorf("Expected secondary label REAL, got %q", out.Result.SecondaryLabel)
	}
}

func TestAnalyzeURL_CacheRoundTrip(t *testing.T) {
	env := newTestEnv()

	first, err := env.orch.AnalyzeURL(context.Background(), testURL, "")
	if err != nil {
		t.Fatalf("First AnalyzeURL failed: %v", err)
	}
	second, err := env.orch.AnalyzeURL(context.Background(), testURL, "")
	if err != nil {
		t.Fatalf("Second AnalyzeURL failed: %v", err)
	}

	if !second.Cached {
		t.Error("Expected the repeat call to be cached")
	}
	if second.Result.ID != first.Result.ID {
		t.Errorf("Expected identical result ID, got %s then %s", first.Result.ID, second.Result.ID)
	}
	if env.parser.calls != 1 {
		t.Errorf("Expected 1 fetch, got %d", env.parser.calls)
	}

	cached := env.store.auditRows(model.RequestCached)
	if len(cached) != 1 {
		t.Errorf("Expected 1 CACHED audit row, got %d", len(cached))
	}
	if total := len(env.store.requests); total != 2 {
		t.Errorf("Expected exactly 2 audit rows, got %d", total)
	}
}

func TestAnalyzeURL_StoreDedupeRepopulatesCache(t *testing.T) {
	env := newTestEnv()

	first, err := env.orch.AnalyzeURL(context.Background(), testURL, "")
	if err != nil {
		t.Fatalf("First AnalyzeURL failed: %v", err)
	}
	if err := env.cache.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	second, err := env.orch.AnalyzeURL(context.Background(), testURL, "")
	if err != nil {
		t.Fatalf("Second AnalyzeURL failed: %v", err)
	}
	if !second.Cached {
		t.Error("Expected the store hit to report cached")
	}
	if second.Result.ID != first.Result.ID {
		t.Errorf("Expected the persisted result, got %s", second.Result.ID)
	}
	if env.parser.calls != 1 {
		t.Errorf("Expected no refetch, got %d fetches", env.parser.calls)
	}
	if len(second.Claims) != 2 {
		t.Errorf("Expected claim records from the store, got %d", len(second.Claims))
	}

	key := cache.ResultKey(normalize.FingerprintURL(testURL))
	if _, ok := env.cache.Get(key); !ok {
		t.Error("Expected the store hit to re-populate the cache")
	}
}

func TestAnalyzeURL_ParseFailure(t *testing.T) {
	env := newTestEnv()
	env.parser.err = errors.New("connection refused")

	_, err := env.orch.AnalyzeURL(context.Background(), testURL, "")
	if err == nil {
		t.Fatal("Expected an error")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected ParseError, got %T", err)
	}
	if Retryable(err) {
		t.Error("Expected parse failures to be non-retryable")
	}

	failed := env.store.auditRows(model.RequestFailed)
	if len(failed) != 1 {
		t.Fatalf("Expected 1 FAILED audit row, got %d", len(failed))
	}
	if failed[0].ErrorMessage == "" {
		t.Error("Expected the failure message on the audit row")
	}
	if total := len(env.store.requests); total != 1 {
		t.Errorf("Expected exactly 1 audit row, got %d", total)
	}
}

func TestAnalyzeURL_AssessFailureIsFatal(t *testing.T) {
	env := newTestEnv()
	env.analyzer.assessErr = errors.New("rate limited")

	_, err := env.orch.AnalyzeURL(context.Background(), testURL, "")
	if err == nil {
		t.Fatal("Expected an error")
	}
	var aerr *AnalysisError
	if !errors.As(err, &aerr) {
		t.Fatalf("Expected AnalysisError, got %T", err)
	}
	if !Retryable(err) {
		t.Error("Expected analysis failures to be retryable")
	}

	if failed := env.store.auditRows(model.RequestFailed); len(failed) != 1 {
		t.Errorf("Expected 1 FAILED audit row, got %d", len(failed))
	}
}

func TestAnalyzeURL_PersistenceFailureStillReturns(t *testing.T) {
	env := newTestEnv()
	env.store.failUpsert = errors.New("disk full")
	env.store.failCreateResult = errors.New("disk full")

	out, err := env.orch.AnalyzeURL(context.Background(), testURL, "")
	if err != nil {
		t.Fatalf("Expected the result despite persistence failure, got %v", err)
	}
	if out.Result.Score != 80 {
		t.Errorf("Expected the computed result, got score %d", out.Result.Score)
	}

	if completed := env.store.auditRows(model.RequestCompleted); len(completed) != 1 {
		t.Errorf("Expected the audit row COMPLETED, got %d", len(completed))
	}

	// The cache still carries the outcome even though the store lost it
	key := cache.ResultKey(normalize.FingerprintURL(testURL))
	if _, ok := env.cache.Get(key); !ok {
		t.Error("Expected the cache populated despite persistence failure")
	}
}

func TestAnalyzeURL_AuditFailuresSwallowed(t *testing.T) {
	env := newTestEnv()
	env.store.failCreateRequest = errors.New("audit table locked")
	env.store.failUpdateRequest = errors.New("audit table locked")

	out, err := env.orch.AnalyzeURL(context.Background(), testURL, "")
	if err != nil {
		t.Fatalf("Expected audit failures to be swallowed, got %v", err)
	}
	if out.Result == nil {
		t.Error("Expected a result")
	}
}

func TestAnalyzeText_FullRun(t *testing.T) {
	env := newTestEnv()
	text := "Inflation fell to 2.4 percent in July. The central bank signaled a quarter-point cut."

	out, err := env.orch.AnalyzeText(context.Background(), text, "Rate Cut Outlook", "")
	if err != nil {
		t.Fatalf("AnalyzeText failed: %v", err)
	}

	if env.parser.calls != 0 {
		t.Errorf("Expected no fetch for text input, got %d", env.parser.calls)
	}
	if out.Article.Source != "Direct Text Input" {
		t.Errorf("Expected Direct Text Input source, got %q", out.Article.Source)
	}
	if out.Result.URLHash != normalize.FingerprintText(text) {
		t.Error("Expected the fingerprint of the normalized text")
	}

	pending := env.store.auditRows(model.RequestCompleted)
	if len(pending) != 1 {
		t.Fatalf("Expected 1 COMPLETED audit row, got %d", len(pending))
	}
	if pending[0].RequestType != model.RequestTypeText {
		t.Errorf("Expected TEXT request type, got %s", pending[0].RequestType)
	}
}

func TestAnalyzeText_EmptyInput(t *testing.T) {
	env := newTestEnv()

	_, err := env.orch.AnalyzeText(context.Background(), "   \n\t ", "", "")
	if err == nil {
		t.Fatal("Expected an error")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected ParseError, got %T", err)
	}
	if failed := env.store.auditRows(model.RequestFailed); len(failed) != 1 {
		t.Errorf("Expected 1 FAILED audit row, got %d", len(failed))
	}
}

func TestAnalyzeURL_RetrievalAndArchiveFailuresTolerated(t *testing.T) {
	env := newTestEnv()
	env.retriever.indexErr = errors.New("vector store down")
	env.archiver.err = errors.New("bucket denied")

	out, err := env.orch.AnalyzeURL(context.Background(), testURL, "")
	if err != nil {
		t.Fatalf("Expected best-effort steps to be tolerated, got %v", err)
	}
	if out.Result.Score != 80 {
		t.Errorf("Expected score 80, got %d", out.Result.Score)
	}
}

func TestClaimRecords_FillsMissingVerifications(t *testing.T) {
	claims := []model.Claim{
		{Text: "first", Type: model.ClaimTypeFactual},
		{Text: "second", Type: model.ClaimTypeFactual},
	}
	verifications := []model.ClaimVerification{
		{ClaimIndex: 0, Status: model.StatusVerified, Confidence: 0.9},
	}

	records := claimRecords("hash", "result", claims, verifications)
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Status != model.StatusVerified {
		t.Errorf("Expected VERIFIED first, got %s", records[0].Status)
	}
	if records[1].Status != model.StatusUnverifiable {
		t.Errorf("Expected UNVERIFIABLE fill, got %s", records[1].Status)
	}
}

func TestCollectSources_Dedupes(t *testing.T) {
	verifications := []model.ClaimVerification{
		{Sources: []string{"https://a.example", "https://b.example"}},
		{Sources: []string{"https://b.example", "https://c.example", ""}},
	}

	got := collectSources(verifications)
	want := []string{"https://a.example", "https://b.example", "https://c.example"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d sources, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, got[i])
		}
	}
}
