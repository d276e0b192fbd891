package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/credence-dev/credence/internal/jobs"
	"github.com/credence-dev/credence/internal/model"
	"github.com/credence-dev/credence/internal/pipeline"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func sampleOutcome(id string) *pipeline.Outcome {
	return &pipeline.Outcome{
		Result: &model.AnalysisResult{
			ID:             id,
			URLHash:        "abc123",
			Score:          92,
			Confidence:     0.9,
			Category:       "authorized",
			Badge:          "VERIFIED",
			Explanation:    "Out of 2 extracted claim(s), 2 verified.",
			Summary:        "A report on inflation figures.",
			ClaimsAnalyzed: 2,
			ClaimsVerified: 2,
			SourceQuality:  "journalism",
			BiasIndicator:  "low",
			Breakdown:      model.Breakdown{FactCheck: 90, SourceCredibility: 85, SentimentBias: 100},
			ModelVersion:   "gpt-4o-mini",
			CreatedAt:      time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC),
		},
		Article: &model.Article{URLHash: "abc123", Title: "Inflation Falls", ContentType: model.ContentTypeNews},
	}
}

type stubAnalyzer struct {
	mu        sync.Mutex
	urlCalls  int
	textCalls int
	urlErr    error
	textErr   error
}

func (a *stubAnalyzer) AnalyzeURL(ctx context.Context, rawURL, sessionID string) (*pipeline.Outcome, error) {
	a.mu.Lock()
	a.urlCalls++
	a.mu.Unlock()
	if a.urlErr != nil {
		return nil, a.urlErr
	}
	return sampleOutcome("res-url"), nil
}

func (a *stubAnalyzer) AnalyzeText(ctx context.Context, text, title, sessionID string) (*pipeline.Outcome, error) {
	a.mu.Lock()
	a.textCalls++
	a.mu.Unlock()
	if a.textErr != nil {
		return nil, a.textErr
	}
	return sampleOutcome("res-text"), nil
}

type stubPredictor struct {
	prediction *model.SecondaryPrediction
}

func (p *stubPredictor) PredictImage(ctx context.Context, filename string, data []byte) *model.SecondaryPrediction {
	return p.prediction
}

func newTestServer(analyzer Analyzer, manager *jobs.Manager, predictor ImagePredictor) *gin.Engine {
	s := New(Deps{
		Analyzer:  analyzer,
		Jobs:      manager,
		Predictor: predictor,
		Logger:    zerolog.Nop(),
		Version:   "test",
	})
	return s.Router()
}

func postJSON(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleAnalyze(t *testing.T) {
	router := newTestServer(&stubAnalyzer{}, nil, nil)

	w := postJSON(t, router, "/api/analyze", `{"url":"https://example.com/article"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var web pipeline.Web
	if err := json.Unmarshal(w.Body.Bytes(), &web); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if web.TrustScore != 92 {
		t.Errorf("Expected trust score 92, got %d", web.TrustScore)
	}
	if web.VerdictDetail.Category != "authorized" || web.VerdictDetail.Action != "show_blue_badge" {
		t.Errorf("Expected authorized verdict, got %+v", web.VerdictDetail)
	}
	if web.Meta.ResultID != "res-url" {
		t.Errorf("Expected res-url, got %s", web.Meta.ResultID)
	}
}

func TestHandleAnalyze_MissingURL(t *testing.T) {
	router := newTestServer(&stubAnalyzer{}, nil, nil)

	w := postJSON(t, router, "/api/analyze", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestHandleAnalyze_ParseErrorIs422(t *testing.T) {
	analyzer := &stubAnalyzer{urlErr: &pipeline.ParseError{Input: "https://example.com", Err: errors.New("connection refused")}}
	router := newTestServer(analyzer, nil, nil)

	w := postJSON(t, router, "/api/analyze", `{"url":"https://example.com"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", w.Code)
	}
}

func TestHandleAnalyze_AnalysisErrorIs500(t *testing.T) {
	analyzer := &stubAnalyzer{urlErr: &pipeline.AnalysisError{Err: errors.New("model down")}}
	router := newTestServer(analyzer, nil, nil)

	w := postJSON(t, router, "/api/analyze", `{"url":"https://example.com"}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
}

func TestHandleAnalyzeText(t *testing.T) {
	analyzer := &stubAnalyzer{}
	router := newTestServer(analyzer, nil, nil)

	w := postJSON(t, router, "/api/analyze/text", `{"text":"Inflation fell to 2.4 percent.","title":"CPI"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if analyzer.textCalls != 1 {
		t.Errorf("Expected the text path, got %d text calls", analyzer.textCalls)
	}
}

func TestHandleExtensionAnalyze(t *testing.T) {
	router := newTestServer(&stubAnalyzer{}, nil, nil)

	w := postJSON(t, router, "/api/extension/analyze", `{"url":"https://example.com/article"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var ext pipeline.Extension
	if err := json.Unmarshal(w.Body.Bytes(), &ext); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ext.Credibility.Score != 92 || ext.Credibility.Category != "high" {
		t.Errorf("Expected 92/high, got %+v", ext.Credibility)
	}
	if ext.Extension.Action != "show_blue_badge" || !ext.Extension.FeedVisible {
		t.Errorf("Expected blue badge directives, got %+v", ext.Extension)
	}
}

func TestHandleExtensionAnalyze_EmptyInput(t *testing.T) {
	router := newTestServer(&stubAnalyzer{}, nil, nil)

	w := postJSON(t, router, "/api/extension/analyze", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestHandleVerify_Content(t *testing.T) {
	analyzer := &stubAnalyzer{}
	router := newTestServer(analyzer, nil, nil)

	w := postJSON(t, router, "/api/v1/verify", `{"content":"The claim to verify.","title":"Claim"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var flat pipeline.Flat
	if err := json.Unmarshal(w.Body.Bytes(), &flat); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if flat.Score != 92 || flat.Verdict != "authorized" {
		t.Errorf("Expected 92/authorized, got %d/%s", flat.Score, flat.Verdict)
	}
	if flat.ResultID != "res-text" {
		t.Errorf("Expected the text path result, got %s", flat.ResultID)
	}
	if analyzer.textCalls != 1 || analyzer.urlCalls != 0 {
		t.Errorf("Expected content to take precedence, got url=%d text=%d", analyzer.urlCalls, analyzer.textCalls)
	}
}

func TestHandleVerify_URLOnly(t *testing.T) {
	analyzer := &stubAnalyzer{}
	router := newTestServer(analyzer, nil, nil)

	w := postJSON(t, router, "/api/v1/verify", `{"url":"https://example.com/article"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if analyzer.urlCalls != 1 {
		t.Errorf("Expected the url path, got %d url calls", analyzer.urlCalls)
	}
}

func TestHandleVerify_EmptyInput(t *testing.T) {
	router := newTestServer(&stubAnalyzer{}, nil, nil)

	w := postJSON(t, router, "/api/v1/verify", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	analyzer := &stubAnalyzer{}
	manager := jobs.NewManager(analyzer, model.JobsConfig{Workers: 2, QueueSize: 8, MaxAttempts: 1}, zerolog.Nop())
	defer manager.Shutdown()
	router := newTestServer(analyzer, manager, nil)

	w := postJSON(t, router, "/api/jobs", `{"url":"https://example.com/article"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var ticket JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &ticket); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ticket.RequestID == "" || ticket.Status != "PENDING" {
		t.Fatalf("Expected a pending ticket, got %+v", ticket)
	}
	if ticket.PollURL != "/api/jobs/"+ticket.RequestID {
		t.Errorf("Expected the poll URL, got %s", ticket.PollURL)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		req := httptest.NewRequest(http.MethodGet, ticket.PollURL, nil)
		poll := httptest.NewRecorder()
		router.ServeHTTP(poll, req)
		if poll.Code != http.StatusOK {
			t.Fatalf("Expected 200 poll, got %d", poll.Code)
		}
		var status JobResponse
		if err := json.Unmarshal(poll.Body.Bytes(), &status); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if status.Status == "COMPLETED" {
			if status.Result == nil || status.Result.Meta.ResultID != "res-url" {
				t.Fatalf("Expected the completed result, got %+v", status.Result)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Job never completed, last status %s", status.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// blockingAnalyzer holds every call until released, to saturate the queue.
type blockingAnalyzer struct {
	started     chan struct{}
	startedOnce sync.Once
	release     chan struct{}
}

func (a *blockingAnalyzer) AnalyzeURL(ctx context.Context, rawURL, sessionID string) (*pipeline.Outcome, error) {
	a.startedOnce.Do(func() { close(a.started) })
	select {
	case <-a.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return sampleOutcome("res-blocked"), nil
}

func (a *blockingAnalyzer) AnalyzeText(ctx context.Context, text, title, sessionID string) (*pipeline.Outcome, error) {
	return sampleOutcome("res-blocked"), nil
}

func TestEnqueueJob_QueueFullFallsBackToSync(t *testing.T) {
	blocked := &blockingAnalyzer{started: make(chan struct{}), release: make(chan struct{})}
	manager := jobs.NewManager(blocked, model.JobsConfig{Workers: 1, QueueSize: 1, MaxAttempts: 1}, zerolog.Nop())
	defer manager.Shutdown()
	defer close(blocked.release)

	// The HTTP server analyzes synchronously with its own collaborator
	inline := &stubAnalyzer{}
	router := newTestServer(inline, manager, nil)

	if w := postJSON(t, router, "/api/jobs", `{"url":"https://example.com/1"}`); w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202 for the first job, got %d", w.Code)
	}
	<-blocked.started
	if w := postJSON(t, router, "/api/jobs", `{"url":"https://example.com/2"}`); w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202 for the queued job, got %d", w.Code)
	}

	w := postJSON(t, router, "/api/jobs", `{"url":"https://example.com/3"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected the sync fallback to answer 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if resp.Status != "COMPLETED" || resp.Result == nil {
		t.Errorf("Expected a completed inline result, got %+v", resp)
	}
	if inline.urlCalls != 1 {
		t.Errorf("Expected exactly one synchronous analysis, got %d", inline.urlCalls)
	}
}

func TestHandleJobStatus_Unknown(t *testing.T) {
	manager := jobs.NewManager(&stubAnalyzer{}, model.JobsConfig{Workers: 1, QueueSize: 1}, zerolog.Nop())
	defer manager.Shutdown()
	router := newTestServer(&stubAnalyzer{}, manager, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/no-such-id", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func multipartImage(t *testing.T, field, filename string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	return body, writer.FormDataContentType()
}

func TestHandlePredictImage(t *testing.T) {
	predictor := &stubPredictor{prediction: &model.SecondaryPrediction{
		Label:           model.LabelFake,
		Confidence:      97.2,
		RealProbability: 2.8,
		FakeProbability: 97.2,
	}}
	router := newTestServer(&stubAnalyzer{}, nil, predictor)

	body, contentType := multipartImage(t, "image", "photo.jpg", []byte("fake-image-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/predict/image", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var prediction model.SecondaryPrediction
	if err := json.Unmarshal(w.Body.Bytes(), &prediction); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if prediction.Label != model.LabelFake {
		t.Errorf("Expected FAKE, got %s", prediction.Label)
	}
}

func TestHandlePredictImage_NoPredictor(t *testing.T) {
	router := newTestServer(&stubAnalyzer{}, nil, nil)

	body, contentType := multipartImage(t, "image", "photo.jpg", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/predict/image", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}

func TestHandlePredictImage_DegradedPrediction(t *testing.T) {
	router := newTestServer(&stubAnalyzer{}, nil, &stubPredictor{})

	body, contentType := multipartImage(t, "image", "photo.jpg", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/predict/image", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 for a degraded prediction, got %d", w.Code)
	}
}

func TestHandlePredictImage_MissingFile(t *testing.T) {
	router := newTestServer(&stubAnalyzer{}, nil, &stubPredictor{prediction: &model.SecondaryPrediction{}})

	w := postJSON(t, router, "/api/predict/image", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	manager := jobs.NewManager(&stubAnalyzer{}, model.JobsConfig{Workers: 1, QueueSize: 4}, zerolog.Nop())
	defer manager.Shutdown()
	router := newTestServer(&stubAnalyzer{}, manager, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if health["status"] != "ok" || health["service"] != "credence" {
		t.Errorf("Expected ok/credence, got %v", health)
	}
	if _, ok := health["queueDepth"]; !ok {
		t.Error("Expected queueDepth in health output")
	}
}
