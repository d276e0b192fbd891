package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/credence-dev/credence/internal/model"
)

// fakeStore replays canned query results keyed by query text
type fakeStore struct {
	results  map[string]*QueryResults
	errs     map[string]error
	queries  []string
	upserted []Document
}

func (f *fakeStore) Query(ctx context.Context, queryText string, nResults int) (*QueryResults, error) {
	f.queries = append(f.queries, queryText)
	if err, ok := f.errs[queryText]; ok {
		return nil, err
	}
	if res, ok := f.results[queryText]; ok {
		return res, nil
	}
	return &QueryResults{}, nil
}

func (f *fakeStore) Upsert(ctx context.Context, docs []Document) error {
	f.upserted = append(f.upserted, docs...)
	return nil
}

func singleQueryResults(ids []string, distances []float32, sources []string) *QueryResults {
	metadatas := make([]map[string]interface{}, len(ids))
	documents := make([]string, len(ids))
	for i := range ids {
		metadatas[i] = map[string]interface{}{"source": sources[i]}
		documents[i] = "passage for " + ids[i]
	}
	return &QueryResults{
		IDs:       [][]string{ids},
		Distances: [][]float32{distances},
		Metadatas: [][]map[string]interface{}{metadatas},
		Documents: [][]string{documents},
	}
}

func newTestRetriever(store vectorStore) *Retriever {
	return NewRetriever(store, model.RetrievalConfig{TopK: 3}, zerolog.Nop())
}

func TestRetriever_RetrieveForClaims_MergesAndDedupes(t *testing.T) {
	store := &fakeStore{results: map[string]*QueryResults{
		"claim one": singleQueryResults(
			[]string{"doc-a", "doc-b"},
			[]float32{0.1, 0.4},
			[]string{"reuters.com", "bbc.co.uk"},
		),
		"claim two": singleQueryResults(
			[]string{"doc-b", "doc-c"},
			[]float32{0.2, 0.5},
			[]string{"bbc.co.uk", "apnews.com"},
		),
	}}
	r := newTestRetriever(store)

	claims := []model.Claim{
		{Text: "claim one", Type: model.ClaimTypeFactual},
		{Text: "claim two", Type: model.ClaimTypeFactual},
	}
	got := r.RetrieveForClaims(context.Background(), claims)

	if len(got) != 3 {
		t.Fatalf("Expected 3 deduped contexts, got %d", len(got))
	}
	// First-seen order: doc-a, doc-b, doc-c
	if got[0].DocID != "doc-a" || got[1].DocID != "doc-b" || got[2].DocID != "doc-c" {
		t.Errorf("Unexpected order: %s, %s, %s", got[0].DocID, got[1].DocID, got[2].DocID)
	}
	// doc-b appeared at distance 0.4 and 0.2; the better similarity wins
	if got[1].Similarity != 0.8 {
		t.Errorf("Expected doc-b similarity 0.8, got %v", got[1].Similarity)
	}
	if got[0].Source != "reuters.com" {
		t.Errorf("Expected source reuters.com, got %q", got[0].Source)
	}
	if !strings.Contains(got[0].Text, "doc-a") {
		t.Errorf("Expected passage text, got %q", got[0].Text)
	}
}

func TestRetriever_RetrieveForClaims_QueryFailureSkipsClaim(t *testing.T) {
	store := &fakeStore{
		results: map[string]*QueryResults{
			"good claim": singleQueryResults([]string{"doc-x"}, []float32{0.3}, []string{"who.int"}),
		},
		errs: map[string]error{
			"bad claim": errors.New("connection reset"),
		},
	}
	r := newTestRetriever(store)

	claims := []model.Claim{
		{Text: "bad claim", Type: model.ClaimTypeFactual},
		{Text: "good claim", Type: model.ClaimTypeFactual},
	}
	got := r.RetrieveForClaims(context.Background(), claims)

	if len(got) != 1 {
		t.Fatalf("Expected 1 context, got %d", len(got))
	}
	if got[0].DocID != "doc-x" {
		t.Errorf("Expected doc-x, got %s", got[0].DocID)
	}
}

func TestRetriever_RetrieveForClaims_Disabled(t *testing.T) {
	r := NewRetriever(nil, model.RetrievalConfig{}, zerolog.Nop())
	if r.Enabled() {
		t.Error("Expected retriever to be disabled without a store")
	}

	got := r.RetrieveForClaims(context.Background(), []model.Claim{{Text: "anything"}})
	if got == nil {
		t.Fatal("Expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Errorf("Expected 0 contexts, got %d", len(got))
	}
}

func TestRetriever_RetrieveForClaims_NoClaims(t *testing.T) {
	store := &fakeStore{}
	r := newTestRetriever(store)

	got := r.RetrieveForClaims(context.Background(), nil)
	if len(got) != 0 {
		t.Errorf("Expected 0 contexts, got %d", len(got))
	}
	if len(store.queries) != 0 {
		t.Errorf("Expected no queries, got %d", len(store.queries))
	}
}

func TestRetriever_Index_UpsertsFingerprintDoc(t *testing.T) {
	store := &fakeStore{}
	r := newTestRetriever(store)

	parsed := &model.ParsedContent{
		Fingerprint: "abc123",
		OriginalURL: "https://example.com/article",
		Title:       "A headline",
		Source:      "example.com",
		BodyText:    "The article body.",
		ContentType: model.ContentTypeNews,
	}
	if err := r.Index(context.Background(), parsed); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(store.upserted) != 1 {
		t.Fatalf("Expected 1 upserted document, got %d", len(store.upserted))
	}
	doc := store.upserted[0]
	if doc.ID != "abc123" {
		t.Errorf("Expected fingerprint as ID, got %s", doc.ID)
	}
	if !strings.HasPrefix(doc.Content, "A headline\n\n") {
		t.Errorf("Expected title-prefixed content, got %q", doc.Content)
	}
	if doc.Metadata["url"] != "https://example.com/article" {
		t.Errorf("Unexpected url metadata: %v", doc.Metadata["url"])
	}
	if doc.Metadata["content_type"] != "NEWS" {
		t.Errorf("Unexpected content_type metadata: %v", doc.Metadata["content_type"])
	}
}

func TestRetriever_Index_TruncatesLongContent(t *testing.T) {
	store := &fakeStore{}
	r := newTestRetriever(store)

	// Leading ASCII byte misaligns the two-byte runes so a naive byte cut
	// would land mid-rune.
	parsed := &model.ParsedContent{
		Fingerprint: "long1",
		BodyText:    "x" + strings.Repeat("é", maxIndexChars),
		ContentType: model.ContentTypeNews,
	}
	if err := r.Index(context.Background(), parsed); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	doc := store.upserted[0]
	if len(doc.Content) > maxIndexChars {
		t.Errorf("Expected content capped at %d bytes, got %d", maxIndexChars, len(doc.Content))
	}
	if !strings.HasSuffix(doc.Content, "é") {
		t.Error("Expected truncation on a rune boundary")
	}
}

func TestRetriever_Index_DisabledOrEmpty(t *testing.T) {
	r := NewRetriever(nil, model.RetrievalConfig{}, zerolog.Nop())
	if err := r.Index(context.Background(), &model.ParsedContent{BodyText: "text"}); err != nil {
		t.Errorf("Expected nil error when disabled, got %v", err)
	}

	store := &fakeStore{}
	r = newTestRetriever(store)
	if err := r.Index(context.Background(), &model.ParsedContent{}); err != nil {
		t.Errorf("Expected nil error for empty body, got %v", err)
	}
	if len(store.upserted) != 0 {
		t.Errorf("Expected no upserts for empty body, got %d", len(store.upserted))
	}
}

func TestSimilarityFromDistance(t *testing.T) {
	tests := []struct {
		distance float32
		want     float64
	}{
		{0, 1},
		{0.25, 0.75},
		{1, 0},
		{1.5, 0},  // clamped
		{-0.5, 1}, // clamped
	}

	for _, tt := range tests {
		if got := similarityFromDistance(tt.distance); got != tt.want {
			t.Errorf("similarityFromDistance(%v): expected %v, got %v", tt.distance, tt.want, got)
		}
	}
}

func TestContexts_RaggedResults(t *testing.T) {
	// Metadata and distances missing entirely; must not panic
	res := &QueryResults{
		IDs:       [][]string{{"doc-1", "doc-2"}},
		Documents: [][]string{{"only one passage"}},
	}
	got := contexts(res)

	if len(got) != 2 {
		t.Fatalf("Expected 2 contexts, got %d", len(got))
	}
	if got[0].Text != "only one passage" {
		t.Errorf("Unexpected text: %q", got[0].Text)
	}
	if got[1].Text != "" || got[1].Source != "" {
		t.Errorf("Expected empty fields for missing columns, got %+v", got[1])
	}
	if got[0].Similarity != 0 {
		t.Errorf("Expected zero similarity without distances, got %v", got[0].Similarity)
	}
}
