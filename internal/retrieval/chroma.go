package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/credence-dev/credence/internal/model"
)

// Chroma wraps the Chroma vector database v2 REST API. The v2 API expects
// client-supplied embeddings on both writes and queries, so every call goes
// through the configured EmbeddingsProvider.
type Chroma struct {
	baseURL      string
	tenant       string
	database     string
	collectionID string
	httpClient   *http.Client
	embedder     EmbeddingsProvider
	logger       zerolog.Logger
}

// Document is one corpus entry to store in the collection
type Document struct {
	ID       string
	Content  string
	Metadata map[string]interface{}
}

// QueryResults is the raw response of a similarity query. The outer slices
// are indexed by query; this client always sends exactly one query.
type QueryResults struct {
	IDs       [][]string                 `json:"ids"`
	Distances [][]float32                `json:"distances"`
	Metadatas [][]map[string]interface{} `json:"metadatas"`
	Documents [][]string                 `json:"documents"`
}

// NewChroma connects to the database and resolves the configured collection,
// creating it with cosine distance when absent.
func NewChroma(cfg model.RetrievalConfig, embedder EmbeddingsProvider, logger zerolog.Logger) (*Chroma, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	c := &Chroma{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/") + "/api/v2",
		tenant:   cfg.Tenant,
		database: cfg.Database,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		embedder: embedder,
		logger:   logger.With().Str("component", "chroma").Logger(),
	}

	collectionID, err := c.getOrCreateCollection(cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}
	c.collectionID = collectionID

	c.logger.Info().
		Str("collection", cfg.Collection).
		Str("embeddings", embedder.ModelName()).
		Msg("vector store connected")
	return c, nil
}

func (c *Chroma) getOrCreateCollection(name string) (string, error) {
	// Try the existing collection first
	url := fmt.Sprintf("%s/tenants/%s/databases/%s/collections/%s", c.baseURL, c.tenant, c.database, name)
	resp, err := c.httpClient.Get(url)
	if err == nil && resp.StatusCode == http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		var result struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return "", err
		}
		return result.ID, nil
	}
	if resp != nil {
		_ = resp.Body.Close()
	}

	createURL := fmt.Sprintf("%s/tenants/%s/databases/%s/collections", c.baseURL, c.tenant, c.database)
	payload := map[string]interface{}{
		"name": name,
		"metadata": map[string]interface{}{
			// Cosine space so similarity derives directly from distance
			"hnsw:space": "cosine",
		},
		"get_or_create": true,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	resp, err = c.httpClient.Post(createURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("create collection: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("create collection (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("parse create response: %w", err)
	}
	return result.ID, nil
}

func (c *Chroma) collectionURL() string {
	return fmt.Sprintf("%s/tenants/%s/databases/%s/collections/%s", c.baseURL, c.tenant, c.database, c.collectionID)
}

// Upsert writes documents into the collection, replacing entries that share
// an ID. Re-analyses reuse the content fingerprint as the document ID, so
// writes stay idempotent.
func (c *Chroma) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	documents := make([]string, len(docs))
	metadatas := make([]map[string]interface{}, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		documents[i] = doc.Content
		metadatas[i] = doc.Metadata
		ids[i] = doc.ID
	}

	embs, err := c.embedder.EmbedDocuments(ctx, documents)
	if err != nil {
		return fmt.Errorf("generate embeddings: %w", err)
	}

	payload := map[string]interface{}{
		"ids":        ids,
		"documents":  documents,
		"metadatas":  metadatas,
		"embeddings": embs,
	}

	return c.post(ctx, "/upsert", payload, nil)
}

// Query runs one similarity search and returns the raw results
func (c *Chroma) Query(ctx context.Context, queryText string, nResults int) (*QueryResults, error) {
	embs, err := c.embedder.EmbedQueries(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("generate query embeddings: %w", err)
	}

	payload := map[string]interface{}{
		"query_embeddings": embs,
		"n_results":        nResults,
		"include":          []string{"metadatas", "documents", "distances"},
	}

	var result QueryResults
	if err := c.post(ctx, "/query", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Count returns the number of documents in the collection
func (c *Chroma) Count(ctx context.Context) (int, error) {
	url := c.collectionURL() + "/count"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("count documents (status %d): %s", resp.StatusCode, string(body))
	}

	var count int
	if err := json.NewDecoder(resp.Body).Decode(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// post sends one collection-scoped request, decoding into out when non-nil
func (c *Chroma) post(ctx context.Context, path string, payload map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.collectionURL()+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
