package retrieval

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/credence-dev/credence/internal/model"
)

// Embedding models truncate input around 512 tokens; keep the stored text
// aligned with what actually gets embedded.
const maxIndexChars = 2000

const defaultTopK = 5

// vectorStore is the slice of the Chroma client the retriever needs
type vectorStore interface {
	Query(ctx context.Context, queryText string, nResults int) (*QueryResults, error)
	Upsert(ctx context.Context, docs []Document) error
}

// Retriever finds verification context for extracted claims. Retrieval is
// strictly optional: a disabled or failing store yields empty context and
// the verifier falls back to model knowledge alone.
type Retriever struct {
	store  vectorStore
	topK   int
	logger zerolog.Logger
}

// NewRetriever creates a retriever over a vector store. A nil store means
// retrieval is disabled.
func NewRetriever(store vectorStore, cfg model.RetrievalConfig, logger zerolog.Logger) *Retriever {
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Retriever{
		store:  store,
		topK:   topK,
		logger: logger.With().Str("component", "retrieval").Logger(),
	}
}

// Connect builds the retriever stack from config: embeddings provider plus
// Chroma connection. Retrieval is optional, so every failure downgrades to a
// disabled retriever instead of an error.
func Connect(cfg model.RetrievalConfig, logger zerolog.Logger) *Retriever {
	if cfg.BaseURL == "" {
		logger.Info().Str("component", "retrieval").Msg("vector store not configured, retrieval disabled")
		return NewRetriever(nil, cfg, logger)
	}

	embedder, err := NewEmbeddingsProvider(cfg.Embeddings)
	if err != nil {
		logger.Warn().Err(err).Str("component", "retrieval").Msg("embeddings unavailable, retrieval disabled")
		return NewRetriever(nil, cfg, logger)
	}

	store, err := NewChroma(cfg, embedder, logger)
	if err != nil {
		logger.Warn().Err(err).Str("component", "retrieval").Msg("vector store unreachable, retrieval disabled")
		return NewRetriever(nil, cfg, logger)
	}

	return NewRetriever(store, cfg, logger)
}

// Enabled reports whether a vector store is wired in
func (r *Retriever) Enabled() bool {
	return r.store != nil
}

// RetrieveForClaims runs one similarity query per claim and merges the hits,
// deduplicated by DocID in first-seen order. A duplicate hit keeps its best
// similarity. Per-claim query failures skip that claim's context.
func (r *Retriever) RetrieveForClaims(ctx context.Context, claims []model.Claim) []model.RetrievedContext {
	out := []model.RetrievedContext{}
	if r.store == nil || len(claims) == 0 {
		return out
	}

	seen := make(map[string]int)
	for _, claim := range claims {
		res, err := r.store.Query(ctx, claim.Text, r.topK)
		if err != nil {
			r.logger.Warn().Err(err).Str("claim", claim.Text).Msg("context query failed, skipping claim")
			continue
		}
		for _, rc := range contexts(res) {
			if pos, ok := seen[rc.DocID]; ok {
				if rc.Similarity > out[pos].Similarity {
					out[pos].Similarity = rc.Similarity
				}
				continue
			}
			seen[rc.DocID] = len(out)
			out = append(out, rc)
		}
	}

	r.logger.Debug().Int("claims", len(claims)).Int("contexts", len(out)).Msg("retrieved verification context")
	return out
}

// Index stores parsed content into the corpus so later analyses can retrieve
// it. Keyed by fingerprint, so re-analyzing the same content overwrites its
// entry.
func (r *Retriever) Index(ctx context.Context, parsed *model.ParsedContent) error {
	if r.store == nil || parsed == nil || parsed.BodyText == "" {
		return nil
	}

	content := parsed.BodyText
	if parsed.Title != "" {
		content = parsed.Title + "\n\n" + content
	}
	if len(content) > maxIndexChars {
		cut := maxIndexChars
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}

	doc := Document{
		ID:      parsed.Fingerprint,
		Content: content,
		Metadata: map[string]interface{}{
			"url":          parsed.OriginalURL,
			"title":        parsed.Title,
			"source":       parsed.Source,
			"content_type": string(parsed.ContentType),
			"indexed_at":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	return r.store.Upsert(ctx, []Document{doc})
}

// contexts flattens one query's results into the model shape. Chroma reports
// cosine distance; similarity is its complement clamped to [0,1].
func contexts(res *QueryResults) []model.RetrievedContext {
	if res == nil || len(res.IDs) == 0 {
		return nil
	}

	ids := res.IDs[0]
	out := make([]model.RetrievedContext, 0, len(ids))
	for i, id := range ids {
		rc := model.RetrievedContext{DocID: id}
		if len(res.Documents) > 0 && i < len(res.Documents[0]) {
			rc.Text = res.Documents[0][i]
		}
		if len(res.Distances) > 0 && i < len(res.Distances[0]) {
			rc.Similarity = similarityFromDistance(res.Distances[0][i])
		}
		if len(res.Metadatas) > 0 && i < len(res.Metadatas[0]) {
			if src, ok := res.Metadatas[0][i]["source"].(string); ok {
				rc.Source = src
			}
		}
		out = append(out, rc)
	}
	return out
}

func similarityFromDistance(d float32) float64 {
	sim := 1 - float64(d)
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
