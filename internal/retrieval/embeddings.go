package retrieval

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	openai "github.com/sashabaranov/go-openai"

	"github.com/credence-dev/credence/internal/model"
)

// EmbeddingsProvider abstracts a text->embedding generator. Implementations
// return one vector per input text. Documents and queries are embedded
// separately because some APIs (Cohere) optimize by input type.
type EmbeddingsProvider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQueries(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// NewEmbeddingsProvider selects an embeddings provider from config.
// API keys fall back to the conventional environment variables.
func NewEmbeddingsProvider(cfg model.EmbeddingsConfig) (EmbeddingsProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "cohere":
		return newCohereEmbeddings(cfg)
	case "openai":
		return newOpenAIEmbeddings(cfg)
	case "":
		// Auto-select by available credentials, Cohere first
		if cfg.APIKey != "" || os.Getenv("COHERE_API_KEY") != "" {
			return newCohereEmbeddings(cfg)
		}
		if os.Getenv("OPENAI_API_KEY") != "" {
			return newOpenAIEmbeddings(cfg)
		}
		return nil, errors.New("no embeddings provider configured; set COHERE_API_KEY or OPENAI_API_KEY")
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s (supported: cohere, openai)", cfg.Provider)
	}
}

// CohereEmbeddings implements EmbeddingsProvider using the Cohere Embed v2 API
type CohereEmbeddings struct {
	client *cohereclient.Client
	model  string
}

func newCohereEmbeddings(cfg model.EmbeddingsConfig) (*CohereEmbeddings, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("COHERE_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("cohere API key is required")
	}

	emModel := cfg.Model
	if emModel == "" || !strings.HasPrefix(emModel, "embed-") {
		emModel = "embed-english-v3.0"
	}

	// Force HTTP/1.1; the Cohere endpoint intermittently resets HTTP/2 streams
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}

	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &CohereEmbeddings{client: client, model: emModel}, nil
}

func (c *CohereEmbeddings) ModelName() string { return c.model }

func (c *CohereEmbeddings) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts, cohere.EmbedInputTypeSearchDocument)
}

func (c *CohereEmbeddings) EmbedQueries(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts, cohere.EmbedInputTypeSearchQuery)
}

func (c *CohereEmbeddings) embed(ctx context.Context, texts []string, inputType cohere.EmbedInputType) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := c.client.V2.Embed(ctx, &cohere.V2EmbedRequest{
		Texts:          texts,
		Model:          c.model,
		InputType:      inputType,
		EmbeddingTypes: []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
	})
	if err != nil {
		return nil, fmt.Errorf("cohere embed error: %w", err)
	}
	if resp == nil || resp.Embeddings == nil || resp.Embeddings.Float == nil {
		return nil, errors.New("cohere embed returned no float embeddings")
	}

	floats := resp.Embeddings.Float
	if len(floats) != len(texts) {
		return nil, errors.New("embedding count mismatch")
	}

	out := make([][]float32, len(floats))
	for i, vec := range floats {
		fv := make([]float32, len(vec))
		for j, v := range vec {
			fv[j] = float32(v)
		}
		out[i] = fv
	}
	return out, nil
}

// OpenAIEmbeddings implements EmbeddingsProvider using the OpenAI
// embeddings API. Input type makes no difference for these models, so
// documents and queries share one code path.
type OpenAIEmbeddings struct {
	client *openai.Client
	model  string
}

func newOpenAIEmbeddings(cfg model.EmbeddingsConfig) (*OpenAIEmbeddings, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("openai API key is required")
	}

	emModel := cfg.Model
	if emModel == "" || strings.HasPrefix(emModel, "embed-") {
		emModel = string(openai.SmallEmbedding3)
	}

	return &OpenAIEmbeddings{
		client: openai.NewClient(apiKey),
		model:  emModel,
	}, nil
}

func (o *OpenAIEmbeddings) ModelName() string { return o.model }

func (o *OpenAIEmbeddings) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return o.embed(ctx, texts)
}

func (o *OpenAIEmbeddings) EmbedQueries(ctx context.Context, texts []string) ([][]float32, error) {
	return o.embed(ctx, texts)
}

func (o *OpenAIEmbeddings) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings error: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.New("embedding count mismatch")
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		out[d.Index] = d.Embedding
	}
	return out, nil
}
