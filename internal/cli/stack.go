package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/credence-dev/credence/internal/analyzer"
	"github.com/credence-dev/credence/internal/archive"
	"github.com/credence-dev/credence/internal/cache"
	"github.com/credence-dev/credence/internal/classifier"
	"github.com/credence-dev/credence/internal/fetch"
	"github.com/credence-dev/credence/internal/llm"
	"github.com/credence-dev/credence/internal/model"
	"github.com/credence-dev/credence/internal/pipeline"
	"github.com/credence-dev/credence/internal/retrieval"
	"github.com/credence-dev/credence/internal/score"
	"github.com/credence-dev/credence/internal/store"
	"github.com/credence-dev/credence/internal/util"
	"github.com/credence-dev/credence/internal/worker"
)

// stack is the assembled analysis runtime shared by analyze, batch, and
// serve. Close releases the store; the other collaborators have no
// shutdown needs.
type stack struct {
	orchestrator *pipeline.Orchestrator
	classifier   *classifier.Client
	store        *store.Store
	logger       zerolog.Logger
}

func (s *stack) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("store close failed")
	}
}

// buildStack constructs every collaborator from configuration and wires
// the orchestrator. Optional capabilities (classifier, retrieval, archive)
// degrade to disabled instead of failing startup; the language model and
// the store are required.
func buildStack(ctx context.Context, cfg *model.Config, logger zerolog.Logger) (*stack, error) {
	llmConfig := llm.ConfigFromModel(cfg.LLM)
	provider, err := llm.NewProvider(llmConfig)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required: set llm.provider to openai, anthropic, or ollama")
	}

	st, err := store.Open(cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	llmClient := llm.NewClient(provider, llmConfig, logger)
	credibility := analyzer.New(llmClient, score.NewScorer(&cfg.Score), logger)

	limiter := worker.NewLimiter(cfg.Fetch.PerDomainRPS, cfg.Fetch.Burst)
	var parser *fetch.Fetcher
	if cfg.Fetch.RespectRobots {
		robots := util.NewRobotsChecker(cfg.Fetch.UserAgent, cfg.Fetch.Timeout)
		parser = fetch.NewFetcher(cfg.Fetch, robots, limiter, logger)
	} else {
		parser = fetch.NewFetcher(cfg.Fetch, nil, limiter, logger)
	}

	predictor := classifier.NewClient(cfg.Classifier, logger)
	predictor.Probe(ctx)

	archiver, err := archive.New(ctx, cfg.Archive, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("archive unavailable, continuing without it")
		archiver = nil
	}

	orch := pipeline.New(pipeline.Deps{
		Parser:     parser,
		Analyzer:   credibility,
		Classifier: predictor,
		Retriever:  retrieval.Connect(cfg.Retrieval, logger),
		Store:      st,
		Cache:      cache.New(cfg.Cache, logger),
		Archiver:   archiver,
		Blender:    score.NewEngine(&cfg.Score),
		Config:     cfg,
		Logger:     logger,
	})

	return &stack{
		orchestrator: orch,
		classifier:   predictor,
		store:        st,
		logger:       logger,
	}, nil
}
