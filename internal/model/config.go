package model

import "time"

// Config is the complete runtime configuration. Values are resolved in
// priority order: CLI flags, CREDENCE_* environment variables, config file
// (~/.credence/config.yaml), then the defaults below.
type Config struct {
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" mapstructure:"retrieval"`
	Score      ScoreConfig      `yaml:"score" mapstructure:"score"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Archive    ArchiveConfig    `yaml:"archive" mapstructure:"archive"`
	Jobs       JobsConfig       `yaml:"jobs" mapstructure:"jobs"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
}

// FetchConfig controls outbound content acquisition
type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	PerDomainRPS  float64       `yaml:"per_domain_rps" mapstructure:"per_domain_rps"`
	Burst         int           `yaml:"burst" mapstructure:"burst"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig controls the result cache. When RedisAddr is set and the
// server answers a ping at startup Redis is used; otherwise the in-process
// backend takes over silently.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
	RedisAddr     string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int           `yaml:"redis_db" mapstructure:"redis_db"`
	Dir           string        `yaml:"dir" mapstructure:"dir"` // Disk tier location; empty disables it
}

// LLMConfig controls the language analyzer provider
type LLMConfig struct {
	Provider       string        `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model          string        `yaml:"model" mapstructure:"model"`
	APIKey         string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL        string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Temperature    float32       `yaml:"temperature" mapstructure:"temperature"`
	MaxClaims      int           `yaml:"max_claims" mapstructure:"max_claims"`
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay" mapstructure:"retry_max_delay"`
}

// ClassifierConfig controls the secondary authenticity classifier.
// An empty BaseURL disables the adapter entirely.
type ClassifierConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingsConfig selects the embeddings provider for retrieval
type EmbeddingsConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // cohere or openai
	Model    string `yaml:"model" mapstructure:"model"`
	APIKey   string `yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// RetrievalConfig controls the vector similarity store.
// An empty BaseURL disables retrieval (verification runs on empty context).
type RetrievalConfig struct {
	BaseURL    string           `yaml:"base_url" mapstructure:"base_url"`
	Tenant     string           `yaml:"tenant" mapstructure:"tenant"`
	Database   string           `yaml:"database" mapstructure:"database"`
	Collection string           `yaml:"collection" mapstructure:"collection"`
	TopK       int              `yaml:"top_k" mapstructure:"top_k"`
	Timeout    time.Duration    `yaml:"timeout" mapstructure:"timeout"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" mapstructure:"embeddings"`
}

// ScoreConfig is the named policy behind the blending engine and the
// deterministic assessment scorer. Every tunable lives here so the engine
// stays pure and independently testable from the constants in use.
type ScoreConfig struct {
	// Blending (step B)
	LLMWeight       float64 `yaml:"llm_weight" mapstructure:"llm_weight"`
	SecondaryWeight float64 `yaml:"secondary_weight" mapstructure:"secondary_weight"`

	// Content-type adjustment (step A)
	BreakingConfidenceCeiling float64 `yaml:"breaking_confidence_ceiling" mapstructure:"breaking_confidence_ceiling"`

	// Tier boundaries (step C); ties resolve to the higher tier
	AuthorizedMin int `yaml:"authorized_min" mapstructure:"authorized_min"`
	SuspiciousMin int `yaml:"suspicious_min" mapstructure:"suspicious_min"`

	// Assessment scorer
	BaseScore          int `yaml:"base_score" mapstructure:"base_score"`
	VerifiedDelta      int `yaml:"verified_delta" mapstructure:"verified_delta"`
	PartiallyTrueDelta int `yaml:"partially_true_delta" mapstructure:"partially_true_delta"`
	UnverifiableDelta  int `yaml:"unverifiable_delta" mapstructure:"unverifiable_delta"`
	MisleadingDelta    int `yaml:"misleading_delta" mapstructure:"misleading_delta"`
	FalseDelta         int `yaml:"false_delta" mapstructure:"false_delta"`

	InstitutionalBonus   int `yaml:"institutional_bonus" mapstructure:"institutional_bonus"`
	JournalismBonus      int `yaml:"journalism_bonus" mapstructure:"journalism_bonus"`
	MisinfoPenalty       int `yaml:"misinfo_penalty" mapstructure:"misinfo_penalty"`
	UnknownDomainPenalty int `yaml:"unknown_domain_penalty" mapstructure:"unknown_domain_penalty"`
	NoURLPenalty         int `yaml:"no_url_penalty" mapstructure:"no_url_penalty"`

	StrongEvidenceBonus   int `yaml:"strong_evidence_bonus" mapstructure:"strong_evidence_bonus"`
	ModerateEvidenceBonus int `yaml:"moderate_evidence_bonus" mapstructure:"moderate_evidence_bonus"`
	WeakEvidencePenalty   int `yaml:"weak_evidence_penalty" mapstructure:"weak_evidence_penalty"`
	NoEvidencePenalty     int `yaml:"no_evidence_penalty" mapstructure:"no_evidence_penalty"`

	BiasPenalties      map[string]int `yaml:"bias_penalties" mapstructure:"bias_penalties"`
	UnknownBiasPenalty int            `yaml:"unknown_bias_penalty" mapstructure:"unknown_bias_penalty"`

	DefaultConfidence float64 `yaml:"default_confidence" mapstructure:"default_confidence"`
}

// StoreConfig controls persistence
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"` // SQLite database file
}

// ArchiveConfig controls optional S3 archival of completed results.
// An empty Bucket disables archival.
type ArchiveConfig struct {
	Bucket       string `yaml:"bucket" mapstructure:"bucket"`
	Region       string `yaml:"region" mapstructure:"region"`
	Profile      string `yaml:"profile,omitempty" mapstructure:"profile"`
	Prefix       string `yaml:"prefix" mapstructure:"prefix"`
	UsePathStyle bool   `yaml:"use_path_style" mapstructure:"use_path_style"`
}

// JobsConfig controls the async analysis workers
type JobsConfig struct {
	Workers        int           `yaml:"workers" mapstructure:"workers"`
	QueueSize      int           `yaml:"queue_size" mapstructure:"queue_size"`
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay" mapstructure:"retry_max_delay"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// OutputConfig controls CLI output behavior
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "Credence/1.0 (+https://github.com/credence-dev/credence)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
			PerDomainRPS:  2,
			Burst:         4,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     time.Hour,
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			Timeout:        60 * time.Second,
			Temperature:    0.2,
			MaxClaims:      10,
			MaxRetries:     3,
			RetryBaseDelay: 2 * time.Second,
			RetryMaxDelay:  30 * time.Second,
		},
		Classifier: ClassifierConfig{
			Timeout: 10 * time.Second,
		},
		Retrieval: RetrievalConfig{
			Tenant:     "default_tenant",
			Database:   "default_database",
			Collection: "credence",
			TopK:       5,
			Timeout:    10 * time.Second,
			Embeddings: EmbeddingsConfig{
				Provider: "cohere",
				Model:    "embed-english-v3.0",
			},
		},
		Score:   *DefaultScoreConfig(),
		Store:   StoreConfig{Path: "credence.db"},
		Archive: ArchiveConfig{Prefix: "results/"},
		Jobs: JobsConfig{
			Workers:        4,
			QueueSize:      64,
			MaxAttempts:    3,
			RetryBaseDelay: 2 * time.Second,
			RetryMaxDelay:  30 * time.Second,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
	}
}

// DefaultScoreConfig returns the standard scoring policy
func DefaultScoreConfig() *ScoreConfig {
	return &ScoreConfig{
		LLMWeight:                 0.7,
		SecondaryWeight:           0.3,
		BreakingConfidenceCeiling: 0.5,
		AuthorizedMin:             90,
		SuspiciousMin:             60,

		BaseScore:          50,
		VerifiedDelta:      12,
		PartiallyTrueDelta: 4,
		UnverifiableDelta:  -5,
		MisleadingDelta:    -12,
		FalseDelta:         -18,

		InstitutionalBonus:   20,
		JournalismBonus:      12,
		MisinfoPenalty:       -25,
		UnknownDomainPenalty: -10,
		NoURLPenalty:         -5,

		StrongEvidenceBonus:   15,
		ModerateEvidenceBonus: 5,
		WeakEvidencePenalty:   -8,
		NoEvidencePenalty:     -12,

		BiasPenalties: map[string]int{
			"sensationalism":       -10,
			"missing context":      -8,
			"context omission":     -8,
			"misleading visual":    -12,
			"misleading image":     -12,
			"clickbait":            -8,
			"loaded language":      -6,
			"emotional language":   -6,
			"selective statistics": -8,
			"political slant":      -6,
			"ideological slant":    -6,
		},
		UnknownBiasPenalty: -4,

		DefaultConfidence: 0.5,
	}
}
