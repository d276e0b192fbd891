// Package store provides SQLite persistence for articles, analysis
// results, claim records, and the request audit trail.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/credence-dev/credence/internal/model"
)

// Store handles SQLite persistence. All methods are safe for concurrent
// use via an internal mutex.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger zerolog.Logger
}

// Open creates a Store at the configured path, creating tables as needed.
// File-based databases run in WAL mode for concurrent read performance.
func Open(cfg model.StoreConfig, logger zerolog.Logger) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = "credence.db"
	}

	connStr := path
	if path == ":memory:" {
		// Shared cache so every pooled connection sees the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db, logger: logger.With().Str("component", "store").Logger()}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	s.logger.Info().Str("path", path).Msg("database initialized")
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		url_hash TEXT PRIMARY KEY,
		url TEXT,
		title TEXT NOT NULL,
		author TEXT,
		source TEXT,
		content_type TEXT NOT NULL,
		body_text TEXT,
		published_at DATETIME,
		first_seen_at DATETIME NOT NULL,
		last_analyzed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);

	CREATE TABLE IF NOT EXISTS analysis_results (
		id TEXT PRIMARY KEY,
		url_hash TEXT NOT NULL,
		score INTEGER NOT NULL,
		confidence REAL NOT NULL,
		category TEXT NOT NULL,
		badge TEXT NOT NULL,
		explanation TEXT,
		summary TEXT,
		claims_analyzed INTEGER DEFAULT 0,
		claims_verified INTEGER DEFAULT 0,
		claims_false INTEGER DEFAULT 0,
		source_quality TEXT,
		bias_indicator TEXT,
		fact_check INTEGER DEFAULT 0,
		source_credibility INTEGER DEFAULT 0,
		sentiment_bias INTEGER DEFAULT 0,
		sources TEXT,
		warnings TEXT,
		recommendations TEXT,
		secondary_label TEXT,
		model_version TEXT,
		processing_time_ms INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (url_hash) REFERENCES articles(url_hash)
	);

	CREATE INDEX IF NOT EXISTS idx_results_hash ON analysis_results(url_hash, created_at DESC);

	CREATE TABLE IF NOT EXISTS claim_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		result_id TEXT NOT NULL,
		url_hash TEXT NOT NULL,
		claim_text TEXT NOT NULL,
		claim_type TEXT NOT NULL,
		importance REAL DEFAULT 0,
		status TEXT NOT NULL,
		confidence REAL DEFAULT 0,
		evidence TEXT,
		sources TEXT,
		FOREIGN KEY (result_id) REFERENCES analysis_results(id)
	);

	CREATE INDEX IF NOT EXISTS idx_claims_result ON claim_records(result_id);
	CREATE INDEX IF NOT EXISTS idx_claims_hash ON claim_records(url_hash);

	CREATE TABLE IF NOT EXISTS analysis_requests (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		request_type TEXT NOT NULL,
		input_url TEXT,
		input_hash TEXT NOT NULL,
		status TEXT NOT NULL,
		result_id TEXT,
		error_message TEXT,
		created_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_requests_hash ON analysis_requests(input_hash);
	CREATE INDEX IF NOT EXISTS idx_requests_created ON analysis_requests(created_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// UpsertArticle inserts the article or refreshes an existing row with the
// latest parse. first_seen_at is preserved across re-analyses. Zero
// timestamps are filled in and written back to the struct.
func (s *Store) UpsertArticle(a *model.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if a.FirstSeenAt.IsZero() {
		a.FirstSeenAt = now
	}
	if a.LastAnalyzedAt.IsZero() {
		a.LastAnalyzedAt = now
	}

	_, err := s.db.Exec(`
		INSERT INTO articles (
			url_hash, url, title, author, source, content_type, body_text,
			published_at, first_seen_at, last_analyzed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url_hash) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			author = excluded.author,
			source = excluded.source,
			content_type = excluded.content_type,
			body_text = excluded.body_text,
			published_at = excluded.published_at,
			last_analyzed_at = excluded.last_analyzed_at
	`,
		a.URLHash,
		a.URL,
		a.Title,
		a.Author,
		a.Source,
		string(a.ContentType),
		a.BodyText,
		a.PublishedAt,
		a.FirstSeenAt,
		a.LastAnalyzedAt,
	)
	return err
}

// GetArticle retrieves the article for a fingerprint, or nil when unseen.
func (s *Store) GetArticle(urlHash string) (*model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a model.Article
	var contentType string
	var published sql.NullTime
	err := s.db.QueryRow(`
		SELECT url_hash, url, title, author, source, content_type, body_text,
			published_at, first_seen_at, last_analyzed_at
		FROM articles
		WHERE url_hash = ?
	`, urlHash).Scan(
		&a.URLHash,
		&a.URL,
		&a.Title,
		&a.Author,
		&a.Source,
		&contentType,
		&a.BodyText,
		&published,
		&a.FirstSeenAt,
		&a.LastAnalyzedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.ContentType = model.ContentType(contentType)
	if published.Valid {
		a.PublishedAt = &published.Time
	}
	return &a, nil
}

// CreateResult persists an analysis result and its claim records in one
// transaction. Results are immutable once written; a missing ID or
// created_at is filled in and written back to the struct. Claim records
// are stamped with the result's ID and fingerprint.
func (s *Store) CreateResult(result *model.AnalysisResult, claims []model.ClaimRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	sources, err := encodeStrings(result.Sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}
	warnings, err := encodeStrings(result.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}
	recommendations, err := encodeStrings(result.Recommendations)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO analysis_results (
			id, url_hash, score, confidence, category, badge, explanation,
			summary, claims_analyzed, claims_verified, claims_false,
			source_quality, bias_indicator, fact_check, source_credibility,
			sentiment_bias, sources, warnings, recommendations,
			secondary_label, model_version, processing_time_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.ID,
		result.URLHash,
		result.Score,
		result.Confidence,
		result.Category,
		result.Badge,
		result.Explanation,
		result.Summary,
		result.ClaimsAnalyzed,
		result.ClaimsVerified,
		result.ClaimsFalse,
		result.SourceQuality,
		result.BiasIndicator,
		result.Breakdown.FactCheck,
		result.Breakdown.SourceCredibility,
		result.Breakdown.SentimentBias,
		sources,
		warnings,
		recommendations,
		result.SecondaryLabel,
		result.ModelVersion,
		result.ProcessingTimeMs,
		result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	if len(claims) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO claim_records (
				result_id, url_hash, claim_text, claim_type, importance,
				status, confidence, evidence, sources
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, rec := range claims {
			claimSources, err := encodeStrings(rec.Sources)
			if err != nil {
				return fmt.Errorf("encode claim sources: %w", err)
			}
			_, err = stmt.Exec(
				result.ID,
				result.URLHash,
				rec.Claim.Text,
				string(rec.Claim.Type),
				rec.Claim.Importance,
				string(rec.Status),
				rec.Confidence,
				rec.Evidence,
				claimSources,
			)
			if err != nil {
				return fmt.Errorf("insert claim record: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug().
		Str("result_id", result.ID).
		Str("url_hash", result.URLHash).
		Int("claims", len(claims)).
		Msg("result persisted")
	return nil
}

// LatestResultByHash retrieves the most recent analysis result for a
// fingerprint, or nil when the fingerprint has never completed an analysis.
func (s *Store) LatestResultByHash(urlHash string) (*model.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r model.AnalysisResult
	var sources, warnings, recommendations sql.NullString
	err := s.db.QueryRow(`
		SELECT id, url_hash, score, confidence, category, badge, explanation,
			summary, claims_analyzed, claims_verified, claims_false,
			source_quality, bias_indicator, fact_check, source_credibility,
			sentiment_bias, sources, warnings, recommendations,
			secondary_label, model_version, processing_time_ms, created_at
		FROM analysis_results
		WHERE url_hash = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, urlHash).Scan(
		&r.ID,
		&r.URLHash,
		&r.Score,
		&r.Confidence,
		&r.Category,
		&r.Badge,
		&r.Explanation,
		&r.Summary,
		&r.ClaimsAnalyzed,
		&r.ClaimsVerified,
		&r.ClaimsFalse,
		&r.SourceQuality,
		&r.BiasIndicator,
		&r.Breakdown.FactCheck,
		&r.Breakdown.SourceCredibility,
		&r.Breakdown.SentimentBias,
		&sources,
		&warnings,
		&recommendations,
		&r.SecondaryLabel,
		&r.ModelVersion,
		&r.ProcessingTimeMs,
		&r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Sources = decodeStrings(sources)
	r.Warnings = decodeStrings(warnings)
	r.Recommendations = decodeStrings(recommendations)
	return &r, nil
}

// ClaimsByResult retrieves the claim records written with a result, in
// extraction order.
func (s *Store) ClaimsByResult(resultID string) ([]model.ClaimRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, result_id, url_hash, claim_text, claim_type, importance,
			status, confidence, evidence, sources
		FROM claim_records
		WHERE result_id = ?
		ORDER BY id
	`, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.ClaimRecord
	for rows.Next() {
		var rec model.ClaimRecord
		var claimType, status string
		var sources sql.NullString
		err := rows.Scan(
			&rec.ID,
			&rec.ResultID,
			&rec.URLHash,
			&rec.Claim.Text,
			&claimType,
			&rec.Claim.Importance,
			&status,
			&rec.Confidence,
			&rec.Evidence,
			&sources,
		)
		if err != nil {
			return nil, err
		}
		rec.Claim.Type = model.ClaimType(claimType)
		rec.Status = model.VerificationStatus(status)
		rec.Sources = decodeStrings(sources)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// CreateRequest appends an audit row for one analysis attempt. A missing
// ID or created_at is filled in and written back to the struct.
func (s *Store) CreateRequest(req *model.AnalysisRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if req.Status == "" {
		req.Status = model.RequestPending
	}

	_, err := s.db.Exec(`
		INSERT INTO analysis_requests (
			id, session_id, request_type, input_url, input_hash, status,
			result_id, error_message, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		req.ID,
		req.SessionID,
		string(req.RequestType),
		req.InputURL,
		req.InputHash,
		string(req.Status),
		req.ResultID,
		req.ErrorMessage,
		req.CreatedAt,
		req.CompletedAt,
	)
	return err
}

// UpdateRequest records the terminal state of an audit row.
func (s *Store) UpdateRequest(id string, status model.RequestStatus, resultID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE analysis_requests
		SET status = ?, result_id = ?, error_message = ?, completed_at = ?
		WHERE id = ?
	`, string(status), resultID, errMsg, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("request %s not found", id)
	}
	return nil
}

// RequestByID retrieves one audit row, or nil when unknown.
func (s *Store) RequestByID(id string) (*model.AnalysisRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var req model.AnalysisRequest
	var requestType, status string
	var completed sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, session_id, request_type, input_url, input_hash, status,
			result_id, error_message, created_at, completed_at
		FROM analysis_requests
		WHERE id = ?
	`, id).Scan(
		&req.ID,
		&req.SessionID,
		&requestType,
		&req.InputURL,
		&req.InputHash,
		&status,
		&req.ResultID,
		&req.ErrorMessage,
		&req.CreatedAt,
		&completed,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	req.RequestType = model.RequestType(requestType)
	req.Status = model.RequestStatus(status)
	if completed.Valid {
		req.CompletedAt = &completed.Time
	}
	return &req, nil
}

// ArticleCount returns the number of distinct fingerprints seen.
func (s *Store) ArticleCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM articles").Scan(&count)
	return count, err
}

// ResultCount returns the number of completed analyses.
func (s *Store) ResultCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM analysis_results").Scan(&count)
	return count, err
}

func encodeStrings(vals []string) (string, error) {
	if len(vals) == 0 {
		return "", nil
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeStrings(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil
	}
	return out
}
