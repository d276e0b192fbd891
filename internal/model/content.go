package model

import "time"

// ContentType classifies the editorial nature of a piece of content.
// The classification feeds the blending engine's confidence adjustments,
// so the priority order used during detection matters (satire always wins).
type ContentType string

const (
	ContentTypeNews     ContentType = "NEWS"     // Default: straight news reporting
	ContentTypeOpinion  ContentType = "OPINION"  // Op-eds, editorials, commentary
	ContentTypeSatire   ContentType = "SATIRE"   // Satirical/parody content
	ContentTypeBreaking ContentType = "BREAKING" // Breaking/developing stories
)

// ParsedContent is the normalized form of one piece of input content.
// Created by the fetch layer (URL input) or the normalizer (raw text input),
// read-only downstream.
type ParsedContent struct {
	Fingerprint string      `json:"fingerprint"`            // Stable content hash (cache/dedupe key)
	OriginalURL string      `json:"original_url,omitempty"` // Empty for direct text input
	Title       string      `json:"title"`
	Author      string      `json:"author,omitempty"`
	PublishedAt *time.Time  `json:"published_at,omitempty"`
	Source      string      `json:"source,omitempty"` // Site/publication name or "Direct Text Input"
	BodyText    string      `json:"body_text"`        // Readable text with markup stripped
	ContentType ContentType `json:"content_type"`
}

// RetrievedContext is one similarity-search hit used as verification context.
// Ephemeral: deduplicated by DocID across the claim queries of one analysis,
// never persisted.
type RetrievedContext struct {
	DocID      string  `json:"doc_id"`
	Text       string  `json:"text"`
	Source     string  `json:"source,omitempty"`
	Similarity float64 `json:"similarity"` // [0,1], higher is closer
}
