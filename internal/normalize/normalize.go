package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/credence-dev/credence/internal/model"
)

// FingerprintURL derives the stable content fingerprint for a URL.
// Two URLs that differ only in tracking parameters, fragment, case, or a
// trailing slash produce the same fingerprint. A URL that cannot be parsed
// falls back to naive lowercase hashing rather than failing.
func FingerprintURL(rawURL string) string {
	return hash(CanonicalURL(rawURL))
}

// FingerprintText derives the stable content fingerprint for raw text
// after whitespace normalization.
func FingerprintText(text string) string {
	return hash(NormalizeText(text))
}

// CanonicalURL reduces a URL to its canonical comparison form: tracking
// parameters (utm_*, fbclid, gclid) and the fragment removed, remaining
// query re-encoded in sorted order, everything lowercased, trailing slash
// stripped.
func CanonicalURL(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// Not parseable as an absolute URL: lowercase and trim
		return strings.TrimRight(strings.ToLower(raw), "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || lk == "fbclid" || lk == "gclid" {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()

	out := strings.ToLower(u.String())
	return strings.TrimRight(out, "/")
}

// NormalizeText collapses runs of whitespace to single spaces and trims
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// FromText builds ParsedContent directly from raw text input, bypassing
// the fetch layer. The fingerprint covers the normalized text; the source
// is fixed so downstream consumers can tell text input from fetched pages.
func FromText(text, title string) *model.ParsedContent {
	if title == "" {
		title = deriveTitle(text)
	}
	return &model.ParsedContent{
		Fingerprint: FingerprintText(text),
		Title:       title,
		Source:      "Direct Text Input",
		BodyText:    NormalizeText(text),
		ContentType: ClassifyContentType(text),
	}
}

// deriveTitle takes the first sentence-ish fragment as a display title
func deriveTitle(text string) string {
	t := NormalizeText(text)
	if idx := strings.IndexAny(t, ".!?\n"); idx > 0 && idx < 120 {
		return t[:idx+1]
	}
	if len(t) > 80 {
		return t[:80] + "..."
	}
	return t
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
