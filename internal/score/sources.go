package score

import (
	"net/url"
	"regexp"
	"strings"
)

// SourceClass buckets a publishing domain by credibility
type SourceClass string

const (
	ClassInstitutional  SourceClass = "institutional"
	ClassJournalism     SourceClass = "journalism"
	ClassMisinformation SourceClass = "misinformation"
	ClassUnknown        SourceClass = "unknown"
)

// Institutional sources: governments, international bodies, peer-reviewed
// journals. Established journalism: major wire services and broadsheets.
var (
	institutionalDomains = []string{
		"who.int",
		"cdc.gov",
		"nih.gov",
		"un.org",
		"europa.eu",
		"worldbank.org",
		"imf.org",
		"nasa.gov",
		"nature.com",
		"science.org",
		"thelancet.com",
		"nejm.org",
		"gov.uk",
		"whitehouse.gov",
	}

	journalismDomains = []string{
		"reuters.com",
		"apnews.com",
		"bbc.com",
		"bbc.co.uk",
		"nytimes.com",
		"washingtonpost.com",
		"theguardian.com",
		"aljazeera.com",
		"france24.com",
		"npr.org",
		"pbs.org",
		"economist.com",
	}

	misinfoPatterns = []string{
		`naturalnews`,
		`infowars`,
		`beforeitsnews`,
		`thegatewaypundit`,
		`dailystormer`,
	}
)

// SourceClassifier classifies publishing domains into credibility classes
type SourceClassifier struct {
	institutionalMap map[string]bool
	journalismMap    map[string]bool
	misinfo          []*regexp.Regexp
}

// NewSourceClassifier creates a classifier over the built-in domain lists
func NewSourceClassifier() *SourceClassifier {
	c := &SourceClassifier{
		institutionalMap: make(map[string]bool),
		journalismMap:    make(map[string]bool),
	}

	for _, domain := range institutionalDomains {
		c.institutionalMap[domain] = true
	}
	for _, domain := range journalismDomains {
		c.journalismMap[domain] = true
	}
	for _, pattern := range misinfoPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			c.misinfo = append(c.misinfo, re)
		}
	}

	return c
}

// Classify classifies a URL's host. Misinformation patterns are checked
// first so a lookalike subdomain of a credible TLD cannot mask them.
func (c *SourceClassifier) Classify(rawURL string) SourceClass {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ClassUnknown
	}

	host := strings.ToLower(parsed.Host)
	if host == "" {
		// Tolerate bare hostnames passed without a scheme
		host = strings.ToLower(strings.Split(rawURL, "/")[0])
	}
	if idx := strings.Index(host, ":"); idx > 0 {
		host = host[:idx]
	}

	for _, re := range c.misinfo {
		if re.MatchString(host) {
			return ClassMisinformation
		}
	}

	if c.matchDomain(c.institutionalMap, host) {
		return ClassInstitutional
	}
	if c.matchDomain(c.journalismMap, host) {
		return ClassJournalism
	}

	return ClassUnknown
}

// matchDomain checks exact match or subdomain suffix (e.g. data.who.int)
func (c *SourceClassifier) matchDomain(domains map[string]bool, host string) bool {
	if domains[host] {
		return true
	}
	for domain := range domains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Label returns the human-readable source quality label
func (s SourceClass) Label() string {
	switch s {
	case ClassInstitutional:
		return "institutional"
	case ClassJournalism:
		return "established journalism"
	case ClassMisinformation:
		return "known misinformation source"
	default:
		return "unknown"
	}
}
