package cache

import "time"

// Cache defines the interface for result caching. Implementations must
// degrade internal failures to cache misses: Get never reports errors and a
// failed Set only means the next lookup recomputes.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// ResultKey builds the namespaced cache key for a content fingerprint
func ResultKey(fingerprint string) string {
	return "credence:v1:" + fingerprint
}
