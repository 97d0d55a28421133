package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ViewerKey returns the cache key for the viewer script served at url.
func ViewerKey(url string) string {
	return hashKey("viewer", url)
}

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s;", len(p), p)
	}
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(h.Sum(nil)))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
