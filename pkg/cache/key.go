package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces every key written by this package.
const keyPrefix = "reposearch"

// CacheKey represents a unique identifier for a cached page.
type CacheKey struct {
	// Endpoint is the API path (e.g., "/search/repositories")
	Endpoint string

	// QueryParams are the request query parameters (q, page, per_page)
	QueryParams url.Values

	// Scope identifies the credential that fetched the page (see Scope)
	Scope string
}

// String generates a deterministic cache key string.
// Format: reposearch:endpoint:query1=val1:query2=val2:scope=abcd
//
// Example:
//
//	reposearch:search/repositories:page=1:per_page=30:q=language:go:scope=9f86d081884c7d65
func (k CacheKey) String() string {
	parts := []string{keyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	if k.Scope != "" {
		parts = append(parts, "scope="+k.Scope)
	}

	return strings.Join(parts, ":")
}

// Scope derives a short, non-reversible scope identifier from a token.
// Returns "anonymous" for an empty token.
func Scope(token string) string {
	if token == "" {
		return "anonymous"
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
