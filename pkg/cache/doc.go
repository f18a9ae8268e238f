// Package cache stores raw search result pages in Redis.
//
// Caching is optional: a run without a Redis URL talks to the API for every
// page. When enabled, a page is served from Redis only while its entry is
// fresh, and entries are scoped to the token that fetched them so results
// visible to one credential are never served to another.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint:    "/search/repositories",
//		QueryParams: url.Values{"q": {"language:go"}, "page": {"1"}, "per_page": {"30"}},
//		Scope:       cache.Scope(token),
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then
//		_ = manager.Set(ctx, key, cache.NewEntry(body, 10*time.Minute))
//	}
//
// # Metrics
//
//   - reposearch_cache_hits_total{layer="redis"} - Cache hits
//   - reposearch_cache_misses_total - Cache misses
//   - reposearch_cache_size_bytes{layer="redis"} - Bytes read and written
//   - reposearch_cache_errors_total{operation} - Cache operation errors
package cache
