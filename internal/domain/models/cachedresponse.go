// internal/domain/models/cachedresponse.go
package models

import (
	"net/http"
	"time"
)

// CachedResponse is one durable cache entry: a snapshot of an upstream HTTP
// response keyed by request identity (method + URL). Entries are overwritten
// on each successful fetch of the same key and never read-repaired except by
// the refresh worker.
type CachedResponse struct {
	Key       string              `bson:"key"` // request identity: "METHOD path?query"
	URL       string              `bson:"url"`
	Status    int                 `bson:"status"`
	Header    map[string][]string `bson:"header"`
	Body      []byte              `bson:"body"`
	FetchedAt time.Time           `bson:"fetched_at"`
}

// CacheKey builds the request identity a cache entry is stored under.
// Practically GET-only, but the method is kept in the key so a HEAD probe
// can never shadow a GET body.
func CacheKey(method, requestURI string) string {
	return method + " " + requestURI
}

// CopyHeader returns a detached copy of an http.Header for storage.
// Hop-by-hop headers are dropped; replaying them from cache would lie
// about the connection the response actually arrived on.
func CopyHeader(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, vs := range h {
		switch http.CanonicalHeaderKey(k) {
		case "Connection", "Keep-Alive", "Transfer-Encoding", "Upgrade",
			"Proxy-Connection", "Te", "Trailer":
			continue
		}
		cp := make([]string, len(vs))
		copy(cp, vs)
		out[k] = cp
	}
	return out
}

// HTTPHeader converts the stored header map back to an http.Header.
func (c *CachedResponse) HTTPHeader() http.Header {
	h := make(http.Header, len(c.Header))
	for k, vs := range c.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	return h
}
