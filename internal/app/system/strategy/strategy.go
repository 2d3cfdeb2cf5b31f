// internal/app/system/strategy/strategy.go
//
// Package strategy implements the two fetch strategies of the gateway:
// network-first for backend API traffic and cache-first for application
// shell assets. Both degrade according to the offline contract instead of
// surfacing transport errors for requests that can be answered some other
// way.
package strategy

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/hearthgate/internal/domain/models"
)

// ErrUpstreamUnreachable marks a transport-level fetch failure: the upstream
// could not be reached at all, as opposed to answering with an error status.
// Callers branch on this to decide between queueing and propagation.
var ErrUpstreamUnreachable = errors.New("upstream unreachable")

// ResponseCache is the slice of the response-cache store the strategies use.
// Implemented by store/respcache.Store and by the in-memory store in testutil.
type ResponseCache interface {
	Get(ctx context.Context, instance, key string) (*models.CachedResponse, error)
	Put(ctx context.Context, instance string, entry *models.CachedResponse) error
}

// Source records where a resolved response came from.
type Source string

const (
	SourceNetwork Source = "network"
	SourceCache   Source = "cache"
	SourceOffline Source = "offline"
)

// Result is a fully buffered response a strategy resolved a request to.
// Bodies are buffered because cached copies must be byte-identical across
// replays, and because a response may be written to both the caller and
// the cache.
type Result struct {
	Status int
	Header http.Header
	Body   []byte
	Source Source
}

func resultFromEntry(entry *models.CachedResponse, src Source) *Result {
	return &Result{
		Status: entry.Status,
		Header: entry.HTTPHeader(),
		Body:   entry.Body,
		Source: src,
	}
}

// Write sends the result to an http.ResponseWriter, tagging the response
// with the source it was resolved from.
func (res *Result) Write(w http.ResponseWriter) error {
	h := w.Header()
	for k, vs := range res.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	h.Set("X-Hearthgate-Source", string(res.Source))
	w.WriteHeader(res.Status)
	_, err := w.Write(res.Body)
	return err
}

// CriticalSet is the fixed list of read-path prefixes whose unavailability
// must be signaled with a structured offline payload rather than a bare
// failure.
type CriticalSet struct {
	prefixes []string
}

// NewCriticalSet builds a CriticalSet from path prefixes. Blank entries are
// dropped so a sloppy comma-separated config value cannot make every path
// critical.
func NewCriticalSet(prefixes []string) *CriticalSet {
	set := &CriticalSet{}
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" || p == "/" {
			continue
		}
		set.prefixes = append(set.prefixes, p)
	}
	return set
}

// Contains reports whether path falls under any critical prefix.
func (s *CriticalSet) Contains(path string) bool {
	for _, p := range s.prefixes {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

// Paths returns the configured prefixes; the refresh worker fetches each one.
func (s *CriticalSet) Paths() []string {
	out := make([]string, len(s.prefixes))
	copy(out, s.prefixes)
	return out
}

// isNavigation reports whether a request is a full-page navigation, which is
// what decides between the offline fallback document and plain propagation.
func isNavigation(header http.Header) bool {
	return strings.Contains(header.Get("Accept"), "text/html")
}
