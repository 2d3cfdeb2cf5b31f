// internal/app/system/strategy/networkfirst.go
package strategy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/dalemusser/hearthgate/internal/domain/models"
)

// NetworkFirst serves backend API traffic: always try the upstream, fall
// back to the api-responses cache for reads, and synthesize the structured
// offline payload for critical reads that have no cached copy.
//
// Guarantee: a GET against a critical endpoint never returns an error from
// Fetch — it resolves to live data, cached data, or the offline payload.
type NetworkFirst struct {
	Upstream *url.URL
	Client   *http.Client
	Cache    ResponseCache
	Instance string // api-responses instance for the current version
	Critical *CriticalSet
	Log      *zap.Logger
}

// Fetch resolves one API request. header and body are forwarded to the
// upstream unchanged; a caller-detected transport failure on a mutation is
// reported as ErrUpstreamUnreachable so the gateway can queue the action.
func (s *NetworkFirst) Fetch(ctx context.Context, method, requestURI string, header http.Header, body []byte) (*Result, error) {
	key := models.CacheKey(method, requestURI)

	resp, err := s.forward(ctx, method, requestURI, header, body)
	if err == nil {
		result, readErr := s.consume(ctx, key, requestURI, method, resp)
		if readErr == nil {
			return result, nil
		}
		// The upstream answered but the body died mid-transfer; treat it
		// like any other network failure and fall through to the cache.
		err = readErr
	}

	if method != http.MethodGet {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
	}

	entry, cacheErr := s.Cache.Get(ctx, s.Instance, key)
	if cacheErr != nil {
		s.Log.Error("api cache read failed", zap.String("key", key), zap.Error(cacheErr))
	}
	if entry != nil {
		s.Log.Debug("serving stale api response from cache",
			zap.String("url", requestURI),
			zap.Time("fetched_at", entry.FetchedAt))
		res := resultFromEntry(entry, SourceCache)
		res.Header.Set("X-Hearthgate-Cache", "stale")
		return res, nil
	}

	if path := pathOf(requestURI); s.Critical.Contains(path) {
		s.Log.Warn("critical endpoint offline with no cached copy", zap.String("path", path))
		return offlineResult(), nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
}

func (s *NetworkFirst) forward(ctx context.Context, method, requestURI string, header http.Header, body []byte) (*http.Response, error) {
	target, err := upstreamURL(s.Upstream, requestURI)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	copyRequestHeader(req, header)
	return s.Client.Do(req)
}

// consume buffers the upstream response and, for successful reads, writes it
// through to the cache. A cache write failure is logged and absorbed; the
// live response still goes back to the caller.
func (s *NetworkFirst) consume(ctx context.Context, key, requestURI, method string, resp *http.Response) (*Result, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if method == http.MethodGet && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		entry := &models.CachedResponse{
			Key:       key,
			URL:       requestURI,
			Status:    resp.StatusCode,
			Header:    models.CopyHeader(resp.Header),
			Body:      data,
			FetchedAt: time.Now().UTC(),
		}
		if putErr := s.Cache.Put(ctx, s.Instance, entry); putErr != nil {
			s.Log.Error("api cache write failed", zap.String("key", key), zap.Error(putErr))
		}
	}

	return &Result{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   data,
		Source: SourceNetwork,
	}, nil
}

// Refresh re-fetches a critical endpoint to overwrite its cache entry.
// The result is discarded; only the write-through matters.
func (s *NetworkFirst) Refresh(ctx context.Context, path string) error {
	resp, err := s.forward(ctx, http.MethodGet, path, http.Header{}, nil)
	if err != nil {
		return err
	}
	if _, err := s.consume(ctx, models.CacheKey(http.MethodGet, path), path, http.MethodGet, resp); err != nil {
		return err
	}
	return nil
}

func upstreamURL(upstream *url.URL, requestURI string) (string, error) {
	ref, err := url.Parse(requestURI)
	if err != nil {
		return "", fmt.Errorf("parse request uri %q: %w", requestURI, err)
	}
	target := *upstream
	target.Path = ref.Path
	// RawPath keeps percent-encoded segments byte-identical on the wire.
	target.RawPath = ref.RawPath
	target.RawQuery = ref.RawQuery
	return target.String(), nil
}

func copyRequestHeader(req *http.Request, header http.Header) {
	for k, vs := range header {
		switch http.CanonicalHeaderKey(k) {
		case "Connection", "Keep-Alive", "Transfer-Encoding", "Upgrade", "Host":
			continue
		}
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

func pathOf(requestURI string) string {
	if ref, err := url.Parse(requestURI); err == nil {
		return ref.Path
	}
	return requestURI
}
