// internal/app/system/strategy/cachefirst.go
package strategy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/dalemusser/hearthgate/internal/domain/models"
)

// CacheFirst serves application-shell and media assets: exact cache match
// first, network with opportunistic cache population second, and the offline
// fallback document for failed navigations. A small in-memory hot layer sits
// in front of the durable store so repeat shell hits skip the database.
//
// Once an asset has been fetched successfully it stays servable offline
// until the lifecycle manager evicts its generation.
type CacheFirst struct {
	Upstream *url.URL
	Client   *http.Client
	Cache    ResponseCache
	Instance string // static instance for the current version
	Memory   *gocache.Cache
	Log      *zap.Logger
}

// NewMemoryLayer builds the hot layer with the given entry TTL.
func NewMemoryLayer(ttl time.Duration) *gocache.Cache {
	return gocache.New(ttl, 2*ttl)
}

// Fetch resolves one static-asset request (method is always GET here; the
// router sends mutations down the API path).
func (s *CacheFirst) Fetch(ctx context.Context, requestURI string, header http.Header) (*Result, error) {
	key := models.CacheKey(http.MethodGet, requestURI)

	if s.Memory != nil {
		if hit, ok := s.Memory.Get(key); ok {
			return resultFromEntry(hit.(*models.CachedResponse), SourceCache), nil
		}
	}

	entry, err := s.Cache.Get(ctx, s.Instance, key)
	if err != nil {
		s.Log.Error("static cache read failed", zap.String("key", key), zap.Error(err))
	}
	if entry != nil {
		s.remember(key, entry)
		return resultFromEntry(entry, SourceCache), nil
	}

	result, fetchErr := s.fetchAndStore(ctx, key, requestURI, header)
	if fetchErr == nil {
		return result, nil
	}

	if isNavigation(header) {
		return s.fallbackDocument(ctx), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUpstreamUnreachable, fetchErr)
}

func (s *CacheFirst) fetchAndStore(ctx context.Context, key, requestURI string, header http.Header) (*Result, error) {
	target, err := upstreamURL(s.Upstream, requestURI)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	copyRequestHeader(req, header)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		entry := &models.CachedResponse{
			Key:       key,
			URL:       requestURI,
			Status:    resp.StatusCode,
			Header:    models.CopyHeader(resp.Header),
			Body:      data,
			FetchedAt: time.Now().UTC(),
		}
		if putErr := s.Cache.Put(ctx, s.Instance, entry); putErr != nil {
			s.Log.Error("static cache write failed", zap.String("key", key), zap.Error(putErr))
		}
		s.remember(key, entry)
	}

	return &Result{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   data,
		Source: SourceNetwork,
	}, nil
}

// fallbackDocument returns the pre-seeded root entry when install managed to
// cache it, else the embedded offline page.
func (s *CacheFirst) fallbackDocument(ctx context.Context) *Result {
	root, err := s.Cache.Get(ctx, s.Instance, models.CacheKey(http.MethodGet, "/"))
	if err != nil {
		s.Log.Error("offline fallback root lookup failed", zap.Error(err))
	}
	if root != nil {
		res := resultFromEntry(root, SourceOffline)
		res.Header.Set("Retry-After", "30")
		return res
	}
	return offlinePageResult()
}

func (s *CacheFirst) remember(key string, entry *models.CachedResponse) {
	if s.Memory != nil {
		s.Memory.SetDefault(key, entry)
	}
}
