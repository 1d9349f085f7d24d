package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"

	"github.com/123pan/release-feed/internal/cache"
	"github.com/123pan/release-feed/internal/upstream"
)

// Source 标识最终给出文档的 provider，同时写入 X-Release-Feed-Source 响应头。
const (
	SourceFreshCache = "fresh_cache"
	SourcePrimary    = "primary"
	SourceLatest     = "latest"
	SourceStaleCache = "stale_cache"
	SourceStatic     = "static"
)

// Provider 是回退链中的一环：成功时返回完整的 JSON 文档。
type Provider interface {
	Name() string
	Provide(ctx context.Context) ([]byte, error)
}

// LatestSource 返回仓库最新的已发布版本，由 upstream.LatestClient 实现。
type LatestSource interface {
	Latest(ctx context.Context) (*github.RepositoryRelease, error)
}

// ReleasesURL 拼接 releases 列表接口地址，apiBase 需以 / 结尾。
func ReleasesURL(apiBase, owner, repo string) string {
	return fmt.Sprintf("%srepos/%s/%s/releases", apiBase, url.PathEscape(owner), url.PathEscape(repo))
}

type freshCacheProvider struct {
	store     cache.Store
	key       string
	freshness cache.Freshness
}

func (p *freshCacheProvider) Name() string { return SourceFreshCache }

func (p *freshCacheProvider) Provide(ctx context.Context) ([]byte, error) {
	entry, err := readEntry(ctx, p.store, p.key)
	if err != nil {
		return nil, err
	}
	if !p.freshness.IsFresh(*entry) {
		return nil, fmt.Errorf("%w: age %s", errCacheStale, p.freshness.Age(*entry).Truncate(time.Second))
	}
	return entry.Body, nil
}

type staleCacheProvider struct {
	store cache.Store
	key   string
}

func (p *staleCacheProvider) Name() string { return SourceStaleCache }

func (p *staleCacheProvider) Provide(ctx context.Context) ([]byte, error) {
	entry, err := readEntry(ctx, p.store, p.key)
	if err != nil {
		return nil, err
	}
	return entry.Body, nil
}

// readEntry 把空正文与不存在同样视为未命中。
func readEntry(ctx context.Context, store cache.Store, key string) (*cache.Entry, error) {
	if store == nil {
		return nil, cache.ErrNotFound
	}
	entry, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(entry.Body) == 0 {
		return nil, fmt.Errorf("%w: empty blob", cache.ErrNotFound)
	}
	return entry, nil
}

type primaryProvider struct {
	fetcher Fetcher
	target  string
	budget  time.Duration
	store   cache.Store
	key     string
	now     func() time.Time
	logger  *logrus.Logger
}

// Fetcher 与 upstream.Fetcher 相同，单独声明便于在测试中替换。
type Fetcher = upstream.Fetcher

func (p *primaryProvider) Name() string { return SourcePrimary }

func (p *primaryProvider) Provide(ctx context.Context) ([]byte, error) {
	if p.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.budget)
		defer cancel()
	}

	body, err := p.fetcher.Fetch(ctx, p.target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	feed, err := ParseReleases(body)
	if err != nil {
		var upErr *UpstreamError
		if errors.As(err, &upErr) && upErr.RateLimited {
			p.logger.WithFields(logrus.Fields{
				"action":   "upstream_rate_limited",
				"provider": SourcePrimary,
				"upstream": p.target,
			}).Warn(upErr.Message)
		}
		return nil, err
	}

	doc, err := Encode(feed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if p.store != nil {
		if _, err := p.store.Put(ctx, p.key, doc, cache.PutOptions{ModTime: p.now()}); err != nil {
			p.logger.WithFields(logrus.Fields{
				"action": "cache_write",
				"key":    p.key,
			}).WithError(err).Debug("cache write failed")
		}
	}
	return doc, nil
}

type latestProvider struct {
	source   LatestSource
	messages Messages
	now      func() time.Time
	logger   *logrus.Logger
}

func (p *latestProvider) Name() string { return SourceLatest }

func (p *latestProvider) Provide(ctx context.Context) ([]byte, error) {
	if p.source == nil {
		return nil, fmt.Errorf("%w: latest client not configured", ErrTransport)
	}

	release, err := p.source.Latest(ctx)
	if err != nil {
		return nil, p.classify(err)
	}

	feed, err := FromGitHubRelease(release, p.messages.LatestNotes, p.now())
	if err != nil {
		return nil, err
	}
	return Encode(feed)
}

func (p *latestProvider) classify(err error) error {
	if upstream.IsRateLimited(err) {
		p.logger.WithFields(logrus.Fields{
			"action":   "upstream_rate_limited",
			"provider": SourceLatest,
		}).Warn(err.Error())
		return &UpstreamError{Message: err.Error(), RateLimited: true}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		return &UpstreamError{Message: respErr.Message}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if errors.Is(err, upstream.ErrNoRelease) {
		return fmt.Errorf("%w: %v", ErrEmptyResult, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

type staticProvider struct {
	opts StaticOptions
	now  func() time.Time
}

func (p *staticProvider) Name() string { return SourceStatic }

func (p *staticProvider) Provide(context.Context) ([]byte, error) {
	return Encode(StaticFeed(p.opts, p.now()))
}
