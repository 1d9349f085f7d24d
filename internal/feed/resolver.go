package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/123pan/release-feed/internal/cache"
	"github.com/123pan/release-feed/internal/config"
	"github.com/123pan/release-feed/internal/logging"
	"github.com/123pan/release-feed/internal/upstream"
)

// Result 是一次解析的产物。Document 永远是非空 JSON 列表。
type Result struct {
	Document []byte
	Source   string
	CacheHit bool
}

// CacheStatus 描述缓存条目的当前状态，供 /-/status 使用。
type CacheStatus struct {
	Present    bool  `json:"present"`
	AgeSeconds int64 `json:"age_seconds"`
	Fresh      bool  `json:"fresh"`
}

// Options 汇总 Resolver 的依赖。零值字段按默认行为处理：
// Store 为空时跳过缓存，Latest 为空时跳过 latest 兜底。
type Options struct {
	Repository string
	Store      cache.Store
	CacheKey   string
	CacheTTL   time.Duration

	Fetcher       Fetcher
	ReleasesURL   string
	RequestBudget time.Duration

	Latest LatestSource

	Messages Messages
	Static   StaticOptions

	Logger *logrus.Logger
	Now    func() time.Time
}

// Resolver 依次尝试 provider，返回第一个成功的文档。
type Resolver struct {
	repository string
	store      cache.Store
	key        string
	freshness  cache.Freshness
	providers  []Provider
	static     *staticProvider
	logger     *logrus.Logger
}

// New 按固定顺序组装回退链。
func New(opts Options) *Resolver {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	key := opts.CacheKey
	if key == "" {
		key = config.DefaultCacheKey
	}
	freshness := cache.NewFreshness(opts.CacheTTL).WithClock(now)

	static := opts.Static
	static.Messages = opts.Messages
	staticStep := &staticProvider{opts: static, now: now}

	providers := make([]Provider, 0, 5)
	if opts.Store != nil {
		providers = append(providers, &freshCacheProvider{store: opts.Store, key: key, freshness: freshness})
	}
	if opts.Fetcher != nil {
		providers = append(providers, &primaryProvider{
			fetcher: opts.Fetcher,
			target:  opts.ReleasesURL,
			budget:  opts.RequestBudget,
			store:   opts.Store,
			key:     key,
			now:     now,
			logger:  logger,
		})
	}
	if opts.Latest != nil {
		providers = append(providers, &latestProvider{
			source:   opts.Latest,
			messages: opts.Messages,
			now:      now,
			logger:   logger,
		})
	}
	if opts.Store != nil {
		providers = append(providers, &staleCacheProvider{store: opts.Store, key: key})
	}
	providers = append(providers, staticStep)

	return &Resolver{
		repository: opts.Repository,
		store:      opts.Store,
		key:        key,
		freshness:  freshness,
		providers:  providers,
		static:     staticStep,
		logger:     logger,
	}
}

// NewFromConfig 使用配置构造完整的生产回退链：磁盘缓存、net/http + fasthttp 双通道、
// go-github latest 客户端与本地化的静态文档。
func NewFromConfig(cfg *config.Config, logger *logrus.Logger) (*Resolver, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	store, err := cache.NewStore(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init cache store: %w", err)
	}
	latest, err := upstream.NewLatestClient(cfg)
	if err != nil {
		return nil, err
	}

	fetcher := upstream.Chain(upstream.NewHTTPFetcher(cfg), upstream.NewFiberFetcher(cfg), logger)
	messages := MessagesFor(cfg.Global.Locale)

	return New(Options{
		Repository:    cfg.Feed.Repository,
		Store:         store,
		CacheKey:      cfg.Feed.CacheKey,
		CacheTTL:      cfg.Global.CacheTTL.DurationValue(),
		Fetcher:       fetcher,
		ReleasesURL:   ReleasesURL(cfg.Global.APIBaseURL, cfg.Feed.Owner(), cfg.Feed.Repo()),
		RequestBudget: cfg.Global.RequestBudget.DurationValue(),
		Latest:        latest,
		Messages:      messages,
		Static: StaticOptions{
			Tag:              cfg.Feed.StaticTag,
			Project:          cfg.Feed.DisplayProject(),
			ReleasesPageURL:  cfg.ReleasesPageURL(),
			LatestReleaseURL: cfg.LatestReleaseURL(),
		},
		Logger: logger,
	}), nil
}

// Resolve 总会返回文档；失败的 provider 只记录 debug 日志并交给下一环。
func (r *Resolver) Resolve(ctx context.Context) Result {
	for _, provider := range r.providers {
		doc, err := provider.Provide(ctx)
		if err == nil && len(doc) > 0 {
			name := provider.Name()
			return Result{
				Document: doc,
				Source:   name,
				CacheHit: name == SourceFreshCache || name == SourceStaleCache,
			}
		}
		if err == nil {
			err = ErrEmptyResult
		}
		r.logger.WithFields(logrus.Fields{
			"action":     "resolve_fallthrough",
			"repository": r.repository,
			"provider":   provider.Name(),
			"error_kind": Classify(err),
		}).WithError(err).Debug("provider failed, trying next")
	}

	// 链尾是 static，正常不会走到这里。
	doc, _ := r.static.Provide(context.Background())
	return Result{Document: doc, Source: SourceStatic}
}

// CacheStatus 报告缓存条目是否存在、年龄与是否仍在新鲜期内。
func (r *Resolver) CacheStatus(ctx context.Context) CacheStatus {
	entry, err := readEntry(ctx, r.store, r.key)
	if err != nil {
		return CacheStatus{}
	}
	return CacheStatus{
		Present:    true,
		AgeSeconds: int64(r.freshness.Age(*entry) / time.Second),
		Fresh:      r.freshness.IsFresh(*entry),
	}
}

// Repository 返回解析目标 owner/repo。
func (r *Resolver) Repository() string {
	return r.repository
}
