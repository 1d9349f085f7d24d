package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"

	"github.com/123pan/release-feed/internal/cache"
	"github.com/123pan/release-feed/internal/config"
)

const testKey = "github_releases_cache.json"

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestResolveServesFreshCacheWithoutNetwork(t *testing.T) {
	store := cache.NewMemoryStore()
	cached := []byte(`[{"tag_name":"cached"}]`)
	putEntry(t, store, cached, fixedNow.Add(-59*time.Minute))

	fetcher := &stubFetcher{body: []byte(`[{"tag_name":"v9"}]`)}
	latest := &stubLatest{}
	r := newTestResolver(store, fetcher, latest)

	res := r.Resolve(context.Background())
	if string(res.Document) != string(cached) {
		t.Fatalf("新鲜缓存应原样返回，实际 %s", res.Document)
	}
	if res.Source != SourceFreshCache || !res.CacheHit {
		t.Fatalf("来源错误: %+v", res)
	}
	if fetcher.calls.Load() != 0 || latest.calls.Load() != 0 {
		t.Fatalf("新鲜缓存不应访问上游")
	}
}

func TestResolvePrimaryOverwritesCache(t *testing.T) {
	store := cache.NewMemoryStore()
	putEntry(t, store, []byte(`[{"tag_name":"old"}]`), fixedNow.Add(-2*time.Hour))

	fetcher := &stubFetcher{body: []byte(`[{"tag_name":"v2.0","name":"第二版","body":"notes","published_at":"2024-05-01T00:00:00Z","assets":[{"name":"a.zip","size":10,"browser_download_url":"https://example.com/a.zip","content_type":"application/zip"}]}]`)}
	r := newTestResolver(store, fetcher, &stubLatest{})

	res := r.Resolve(context.Background())
	if res.Source != SourcePrimary || res.CacheHit {
		t.Fatalf("应由 primary 提供: %+v", res)
	}

	expected, err := ParseReleases(fetcher.body)
	if err != nil {
		t.Fatalf("解析期望值失败: %v", err)
	}
	want, _ := Encode(expected)
	if string(res.Document) != string(want) {
		t.Fatalf("文档应等于归一化结果\n期望: %s\n实际: %s", want, res.Document)
	}

	entry, err := store.Get(context.Background(), testKey)
	if err != nil {
		t.Fatalf("读取缓存失败: %v", err)
	}
	if string(entry.Body) != string(res.Document) {
		t.Fatalf("缓存应被覆盖为同样的字节")
	}
	if !entry.ModTime.Equal(fixedNow) {
		t.Fatalf("缓存时间应为当前时钟: %s", entry.ModTime)
	}
}

func TestResolveIgnoresCacheWriteFailure(t *testing.T) {
	store := &failingPutStore{MemoryStore: cache.NewMemoryStore()}
	fetcher := &stubFetcher{body: []byte(`[{"tag_name":"v2.0","assets":[]}]`)}
	latest := &stubLatest{release: &github.RepositoryRelease{TagName: github.String("v9.9.9")}}
	r := newTestResolver(store, fetcher, latest)

	res := r.Resolve(context.Background())
	if res.Source != SourcePrimary {
		t.Fatalf("缓存写入失败不应推进回退链，实际来源 %s", res.Source)
	}
	releases := decodeDocument(t, res.Document)
	if len(releases) != 1 || releases[0].Tag != "v2.0" {
		t.Fatalf("应返回 primary 文档: %+v", releases)
	}
	if store.puts.Load() != 1 {
		t.Fatalf("应尝试写入缓存一次，实际 %d", store.puts.Load())
	}
	if latest.calls.Load() != 0 {
		t.Fatalf("不应访问 latest")
	}
}

func TestResolveDropsDrafts(t *testing.T) {
	fetcher := &stubFetcher{body: []byte(`[{"draft":true,"tag_name":"v3.0","name":"draft"},{"tag_name":"v2.0","assets":[]}]`)}
	r := newTestResolver(cache.NewMemoryStore(), fetcher, &stubLatest{})

	releases := decodeDocument(t, r.Resolve(context.Background()).Document)
	if len(releases) != 1 || releases[0].Tag != "v2.0" {
		t.Fatalf("应只剩 v2.0: %+v", releases)
	}
	if len(releases[0].Assets) != 0 {
		t.Fatalf("assets 应为空: %+v", releases[0].Assets)
	}
}

func TestResolveIdempotentWithinFreshWindow(t *testing.T) {
	store := cache.NewMemoryStore()
	fetcher := &stubFetcher{body: []byte(`[{"tag_name":"v2.0"}]`)}
	r := newTestResolver(store, fetcher, &stubLatest{})

	first := r.Resolve(context.Background())
	second := r.Resolve(context.Background())
	if string(first.Document) != string(second.Document) {
		t.Fatalf("两次结果应逐字节一致")
	}
	if second.Source != SourceFreshCache {
		t.Fatalf("第二次应命中新鲜缓存，实际 %s", second.Source)
	}
	if fetcher.calls.Load() != 1 {
		t.Fatalf("上游只应访问一次，实际 %d", fetcher.calls.Load())
	}
}

func TestResolveFallsBackToLatest(t *testing.T) {
	store := cache.NewMemoryStore()
	fetcher := &stubFetcher{err: errors.New("connection refused")}
	latest := &stubLatest{release: &github.RepositoryRelease{TagName: github.String("v2.5.0")}}
	r := newTestResolver(store, fetcher, latest)

	res := r.Resolve(context.Background())
	if res.Source != SourceLatest {
		t.Fatalf("应由 latest 提供，实际 %s", res.Source)
	}
	releases := decodeDocument(t, res.Document)
	if len(releases) != 1 || releases[0].Tag != "v2.5.0" {
		t.Fatalf("latest 文档错误: %+v", releases)
	}
	if releases[0].Notes != "最新版本" {
		t.Fatalf("body 默认值错误: %s", releases[0].Notes)
	}
	if releases[0].PublishedAt != "2024-06-01T12:00:00Z" {
		t.Fatalf("published_at 应为当前时间: %s", releases[0].PublishedAt)
	}
	if _, err := store.Get(context.Background(), testKey); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("latest 结果不应写入缓存")
	}
}

func TestResolveRateLimitServesStaleCache(t *testing.T) {
	store := cache.NewMemoryStore()
	stale := []byte(`[{"tag_name":"stale","name":"stale","body":"","published_at":"","assets":[]}]`)
	putEntry(t, store, stale, fixedNow.Add(-48*time.Hour))

	fetcher := &stubFetcher{body: []byte(`{"message":"API rate limit exceeded"}`)}
	latest := &stubLatest{err: &github.ErrorResponse{Message: "API rate limit exceeded"}}
	r := newTestResolver(store, fetcher, latest)

	res := r.Resolve(context.Background())
	if string(res.Document) != string(stale) {
		t.Fatalf("应返回过期缓存原始字节，实际 %s", res.Document)
	}
	if res.Source != SourceStaleCache || !res.CacheHit {
		t.Fatalf("来源错误: %+v", res)
	}
	entry, _ := store.Get(context.Background(), testKey)
	if string(entry.Body) != string(stale) {
		t.Fatalf("失败的 primary 不应改写缓存")
	}
}

func TestResolveStaticWhenEverythingFails(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("dial tcp: timeout")}
	latest := &stubLatest{err: errors.New("dial tcp: timeout")}
	r := newTestResolver(cache.NewMemoryStore(), fetcher, latest)

	res := r.Resolve(context.Background())
	if res.Source != SourceStatic {
		t.Fatalf("应由 static 提供，实际 %s", res.Source)
	}
	releases := decodeDocument(t, res.Document)
	if len(releases) != 1 || releases[0].Tag != "v1.0.0" {
		t.Fatalf("静态文档 tag 应为 v1.0.0: %+v", releases)
	}
	rel := releases[0]
	if rel.DisplayName != "123pan 最新版本" {
		t.Fatalf("静态名称错误: %s", rel.DisplayName)
	}
	if len(rel.Assets) != 2 {
		t.Fatalf("静态文档应有两个附件: %+v", rel.Assets)
	}
	if rel.Assets[0].DownloadURL != "https://github.com/Qxyz17/123pan/releases" || rel.Assets[0].ContentType != "text/html" {
		t.Fatalf("第一个附件错误: %+v", rel.Assets[0])
	}
	if rel.Assets[1].DownloadURL != "https://github.com/Qxyz17/123pan/releases/latest" || rel.Assets[1].ContentType != DefaultContentType {
		t.Fatalf("第二个附件错误: %+v", rel.Assets[1])
	}
}

func TestResolveEmptyCacheBlobIsMiss(t *testing.T) {
	store := cache.NewMemoryStore()
	putEntry(t, store, nil, fixedNow)

	fetcher := &stubFetcher{err: errors.New("offline")}
	r := newTestResolver(store, fetcher, &stubLatest{err: errors.New("offline")})

	if res := r.Resolve(context.Background()); res.Source != SourceStatic {
		t.Fatalf("空缓存应视为未命中，实际来源 %s", res.Source)
	}
}

func TestResolveMalformedPrimaryFallsThrough(t *testing.T) {
	fetcher := &stubFetcher{body: []byte(`<html>502 Bad Gateway</html>`)}
	latest := &stubLatest{release: &github.RepositoryRelease{TagName: github.String("v2.0.0")}}
	r := newTestResolver(cache.NewMemoryStore(), fetcher, latest)

	if res := r.Resolve(context.Background()); res.Source != SourceLatest {
		t.Fatalf("非 JSON 响应应推进到 latest，实际 %s", res.Source)
	}
}

func TestResolveWithoutStoreOrUpstream(t *testing.T) {
	r := New(Options{
		Messages: MessagesFor("en"),
		Static: StaticOptions{
			Tag:              "v1.0.0",
			Project:          "demo",
			ReleasesPageURL:  "https://github.com/acme/demo/releases",
			LatestReleaseURL: "https://github.com/acme/demo/releases/latest",
		},
		Now: func() time.Time { return fixedNow },
	})
	res := r.Resolve(context.Background())
	releases := decodeDocument(t, res.Document)
	if releases[0].DisplayName != "demo latest version" {
		t.Fatalf("英文静态名称错误: %s", releases[0].DisplayName)
	}
	if status := r.CacheStatus(context.Background()); status.Present {
		t.Fatalf("无缓存时 present 应为 false")
	}
}

func TestResolveAlwaysReturnsNonEmptyList(t *testing.T) {
	bodies := []string{
		``,
		`null`,
		`[]`,
		`{}`,
		`[{"draft":true}]`,
		`{"message":"Bad credentials"}`,
		`[{"tag_name":"v1"}]`,
		`[{"assets":[{}]}]`,
	}
	for _, body := range bodies {
		fetcher := &stubFetcher{body: []byte(body)}
		r := newTestResolver(cache.NewMemoryStore(), fetcher, &stubLatest{err: errors.New("offline")})
		releases := decodeDocument(t, r.Resolve(context.Background()).Document)
		if len(releases) == 0 {
			t.Fatalf("输入 %q 产生了空列表", body)
		}
	}
}

func TestCacheStatusReportsAge(t *testing.T) {
	store := cache.NewMemoryStore()
	putEntry(t, store, []byte(`[{"tag_name":"v1"}]`), fixedNow.Add(-90*time.Minute))
	r := newTestResolver(store, &stubFetcher{}, &stubLatest{})

	status := r.CacheStatus(context.Background())
	if !status.Present || status.Fresh || status.AgeSeconds != 5400 {
		t.Fatalf("缓存状态错误: %+v", status)
	}
}

func TestNewFromConfigEndToEnd(t *testing.T) {
	var listCalls, latestCalls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/Qxyz17/123pan/releases":
			listCalls.Add(1)
			if r.Header.Get("User-Agent") != config.DefaultUserAgent {
				t.Errorf("User-Agent 错误: %s", r.Header.Get("User-Agent"))
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"tag_name":"v2.0.1","name":"123pan v2.0.1","assets":[]}]`))
		case "/repos/Qxyz17/123pan/releases/latest":
			latestCalls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	cfg := &config.Config{
		Global: config.GlobalConfig{
			StoragePath:               t.TempDir(),
			APIBaseURL:                upstream.URL,
			VerifyUpstreamCertificate: true,
			Locale:                    "zh-CN",
		},
		Feed: config.FeedConfig{Repository: "Qxyz17/123pan"},
	}
	config.ApplyDefaults(cfg)

	r, err := NewFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("构造 resolver 失败: %v", err)
	}
	res := r.Resolve(context.Background())
	if res.Source != SourcePrimary {
		t.Fatalf("应由 primary 提供，实际 %s", res.Source)
	}
	if listCalls.Load() != 1 || latestCalls.Load() != 0 {
		t.Fatalf("上游调用次数错误: list=%d latest=%d", listCalls.Load(), latestCalls.Load())
	}

	onDisk, err := os.ReadFile(filepath.Join(cfg.Global.StoragePath, config.DefaultCacheKey))
	if err != nil {
		t.Fatalf("缓存文件未写入: %v", err)
	}
	if string(onDisk) != string(res.Document) {
		t.Fatalf("磁盘缓存与响应不一致")
	}
	if !strings.Contains(string(onDisk), `"name": "123pan v2.0.1"`) {
		t.Fatalf("缓存内容错误: %s", onDisk)
	}
}

func newTestResolver(store cache.Store, fetcher Fetcher, latest LatestSource) *Resolver {
	return New(Options{
		Repository:    "Qxyz17/123pan",
		Store:         store,
		CacheKey:      testKey,
		CacheTTL:      time.Hour,
		Fetcher:       fetcher,
		ReleasesURL:   "https://api.github.com/repos/Qxyz17/123pan/releases",
		RequestBudget: time.Second,
		Latest:        latest,
		Messages:      MessagesFor("zh-CN"),
		Static: StaticOptions{
			Tag:              "v1.0.0",
			Project:          "123pan",
			ReleasesPageURL:  "https://github.com/Qxyz17/123pan/releases",
			LatestReleaseURL: "https://github.com/Qxyz17/123pan/releases/latest",
		},
		Now: func() time.Time { return fixedNow },
	})
}

func putEntry(t *testing.T, store cache.Store, body []byte, modTime time.Time) {
	t.Helper()
	if _, err := store.Put(context.Background(), testKey, body, cache.PutOptions{ModTime: modTime}); err != nil {
		t.Fatalf("写入缓存失败: %v", err)
	}
}

func decodeDocument(t *testing.T, doc []byte) Feed {
	t.Helper()
	var releases Feed
	if err := json.Unmarshal(doc, &releases); err != nil {
		t.Fatalf("文档不是合法 JSON: %v\n%s", err, doc)
	}
	return releases
}

type stubFetcher struct {
	body  []byte
	err   error
	calls atomic.Int32
}

func (s *stubFetcher) Name() string { return "stub" }

func (s *stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.body, nil
}

type failingPutStore struct {
	*cache.MemoryStore
	puts atomic.Int32
}

func (s *failingPutStore) Put(context.Context, string, []byte, cache.PutOptions) (*cache.Entry, error) {
	s.puts.Add(1)
	return nil, errors.New("disk full")
}

type stubLatest struct {
	release *github.RepositoryRelease
	err     error
	calls   atomic.Int32
}

func (s *stubLatest) Latest(context.Context) (*github.RepositoryRelease, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if s.release == nil {
		return nil, errors.New("no release configured")
	}
	return s.release, nil
}
