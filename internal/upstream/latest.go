package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"

	"github.com/123pan/release-feed/internal/config"
)

// ErrNoRelease 表示 latest 接口未返回任何发布。
var ErrNoRelease = errors.New("latest release not available")

// LatestClient 通过 go-github 调用 /repos/{owner}/{repo}/releases/latest。
type LatestClient struct {
	client  *github.Client
	owner   string
	repo    string
	timeout time.Duration
}

// NewLatestClient 以 FallbackTimeout 为超时构造 latest 客户端，并把 BaseURL 指向 APIBaseURL。
func NewLatestClient(cfg *config.Config) (*LatestClient, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	timeout := cfg.Global.FallbackTimeout.DurationValue()
	httpClient := NewHTTPClient(cfg.Global, timeout)

	headers := HeadersFromConfig(cfg.Global)
	fixed := http.Header{}
	if headers.AcceptLanguage != "" {
		fixed.Set("Accept-Language", headers.AcceptLanguage)
	}
	httpClient.Transport = headerTransport{base: httpClient.Transport, headers: fixed}

	base, err := url.Parse(cfg.Global.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	gh := github.NewClient(httpClient)
	gh.BaseURL = base
	gh.UserAgent = headers.UserAgent

	return &LatestClient{
		client:  gh,
		owner:   cfg.Feed.Owner(),
		repo:    cfg.Feed.Repo(),
		timeout: timeout,
	}, nil
}

// Latest 返回最新的已发布版本。
func (c *LatestClient) Latest(ctx context.Context) (*github.RepositoryRelease, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	release, _, err := c.client.Repositories.GetLatestRelease(ctx, c.owner, c.repo)
	if err != nil {
		return nil, err
	}
	if release == nil {
		return nil, ErrNoRelease
	}
	return release, nil
}

// IsRateLimitMessage 判断 GitHub 错误包中的 message 是否为限流提示。
func IsRateLimitMessage(message string) bool {
	return strings.Contains(strings.ToLower(message), "rate limit")
}

// IsRateLimited 判断 go-github 返回的错误是否由限流导致。
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		return IsRateLimitMessage(respErr.Message)
	}
	return false
}
