package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"

	"github.com/123pan/release-feed/internal/upstream"
)

// wireRelease 是 releases 列表中单个元素的反序列化形态；指针字段区分“缺失”与“空值”。
type wireRelease struct {
	TagName     *string     `json:"tag_name"`
	Name        *string     `json:"name"`
	Body        *string     `json:"body"`
	PublishedAt *string     `json:"published_at"`
	Draft       *bool       `json:"draft"`
	Assets      []wireAsset `json:"assets"`
}

type wireAsset struct {
	Name               *string `json:"name"`
	Size               *int64  `json:"size"`
	BrowserDownloadURL *string `json:"browser_download_url"`
	ContentType        *string `json:"content_type"`
}

type errorEnvelope struct {
	Message *string `json:"message"`
}

// releaseDefaults 集中描述缺失字段的替代值。
type releaseDefaults struct {
	Notes       string
	PublishedAt string
}

// ParseReleases 解析 releases 列表响应并完成归一化。
// 返回的 Feed 至少包含一个非草稿版本，否则返回分类错误。
func ParseReleases(body []byte) (Feed, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrEmptyResult)
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedResponse)
	}

	switch trimmed[0] {
	case '{':
		var envelope errorEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if envelope.Message != nil {
			return nil, &UpstreamError{
				Message:     *envelope.Message,
				RateLimited: upstream.IsRateLimitMessage(*envelope.Message),
			}
		}
		return nil, fmt.Errorf("%w: expected a list, got an object", ErrMalformedResponse)
	case '[':
	default:
		return nil, fmt.Errorf("%w: expected a list", ErrMalformedResponse)
	}

	var releases []wireRelease
	if err := json.Unmarshal(trimmed, &releases); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(releases) == 0 {
		return nil, fmt.Errorf("%w: no releases", ErrEmptyResult)
	}

	feed := normalizeReleases(releases, releaseDefaults{})
	if len(feed) == 0 {
		return nil, fmt.Errorf("%w: only draft releases", ErrEmptyResult)
	}
	return feed, nil
}

func normalizeReleases(releases []wireRelease, defaults releaseDefaults) Feed {
	feed := make(Feed, 0, len(releases))
	for _, item := range releases {
		if item.Draft != nil && *item.Draft {
			continue
		}
		feed = append(feed, item.normalize(defaults))
	}
	return feed
}

func (w wireRelease) normalize(defaults releaseDefaults) Release {
	tag := stringOr(w.TagName, "")
	release := Release{
		Tag:         tag,
		DisplayName: nonEmptyOr(w.Name, tag),
		Notes:       stringOr(w.Body, defaults.Notes),
		PublishedAt: stringOr(w.PublishedAt, defaults.PublishedAt),
		Assets:      make([]Asset, 0, len(w.Assets)),
	}
	for _, asset := range w.Assets {
		release.Assets = append(release.Assets, asset.normalize())
	}
	return release
}

func (w wireAsset) normalize() Asset {
	size := int64(0)
	if w.Size != nil && *w.Size > 0 {
		size = *w.Size
	}
	return Asset{
		Name:        stringOr(w.Name, ""),
		Size:        size,
		DownloadURL: stringOr(w.BrowserDownloadURL, ""),
		ContentType: nonEmptyOr(w.ContentType, DefaultContentType),
	}
}

// FromGitHubRelease 把 go-github 的 latest 结果转换成单元素 Feed。
// 缺少 tag_name 视为空结果；body/published_at 缺失时使用占位文案与当前时间。
func FromGitHubRelease(release *github.RepositoryRelease, latestNotes string, now time.Time) (Feed, error) {
	if release == nil || release.TagName == nil {
		return nil, fmt.Errorf("%w: latest release without tag_name", ErrEmptyResult)
	}

	wire := wireRelease{
		TagName: release.TagName,
		Name:    release.Name,
		Body:    release.Body,
		Assets:  make([]wireAsset, 0, len(release.Assets)),
	}
	if release.PublishedAt != nil {
		published := release.PublishedAt.UTC().Format(time.RFC3339)
		wire.PublishedAt = &published
	}
	for _, asset := range release.Assets {
		if asset == nil {
			continue
		}
		item := wireAsset{
			Name:               asset.Name,
			BrowserDownloadURL: asset.BrowserDownloadURL,
			ContentType:        asset.ContentType,
		}
		if asset.Size != nil {
			size := int64(*asset.Size)
			item.Size = &size
		}
		wire.Assets = append(wire.Assets, item)
	}

	return Feed{wire.normalize(releaseDefaults{
		Notes:       latestNotes,
		PublishedAt: formatTimestamp(now),
	})}, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func stringOr(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}

func nonEmptyOr(value *string, fallback string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return fallback
	}
	return *value
}
