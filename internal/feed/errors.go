package feed

import (
	"errors"
	"fmt"

	"github.com/123pan/release-feed/internal/cache"
)

// 内部错误分类，全部只用于推进回退链，不会暴露给调用方。
var (
	ErrTransport         = errors.New("transport failure")
	ErrMalformedResponse = errors.New("malformed response")
	ErrUpstream          = errors.New("upstream error")
	ErrEmptyResult       = errors.New("empty result")

	errCacheStale = errors.New("cache entry stale")
)

// UpstreamError 对应 GitHub 的 {"message": "..."} 错误包。
type UpstreamError struct {
	Message     string
	RateLimited bool
}

func (e *UpstreamError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("upstream rate limited: %s", e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}

// Classify 把错误归入四类之一，供日志输出；无法识别的按 transport 处理。
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	case errors.Is(err, errCacheStale):
		return "cache_stale"
	case errors.Is(err, cache.ErrNotFound):
		return "cache_miss"
	default:
		return "transport_failure"
	}
}
