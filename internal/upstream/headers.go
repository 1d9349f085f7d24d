package upstream

import (
	"net/http"
	"strings"

	"github.com/123pan/release-feed/internal/config"
)

// AcceptGitHubV3 请求 GitHub REST v3 的 JSON 格式。
const AcceptGitHubV3 = "application/vnd.github.v3+json"

// Headers 是所有出站请求共享的固定请求头。
type Headers struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
}

// HeadersFromConfig 从全局配置构造请求头。
func HeadersFromConfig(g config.GlobalConfig) Headers {
	return Headers{
		UserAgent:      g.UserAgent,
		Accept:         AcceptGitHubV3,
		AcceptLanguage: strings.TrimSpace(g.AcceptLanguage),
	}
}

// Apply 把请求头写入 net/http 的 Header。
func (h Headers) Apply(dst http.Header) {
	if h.UserAgent != "" {
		dst.Set("User-Agent", h.UserAgent)
	}
	if h.Accept != "" {
		dst.Set("Accept", h.Accept)
	}
	if h.AcceptLanguage != "" {
		dst.Set("Accept-Language", h.AcceptLanguage)
	}
}

// Map 以 map 形式返回除 User-Agent 以外的请求头，供 Fiber client 使用。
func (h Headers) Map() map[string]string {
	out := make(map[string]string, 2)
	if h.Accept != "" {
		out["Accept"] = h.Accept
	}
	if h.AcceptLanguage != "" {
		out["Accept-Language"] = h.AcceptLanguage
	}
	return out
}
