package upstream

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/123pan/release-feed/internal/config"
)

// 建连超时固定 10s，整体超时由调用方传入。
const connectTimeout = 10 * time.Second

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          16,
	MaxIdleConnsPerHost:   4,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
}

// NewHTTPClient 返回带超时与证书策略的 http.Client，timeout<=0 时取 UpstreamTimeout。
func NewHTTPClient(g config.GlobalConfig, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = g.UpstreamTimeout.DurationValue()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	transport := defaultTransport.Clone()
	transport.TLSClientConfig = TLSConfig(g.VerifyUpstreamCertificate)
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// TLSConfig 根据 VerifyUpstreamCertificate 构造出站 TLS 配置。
// 关闭校验只应在明确需要时通过配置打开。
func TLSConfig(verify bool) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !verify, //nolint:gosec // 由配置显式控制
	}
}

// headerTransport 为未显式设置的请求补齐固定请求头。
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for key, values := range t.headers {
		if clone.Header.Get(key) != "" {
			continue
		}
		for _, value := range values {
			clone.Header.Add(key, value)
		}
	}
	return t.base.RoundTrip(clone)
}
