package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3/client"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/123pan/release-feed/internal/config"
)

// maxBodyBytes 限制单次读取的响应体大小，releases 列表远小于该值。
const maxBodyBytes = 8 << 20

var (
	// ErrEmptyBody 表示上游返回了空响应体。
	ErrEmptyBody = errors.New("upstream returned empty body")
	// ErrUnexpectedStatus 表示备用通道收到了非 200 响应。
	ErrUnexpectedStatus = errors.New("upstream returned unexpected status")
)

// Fetcher 以 GET 方式获取 URL 的原始响应体。
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, target string) ([]byte, error)
}

// HTTPFetcher 是基于 net/http 的主通道。
// 非 2xx 响应体同样返回，由调用方识别 {"message": ...} 错误包。
type HTTPFetcher struct {
	client  *http.Client
	headers Headers
}

// NewHTTPFetcher 使用共享 transport 构造主通道。
func NewHTTPFetcher(cfg *config.Config) *HTTPFetcher {
	return &HTTPFetcher{
		client:  NewHTTPClient(cfg.Global, cfg.Global.UpstreamTimeout.DurationValue()),
		headers: HeadersFromConfig(cfg.Global),
	}
}

func (f *HTTPFetcher) Name() string { return "net/http" }

func (f *HTTPFetcher) Fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, err
	}
	f.headers.Apply(req.Header)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w (status %d)", ErrEmptyBody, resp.StatusCode)
	}
	return body, nil
}

// FiberFetcher 是基于 Fiber client（fasthttp）的备用通道，只接受 200 响应。
type FiberFetcher struct {
	client  *client.Client
	raw     *fasthttp.Client
	headers Headers
	timeout time.Duration
}

// NewFiberFetcher 构造备用通道，证书策略与建连超时与主通道一致。
func NewFiberFetcher(cfg *config.Config) *FiberFetcher {
	headers := HeadersFromConfig(cfg.Global)
	timeout := cfg.Global.UpstreamTimeout.DurationValue()

	raw := &fasthttp.Client{
		Name:                headers.UserAgent,
		ReadTimeout:         timeout,
		WriteTimeout:        timeout,
		MaxConnsPerHost:     4,
		MaxIdleConnDuration: 90 * time.Second,
		TLSConfig:           TLSConfig(cfg.Global.VerifyUpstreamCertificate),
		Dial: func(addr string) (net.Conn, error) {
			return fasthttp.DialTimeout(addr, connectTimeout)
		},

		// fasthttp 默认对幂等请求重试；备用通道只允许一次尝试。
		MaxIdemponentCallAttempts: 1,
	}

	cc := client.NewWithClient(raw).
		SetTimeout(timeout).
		SetUserAgent(headers.UserAgent)

	return &FiberFetcher{
		client:  cc,
		raw:     raw,
		headers: headers,
		timeout: timeout,
	}
}

func (f *FiberFetcher) Name() string { return "fasthttp" }

func (f *FiberFetcher) Fetch(ctx context.Context, target string) ([]byte, error) {
	resp, err := f.client.Get(target, client.Config{
		Ctx:          ctx,
		Header:       f.headers.Map(),
		Timeout:      f.timeout,
		MaxRedirects: 5,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	if status := resp.StatusCode(); status != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}
	// resp.Close 会回收底层缓冲区，必须先拷贝。
	body := append([]byte(nil), resp.Body()...)
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}
	return body, nil
}

// chainFetcher 先走主通道，失败或空响应时用备用通道重试一次。
type chainFetcher struct {
	primary   Fetcher
	alternate Fetcher
	logger    *logrus.Logger
}

// Chain 组合主/备用通道。alternate 为 nil 时等价于 primary。
func Chain(primary, alternate Fetcher, logger *logrus.Logger) Fetcher {
	if alternate == nil {
		return primary
	}
	return &chainFetcher{primary: primary, alternate: alternate, logger: logger}
}

func (c *chainFetcher) Name() string {
	return c.primary.Name() + "+" + c.alternate.Name()
}

func (c *chainFetcher) Fetch(ctx context.Context, target string) ([]byte, error) {
	body, err := c.primary.Fetch(ctx, target)
	if err == nil {
		return body, nil
	}
	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{
			"action":    "upstream_fetch",
			"transport": c.primary.Name(),
			"fallback":  c.alternate.Name(),
			"upstream":  target,
		}).WithError(err).Debug("primary transport failed")
	}

	altBody, altErr := c.alternate.Fetch(ctx, target)
	if altErr != nil {
		return nil, errors.Join(err, altErr)
	}
	return altBody, nil
}
