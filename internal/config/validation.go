package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "仅支持 trace/debug/info/warn/error/fatal/panic")
	}
	if g.CacheTTL.DurationValue() <= 0 {
		return newFieldError("Global.CacheTTL", "必须大于 0")
	}
	if g.ClientMaxAge.DurationValue() < 0 {
		return newFieldError("Global.ClientMaxAge", "不能为负数")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if g.RequestBudget.DurationValue() < g.UpstreamTimeout.DurationValue() {
		return newFieldError("Global.RequestBudget", "不能小于 UpstreamTimeout")
	}
	if g.FallbackTimeout.DurationValue() <= 0 {
		return newFieldError("Global.FallbackTimeout", "必须大于 0")
	}
	if strings.TrimSpace(g.UserAgent) == "" {
		return newFieldError("Global.UserAgent", "不能为空")
	}
	if err := validateBaseURL(g.APIBaseURL); err != nil {
		return fmt.Errorf("Global.APIBaseURL: %w", err)
	}
	if err := validateBaseURL(g.WebBaseURL); err != nil {
		return fmt.Errorf("Global.WebBaseURL: %w", err)
	}

	f := c.Feed
	if _, _, ok := splitRepository(f.Repository); !ok {
		return newFieldError(feedField("Repository"), "必须为 owner/repo 形式")
	}
	if strings.ContainsAny(f.Path, " ?#") || f.Path == "/" {
		return newFieldError(feedField("Path"), "必须是不含查询串的非根路径")
	}
	if strings.HasPrefix(f.Path, "/-/") {
		return newFieldError(feedField("Path"), "/-/ 前缀保留给诊断接口")
	}
	if strings.ContainsAny(f.CacheKey, `/\`) || f.CacheKey == "." || f.CacheKey == ".." {
		return newFieldError(feedField("CacheKey"), "只能是单个文件名")
	}
	if _, err := semver.NewVersion(f.StaticTag); err != nil {
		return newFieldError(feedField("StaticTag"), "必须是合法的语义化版本号，例如 v1.0.0")
	}

	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("缺少地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
