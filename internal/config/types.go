package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数：监听、日志、缓存目录与上游访问方式。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
	StoragePath   string `mapstructure:"StoragePath"`

	// CacheTTL 是缓存新鲜期，未过期时直接返回缓存正文，不访问上游。
	CacheTTL Duration `mapstructure:"CacheTTL"`
	// ClientMaxAge 写入响应的 Cache-Control: max-age。
	ClientMaxAge Duration `mapstructure:"ClientMaxAge"`

	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	RequestBudget   Duration `mapstructure:"RequestBudget"`
	FallbackTimeout Duration `mapstructure:"FallbackTimeout"`

	VerifyUpstreamCertificate bool   `mapstructure:"VerifyUpstreamCertificate"`
	UserAgent                 string `mapstructure:"UserAgent"`
	AcceptLanguage            string `mapstructure:"AcceptLanguage"`
	Locale                    string `mapstructure:"Locale"`
	APIBaseURL                string `mapstructure:"APIBaseURL"`
	WebBaseURL                string `mapstructure:"WebBaseURL"`
}

// FeedConfig 描述唯一对外暴露的发布信息接口。
type FeedConfig struct {
	// Repository 形如 owner/repo。
	Repository  string `mapstructure:"Repository"`
	Path        string `mapstructure:"Path"`
	CacheKey    string `mapstructure:"CacheKey"`
	StaticTag   string `mapstructure:"StaticTag"`
	ProjectName string `mapstructure:"ProjectName"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Feed   FeedConfig   `mapstructure:"Feed"`
}

// Owner 返回 Repository 中的 owner 段（假定 Validate 已通过）。
func (f FeedConfig) Owner() string {
	owner, _, _ := splitRepository(f.Repository)
	return owner
}

// Repo 返回 Repository 中的仓库名段。
func (f FeedConfig) Repo() string {
	_, repo, _ := splitRepository(f.Repository)
	return repo
}

// DisplayProject 返回静态兜底文案中使用的项目名，未配置时退回仓库名。
func (f FeedConfig) DisplayProject() string {
	if name := strings.TrimSpace(f.ProjectName); name != "" {
		return name
	}
	return f.Repo()
}

// ReleasesPageURL 返回项目公开的 Releases 页面地址。
func (c *Config) ReleasesPageURL() string {
	base := strings.TrimRight(c.Global.WebBaseURL, "/")
	return fmt.Sprintf("%s/%s/%s/releases", base, c.Feed.Owner(), c.Feed.Repo())
}

// LatestReleaseURL 返回 GitHub 的 latest 跳转地址。
func (c *Config) LatestReleaseURL() string {
	return c.ReleasesPageURL() + "/latest"
}

// TLSMode 输出 `verified` 或 `insecure`，供日志字段使用。
func (g GlobalConfig) TLSMode() string {
	if g.VerifyUpstreamCertificate {
		return "verified"
	}
	return "insecure"
}

func splitRepository(raw string) (string, string, bool) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) != 2 {
		return "", "", false
	}
	owner := strings.TrimSpace(parts[0])
	repo := strings.TrimSpace(parts[1])
	if owner == "" || repo == "" {
		return "", "", false
	}
	return owner, repo, true
}
