package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// 默认值：1 小时新鲜期、浏览器缓存 5 分钟、15s 传输超时、30s 主请求预算。
const (
	defaultCacheTTL        = time.Hour
	defaultClientMaxAge    = 5 * time.Minute
	defaultUpstreamTimeout = 15 * time.Second
	defaultRequestBudget   = 30 * time.Second
	defaultFallbackTimeout = 10 * time.Second

	DefaultUserAgent      = "123pan-Download-Page/1.0"
	DefaultAcceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
	DefaultAPIBaseURL     = "https://api.github.com/"
	DefaultWebBaseURL     = "https://github.com"
	DefaultFeedPath       = "/get_links"
	DefaultCacheKey       = "github_releases_cache.json"
	DefaultStaticTag      = "v1.0.0"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectMultipleFeeds(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyFeedDefaults(&cfg.Feed)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "./storage")
	v.SetDefault("CacheTTL", "1h")
	v.SetDefault("ClientMaxAge", "5m")
	v.SetDefault("UpstreamTimeout", "15s")
	v.SetDefault("RequestBudget", "30s")
	v.SetDefault("FallbackTimeout", "10s")
	v.SetDefault("VerifyUpstreamCertificate", true)
	v.SetDefault("UserAgent", DefaultUserAgent)
	v.SetDefault("AcceptLanguage", DefaultAcceptLanguage)
	v.SetDefault("Locale", "zh-CN")
	v.SetDefault("APIBaseURL", DefaultAPIBaseURL)
	v.SetDefault("WebBaseURL", DefaultWebBaseURL)
	v.SetDefault("Feed.Path", DefaultFeedPath)
	v.SetDefault("Feed.CacheKey", DefaultCacheKey)
	v.SetDefault("Feed.StaticTag", DefaultStaticTag)
}

// ApplyDefaults 为直接构造的 Config 补齐零值字段，Load 之外的调用方使用。
// VerifyUpstreamCertificate 是 bool，无法区分未设置与 false，调用方必须显式赋值。
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	applyGlobalDefaults(&cfg.Global)
	applyFeedDefaults(&cfg.Feed)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if g.CacheTTL.DurationValue() == 0 {
		g.CacheTTL = Duration(defaultCacheTTL)
	}
	if g.ClientMaxAge.DurationValue() == 0 {
		g.ClientMaxAge = Duration(defaultClientMaxAge)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(defaultUpstreamTimeout)
	}
	if g.RequestBudget.DurationValue() == 0 {
		g.RequestBudget = Duration(defaultRequestBudget)
	}
	if g.FallbackTimeout.DurationValue() == 0 {
		g.FallbackTimeout = Duration(defaultFallbackTimeout)
	}
	if strings.TrimSpace(g.UserAgent) == "" {
		g.UserAgent = DefaultUserAgent
	}
	if strings.TrimSpace(g.APIBaseURL) == "" {
		g.APIBaseURL = DefaultAPIBaseURL
	}
	// go-github 要求 BaseURL 以 / 结尾。
	if !strings.HasSuffix(g.APIBaseURL, "/") {
		g.APIBaseURL += "/"
	}
	if strings.TrimSpace(g.WebBaseURL) == "" {
		g.WebBaseURL = DefaultWebBaseURL
	}
}

func applyFeedDefaults(f *FeedConfig) {
	f.Repository = strings.TrimSpace(f.Repository)
	if f.Path == "" {
		f.Path = DefaultFeedPath
	}
	if !strings.HasPrefix(f.Path, "/") {
		f.Path = "/" + f.Path
	}
	if f.CacheKey == "" {
		f.CacheKey = DefaultCacheKey
	}
	if f.StaticTag == "" {
		f.StaticTag = DefaultStaticTag
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// rejectMultipleFeeds 拒绝 [[Feed]] 数组写法：单进程只代理一个仓库。
func rejectMultipleFeeds(v *viper.Viper) error {
	raw := v.Get("Feed")
	if _, ok := raw.([]interface{}); ok {
		return newFieldError("Feed", "仅支持单个 [Feed] 表，请为其它仓库单独部署实例")
	}
	if _, ok := raw.([]map[string]interface{}); ok {
		return newFieldError("Feed", "仅支持单个 [Feed] 表，请为其它仓库单独部署实例")
	}
	return nil
}
