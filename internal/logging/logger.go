package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/123pan/release-feed/internal/config"
	"github.com/123pan/release-feed/internal/version"
)

// InitLogger 根据全局配置初始化 JSON 结构化日志；文件不可写时降级到 stdout。
func InitLogger(cfg config.GlobalConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("无法解析日志级别: %w", err)
	}

	output, outErr := buildOutput(cfg)
	if outErr != nil {
		fmt.Fprintf(os.Stderr, "logger_fallback: %v\n", outErr)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	logger.AddHook(serviceHook{service: "release-feed", version: version.Version})

	logrus.SetFormatter(logger.Formatter)
	logrus.SetOutput(logger.Out)
	logrus.SetLevel(logger.GetLevel())

	if outErr != nil {
		logger.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"path":   cfg.LogFilePath,
		}).Warn(outErr.Error())
	}

	return logger, nil
}

// NewDiscardLogger 返回丢弃所有输出的 logger，供一次性命令与测试使用。
func NewDiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// buildOutput 根据配置创建日志输出 Writer；失败时降级到 stdout 并返回错误。
func buildOutput(cfg config.GlobalConfig) (io.Writer, error) {
	if cfg.LogFilePath == "" {
		return os.Stdout, nil
	}

	dir := filepath.Dir(cfg.LogFilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.Stdout, fmt.Errorf("创建日志目录失败: %w", err)
	}

	maxSize := cfg.LogMaxSize
	if maxSize <= 0 {
		maxSize = 100
	}
	return &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    maxSize,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
		LocalTime:  true,
	}, nil
}

// serviceHook 为每条日志补充 service/version 字段，便于多实例部署时区分来源。
type serviceHook struct {
	service string
	version string
}

func (h serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = h.service
	}
	if _, ok := entry.Data["version"]; !ok {
		entry.Data["version"] = h.version
	}
	return nil
}
