package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// ResolveFields 提供仓库/数据来源/缓存命中字段，供接口请求日志复用。
func ResolveFields(repository, source string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"repository": repository,
		"source":     source,
		"cache_hit":  cacheHit,
	}
}
