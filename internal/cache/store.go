package cache

import (
	"context"
	"errors"
	"time"
)

// Store 负责整块读写缓存正文。磁盘布局遵循：
//
//	<StoragePath>/<key>    # 最近一次主请求成功产出的 JSON 文档
//
// 条目没有额外的元数据，ModTime 由文件系统提供。
type Store interface {
	// Get 返回完整的缓存条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, key string) (*Entry, error)

	// Put 整体覆盖缓存正文。实现需保证读者不会看到写了一半的内容。
	Put(ctx context.Context, key string, body []byte, opts PutOptions) (*Entry, error)
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Entry 表示一次缓存读取结果。
type Entry struct {
	Key     string    `json:"key"`
	Body    []byte    `json:"-"`
	ModTime time.Time `json:"mod_time"`
}

// Age 返回条目相对 now 的年龄；时钟回拨导致的负值按 0 处理。
func (e Entry) Age(now time.Time) time.Duration {
	age := now.Sub(e.ModTime)
	if age < 0 {
		return 0
	}
	return age
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")

// ErrInvalidKey 表示 key 不是单个文件名。
var ErrInvalidKey = errors.New("invalid cache key")
