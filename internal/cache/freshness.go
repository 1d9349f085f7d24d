package cache

import "time"

// Freshness 根据 TTL 判断条目是否可以直接复用，不访问上游。
type Freshness struct {
	ttl time.Duration
	now func() time.Time
}

// NewFreshness 构造 TTL 判定器，默认使用 time.Now 作为时钟。
func NewFreshness(ttl time.Duration) Freshness {
	return Freshness{ttl: ttl, now: time.Now}
}

// WithClock 返回使用指定时钟的副本，便于测试固定时间。
func (f Freshness) WithClock(now func() time.Time) Freshness {
	if now != nil {
		f.now = now
	}
	return f
}

// TTL 返回配置的新鲜期。
func (f Freshness) TTL() time.Duration {
	return f.ttl
}

// IsFresh 当条目年龄严格小于 TTL 时返回 true。
func (f Freshness) IsFresh(entry Entry) bool {
	if f.ttl <= 0 {
		return false
	}
	return entry.Age(f.now()) < f.ttl
}

// Age 返回条目在当前时钟下的年龄。
func (f Freshness) Age(entry Entry) time.Duration {
	return entry.Age(f.now())
}
