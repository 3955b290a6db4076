package service

import (
	"context"
	"sort"
	"sync"
)

// CustomerLocker 按 customer_hash 加锁的进程内互斥
// 同一客户的写入 + 重算串行执行，不同客户互不影响；空闲的锁会被回收
type CustomerLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// lockEntry 容量为 1 的 channel 作为锁，等待时可以响应 ctx 取消
type lockEntry struct {
	ch   chan struct{}
	refs int
}

// NewCustomerLocker 创建客户锁
func NewCustomerLocker() *CustomerLocker {
	return &CustomerLocker{locks: make(map[string]*lockEntry)}
}

// Lock 获取一组客户的锁，返回解锁函数
// 空 hash 忽略、重复 hash 去重，按字典序加锁，避免两个请求交叉等待
// ctx 结束时放弃等待，已拿到的锁全部释放
func (l *CustomerLocker) Lock(ctx context.Context, customerHashes ...string) (func(), error) {
	keys := lockKeys(customerHashes)

	held := make([]string, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.release(held[i])
		}
	}

	for _, key := range keys {
		if err := l.acquire(ctx, key); err != nil {
			release()
			return nil, err
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (l *CustomerLocker) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.drop(key, entry)
		return ctx.Err()
	}
}

func (l *CustomerLocker) release(key string) {
	l.mu.Lock()
	entry := l.locks[key]
	l.mu.Unlock()
	if entry == nil {
		return
	}
	<-entry.ch
	l.drop(key, entry)
}

// drop 减少引用，无人持有或等待时回收
func (l *CustomerLocker) drop(key string, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}

// Size 当前持有或等待中的客户锁数量
func (l *CustomerLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func lockKeys(hashes []string) []string {
	keys := make([]string, 0, len(hashes))
	seen := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		keys = append(keys, h)
	}
	sort.Strings(keys)
	return keys
}

// coversAll 事务内读到的哈希是否都在已加锁的集合里
func coversAll(locked []string, hashes ...string) bool {
	for _, h := range hashes {
		if h == "" {
			continue
		}
		found := false
		for _, k := range locked {
			if k == h {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
