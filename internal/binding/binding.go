// Package binding 维护 (platform, selfId) 到会话绑定对象的映射
package binding

import "sync"

// Key 绑定键
type Key struct {
	Platform string
	SelfID   string
}

func (k Key) String() string {
	return k.Platform + "(" + k.SelfID + ")"
}

// Registry 绑定表, 条目只增不改
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[Key]T
	create  func(Key) T
}

// NewRegistry 创建绑定表, create 用于在查找不到时创建新条目
func NewRegistry[T any](create func(Key) T) *Registry[T] {
	return &Registry[T]{
		entries: make(map[Key]T),
		create:  create,
	}
}

// Load 查找绑定
func (r *Registry[T]) Load(platform, selfID string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[Key{platform, selfID}]
	return v, ok
}

// LoadOrCreate 查找绑定, 不存在时创建, 并发调用只会创建一个条目
func (r *Registry[T]) LoadOrCreate(platform, selfID string) T {
	if v, ok := r.Load(platform, selfID); ok {
		return v
	}
	key := Key{platform, selfID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.entries[key]; ok {
		return v
	}
	v := r.create(key)
	r.entries[key] = v
	return v
}

// Len 条目数量
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Range 遍历全部条目的快照
func (r *Registry[T]) Range(fn func(Key, T) bool) {
	r.mu.RLock()
	snapshot := make(map[Key]T, len(r.entries))
	for k, v := range r.entries {
		snapshot[k] = v
	}
	r.mu.RUnlock()
	for k, v := range snapshot {
		if !fn(k, v) {
			return
		}
	}
}
