package biz

import (
	"strings"
	"sync"
)

// PathLocker 基于逻辑路径的子树锁。
// 持有 "drive/photos" 会阻塞 "drive/photos"、"drive/photos/a.jpg"
// 以及 "drive" 上的后续 Acquire，互不嵌套的路径可以并发。
type PathLocker struct {
	mu   sync.Mutex
	cond *sync.Cond
	held map[string]int
}

func NewPathLocker() *PathLocker {
	l := &PathLocker{held: make(map[string]int)}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Acquire 原子地获取一组路径的子树锁，任一路径与已持有的子树
// 重叠时整体等待，避免逐个加锁造成的死锁。
func (l *PathLocker) Acquire(paths ...string) {
	normalized := normalizePaths(paths)

	l.mu.Lock()
	defer l.mu.Unlock()

	for l.anyOverlap(normalized) {
		l.cond.Wait()
	}
	for _, p := range normalized {
		l.held[p]++
	}
}

// Release 释放 Acquire 取得的路径，参数必须与 Acquire 时一致。
func (l *PathLocker) Release(paths ...string) {
	normalized := normalizePaths(paths)

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range normalized {
		if l.held[p] <= 1 {
			delete(l.held, p)
		} else {
			l.held[p]--
		}
	}
	l.cond.Broadcast()
}

func (l *PathLocker) anyOverlap(paths []string) bool {
	for _, p := range paths {
		for h := range l.held {
			if overlaps(p, h) {
				return true
			}
		}
	}
	return false
}

func normalizePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// overlaps 判断两条路径是否落在同一子树内
func overlaps(a, b string) bool {
	return a == b || strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}
