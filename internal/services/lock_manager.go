// internal/services/lock_manager.go
package services

import (
	"sort"
	"sync"
	"time"
)

// LockManager hands out one lock per campaign session and tracks when each was last used,
// so idle sessions can be expired.
type LockManager struct {
	locks      map[string]*LockInfo
	globalLock sync.Mutex
	now        func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// LockInfo wraps a session lock.
type LockInfo struct {
	Mutex    sync.RWMutex
	LastUsed time.Time
	// refs counts callers holding or waiting for Mutex; such locks are never expired.
	refs int
}

// NewLockManager creates an empty manager. Call StartCleanup to expire idle entries.
func NewLockManager() *LockManager {
	return &LockManager{
		locks:  make(map[string]*LockInfo),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

func (lm *LockManager) acquire(id string) *LockInfo {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	info, exists := lm.locks[id]
	if !exists {
		info = &LockInfo{}
		lm.locks[id] = info
	}
	info.refs++
	info.LastUsed = lm.now()
	return info
}

func (lm *LockManager) release(info *LockInfo) {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	info.refs--
	info.LastUsed = lm.now()
}

// Touch registers id as used now.
func (lm *LockManager) Touch(id string) {
	lm.release(lm.acquire(id))
}

// ExecuteWithLock runs fn holding the exclusive lock for id.
func (lm *LockManager) ExecuteWithLock(id string, fn func() error) error {
	info := lm.acquire(id)
	defer lm.release(info)

	info.Mutex.Lock()
	defer info.Mutex.Unlock()
	return fn()
}

// ExecuteWithReadLock runs fn holding the shared lock for id.
func (lm *LockManager) ExecuteWithReadLock(id string, fn func() error) error {
	info := lm.acquire(id)
	defer lm.release(info)

	info.Mutex.RLock()
	defer info.Mutex.RUnlock()
	return fn()
}

// Remove forgets id.
func (lm *LockManager) Remove(id string) {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	delete(lm.locks, id)
}

// Len returns the number of tracked ids.
func (lm *LockManager) Len() int {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	return len(lm.locks)
}

// Idle returns, sorted, the ids unused for longer than ttl and not currently held.
func (lm *LockManager) Idle(ttl time.Duration) []string {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	now := lm.now()
	var ids []string
	for id, info := range lm.locks {
		if info.refs == 0 && now.Sub(info.LastUsed) > ttl {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// StartCleanup checks every interval for ids idle longer than ttl and calls onExpire for each.
// Stop ends the loop.
func (lm *LockManager) StartCleanup(interval, ttl time.Duration, onExpire func(id string)) {
	lm.wg.Add(1)
	go func() {
		defer lm.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				for _, id := range lm.Idle(ttl) {
					onExpire(id)
				}
			case <-lm.stopCh:
				return
			}
		}
	}()
}

// Stop ends the cleanup loop and waits for it to exit.
func (lm *LockManager) Stop() {
	lm.stopOnce.Do(func() { close(lm.stopCh) })
	lm.wg.Wait()
}
