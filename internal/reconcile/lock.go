package reconcile

import (
	"context"
	"slices"
	"sync"
	"time"

	dErrors "idstatus/pkg/domain-errors"
)

const (
	defaultLockShards  = 128
	defaultLockTimeout = 15 * time.Second
)

// ShardedLocker serialises work per key inside one process. Keys hash onto a
// fixed set of mutexes, so unrelated people rarely contend.
type ShardedLocker struct {
	shards  []sync.Mutex
	timeout time.Duration
}

// NewShardedLocker creates a locker with n shards. The timeout bounds the
// locked section when the caller's context has no deadline.
func NewShardedLocker(n int, timeout time.Duration) *ShardedLocker {
	if n <= 0 {
		n = defaultLockShards
	}
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	return &ShardedLocker{shards: make([]sync.Mutex, n), timeout: timeout}
}

// WithKeyLock locks the shards of all keys in ascending order, so two
// callers sharing any key never deadlock.
func (l *ShardedLocker) WithKeyLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "lock aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	shards := l.shardsFor(keys)
	for _, s := range shards {
		l.shards[s].Lock()
	}
	defer func() {
		for i := len(shards) - 1; i >= 0; i-- {
			l.shards[shards[i]].Unlock()
		}
	}()

	// check again after acquiring the locks
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "lock aborted: context cancelled")
	}
	return fn(ctx)
}

func (l *ShardedLocker) shardsFor(keys []string) []int {
	out := make([]int, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		out = append(out, int(hashKey(k)%uint32(len(l.shards))))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// hashKey is FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
