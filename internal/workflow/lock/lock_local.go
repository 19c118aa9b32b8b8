package lock

import (
	"context"
	"time"

	dErrors "regflow/pkg/domain-errors"
)

// numShards spreads owners over independent locks so unrelated sessions
// rarely contend.
const numShards = 128

const defaultWait = 5 * time.Second

// Sharded is an in-process Locker. Keys hashing to the same shard serialize.
type Sharded struct {
	shards [numShards]chan struct{}
	wait   time.Duration
}

func NewSharded() *Sharded {
	l := &Sharded{wait: defaultWait}
	for i := range l.shards {
		l.shards[i] = make(chan struct{}, 1)
	}
	return l
}

// Lock blocks until the key's shard is free, ctx ends, or the wait bound passes.
func (l *Sharded) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "lock aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	shard := l.shards[hashKey(key)%numShards]
	select {
	case shard <- struct{}{}:
		return func() { <-shard }, nil
	case <-ctx.Done():
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "timed out waiting for lock")
	}
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
