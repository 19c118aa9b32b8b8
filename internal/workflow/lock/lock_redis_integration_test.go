//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"regflow/internal/workflow/lock"
	dErrors "regflow/pkg/domain-errors"
	"regflow/pkg/testutil/containers"
)

type RedisLockSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisLockSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockSuite) TestExclusiveUntilReleased() {
	a := lock.NewRedis(s.redis.Client, lock.WithRetryInterval(5*time.Millisecond))
	b := lock.NewRedis(s.redis.Client, lock.WithRetryInterval(5*time.Millisecond))

	unlock, err := a.Lock(context.Background(), "submission:sess-1")
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = b.Lock(ctx, "submission:sess-1")
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))

	unlock()
	unlockB, err := b.Lock(context.Background(), "submission:sess-1")
	s.Require().NoError(err)
	unlockB()
}

func (s *RedisLockSuite) TestExpiredLockIsNotReleasedByOldHolder() {
	l := lock.NewRedis(s.redis.Client, lock.WithLockTTL(30*time.Millisecond), lock.WithRetryInterval(5*time.Millisecond))
	staleUnlock, err := l.Lock(context.Background(), "k")
	s.Require().NoError(err)

	time.Sleep(60 * time.Millisecond)
	unlock, err := l.Lock(context.Background(), "k")
	s.Require().NoError(err)

	staleUnlock()
	exists, err := s.redis.Client.Exists(context.Background(), "regflow:lock:k").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), exists, "stale holder must not delete the new lock")
	unlock()
}
