//go:build integration

package statestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"regflow/internal/workflow"
	"regflow/internal/workflow/statestore"
	"regflow/pkg/platform/sentinel"
	"regflow/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *statestore.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.store = statestore.NewRedis(s.redis.Client, statestore.WithTTL(time.Minute))
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	want := sampleSnapshot()

	s.Require().NoError(s.store.Save(ctx, "sess-1", want))
	got, err := s.store.Load(ctx, "sess-1")
	s.Require().NoError(err)
	s.Equal(want, *got)

	ttl, err := s.redis.Client.TTL(ctx, "regflow:session:sess-1").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))

	s.Require().NoError(s.store.Clear(ctx, "sess-1"))
	_, err = s.store.Load(ctx, "sess-1")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestCorruptSnapshotIsAnError() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Set(ctx, "regflow:session:bad", "{", 0).Err())
	_, err := s.store.Load(ctx, "bad")
	s.Require().Error(err)
	s.NotErrorIs(err, sentinel.ErrNotFound)
	var _ workflow.StateStore = s.store
}
