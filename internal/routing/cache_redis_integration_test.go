//go:build integration

package routing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"idstatus/internal/routing"
	"idstatus/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *routing.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.cache = routing.NewRedisCache(s.redis.Client.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "APP-1", routing.OwnerA))

	owner, err := s.cache.Get(ctx, "APP-1")
	s.Require().NoError(err)
	s.Equal(routing.OwnerA, owner)

	ttl, err := s.redis.Client.TTL(ctx, "routing:owner:APP-1").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisCacheSuite) TestUnroutedIsNotStored() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "APP-2", routing.Unrouted))

	_, err := s.cache.Get(ctx, "APP-2")
	s.ErrorIs(err, routing.ErrCacheMiss)
}
