//go:build integration

package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	id "census/pkg/domain"
	"census/pkg/testutil/containers"
)

type RedisAllocatorSuite struct {
	suite.Suite
	redis     *containers.RedisContainer
	allocator *RedisAllocator
	ctx       context.Context
}

func TestRedisAllocatorSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisAllocatorSuite))
}

func (s *RedisAllocatorSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.allocator = NewRedisAllocator(s.redis.Client, WithKey("census:test:import_id"))
}

func (s *RedisAllocatorSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisAllocatorSuite) TestStrictlyIncreasing() {
	var last id.ImportID
	for range 5 {
		next, err := s.allocator.NextImportID(s.ctx)
		s.Require().NoError(err)
		s.Greater(next, last)
		last = next
	}
	s.Equal(id.ImportID(5), last)
}

func (s *RedisAllocatorSuite) TestConcurrentCallers() {
	const callers = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[id.ImportID]struct{}, callers)
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.allocator.NextImportID(s.ctx)
			s.NoError(err)
			mu.Lock()
			seen[v] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Len(seen, callers)
	for v := range seen {
		s.True(v >= 1 && v <= callers)
	}
}

func (s *RedisAllocatorSuite) TestReset() {
	_, err := s.allocator.NextImportID(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.allocator.Reset(s.ctx))

	next, err := s.allocator.NextImportID(s.ctx)
	s.Require().NoError(err)
	s.Equal(id.ImportID(1), next)
}

func (s *RedisAllocatorSuite) TestHealth() {
	s.NoError(s.allocator.Health(s.ctx))
}
