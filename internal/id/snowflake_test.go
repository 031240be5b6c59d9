package id

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	mu       sync.Mutex
	nodes    map[int64]*NodeInfo
	renewed  int
	released []int64
	failWith error
}

func newMemStorage() *memStorage {
	return &memStorage{nodes: make(map[int64]*NodeInfo)}
}

func (s *memStorage) RegisterNode(_ context.Context, node *NodeInfo, maxNodeID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	for id := int64(0); id <= maxNodeID; id++ {
		if _, used := s.nodes[id]; !used {
			n := *node
			n.ID = id
			s.nodes[id] = &n
			return id, nil
		}
	}
	return 0, errors.New("no available node id")
}

func (s *memStorage) RenewNode(_ context.Context, nodeID int64, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renewed++
	return nil
}

func (s *memStorage) ReleaseNode(_ context.Context, nodeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, nodeID)
	s.released = append(s.released, nodeID)
	return nil
}

func TestSnowflakeFixedNode(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.NodeID = 7

	sf, err := NewSnowflake(ctx, cfg)
	require.NoError(t, err)
	defer sf.Close()

	t.Run("unique and increasing", func(t *testing.T) {
		var last int64
		seen := make(map[int64]bool)
		for i := 0; i < 5000; i++ {
			code, err := sf.NextCode(ctx)
			require.NoError(t, err)
			assert.False(t, seen[code], "duplicate code %d", code)
			assert.Greater(t, code, last)
			seen[code] = true
			last = code
		}
	})

	t.Run("layout", func(t *testing.T) {
		before := time.Now().Add(-time.Millisecond)
		code, err := sf.NextCode(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(7), sf.ExtractNodeID(code))
		assert.False(t, sf.ExtractTime(code).Before(before.Truncate(time.Millisecond)))
		assert.Equal(t, int64(7), sf.NodeID())
	})
}

func TestSnowflakeClockBackwards(t *testing.T) {
	ctx := context.Background()
	sf, err := NewSnowflake(ctx, DefaultConfig())
	require.NoError(t, err)

	base := time.UnixMilli(1700000000000)
	sf.now = func() time.Time { return base }
	_, err = sf.NextCode(ctx)
	require.NoError(t, err)

	sf.now = func() time.Time { return base.Add(-5 * time.Millisecond) }
	_, err = sf.NextCode(ctx)
	assert.ErrorContains(t, err, "clock moved backwards")
}

func TestSnowflakeCanceledContext(t *testing.T) {
	sf, err := NewSnowflake(context.Background(), DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sf.NextCode(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnowflakeAutoNode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storage := newMemStorage()
	storage.nodes[0] = &NodeInfo{ID: 0}

	cfg := DefaultConfig()
	cfg.AutoNodeID = true
	cfg.Storage = storage
	cfg.NodeTTL = 20 * time.Millisecond

	sf, err := NewSnowflake(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sf.NodeID())

	assert.Eventually(t, func() bool {
		storage.mu.Lock()
		defer storage.mu.Unlock()
		return storage.renewed > 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, sf.Close())
	assert.Equal(t, []int64{1}, storage.released)
}

func TestSnowflakeAutoNodeFailure(t *testing.T) {
	storage := newMemStorage()
	storage.failWith = errors.New("db down")

	cfg := DefaultConfig()
	cfg.AutoNodeID = true
	cfg.Storage = storage

	_, err := NewSnowflake(context.Background(), cfg)
	assert.ErrorContains(t, err, "db down")
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NodeBits, cfg.StepBits = 12, 12
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.NodeID = 1 << 10
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.AutoNodeID = true
	assert.ErrorContains(t, cfg.Validate(), "storage")

	cfg = DefaultConfig()
	assert.Equal(t, int64(1023), cfg.MaxNodeID())
	assert.NoError(t, cfg.Validate())
}
