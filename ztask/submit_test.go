package ztask

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiz36/ztask/internal/log"
	"github.com/tiz36/ztask/internal/queue"
	"github.com/tiz36/ztask/internal/spool"
)

type fakePublisher struct {
	err      error
	seen     map[string]bool
	payloads []*queue.DefinitionPayload
}

func (p *fakePublisher) EnqueueDefinition(_ context.Context, payload *queue.DefinitionPayload) (queue.EnqueueResult, error) {
	if p.err != nil {
		return queue.EnqueueResult{}, p.err
	}
	if p.seen == nil {
		p.seen = map[string]bool{}
	}
	p.payloads = append(p.payloads, payload)
	dup := p.seen[payload.TaskID]
	p.seen[payload.TaskID] = true
	return queue.EnqueueResult{TaskID: payload.TaskID, Queue: "default", Duplicate: dup}, nil
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestSubmitter(t *testing.T, pub publisher, withSpool bool) *queueSubmitter {
	t.Helper()
	s := &queueSubmitter{
		queue:   pub,
		logger:  log.NewNop(),
		metrics: newMetrics(MetricsConfig{}),
		now:     func() time.Time { return fixedNow },
	}
	if withSpool {
		sp, err := spool.Open(spool.Config{Dir: t.TempDir(), NoSync: true}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = sp.Close() })
		s.spool = sp
	}
	return s
}

func definedTask(t *testing.T, code int64) (*TaskDefinition, []byte) {
	t.Helper()
	task, err := NewSQLTask("t", "ds", "select 1", mysqlResolver(), &fakeGenerator{ident: Identity{Code: code, Version: 1}})
	require.NoError(t, err)
	def, err := task.Define(context.Background())
	require.NoError(t, err)
	doc, err := task.DefineJSON(context.Background())
	require.NoError(t, err)
	return def, doc
}

func TestSubmitEnqueue(t *testing.T) {
	pub := &fakePublisher{}
	s := newTestSubmitter(t, pub, false)
	def, doc := definedTask(t, 123)

	res, err := s.Submit(context.Background(), def, doc)
	require.NoError(t, err)
	assert.Equal(t, SubmitResult{TaskID: "123-1", Queue: "default", At: fixedNow}, res)
	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "t", pub.payloads[0].Name)
	assert.JSONEq(t, string(doc), string(pub.payloads[0].Definition))

	res, err = s.Submit(context.Background(), def, doc)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	stats := s.metrics.snapshot().Submit
	assert.Equal(t, int64(1), stats.Enqueued)
	assert.Equal(t, int64(1), stats.Duplicate)
}

func TestSubmitFallsBackToSpool(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	s := newTestSubmitter(t, pub, true)

	def, doc := definedTask(t, 1)
	res, err := s.Submit(context.Background(), def, doc)
	require.NoError(t, err)
	assert.True(t, res.Spooled)
	assert.Equal(t, "1-1", res.TaskID)

	def2, doc2 := definedTask(t, 2)
	_, err = s.Submit(context.Background(), def2, doc2)
	require.NoError(t, err)
	assert.Equal(t, 2, s.spool.Len())

	t.Run("replay fails while queue is down", func(t *testing.T) {
		n, err := s.replay(context.Background())
		assert.ErrorIs(t, err, ErrSubmitFailed)
		assert.Zero(t, n)
		assert.Equal(t, 2, s.spool.Len())
	})

	t.Run("replay after recovery", func(t *testing.T) {
		pub.err = nil
		n, err := s.replay(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 0, s.spool.Len())
		require.Len(t, pub.payloads, 2)
		assert.Equal(t, "1-1", pub.payloads[0].TaskID)
		assert.Equal(t, "2-1", pub.payloads[1].TaskID)
		assert.JSONEq(t, string(doc), string(pub.payloads[0].Definition))
	})

	stats := s.metrics.snapshot().Submit
	assert.Equal(t, int64(2), stats.Spooled)
	assert.Equal(t, int64(2), stats.Enqueued)
}

func TestSubmitWithoutSpoolFails(t *testing.T) {
	s := newTestSubmitter(t, &fakePublisher{err: errors.New("redis down")}, false)
	def, doc := definedTask(t, 1)

	_, err := s.Submit(context.Background(), def, doc)
	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.Equal(t, int64(1), s.metrics.snapshot().Submit.Failed)
}

func TestSubmitNotConfigured(t *testing.T) {
	s := newTestSubmitter(t, nil, false)
	def, doc := definedTask(t, 1)

	_, err := s.Submit(context.Background(), def, doc)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = s.replay(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
