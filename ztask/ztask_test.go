package ztask

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiz36/ztask/internal/datasource"
)

// newDatasourceAPI 模拟调度引擎数据源列表接口
func newDatasourceAPI(t *testing.T, calls *int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		list := []map[string]interface{}{}
		if r.URL.Query().Get("searchVal") == "ds_mysql" {
			list = append(list, map[string]interface{}{"id": 1, "name": "ds_mysql", "type": "MYSQL"})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"msg":  "success",
			"data": map[string]interface{}{"totalList": list},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestConfig(t *testing.T, endpoint string) Config {
	cfg := DefaultConfig()
	cfg.Log.OutputPaths = []string{filepath.Join(t.TempDir(), "ztask.log")}
	cfg.Datasource.HTTP.Endpoint = endpoint
	cfg.ID.NodeID = 3
	cfg.Metrics.Enabled = false
	return cfg
}

func TestNewAndDefine(t *testing.T) {
	var calls int64
	srv := newDatasourceAPI(t, &calls)

	cfg := newTestConfig(t, srv.URL)
	cfg.Task.WorkerGroup = "etl"
	cfg.Task.FailRetryTimes = 2

	zt, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer zt.Close()

	assert.Equal(t, SQLTypeSelect, zt.Classify("  with x as (select 1) select * from x"))

	task, err := zt.NewSQLTask("daily", "ds_mysql", "select 1", WithWorkerGroup("adhoc"))
	require.NoError(t, err)

	def, doc, err := zt.Define(context.Background(), task)
	require.NoError(t, err)
	assert.Greater(t, def.Code, int64(0))
	assert.Equal(t, 1, def.Version)
	assert.Equal(t, "adhoc", def.WorkerGroup)
	assert.Equal(t, 2, def.FailRetryTimes)
	assert.Equal(t, int64(1), def.TaskParams.Datasource)
	assert.Equal(t, "MYSQL", def.TaskParams.Type)

	_, again, err := zt.Define(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, doc, again)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))

	stats := zt.(*ztask).Stats()
	assert.Equal(t, int64(1), stats.Resolve.Success)
	assert.Equal(t, int64(2), stats.Definitions)
	assert.Equal(t, int64(3), stats.Classify.Select)
}

func TestNewUnknownDatasource(t *testing.T) {
	var calls int64
	srv := newDatasourceAPI(t, &calls)

	zt, err := New(context.Background(), newTestConfig(t, srv.URL))
	require.NoError(t, err)
	defer zt.Close()

	task, err := zt.NewSQLTask("t", "missing", "select 1")
	require.NoError(t, err)

	_, _, err = zt.Define(context.Background(), task)
	assert.ErrorIs(t, err, ErrDatasourceResolution)
	assert.Equal(t, int64(1), zt.(*ztask).Stats().Resolve.Failed)
}

func TestSubmitSpoolsWithoutQueue(t *testing.T) {
	var calls int64
	srv := newDatasourceAPI(t, &calls)

	cfg := newTestConfig(t, srv.URL)
	cfg.Spool.Enabled = true
	cfg.Spool.Dir = filepath.Join(t.TempDir(), "spool")
	cfg.Spool.NoSync = true

	zt, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer zt.Close()

	task, err := zt.NewSQLTask("t", "ds_mysql", "delete from t where id < 10")
	require.NoError(t, err)

	res, err := zt.Submit(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, res.Spooled)

	_, err = zt.ReplaySpool(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSubmitNothingConfigured(t *testing.T) {
	var calls int64
	srv := newDatasourceAPI(t, &calls)

	zt, err := New(context.Background(), newTestConfig(t, srv.URL))
	require.NoError(t, err)
	defer zt.Close()

	task, err := zt.NewSQLTask("t", "ds_mysql", "select 1")
	require.NoError(t, err)

	_, err = zt.Submit(context.Background(), task)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestClose(t *testing.T) {
	var calls int64
	srv := newDatasourceAPI(t, &calls)

	zt, err := New(context.Background(), newTestConfig(t, srv.URL))
	require.NoError(t, err)
	require.NoError(t, zt.Close())
	require.NoError(t, zt.Close())

	_, err = zt.NewSQLTask("t", "ds_mysql", "select 1")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = zt.ReplaySpool(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSharedDatasourceCache(t *testing.T) {
	var calls int64
	srv := newDatasourceAPI(t, &calls)

	cfg := newTestConfig(t, srv.URL)
	cfg.Datasource.Cache.Enabled = true

	zt, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer zt.Close()

	z := zt.(*ztask)
	for i := 0; i < 2; i++ {
		task, err := zt.NewSQLTask("t", "ds_mysql", "select 1")
		require.NoError(t, err)
		_, err = task.Resolve(context.Background())
		require.NoError(t, err)
		z.cache.Wait()
	}
	// 共享缓存开启后第二个任务不再请求接口
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestNewLookupResolver(t *testing.T) {
	resolver := NewLookupResolver(datasource.LookupFunc(func(_ context.Context, name string) (datasource.Record, error) {
		if name == "ds_pg" {
			return datasource.Record{ID: 2, Name: name, Type: "POSTGRESQL"}, nil
		}
		return datasource.Record{}, datasource.ErrNotFound
	}), nil)

	ds, err := resolver.Resolve(context.Background(), "ds_pg")
	require.NoError(t, err)
	assert.Equal(t, DatasourceIdentity{ID: 2, Type: "POSTGRESQL"}, ds)

	_, err = resolver.Resolve(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrDatasourceResolution)
	assert.ErrorIs(t, err, datasource.ErrNotFound)
}

func TestSubmitDefinitionBuildsOnce(t *testing.T) {
	var calls int64
	srv := newDatasourceAPI(t, &calls)

	cfg := newTestConfig(t, srv.URL)
	cfg.Spool.Enabled = true
	cfg.Spool.Dir = filepath.Join(t.TempDir(), "spool")
	cfg.Spool.NoSync = true

	zt, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer zt.Close()

	task, err := zt.NewSQLTask("t", "ds_mysql", "update t set a = 1")
	require.NoError(t, err)

	def, doc, err := zt.Define(context.Background(), task)
	require.NoError(t, err)

	res, err := zt.SubmitDefinition(context.Background(), def, doc)
	require.NoError(t, err)
	assert.True(t, res.Spooled)
	assert.Equal(t, fmt.Sprintf("%d-1", def.Code), res.TaskID)

	stats := zt.(*ztask).Stats()
	assert.Equal(t, int64(1), stats.Definitions)
	assert.Equal(t, int64(1), stats.Classify.NotSelect)
	assert.Equal(t, int64(1), stats.Submit.Spooled)

	_, err = zt.SubmitDefinition(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConfiguredRetryIntervalSurvivesRetryTimes(t *testing.T) {
	var calls int64
	srv := newDatasourceAPI(t, &calls)

	cfg := newTestConfig(t, srv.URL)
	cfg.Task.FailRetryTimes = 4
	cfg.Task.FailRetryInterval = 5

	zt, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer zt.Close()

	task, err := zt.NewSQLTask("t", "ds_mysql", "select 1", WithFailRetryTimes(3))
	require.NoError(t, err)
	def, _, err := zt.Define(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 3, def.FailRetryTimes)
	assert.Equal(t, 5, def.FailRetryInterval)

	task, err = zt.NewSQLTask("t2", "ds_mysql", "select 1", WithFailRetryInterval(7))
	require.NoError(t, err)
	def, _, err = zt.Define(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 4, def.FailRetryTimes)
	assert.Equal(t, 7, def.FailRetryInterval)
}
