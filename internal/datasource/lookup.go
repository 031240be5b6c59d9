// Package datasource 将数据源逻辑名解析为调度引擎中注册的数据源ID与类型
package datasource

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tiz36/ztask/internal/log"
)

// ErrNotFound 数据源不存在
var ErrNotFound = errors.New("datasource not found")

// Record 数据源记录
type Record struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Lookup 数据源查询
type Lookup interface {
	Lookup(ctx context.Context, name string) (Record, error)
}

// LookupFunc 函数适配器
type LookupFunc func(ctx context.Context, name string) (Record, error)

// Lookup 实现 Lookup
func (f LookupFunc) Lookup(ctx context.Context, name string) (Record, error) {
	return f(ctx, name)
}

// dbTypes 调度引擎元数据库中 type 列的枚举顺序
var dbTypes = []string{
	"MYSQL",
	"POSTGRESQL",
	"HIVE",
	"SPARK",
	"CLICKHOUSE",
	"ORACLE",
	"SQLSERVER",
	"DB2",
	"PRESTO",
	"H2",
	"REDSHIFT",
}

// TypeName 元数据库类型码转类型名
func TypeName(code int) (string, bool) {
	if code < 0 || code >= len(dbTypes) {
		return "", false
	}
	return dbTypes[code], true
}

type traceIDKey struct{}

// TraceID 取出上下文中的追踪ID
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithTraceID 写入追踪ID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// WithAccessLog 为每次查询分配追踪ID并记录请求与耗时
func WithAccessLog(next Lookup, logger log.Logger) Lookup {
	if logger == nil {
		logger = log.NewNop()
	}
	return LookupFunc(func(ctx context.Context, name string) (Record, error) {
		traceID := TraceID(ctx)
		if traceID == "" {
			traceID = uuid.NewString()
			ctx = WithTraceID(ctx, traceID)
		}

		start := time.Now()
		logger.Debug("datasource lookup request", "trace_id", traceID, "name", name)

		rec, err := next.Lookup(ctx, name)
		if err != nil {
			logger.Warn("datasource lookup failed",
				"trace_id", traceID, "name", name, "duration", time.Since(start), "error", err)
			return Record{}, err
		}

		logger.Info("datasource lookup response",
			"trace_id", traceID, "name", name, "id", rec.ID, "type", rec.Type, "duration", time.Since(start))
		return rec, nil
	})
}
