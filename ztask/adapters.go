package ztask

import (
	"context"
	"time"

	"github.com/tiz36/ztask/internal/datasource"
	"github.com/tiz36/ztask/internal/id"
	"github.com/tiz36/ztask/internal/log"
)

// lookupResolver 把内部数据源查询适配为 DatasourceResolver，并记录解析指标
type lookupResolver struct {
	lookup  datasource.Lookup
	metrics *metrics
}

// NewLookupResolver 包装任意数据源查询
func NewLookupResolver(lookup datasource.Lookup, logger log.Logger) DatasourceResolver {
	return &lookupResolver{lookup: datasource.WithAccessLog(lookup, logger)}
}

func (r *lookupResolver) Resolve(ctx context.Context, name string) (DatasourceIdentity, error) {
	start := time.Now()
	rec, err := r.lookup.Lookup(ctx, name)
	if r.metrics != nil {
		r.metrics.recordResolve(time.Since(start), err)
	}
	if err != nil {
		return DatasourceIdentity{}, wrapError(CodeDatasourceResolution, "resolve datasource "+name, err)
	}
	return DatasourceIdentity{ID: rec.ID, Type: rec.Type}, nil
}

// snowflakeGenerator 本地生成的编码只有一个版本
type snowflakeGenerator struct {
	gen id.Generator
}

// NewSnowflakeGenerator 使用雪花 ID 作为任务编码，版本固定为 1
func NewSnowflakeGenerator(gen id.Generator) IdentityGenerator {
	return &snowflakeGenerator{gen: gen}
}

func (g *snowflakeGenerator) Next(ctx context.Context) (Identity, error) {
	code, err := g.gen.NextCode(ctx)
	if err != nil {
		return Identity{}, wrapError(CodeIdentityGeneration, "generate task code", err)
	}
	return Identity{Code: code, Version: 1}, nil
}
