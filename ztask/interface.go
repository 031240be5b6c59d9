package ztask

import (
	"context"
	"net/http"
	"time"
)

// ZTask 客户端入口
type ZTask interface {
	// NewSQLTask 创建 SQL 任务，配置中的任务默认值先于 opts 生效
	NewSQLTask(name, datasourceName, sql string, opts ...Option) (*SQLTask, error)

	// Classify 判断 SQL 是否只读
	Classify(sql string) SQLType

	// Define 构建任务定义并序列化
	Define(ctx context.Context, task *SQLTask) (*TaskDefinition, []byte, error)

	// Submit 构建并投递任务定义
	Submit(ctx context.Context, task *SQLTask) (SubmitResult, error)

	// SubmitDefinition 投递已由 Define 构建的任务定义，不再重复构建
	SubmitDefinition(ctx context.Context, def *TaskDefinition, doc []byte) (SubmitResult, error)

	// ReplaySpool 重新投递暂存的任务定义，返回成功条数
	ReplaySpool(ctx context.Context) (int, error)

	// MetricsHandler 指标
	MetricsHandler() http.Handler

	// Close 关闭
	Close() error
}

// DatasourceResolver 数据源名称解析
type DatasourceResolver interface {
	Resolve(ctx context.Context, name string) (DatasourceIdentity, error)
}

// ResolverFunc 函数适配器
type ResolverFunc func(ctx context.Context, name string) (DatasourceIdentity, error)

// Resolve 实现 DatasourceResolver
func (f ResolverFunc) Resolve(ctx context.Context, name string) (DatasourceIdentity, error) {
	return f(ctx, name)
}

// IdentityGenerator 任务编码与版本生成
type IdentityGenerator interface {
	Next(ctx context.Context) (Identity, error)
}

// GeneratorFunc 函数适配器
type GeneratorFunc func(ctx context.Context) (Identity, error)

// Next 实现 IdentityGenerator
func (f GeneratorFunc) Next(ctx context.Context) (Identity, error) {
	return f(ctx)
}

// Submitter 任务定义投递
type Submitter interface {
	Submit(ctx context.Context, def *TaskDefinition, doc []byte) (SubmitResult, error)
}

// SubmitResult 投递结果
type SubmitResult struct {
	TaskID    string    `json:"taskId"`
	Queue     string    `json:"queue,omitempty"`
	Duplicate bool      `json:"duplicate,omitempty"`
	Spooled   bool      `json:"spooled,omitempty"`
	At        time.Time `json:"at"`
}

// State 任务构建状态，只会前进
type State int

const (
	StateUnresolved State = iota
	StateResolved
	StateDefined
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "UNRESOLVED"
	case StateResolved:
		return "RESOLVED"
	case StateDefined:
		return "DEFINED"
	default:
		return "UNKNOWN"
	}
}
