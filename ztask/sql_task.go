package ztask

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SQLTask 一个 SQL 任务实例
//
// 数据源只解析一次，编码与版本只生成一次，之后重复构建得到相同的文档。
// 实例归单个调用方持有，不支持并发使用。
type SQLTask struct {
	name           string
	datasourceName string
	sql            string
	opts           Options

	resolver  DatasourceResolver
	generator IdentityGenerator
	metrics   *metrics

	state      State
	datasource DatasourceIdentity
	identity   Identity
}

// NewSQLTask 校验输入并创建未解析状态的任务
func NewSQLTask(name, datasourceName, sql string, resolver DatasourceResolver, generator IdentityGenerator, opts ...Option) (*SQLTask, error) {
	if isBlank(name) {
		return nil, validationError("task name is required")
	}
	if isBlank(datasourceName) {
		return nil, validationError("datasource name is required")
	}
	if isBlank(sql) {
		return nil, validationError("sql is required")
	}
	if resolver == nil {
		return nil, wrapError(CodeNotConfigured, "datasource resolver is required", nil)
	}
	if generator == nil {
		return nil, wrapError(CodeNotConfigured, "identity generator is required", nil)
	}

	o := buildOptions(opts...)
	if err := o.validate(); err != nil {
		return nil, err
	}

	return &SQLTask{
		name:           name,
		datasourceName: datasourceName,
		sql:            sql,
		opts:           o,
		resolver:       resolver,
		generator:      generator,
		state:          StateUnresolved,
	}, nil
}

// Name 任务名
func (t *SQLTask) Name() string { return t.name }

// SQL 原始 SQL
func (t *SQLTask) SQL() string { return t.sql }

// DatasourceName 数据源逻辑名
func (t *SQLTask) DatasourceName() string { return t.datasourceName }

// State 当前状态
func (t *SQLTask) State() State { return t.state }

// SQLType 每次根据 SQL 重新计算
func (t *SQLTask) SQLType() SQLType {
	typ := ClassifySQL(t.sql)
	if t.metrics != nil {
		t.metrics.recordClassification(typ)
	}
	return typ
}

// Resolve 解析数据源，已解析时直接返回缓存结果
func (t *SQLTask) Resolve(ctx context.Context) (DatasourceIdentity, error) {
	if t.state >= StateResolved {
		return t.datasource, nil
	}

	ds, err := t.resolver.Resolve(ctx, t.datasourceName)
	if err != nil {
		if errors.Is(err, ErrDatasourceResolution) {
			return DatasourceIdentity{}, err
		}
		return DatasourceIdentity{}, wrapError(CodeDatasourceResolution,
			fmt.Sprintf("resolve datasource %q", t.datasourceName), err)
	}
	if ds.ID < 0 || isBlank(ds.Type) {
		return DatasourceIdentity{}, wrapError(CodeDatasourceResolution,
			fmt.Sprintf("datasource %q resolved to incomplete identity {id:%d type:%q}", t.datasourceName, ds.ID, ds.Type), nil)
	}

	t.datasource = ds
	t.state = StateResolved
	return ds, nil
}

// TaskParams 构建任务参数
func (t *SQLTask) TaskParams(ctx context.Context) (TaskParameters, error) {
	ds, err := t.Resolve(ctx)
	if err != nil {
		return TaskParameters{}, err
	}

	return TaskParameters{
		SQL:              t.sql,
		Type:             ds.Type,
		Datasource:       ds.ID,
		SQLType:          t.SQLType(),
		PreStatements:    copyStrings(t.opts.PreStatements),
		PostStatements:   copyStrings(t.opts.PostStatements),
		DisplayRows:      t.opts.DisplayRows,
		LocalParams:      append([]LocalParam{}, t.opts.LocalParams...),
		ResourceList:     uniqueResources(t.opts.Resources),
		Dependence:       copyDependence(t.opts.Dependence),
		WaitStartTimeout: t.opts.WaitStartTimeout,
		ConditionResult:  defaultConditionResult(),
	}, nil
}

// Define 构建完整任务定义，首次调用时生成编码与版本
func (t *SQLTask) Define(ctx context.Context) (*TaskDefinition, error) {
	params, err := t.TaskParams(ctx)
	if err != nil {
		return nil, err
	}

	if t.state < StateDefined {
		ident, err := t.generator.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrIdentityGeneration) {
				return nil, err
			}
			return nil, wrapError(CodeIdentityGeneration, "generate task code", err)
		}
		if ident.Code <= 0 || ident.Version <= 0 {
			return nil, wrapError(CodeIdentityGeneration,
				fmt.Sprintf("invalid identity code=%d version=%d", ident.Code, ident.Version), nil)
		}
		t.identity = ident
		t.state = StateDefined
	}

	def := &TaskDefinition{
		Code:              t.identity.Code,
		Name:              t.name,
		Version:           t.identity.Version,
		Description:       copyStringPtr(t.opts.Description),
		DelayTime:         t.opts.DelayTime,
		TaskType:          TaskTypeSQL,
		TaskParams:        params,
		Flag:              t.opts.Flag,
		TaskPriority:      t.opts.Priority,
		WorkerGroup:       t.opts.WorkerGroup,
		FailRetryTimes:    t.opts.FailRetryTimes,
		FailRetryInterval: t.opts.FailRetryInterval,
		TimeoutFlag:       t.opts.TimeoutFlag,
		Timeout:           t.opts.Timeout,
	}
	if t.opts.TimeoutStrategy != nil {
		s := *t.opts.TimeoutStrategy
		def.TimeoutNotifyStrategy = &s
	}

	if t.metrics != nil {
		t.metrics.recordDefinition()
	}
	return def, nil
}

// DefineJSON 构建并序列化任务定义
func (t *SQLTask) DefineJSON(ctx context.Context) ([]byte, error) {
	def, err := t.Define(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("marshal task definition: %w", err)
	}
	return data, nil
}

// Identity 已生成的编码与版本，未定义时返回 false
func (t *SQLTask) Identity() (Identity, bool) {
	return t.identity, t.state == StateDefined
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func copyStrings(in []string) []string {
	return append([]string{}, in...)
}

func copyStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}

func copyDependence(d Dependence) Dependence {
	if d.DependTaskList != nil {
		d.DependTaskList = append([]json.RawMessage(nil), d.DependTaskList...)
	}
	return d
}
