package dto

import "github.com/tiz36/ztask/ztask"

// ClassifyRequest SQL 分类请求
type ClassifyRequest struct {
	SQL string `json:"sql"`
}

// DefineRequest 任务定义请求，未填写的字段使用默认值
type DefineRequest struct {
	Name       string `json:"name"`
	Datasource string `json:"datasource"`
	SQL        string `json:"sql"`

	Description      *string                 `json:"description,omitempty"`
	PreStatements    []string                `json:"preStatements,omitempty"`
	PostStatements   []string                `json:"postStatements,omitempty"`
	DisplayRows      *int                    `json:"displayRows,omitempty"`
	LocalParams      []ztask.LocalParam      `json:"localParams,omitempty"`
	Resources        []ztask.Resource        `json:"resourceList,omitempty"`
	Dependence       *ztask.Dependence       `json:"dependence,omitempty"`
	WaitStartTimeout *ztask.WaitStartTimeout `json:"waitStartTimeout,omitempty"`

	Flag                  ztask.Flag                  `json:"flag,omitempty"`
	Priority              ztask.Priority              `json:"taskPriority,omitempty"`
	WorkerGroup           string                      `json:"workerGroup,omitempty"`
	FailRetryTimes        *int                        `json:"failRetryTimes,omitempty"`
	FailRetryInterval     *int                        `json:"failRetryInterval,omitempty"`
	Timeout               int                         `json:"timeout,omitempty"`
	TimeoutNotifyStrategy ztask.TimeoutNotifyStrategy `json:"timeoutNotifyStrategy,omitempty"`
	DelayTime             int                         `json:"delayTime,omitempty"`

	// Submit 为 true 时构建后投递
	Submit bool `json:"submit,omitempty"`
}

// Options 转换为任务选项
func (r *DefineRequest) Options() []ztask.Option {
	var opts []ztask.Option
	if r.Description != nil {
		opts = append(opts, ztask.WithDescription(*r.Description))
	}
	if len(r.PreStatements) > 0 {
		opts = append(opts, ztask.WithPreStatements(r.PreStatements...))
	}
	if len(r.PostStatements) > 0 {
		opts = append(opts, ztask.WithPostStatements(r.PostStatements...))
	}
	if r.DisplayRows != nil {
		opts = append(opts, ztask.WithDisplayRows(*r.DisplayRows))
	}
	if len(r.LocalParams) > 0 {
		opts = append(opts, ztask.WithLocalParams(r.LocalParams...))
	}
	if len(r.Resources) > 0 {
		opts = append(opts, ztask.WithResources(r.Resources...))
	}
	if r.Dependence != nil {
		opts = append(opts, ztask.WithDependence(*r.Dependence))
	}
	if r.WaitStartTimeout != nil {
		opts = append(opts, ztask.WithWaitStartTimeout(*r.WaitStartTimeout))
	}
	if r.Flag != "" {
		opts = append(opts, ztask.WithFlag(r.Flag))
	}
	if r.Priority != "" {
		opts = append(opts, ztask.WithPriority(r.Priority))
	}
	if r.WorkerGroup != "" {
		opts = append(opts, ztask.WithWorkerGroup(r.WorkerGroup))
	}
	if r.FailRetryTimes != nil {
		opts = append(opts, ztask.WithFailRetryTimes(*r.FailRetryTimes))
	}
	if r.FailRetryInterval != nil {
		opts = append(opts, ztask.WithFailRetryInterval(*r.FailRetryInterval))
	}
	if r.Timeout != 0 || r.TimeoutNotifyStrategy != "" {
		opts = append(opts, ztask.WithTimeout(r.Timeout, r.TimeoutNotifyStrategy))
	}
	if r.DelayTime != 0 {
		opts = append(opts, ztask.WithDelayTime(r.DelayTime))
	}
	return opts
}
