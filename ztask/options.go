package ztask

// Option 任务可选参数
type Option func(*Options)

// Options 任务可选参数集合，零值字段由 buildOptions 填充默认值
type Options struct {
	Description      *string
	PreStatements    []string
	PostStatements   []string
	DisplayRows      int
	LocalParams      []LocalParam
	Resources        []Resource
	Dependence       Dependence
	WaitStartTimeout WaitStartTimeout

	Flag              Flag
	Priority          Priority
	WorkerGroup       string
	FailRetryTimes    int
	FailRetryInterval int
	TimeoutFlag       TimeoutFlag
	TimeoutStrategy   *TimeoutNotifyStrategy
	Timeout           int
	DelayTime         int
}

// 默认值
const (
	DefaultDisplayRows       = 10
	DefaultWorkerGroup       = "default"
	DefaultFailRetryInterval = 1
)

// WithDescription 设置描述，未设置时序列化为 null
func WithDescription(desc string) Option {
	return func(o *Options) {
		o.Description = &desc
	}
}

// WithPreStatements 前置语句，保持调用方顺序
func WithPreStatements(stmts ...string) Option {
	return func(o *Options) {
		o.PreStatements = append(o.PreStatements, stmts...)
	}
}

// WithPostStatements 后置语句
func WithPostStatements(stmts ...string) Option {
	return func(o *Options) {
		o.PostStatements = append(o.PostStatements, stmts...)
	}
}

// WithDisplayRows 结果展示行数
func WithDisplayRows(n int) Option {
	return func(o *Options) {
		o.DisplayRows = n
	}
}

// WithLocalParams 本地参数，名称不可重复
func WithLocalParams(params ...LocalParam) Option {
	return func(o *Options) {
		o.LocalParams = append(o.LocalParams, params...)
	}
}

// WithResources 资源引用，重复项只保留第一次出现
func WithResources(resources ...Resource) Option {
	return func(o *Options) {
		o.Resources = append(o.Resources, resources...)
	}
}

// WithDependence 上游依赖
func WithDependence(d Dependence) Option {
	return func(o *Options) {
		o.Dependence = d
	}
}

// WithWaitStartTimeout 等待启动超时
func WithWaitStartTimeout(w WaitStartTimeout) Option {
	return func(o *Options) {
		o.WaitStartTimeout = w
	}
}

// WithFlag 启用或禁用
func WithFlag(f Flag) Option {
	return func(o *Options) {
		o.Flag = f
	}
}

// WithPriority 优先级
func WithPriority(p Priority) Option {
	return func(o *Options) {
		o.Priority = p
	}
}

// WithWorkerGroup worker 分组
func WithWorkerGroup(group string) Option {
	return func(o *Options) {
		o.WorkerGroup = group
	}
}

// WithRetry 失败重试次数与间隔（分钟）
func WithRetry(times, interval int) Option {
	return func(o *Options) {
		o.FailRetryTimes = times
		o.FailRetryInterval = interval
	}
}

// WithFailRetryTimes 只设置失败重试次数
func WithFailRetryTimes(times int) Option {
	return func(o *Options) {
		o.FailRetryTimes = times
	}
}

// WithFailRetryInterval 只设置失败重试间隔（分钟）
func WithFailRetryInterval(interval int) Option {
	return func(o *Options) {
		o.FailRetryInterval = interval
	}
}

// WithTimeout 超时时间（分钟）与处理策略，同时打开超时开关
func WithTimeout(minutes int, strategy TimeoutNotifyStrategy) Option {
	return func(o *Options) {
		o.Timeout = minutes
		o.TimeoutFlag = TimeoutOpen
		if strategy != "" {
			o.TimeoutStrategy = &strategy
		} else {
			o.TimeoutStrategy = nil
		}
	}
}

// WithDelayTime 延迟执行时间（分钟）
func WithDelayTime(minutes int) Option {
	return func(o *Options) {
		o.DelayTime = minutes
	}
}

// buildOptions 构建选项
func buildOptions(opts ...Option) Options {
	o := Options{
		DisplayRows:       DefaultDisplayRows,
		Flag:              FlagYes,
		Priority:          PriorityMedium,
		WorkerGroup:       DefaultWorkerGroup,
		FailRetryTimes:    0,
		FailRetryInterval: DefaultFailRetryInterval,
		TimeoutFlag:       TimeoutClose,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o *Options) validate() error {
	if o.DisplayRows < 0 {
		return validationError("displayRows must be non-negative, got %d", o.DisplayRows)
	}
	if o.FailRetryTimes < 0 {
		return validationError("failRetryTimes must be non-negative, got %d", o.FailRetryTimes)
	}
	if o.FailRetryInterval < 0 {
		return validationError("failRetryInterval must be non-negative, got %d", o.FailRetryInterval)
	}
	if o.Timeout < 0 {
		return validationError("timeout must be non-negative, got %d", o.Timeout)
	}
	if o.DelayTime < 0 {
		return validationError("delayTime must be non-negative, got %d", o.DelayTime)
	}
	if !o.Flag.valid() {
		return validationError("unknown flag %q", o.Flag)
	}
	if !o.Priority.valid() {
		return validationError("unknown priority %q", o.Priority)
	}
	if o.WorkerGroup == "" {
		return validationError("workerGroup must not be empty")
	}
	if o.TimeoutFlag != TimeoutClose && o.TimeoutFlag != TimeoutOpen {
		return validationError("unknown timeoutFlag %q", o.TimeoutFlag)
	}
	if o.TimeoutStrategy != nil && !o.TimeoutStrategy.valid() {
		return validationError("unknown timeoutNotifyStrategy %q", *o.TimeoutStrategy)
	}
	if o.TimeoutFlag == TimeoutOpen && o.Timeout > 0 && o.TimeoutStrategy == nil {
		return validationError("timeout of %d minutes requires a notify strategy", o.Timeout)
	}
	for _, s := range o.PreStatements {
		if isBlank(s) {
			return validationError("preStatements must not contain empty statements")
		}
	}
	for _, s := range o.PostStatements {
		if isBlank(s) {
			return validationError("postStatements must not contain empty statements")
		}
	}

	seen := make(map[string]struct{}, len(o.LocalParams))
	for _, p := range o.LocalParams {
		if isBlank(p.Prop) {
			return validationError("localParams entry has empty prop")
		}
		if _, dup := seen[p.Prop]; dup {
			return validationError("duplicate localParams prop %q", p.Prop)
		}
		seen[p.Prop] = struct{}{}
		if p.Direct != DirectIn && p.Direct != DirectOut {
			return validationError("localParams %q has unknown direct %q", p.Prop, p.Direct)
		}
		if _, ok := dataTypes[p.Type]; !ok {
			return validationError("localParams %q has unknown type %q", p.Prop, p.Type)
		}
	}
	for _, r := range o.Resources {
		if r.ID == 0 && r.ResourceName == "" {
			return validationError("resource must have an id or a name")
		}
	}
	return nil
}

// uniqueResources 去重并保持首次出现的顺序
func uniqueResources(in []Resource) []Resource {
	out := make([]Resource, 0, len(in))
	seen := make(map[Resource]struct{}, len(in))
	for _, r := range in {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
