package ztask

import "encoding/json"

// TaskTypeSQL 调度引擎中 SQL 任务的类型常量
const TaskTypeSQL = "SQL"

// SQLType SQL 分类，取值与调度引擎一致
type SQLType string

const (
	SQLTypeSelect    SQLType = "0"
	SQLTypeNotSelect SQLType = "1"
)

// String 返回可读名称
func (t SQLType) String() string {
	switch t {
	case SQLTypeSelect:
		return "SELECT"
	case SQLTypeNotSelect:
		return "NOT_SELECT"
	default:
		return "UNKNOWN"
	}
}

// DatasourceIdentity 调度引擎中注册的数据源标识
type DatasourceIdentity struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Identity 任务编码与版本
type Identity struct {
	Code    int64 `json:"code"`
	Version int   `json:"version"`
}

// Flag 任务启用标记
type Flag string

const (
	FlagYes Flag = "YES"
	FlagNo  Flag = "NO"
)

// Priority 任务优先级
type Priority string

const (
	PriorityHighest Priority = "HIGHEST"
	PriorityHigh    Priority = "HIGH"
	PriorityMedium  Priority = "MEDIUM"
	PriorityLow     Priority = "LOW"
	PriorityLowest  Priority = "LOWEST"
)

// TimeoutFlag 超时开关
type TimeoutFlag string

const (
	TimeoutClose TimeoutFlag = "CLOSE"
	TimeoutOpen  TimeoutFlag = "OPEN"
)

// TimeoutNotifyStrategy 超时处理策略
type TimeoutNotifyStrategy string

const (
	TimeoutWarn       TimeoutNotifyStrategy = "WARN"
	TimeoutFailed     TimeoutNotifyStrategy = "FAILED"
	TimeoutWarnFailed TimeoutNotifyStrategy = "WARNFAILED"
)

func (f Flag) valid() bool {
	return f == FlagYes || f == FlagNo
}

func (p Priority) valid() bool {
	switch p {
	case PriorityHighest, PriorityHigh, PriorityMedium, PriorityLow, PriorityLowest:
		return true
	}
	return false
}

func (s TimeoutNotifyStrategy) valid() bool {
	switch s {
	case TimeoutWarn, TimeoutFailed, TimeoutWarnFailed:
		return true
	}
	return false
}

// Direct 本地参数方向
type Direct string

const (
	DirectIn  Direct = "IN"
	DirectOut Direct = "OUT"
)

// DataType 本地参数数据类型
type DataType string

const (
	DataTypeVarchar   DataType = "VARCHAR"
	DataTypeInteger   DataType = "INTEGER"
	DataTypeLong      DataType = "LONG"
	DataTypeFloat     DataType = "FLOAT"
	DataTypeDouble    DataType = "DOUBLE"
	DataTypeDate      DataType = "DATE"
	DataTypeTime      DataType = "TIME"
	DataTypeTimestamp DataType = "TIMESTAMP"
	DataTypeBoolean   DataType = "BOOLEAN"
	DataTypeList      DataType = "LIST"
	DataTypeFile      DataType = "FILE"
)

var dataTypes = map[DataType]struct{}{
	DataTypeVarchar: {}, DataTypeInteger: {}, DataTypeLong: {}, DataTypeFloat: {},
	DataTypeDouble: {}, DataTypeDate: {}, DataTypeTime: {}, DataTypeTimestamp: {},
	DataTypeBoolean: {}, DataTypeList: {}, DataTypeFile: {},
}

// LocalParam 任务本地参数
type LocalParam struct {
	Prop   string   `json:"prop"`
	Direct Direct   `json:"direct"`
	Type   DataType `json:"type"`
	Value  string   `json:"value"`
}

// InParam 输入参数，类型为 VARCHAR
func InParam(name, value string) LocalParam {
	return LocalParam{Prop: name, Direct: DirectIn, Type: DataTypeVarchar, Value: value}
}

// OutParam 输出参数，值由任务运行时写回
func OutParam(name string, typ DataType) LocalParam {
	return LocalParam{Prop: name, Direct: DirectOut, Type: typ}
}

// Resource 资源中心文件引用
type Resource struct {
	ID           int64  `json:"id,omitempty"`
	ResourceName string `json:"resourceName,omitempty"`
}

// Dependence 上游依赖，内容原样透传给调度引擎
type Dependence struct {
	Relation       string            `json:"relation,omitempty"`
	DependTaskList []json.RawMessage `json:"dependTaskList,omitempty"`
}

// WaitStartTimeout 等待启动超时策略
type WaitStartTimeout struct {
	Enable        bool   `json:"enable,omitempty"`
	Strategy      string `json:"strategy,omitempty"`
	Interval      int    `json:"interval,omitempty"`
	CheckInterval int    `json:"checkInterval,omitempty"`
}

// ConditionResult 条件分支
type ConditionResult struct {
	SuccessNode []string `json:"successNode"`
	FailedNode  []string `json:"failedNode"`
}

func defaultConditionResult() ConditionResult {
	return ConditionResult{SuccessNode: []string{""}, FailedNode: []string{""}}
}

// TaskParameters SQL 任务参数
type TaskParameters struct {
	SQL              string           `json:"sql"`
	Type             string           `json:"type"`
	Datasource       int64            `json:"datasource"`
	SQLType          SQLType          `json:"sqlType"`
	PreStatements    []string         `json:"preStatements"`
	PostStatements   []string         `json:"postStatements"`
	DisplayRows      int              `json:"displayRows"`
	LocalParams      []LocalParam     `json:"localParams"`
	ResourceList     []Resource       `json:"resourceList"`
	Dependence       Dependence       `json:"dependence"`
	WaitStartTimeout WaitStartTimeout `json:"waitStartTimeout"`
	ConditionResult  ConditionResult  `json:"conditionResult"`
}

// TaskDefinition 提交给调度引擎的任务定义
type TaskDefinition struct {
	Code                  int64                  `json:"code"`
	Name                  string                 `json:"name"`
	Version               int                    `json:"version"`
	Description           *string                `json:"description"`
	DelayTime             int                    `json:"delayTime"`
	TaskType              string                 `json:"taskType"`
	TaskParams            TaskParameters         `json:"taskParams"`
	Flag                  Flag                   `json:"flag"`
	TaskPriority          Priority               `json:"taskPriority"`
	WorkerGroup           string                 `json:"workerGroup"`
	FailRetryTimes        int                    `json:"failRetryTimes"`
	FailRetryInterval     int                    `json:"failRetryInterval"`
	TimeoutFlag           TimeoutFlag            `json:"timeoutFlag"`
	TimeoutNotifyStrategy *TimeoutNotifyStrategy `json:"timeoutNotifyStrategy"`
	Timeout               int                    `json:"timeout"`
}
