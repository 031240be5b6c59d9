package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiz36/ztask/internal/api/dto"
	"github.com/tiz36/ztask/internal/cli/output"
	"github.com/tiz36/ztask/ztask"
)

// defineFlags define 命令参数
type defineFlags struct {
	name       string
	datasource string
	sql        string
	sqlFile    string
	submit     bool
	timeout    time.Duration

	description    string
	dependence     string
	pre            []string
	post           []string
	params         []string
	displayRows    int
	workerGroup    string
	priority       string
	flag           string
	retryTimes     int
	retryInterval  int
	timeoutMinutes int
	strategy       string
	delay          int
}

func newDefineCommand(o *rootOptions) *cobra.Command {
	f := &defineFlags{}

	cmd := &cobra.Command{
		Use:   "define",
		Short: "解析数据源并生成 SQL 任务定义",
		Long: `生成调度引擎可接收的 SQL 任务定义 JSON。

示例：
  ztask define --name daily --datasource ds_mysql --sql "select * from orders"
  ztask define --name etl --datasource ds_pg --sql ./etl.sql --param dt=2024-01-01 --submit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefine(cmd, o, f)
		},
	}

	cmd.Flags().StringVarP(&f.name, "name", "n", "", "任务名称 (必填)")
	cmd.Flags().StringVarP(&f.datasource, "datasource", "d", "", "数据源名称 (必填)")
	cmd.Flags().StringVar(&f.sql, "sql", "", "SQL 语句")
	cmd.Flags().StringVarP(&f.sqlFile, "sql-file", "f", "", "从 .sql 文件读取 SQL")
	cmd.Flags().BoolVar(&f.submit, "submit", false, "生成后投递到队列")
	cmd.Flags().DurationVar(&f.timeout, "request-timeout", 30*time.Second, "数据源解析与投递超时")

	cmd.Flags().StringVar(&f.description, "description", "", "任务描述")
	cmd.Flags().StringArrayVar(&f.pre, "pre", nil, "前置语句，可重复")
	cmd.Flags().StringArrayVar(&f.post, "post", nil, "后置语句，可重复")
	cmd.Flags().StringVar(&f.dependence, "dependence", "", "上游依赖 JSON，例如 '{\"relation\":\"AND\",\"dependTaskList\":[]}'")
	cmd.Flags().StringArrayVar(&f.params, "param", nil, "输入参数 name=value，可重复")
	cmd.Flags().IntVar(&f.displayRows, "display-rows", ztask.DefaultDisplayRows, "查询结果展示行数")
	cmd.Flags().StringVar(&f.workerGroup, "worker-group", "", "Worker 分组")
	cmd.Flags().StringVar(&f.priority, "priority", "", "优先级 HIGHEST|HIGH|MEDIUM|LOW|LOWEST")
	cmd.Flags().StringVar(&f.flag, "flag", "", "是否启用 YES|NO")
	cmd.Flags().IntVar(&f.retryTimes, "retry-times", 0, "失败重试次数")
	cmd.Flags().IntVar(&f.retryInterval, "retry-interval", ztask.DefaultFailRetryInterval, "失败重试间隔（分钟）")
	cmd.Flags().IntVar(&f.timeoutMinutes, "timeout", 0, "超时时间（分钟），大于 0 时开启超时")
	cmd.Flags().StringVar(&f.strategy, "timeout-strategy", "", "超时策略 WARN|FAILED|WARNFAILED")
	cmd.Flags().IntVar(&f.delay, "delay", 0, "延迟执行（分钟）")

	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("datasource")
	cmd.MarkFlagsMutuallyExclusive("sql", "sql-file")

	return cmd
}

// request 将命令行参数转换为与 HTTP API 相同的请求结构
func (f *defineFlags) request(cmd *cobra.Command) (*dto.DefineRequest, error) {
	req := &dto.DefineRequest{
		Name:       f.name,
		Datasource: f.datasource,
		Submit:     f.submit,
	}
	// --sql 也接受 .sql 文件路径
	sql, err := ztask.ReadSQL(f.sql)
	if err != nil {
		return nil, err
	}
	req.SQL = sql
	if f.sqlFile != "" {
		if req.SQL, err = ztask.LoadSQLFile(f.sqlFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("description") {
		req.Description = &f.description
	}
	if f.dependence != "" {
		var dep ztask.Dependence
		if err := json.Unmarshal([]byte(f.dependence), &dep); err != nil {
			return nil, fmt.Errorf("invalid --dependence: %w", err)
		}
		req.Dependence = &dep
	}
	req.PreStatements = f.pre
	req.PostStatements = f.post
	for _, p := range f.params {
		name, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --param %q, expected name=value", p)
		}
		req.LocalParams = append(req.LocalParams, ztask.InParam(strings.TrimSpace(name), value))
	}
	if flags.Changed("display-rows") {
		req.DisplayRows = &f.displayRows
	}
	req.WorkerGroup = f.workerGroup
	req.Priority = ztask.Priority(strings.ToUpper(f.priority))
	req.Flag = ztask.Flag(strings.ToUpper(f.flag))
	if flags.Changed("retry-times") {
		req.FailRetryTimes = &f.retryTimes
	}
	if flags.Changed("retry-interval") {
		req.FailRetryInterval = &f.retryInterval
	}
	req.Timeout = f.timeoutMinutes
	req.TimeoutNotifyStrategy = ztask.TimeoutNotifyStrategy(strings.ToUpper(f.strategy))
	req.DelayTime = f.delay
	return req, nil
}

func runDefine(cmd *cobra.Command, o *rootOptions, f *defineFlags) error {
	req, err := f.request(cmd)
	if err != nil {
		return err
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	// 单次命令不需要暴露指标
	cfg.Metrics.Enabled = false

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	zt, err := ztask.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer zt.Close()

	task, err := zt.NewSQLTask(req.Name, req.Datasource, req.SQL, req.Options()...)
	if err != nil {
		return err
	}

	def, doc, err := zt.Define(ctx, task)
	if err != nil {
		return err
	}

	resp := dto.DefineResponse{Definition: doc}
	if req.Submit {
		result, err := zt.SubmitDefinition(ctx, def, doc)
		if err != nil {
			return err
		}
		resp.Submit = &result
	}

	w := cmd.OutOrStdout()
	if o.outputJSON {
		return output.PrintJSON(w, resp)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, doc, "", "  "); err != nil {
		return err
	}
	fmt.Fprintln(w, pretty.String())

	if resp.Submit != nil {
		errW := cmd.ErrOrStderr()
		switch {
		case resp.Submit.Duplicate:
			output.Warning(errW, "task %s already submitted", resp.Submit.TaskID)
		case resp.Submit.Spooled:
			output.Warning(errW, "queue unavailable, task %s spooled for replay", resp.Submit.TaskID)
		default:
			output.Success(errW, "task %s submitted to queue %s", resp.Submit.TaskID, resp.Submit.Queue)
		}
	}
	return nil
}
