// Package cli ztask 命令行
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tiz36/ztask/ztask"
)

// rootOptions 全局参数
type rootOptions struct {
	configPath string
	endpoint   string
	token      string
	outputJSON bool
	verbose    bool
}

// NewRootCommand 根命令
func NewRootCommand() *cobra.Command {
	o := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "ztask",
		Short: "ztask - SQL 任务定义构建工具",
		Long: `ztask 为调度引擎构建 SQL 任务定义。

支持的功能：
  - 判断 SQL 是否为只读查询
  - 解析数据源并生成完整的任务定义
  - 投递任务定义到队列，失败时暂存并可重放
  - 启动 HTTP API 服务

使用示例：
  # 判断 SQL 类型
  ztask classify "with t as (select 1) select * from t"

  # 生成任务定义
  ztask define --name daily --datasource ds_mysql --sql "select 1" --endpoint http://ds:12345/dolphinscheduler

  # 启动 HTTP 服务
  ztask serve --config ./ztask.yaml --port 8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// 全局参数
	cmd.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "配置文件路径 (yaml)")
	cmd.PersistentFlags().StringVar(&o.endpoint, "endpoint", "", "调度引擎 API 地址，覆盖配置文件")
	cmd.PersistentFlags().StringVar(&o.token, "token", "", "调度引擎访问令牌，覆盖配置文件")
	cmd.PersistentFlags().BoolVarP(&o.outputJSON, "json", "j", false, "使用JSON格式输出")
	cmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "输出调试日志")

	// 添加子命令
	cmd.AddCommand(newClassifyCommand(o))
	cmd.AddCommand(newDefineCommand(o))
	cmd.AddCommand(newServeCommand(o))
	cmd.AddCommand(newSpoolCommand(o))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// Execute 执行根命令
func Execute() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		cmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

// loadConfig 读取配置文件并应用命令行覆盖
func (o *rootOptions) loadConfig() (ztask.Config, error) {
	cfg := ztask.DefaultConfig()
	if o.configPath != "" {
		var err error
		cfg, err = ztask.LoadConfig(o.configPath)
		if err != nil {
			return cfg, err
		}
	} else {
		// 命令行默认只输出告警
		cfg.Log.Level = "warn"
		cfg.Log.Encoding = "console"
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	if o.endpoint != "" {
		cfg.Datasource.Backend = ztask.BackendHTTP
		cfg.Datasource.HTTP.Endpoint = o.endpoint
	}
	if o.token != "" {
		cfg.Datasource.HTTP.Token = o.token
	}
	return cfg, nil
}
