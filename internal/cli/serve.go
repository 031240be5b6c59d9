package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiz36/ztask/internal/api"
	"github.com/tiz36/ztask/internal/cli/output"
	"github.com/tiz36/ztask/internal/log"
	"github.com/tiz36/ztask/ztask"
)

func newServeCommand(o *rootOptions) *cobra.Command {
	defaults := api.DefaultServerConfig()
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API 服务",
		Long: `启动 HTTP API 服务，提供 SQL 分类与任务定义接口。

示例：
  ztask serve --config ./ztask.yaml
  ztask serve --endpoint http://ds:12345/dolphinscheduler --port 9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if o.configPath == "" && !o.verbose {
				cfg.Log.Level = "info"
			}

			zt, err := ztask.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer zt.Close()

			logger := log.New(cfg.Log)
			defer logger.Sync()

			serverCfg := api.DefaultServerConfig()
			serverCfg.Host = host
			serverCfg.Port = port
			server := api.NewAPIServer(zt, serverCfg, Version, logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()
			output.Info(cmd.ErrOrStderr(), "ztask api listening on %s", server.Addr())

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case err := <-errCh:
				return err
			case <-quit:
			}

			ctx, cancel := context.WithTimeout(context.Background(), serverCfg.WriteTimeout+5*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return err
			}
			output.Success(cmd.ErrOrStderr(), "ztask api stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", defaults.Host, "监听地址")
	cmd.Flags().IntVarP(&port, "port", "p", defaults.Port, "监听端口")
	return cmd
}
