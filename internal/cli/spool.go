package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tiz36/ztask/internal/cli/output"
	"github.com/tiz36/ztask/ztask"
)

func newSpoolCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spool",
		Short: "管理投递失败暂存的任务定义",
	}
	cmd.AddCommand(newSpoolReplayCommand(o))
	return cmd
}

func newSpoolReplayCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "重新投递暂存的任务定义",
		Long: `按写入顺序重新投递，遇到第一个失败即停止，已投递的条目会被移除。

示例：
  ztask spool replay --config ./ztask.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Spool.Enabled {
				return fmt.Errorf("spool is not enabled in config")
			}
			cfg.Metrics.Enabled = false

			zt, err := ztask.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer zt.Close()

			n, replayErr := zt.ReplaySpool(cmd.Context())
			if o.outputJSON {
				result := map[string]interface{}{"replayed": n}
				if replayErr != nil {
					result["error"] = replayErr.Error()
				}
				if err := output.PrintJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				return replayErr
			}
			if replayErr != nil {
				output.Error(cmd.ErrOrStderr(), "replay stopped after %d entries: %v", n, replayErr)
				return replayErr
			}
			output.Success(cmd.OutOrStdout(), "replayed %d spooled definitions", n)
			return nil
		},
	}
}
