package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tiz36/ztask/internal/api/dto"
	"github.com/tiz36/ztask/internal/cli/output"
	"github.com/tiz36/ztask/ztask"
)

func newClassifyCommand(o *rootOptions) *cobra.Command {
	var sqlFile string

	cmd := &cobra.Command{
		Use:   "classify [sql]",
		Short: "判断 SQL 是否为只读查询",
		Long: `只根据首个关键字判断：SELECT 与 WITH 输出 SELECT，其余输出 NOT_SELECT。

示例：
  ztask classify "update t set a = 1"
  ztask classify ./jobs/report.sql
  ztask classify --sql-file ./jobs/report.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sql := strings.Join(args, " ")
			if sqlFile != "" {
				var err error
				if sql, err = ztask.LoadSQLFile(sqlFile); err != nil {
					return err
				}
			} else if len(args) == 1 {
				var err error
				if sql, err = ztask.ReadSQL(args[0]); err != nil {
					return err
				}
			}
			if strings.TrimSpace(sql) == "" {
				return fmt.Errorf("sql is required")
			}

			t := ztask.ClassifySQL(sql)
			if o.outputJSON {
				return output.PrintJSON(cmd.OutOrStdout(), dto.ClassifyResponse{SQLType: t, SQLTypeName: t.String()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&sqlFile, "sql-file", "f", "", "从 .sql 文件读取")
	return cmd
}
