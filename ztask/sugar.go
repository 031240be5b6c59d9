package ztask

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// SQLFileExt SQL 文件扩展名
const SQLFileExt = ".sql"

// LoadSQLFile 读取 .sql 文件内容作为任务 SQL
//
// 示例:
//
//	sql, err := ztask.LoadSQLFile("jobs/daily_report.sql")
//	task, err := client.NewSQLTask("daily_report", "ds_mysql", sql)
func LoadSQLFile(path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), SQLFileExt) {
		return "", validationError("sql file %q must have %s extension", path, SQLFileExt)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read sql file: %w", err)
	}
	sql := string(data)
	if isBlank(sql) {
		return "", validationError("sql file %q is empty", path)
	}
	return sql, nil
}

// IsSQLFile 参数是否指向 .sql 文件，含空白的内容视为 SQL 语句
func IsSQLFile(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsFunc(s, unicode.IsSpace) {
		return false
	}
	return strings.EqualFold(filepath.Ext(s), SQLFileExt)
}

// ReadSQL 参数指向 .sql 文件时读取文件内容，否则原样返回
func ReadSQL(s string) (string, error) {
	if IsSQLFile(s) {
		return LoadSQLFile(strings.TrimSpace(s))
	}
	return s, nil
}
