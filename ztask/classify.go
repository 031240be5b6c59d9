package ztask

import (
	"strings"
	"unicode"
)

// ClassifySQL 按首个关键字判断 SQL 是否只读
//
// 只看去除首尾空白后的第一个单词：SELECT 与 WITH 视为查询，其余一律视为
// 非查询。这是前缀判断，不解析语法，语句中其它位置出现的关键字不影响结果。
func ClassifySQL(sql string) SQLType {
	switch strings.ToLower(leadingKeyword(sql)) {
	case "select", "with":
		return SQLTypeSelect
	default:
		return SQLTypeNotSelect
	}
}

func leadingKeyword(sql string) string {
	s := strings.TrimSpace(sql)
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		return s
	}
	return s[:end]
}
