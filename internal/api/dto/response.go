package dto

import (
	"encoding/json"

	"github.com/tiz36/ztask/ztask"
)

// APIResponse 通用API响应结构
type APIResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) APIResponse[any] {
	return APIResponse[any]{
		Code:    code,
		Message: message,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// ClassifyResponse SQL 分类结果
type ClassifyResponse struct {
	SQLType     ztask.SQLType `json:"sqlType"`
	SQLTypeName string        `json:"sqlTypeName"`
}

// DefineResponse 任务定义与投递结果
type DefineResponse struct {
	Definition json.RawMessage     `json:"definition"`
	Submit     *ztask.SubmitResult `json:"submit,omitempty"`
}
