// Package api 提供 SQL 任务定义的 HTTP 接口
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tiz36/ztask/internal/api/handler"
	"github.com/tiz36/ztask/internal/api/middleware"
	"github.com/tiz36/ztask/internal/log"
)

// MonitorPath 队列监控界面挂载路径
const MonitorPath = "/monitoring"

// RouterOptions 可选挂载项
type RouterOptions struct {
	Version string
	Logger  log.Logger
	Metrics http.Handler // GET /metrics
	Monitor http.Handler // MonitorPath 下的队列监控
}

// SetupRouter 设置路由
func SetupRouter(svc handler.TaskService, opts RouterOptions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}

	router := gin.New()

	// 全局中间件
	router.Use(middleware.Recovery(opts.Logger))
	router.Use(middleware.AccessLog(opts.Logger))

	healthHandler := handler.NewHealthHandler(opts.Version)
	sqlHandler := handler.NewSQLHandler(svc)

	// 健康检查路由（不带前缀）
	router.GET("/health", healthHandler.Health)

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	if opts.Monitor != nil {
		router.Any(MonitorPath+"/*any", gin.WrapH(opts.Monitor))
	}

	// API v1 路由组
	v1 := router.Group("/api/v1")
	{
		sql := v1.Group("/sql")
		{
			sql.POST("/classify", sqlHandler.Classify)
			sql.POST("/definitions", sqlHandler.Define)
		}
	}

	return router
}
