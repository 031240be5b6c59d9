package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"

	"github.com/tiz36/ztask/internal/log"
	"github.com/tiz36/ztask/ztask"
)

// ServerConfig API服务器配置
type ServerConfig struct {
	Host         string        // 监听地址
	Port         int           // 监听端口
	ReadTimeout  time.Duration // 读取超时
	WriteTimeout time.Duration // 写入超时
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// queueInspector 能提供队列连接的实现可挂载监控界面
type queueInspector interface {
	QueueRedisOpt() (asynq.RedisClientOpt, bool)
}

// APIServer HTTP API服务器
type APIServer struct {
	zt         ztask.ZTask
	httpServer *http.Server
	monitor    *asynqmon.HTTPHandler
	config     ServerConfig
	version    string
	logger     log.Logger
}

// NewAPIServer 创建API服务器
func NewAPIServer(zt ztask.ZTask, config ServerConfig, version string, logger log.Logger) *APIServer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &APIServer{
		zt:      zt,
		config:  config,
		version: version,
		logger:  logger.Named("api"),
	}
}

// Handler 构建路由
func (s *APIServer) Handler() http.Handler {
	opts := RouterOptions{
		Version: s.version,
		Logger:  s.logger,
		Metrics: s.zt.MetricsHandler(),
	}
	if qi, ok := s.zt.(queueInspector); ok {
		if redisOpt, ok := qi.QueueRedisOpt(); ok {
			s.monitor = asynqmon.New(asynqmon.Options{
				RootPath:     MonitorPath,
				RedisConnOpt: redisOpt,
				ReadOnly:     true,
			})
			opts.Monitor = s.monitor
		}
	}
	return SetupRouter(s.zt, opts)
}

// Start 启动服务器，阻塞直到关闭
func (s *APIServer) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("api server starting", "addr", s.Addr())

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server listen failed: %w", err)
	}
	return nil
}

// Shutdown 优雅关闭服务器
func (s *APIServer) Shutdown(ctx context.Context) error {
	if s.monitor != nil {
		_ = s.monitor.Close()
	}
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("api server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr 获取服务器地址
func (s *APIServer) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
