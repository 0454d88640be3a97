// Package http 提供贷款审批预测的HTTP服务
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port         int
	Timeout      time.Duration
	CacheSize    int
	MaxBodyBytes int64
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:         5000,
		Timeout:      30 * time.Second,
		CacheSize:    1024,
		MaxBodyBytes: 1 << 20,
	}
}

// NewServer 创建HTTP服务器
// runs 可以为 nil，此时 /api/runs 返回404
func NewServer(config ServerConfig, model Model, runs RunLog, logger *zap.Logger) (*Server, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := newPredictionCache(config.CacheSize)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	RegisterHandlers(mux, &Handlers{
		model:   model,
		cache:   cache,
		metrics: newMetrics(),
		runs:    runs,
		logger:  logger,
	})

	chain := Chain(
		RecoveryMiddleware(logger),                 // 1. 恢复中间件（最先执行，捕获panic）
		LoggerMiddleware(logger),                   // 2. 访问日志
		SecurityHeadersMiddleware,                  // 3. 安全头
		RequestSizeMiddleware(config.MaxBodyBytes), // 4. 请求体大小限制
	)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      chain(mux),
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
		logger: logger,
	}, nil
}

// Handler 返回带中间件的根处理器
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start 启动服务器，阻塞直到服务器关闭
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器，等待进行中的请求完成
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr 返回服务器地址
func (s *Server) Addr() string {
	return s.server.Addr
}
