// Package server 提供 HTTP 服务：诊断状态查询、强制更新、健康检查与 Prometheus 指标暴露。
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/diagnostic-updater/pkg/config"
	"github.com/diagnostic-updater/pkg/diagnostic"
	"github.com/diagnostic-updater/pkg/registers"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StatusSource 最新诊断状态来源（publish.MemoryPublisher 实现）
type StatusSource interface {
	Latest() []diagnostic.StatusReport
	Last() (*diagnostic.Batch, bool)
	Level() diagnostic.Level
}

// Server HTTP服务实例，封装核心依赖和配置
type Server struct {
	cfg      config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
	registry *prometheus.Registry
	updater  registers.DiagnosticUpdater
	source   StatusSource
	mux      *customMux
}

// statusWriter 包装ResponseWriter，捕获状态码
type statusWriter struct {
	http.ResponseWriter
	status int
}

// customMux 自定义Mux，兼容原生用法并记录路由
type customMux struct {
	http.ServeMux
	routes []string
	mu     sync.Mutex
}

const defaultShutdownTimeout = 5 * time.Second

// Handle 重写Handle，注册路由时记录路径
func (m *customMux) Handle(pattern string, handler http.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, pattern)
	m.ServeMux.Handle(pattern, handler)
}

// HandleFunc 重写HandleFunc
func (m *customMux) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	m.Handle(pattern, http.HandlerFunc(handler))
}

// NewHTTPServer 创建HTTP服务实例
func NewHTTPServer(cfg config.ServerConfig, logger *zap.Logger, registry *prometheus.Registry,
	updater registers.DiagnosticUpdater, source StatusSource) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		updater:  updater,
		source:   source,
		mux:      &customMux{},
	}

	srv.registerEndpoints()

	srv.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return srv
}

// Handler 带请求日志的路由（测试中直接使用）
func (s *Server) Handler() http.Handler {
	return s.logMiddleware(s.mux)
}

// Routes 已注册路由
func (s *Server) Routes() []string {
	s.mux.mu.Lock()
	defer s.mux.mu.Unlock()
	return append([]string(nil), s.mux.routes...)
}

// logMiddleware 统一日志记录
func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		s.logger.Debug(
			"HTTP request",
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// WriteHeader 捕获状态码
func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

const indexHTML = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
	<meta charset="UTF-8">
	<title>Diagnostic Updater</title>
	<style>
		body { font-family: Arial, sans-serif; margin: 40px; }
		a { display: block; margin: 8px 0; font-size: 18px; }
		code { background-color: #f0f0f0; padding: 2px 4px; }
	</style>
</head>
<body>
	<h1>Diagnostic Updater</h1>
	<p>Hardware ID: <code>%s</code> Period: <code>%s</code></p>
	<h2>Available Endpoints:</h2>
	<a href="/diagnostics">/diagnostics - 最新诊断状态</a>
	<a href="/health">/health - 健康检查</a>
	<a href="/metrics">/metrics - Prometheus 指标暴露</a>
	<p><code>POST /diagnostics/update</code> 立即更新，<code>POST /diagnostics/period?period=2s</code> 修改周期</p>
</body>
</html>
`

// registerEndpoints 注册核心路由
func (s *Server) registerEndpoints() {
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, indexHTML, s.updater.HardwareID(), s.updater.Period())
	})

	s.mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(s.logger),
	}))

	// ERROR/STALE 返回 503
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		level := s.source.Level()
		if level >= diagnostic.LevelError {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = w.Write([]byte(level.String()))
	})

	s.mux.HandleFunc("/diagnostics", s.handleDiagnostics)
	s.mux.HandleFunc("/diagnostics/update", s.handleUpdate)
	s.mux.HandleFunc("/diagnostics/period", s.handlePeriod)
}

// diagnosticsView /diagnostics 响应体
type diagnosticsView struct {
	HardwareID   string                    `json:"hardware_id"`
	Period       string                    `json:"period"`
	NextDeadline *time.Time                `json:"next_deadline,omitempty"`
	Level        string                    `json:"level"`
	Tasks        []string                  `json:"tasks"`
	LastBatch    string                    `json:"last_batch,omitempty"`
	Statuses     []diagnostic.StatusReport `json:"statuses"`
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	view := diagnosticsView{
		HardwareID: s.updater.HardwareID(),
		Period:     s.updater.Period().String(),
		Level:      s.source.Level().String(),
		Tasks:      s.updater.Names(),
		Statuses:   s.source.Latest(),
	}
	if d := s.updater.NextDeadline(); !d.IsZero() {
		view.NextDeadline = &d
	}
	if b, ok := s.source.Last(); ok {
		view.LastBatch = b.ID
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if err := s.updater.ForceUpdate(r.Context()); err != nil {
		s.logger.Warn("forced update failed", zap.Error(err))
		status := http.StatusBadGateway
		if errors.Is(err, registers.ErrStopped) {
			status = http.StatusServiceUnavailable
		}
		s.writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	b, _ := s.source.Last()
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	d, err := time.ParseDuration(r.FormValue("period"))
	if err == nil {
		err = s.updater.SetPeriod(d)
	}
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.logger.Info("update period changed via HTTP", zap.Duration("period", d))
	s.writeJSON(w, http.StatusOK, map[string]string{
		"period":        s.updater.Period().String(),
		"next_deadline": s.updater.NextDeadline().Format(time.RFC3339Nano),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response failed", zap.Error(err))
	}
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

// Start 启动HTTP服务（非阻塞）
func (s *Server) Start() error {
	s.logger.Info(
		"starting HTTP server",
		zap.String("listen_addr", s.cfg.Addr),
		zap.Strings("handle_funcs", s.Routes()),
	)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown 优雅关闭HTTP服务
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded")
			return nil
		}
		s.logger.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server shutdown successfully")
	return nil
}
