package main

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/api/handlers"
	"github.com/BaSui01/assetflow/config"
	"github.com/BaSui01/assetflow/internal/cache"
	"github.com/BaSui01/assetflow/internal/database"
	"github.com/BaSui01/assetflow/internal/metrics"
	"github.com/BaSui01/assetflow/internal/migration"
	"github.com/BaSui01/assetflow/internal/server"
	"github.com/BaSui01/assetflow/internal/telemetry"
	"github.com/BaSui01/assetflow/jobs"
	"github.com/BaSui01/assetflow/llm"
	"github.com/BaSui01/assetflow/llm/tokenizer"
	"github.com/BaSui01/assetflow/pipeline"
	"github.com/BaSui01/assetflow/pipeline/archive"
	"github.com/BaSui01/assetflow/render"
)

// =============================================================================
// 🧩 流水线组件（serve 与 generate 共用）
// =============================================================================

// components 流水线及其直接依赖
type components struct {
	client       *llm.Client
	orchestrator *pipeline.Orchestrator
	assembler    *archive.Assembler
	renderer     *render.Renderer
	defaults     pipeline.Models
	limits       pipeline.Limits
}

// newComponents 按配置组装厂商客户端、编排器、归档器与渲染器。collector 可为 nil
func newComponents(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) *components {
	client := llm.NewClient(cfg.Vendors, logger,
		llm.WithRecorder(collector),
		llm.WithTokenizer(tokenizer.DefaultRegistry()),
	)

	opts := []pipeline.Option{
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
		pipeline.WithRecorder(collector),
	}
	if inst, err := telemetry.NewPlanInstruments(); err != nil {
		logger.Warn("plan instruments unavailable", zap.Error(err))
	} else {
		opts = append(opts, pipeline.WithInstruments(inst))
	}

	return &components{
		client:       client,
		orchestrator: pipeline.NewOrchestrator(client, logger, opts...),
		assembler: archive.NewAssembler(archive.NewHTTPFetcher(cfg.Archive), logger,
			archive.WithRecorder(collector)),
		renderer: render.NewRenderer(cfg.Render, collector, logger),
		defaults: pipeline.DefaultModels(cfg.Pipeline),
		limits:   pipeline.LimitsFromConfig(cfg.Pipeline),
	}
}

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server 是 AssetFlow 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	// registry 为 nil 时使用 prometheus 默认注册表
	registry *prometheus.Registry

	collector *metrics.Collector
	comp      *components
	db        *database.PoolManager
	cache     *cache.Manager
	jobs      *jobs.Service

	healthHandler *handlers.HealthHandler

	httpManager    *server.Manager
	metricsManager *server.Manager

	rateLimiterCancel context.CancelFunc
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otel *telemetry.Providers) *Server {
	return &Server{cfg: cfg, logger: logger, otel: otel}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 初始化全部组件并启动 HTTP 与 Metrics 服务
func (s *Server) Start() error {
	handler, err := s.build(context.Background())
	if err != nil {
		return err
	}
	if err := s.startHTTPServer(handler); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("job_store", s.cfg.Jobs.Store),
		zap.String("blob_store", s.cfg.Jobs.BlobStore),
		zap.Bool("render_enabled", s.cfg.Render.Enabled),
	)
	return nil
}

// build 初始化组件并返回带中间件的路由，不监听端口
func (s *Server) build(ctx context.Context) (http.Handler, error) {
	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	if s.registry != nil {
		reg = s.registry
	}
	s.collector = metrics.NewCollectorWithRegistry("assetflow", reg, s.logger)
	s.comp = newComponents(s.cfg, s.collector, s.logger)
	s.healthHandler = handlers.NewHealthHandler(s.logger)

	if err := s.initJobs(ctx); err != nil {
		return nil, fmt.Errorf("failed to init jobs: %w", err)
	}
	if s.cfg.Render.Enabled {
		blender := s.cfg.Render.BlenderPath
		s.healthHandler.RegisterOptionalCheck(handlers.NewPingCheck("blender", func(context.Context) error {
			_, err := exec.LookPath(blender)
			return err
		}))
	}
	return s.routes(), nil
}

// initJobs 按配置选择任务存储与归档存储，并回收上次进程遗留的任务
func (s *Server) initJobs(ctx context.Context) error {
	opts := []jobs.Option{
		jobs.WithDefaults(s.comp.defaults),
		jobs.WithLimits(s.comp.limits),
		jobs.WithRecorder(s.collector),
	}

	if s.cfg.Jobs.Store == "database" {
		if s.cfg.Database.AutoMigrate {
			if err := s.migrate(); err != nil {
				return err
			}
		}
		pm, err := database.Open(s.cfg.Database, s.logger)
		if err != nil {
			return err
		}
		pm.SetRecorder(s.collector)
		s.db = pm
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("database", pm.Ping))
		opts = append(opts, jobs.WithStore(jobs.NewGormStore(pm.DB())))
	}

	if s.cfg.Jobs.BlobStore == "redis" {
		cc := cache.DefaultConfig()
		cc.Addr = s.cfg.Redis.Addr
		cc.Password = s.cfg.Redis.Password
		cc.DB = s.cfg.Redis.DB
		if s.cfg.Redis.PoolSize > 0 {
			cc.PoolSize = s.cfg.Redis.PoolSize
		}
		cc.MinIdleConns = s.cfg.Redis.MinIdleConns
		cc.DefaultTTL = s.cfg.Jobs.TTL

		cm, err := cache.NewManager(cc, s.logger)
		if err != nil {
			return err
		}
		s.cache = cm
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("redis", cm.Ping))
		opts = append(opts, jobs.WithBlobStore(jobs.NewRedisBlobStore(cm, s.cfg.Jobs.TTL, s.collector)))
	}

	svc, err := jobs.NewService(s.cfg.Jobs, s.comp.orchestrator, s.comp.assembler, s.logger, opts...)
	if err != nil {
		return err
	}
	s.jobs = svc

	queueSize := s.cfg.Jobs.QueueSize
	s.healthHandler.RegisterOptionalCheck(handlers.NewPingCheck("jobs", func(context.Context) error {
		st := svc.Stats()
		if queueSize > 0 && st.Queued >= queueSize {
			return fmt.Errorf("job queue full (%d queued, %d active)", st.Queued, st.Active)
		}
		return nil
	}))

	n, err := svc.Recover(ctx)
	if err != nil {
		s.logger.Warn("job recovery failed", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("marked interrupted jobs as failed", zap.Int("count", n))
	}
	return nil
}

// migrate 执行嵌入的数据库迁移
func (s *Server) migrate() error {
	m, err := migration.NewMigratorFromDatabaseConfig(s.cfg.Database)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	s.logger.Info("database migrations applied", zap.String("driver", s.cfg.Database.Driver))
	return nil
}

// =============================================================================
// 🌐 路由
// =============================================================================

func (s *Server) routes() http.Handler {
	maxBody := s.cfg.Server.MaxBodyBytes
	plan := handlers.NewPlanHandler(s.comp.orchestrator, s.comp.assembler, s.comp.defaults, maxBody, s.logger).
		WithLimits(s.comp.limits)
	jobsHandler := handlers.NewJobsHandler(s.jobs, maxBody, s.cfg.Server.CORSAllowedOrigins, s.logger)
	models := handlers.NewModelsHandler(s.comp.client, s.comp.defaults, s.logger)
	renderHandler := handlers.NewRenderHandler(s.comp.renderer, maxBody, s.logger)

	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", s.healthHandler.HandleLive)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleLive)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// API
	mux.HandleFunc("POST /api/v1/plans", plan.HandleGenerate)
	mux.HandleFunc("POST /api/v1/jobs", jobsHandler.HandleSubmit)
	mux.HandleFunc("GET /api/v1/jobs", jobsHandler.HandleList)
	mux.HandleFunc("GET /api/v1/jobs/{id}", jobsHandler.HandleGet)
	mux.HandleFunc("DELETE /api/v1/jobs/{id}", jobsHandler.HandleCancel)
	mux.HandleFunc("GET /api/v1/jobs/{id}/archive", jobsHandler.HandleArchive)
	mux.HandleFunc("GET /api/v1/jobs/{id}/events", jobsHandler.HandleEvents)
	mux.HandleFunc("GET /api/v1/models", models.HandleList)
	mux.HandleFunc("POST /api/v1/render", renderHandler.HandleRender)

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version"}
	rateLimiterCtx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		OTelTracing(),
		MetricsMiddleware(s.collector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.cfg.Server.AllowQueryAPIKey, s.logger),
	}
	if s.cfg.JWT.Enabled {
		middlewares = append(middlewares, JWTAuth(s.cfg.JWT, skipAuthPaths, s.logger))
	}
	middlewares = append(middlewares,
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))

	return Chain(mux, middlewares...)
}

func (s *Server) startHTTPServer(handler http.Handler) error {
	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if s.jobs != nil {
		// 先取消运行中的任务，事件流随之收到终态并关闭
		s.httpManager.OnShutdown(func(context.Context) { s.jobs.Close(false) })
	}

	if cert, key := s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile; cert != "" && key != "" {
		return s.httpManager.StartTLS(cert, key)
	}
	return s.httpManager.Start()
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsPort == 0 {
		return nil
	}
	mux := http.NewServeMux()
	if s.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}

	mc := server.DefaultConfig()
	mc.Addr = fmt.Sprintf(":%d", s.cfg.Server.MetricsPort)
	mc.ShutdownTimeout = s.cfg.Server.ShutdownTimeout
	s.metricsManager = server.NewManager(mux, mc, s.logger)
	return s.metricsManager.Start()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待信号后优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown(context.Background())
	}
	s.Shutdown()
}

// Shutdown 先停止接收请求，再取消运行中的任务，最后释放存储与遥测
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")
	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.jobs != nil {
		// 通常已由 OnShutdown 关闭；Start 失败时在这里兜底。
		// 运行中的任务以 cancelled 落盘，排队中的任务下次启动时由 Recover 处理
		s.jobs.Close(false)
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("cache close error", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}
	if err := s.otel.Shutdown(ctx); err != nil {
		s.logger.Error("telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("Graceful shutdown completed")
}
