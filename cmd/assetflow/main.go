// =============================================================================
// AssetFlow 主入口
// =============================================================================
// 服务与命令行入口，包含 HTTP 服务、离线生成、凭据管理、数据库迁移、渲染
//
// 使用方法:
//
//	assetflow serve --config config.yaml               # 启动服务
//	assetflow generate --request req.json --out a.zip  # 离线生成资产包
//	assetflow credentials set openai sk-...            # 保存厂商密钥
//	assetflow migrate up                               # 运行数据库迁移
//	assetflow render --scene scene.json --out cube.png # 渲染预览图
//	assetflow health                                   # 健康检查
//	assetflow version                                  # 显示版本信息
// =============================================================================

// @title AssetFlow API
// @version 1.0.0
// @description AssetFlow turns a short game concept into a complete asset plan (design documents, images, scripts, 3D models, music) and ships it as a zip archive.
// @description
// @description ## Features
// @description - Synchronous plan generation and asynchronous jobs with websocket progress
// @description - Multi-vendor model catalog (OpenAI, DeepSeek, Qwen, Flux, Gemini, Meshy, Tripo, Suno, MiniMax)
// @description - Blender preview rendering
// @description - Health monitoring and metrics

// @contact.name AssetFlow Team
// @contact.url https://github.com/BaSui01/assetflow

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/assetflow/config"
	"github.com/BaSui01/assetflow/internal/telemetry"
	"github.com/BaSui01/assetflow/pipeline"
	"github.com/BaSui01/assetflow/pipeline/archive"
	"github.com/BaSui01/assetflow/render"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// errUsage 参数错误，已打印用法
var errUsage = errors.New("invalid usage")

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}

func run(cmd string, args []string) error {
	switch cmd {
	case "serve":
		return runServe(args)
	case "generate":
		return runGenerate(args, os.Stdout, os.Stderr)
	case "credentials":
		return runCredentials(args, os.Stdout)
	case "migrate":
		return runMigrate(args, os.Stdout)
	case "render":
		return runRender(args, os.Stdout)
	case "health":
		return runHealthCheck(args, os.Stdout)
	case "version":
		printVersion(os.Stdout)
		return nil
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage(os.Stderr)
		return errUsage
	}
}

func exitCode(err error) int {
	if errors.Is(err, errUsage) {
		return 2
	}
	return 1
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting AssetFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	srv := NewServer(cfg, logger, otelProviders)
	if err := srv.Start(); err != nil {
		srv.Shutdown()
		return fmt.Errorf("start server: %w", err)
	}

	srv.WaitForShutdown()
	logger.Info("AssetFlow stopped")
	return nil
}

// loadConfig 加载并校验配置。path 为空时只使用默认值、凭据文件与环境变量
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// 🧪 generate 命令
// =============================================================================

func runGenerate(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	requestPath := fs.String("request", "", "Path to request JSON (- for stdin)")
	outPath := fs.String("out", "", "Output zip path (default: assetflow-<run>.zip)")
	quiet := fs.Bool("quiet", false, "Do not print progress")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *requestPath == "" {
		fmt.Fprintln(stderr, "generate: --request is required")
		fs.Usage()
		return errUsage
	}

	in, err := readRequest(*requestPath)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	comp := newComponents(cfg, nil, logger)
	req, err := pipeline.NewRequestWithLimits(in, comp.defaults, comp.limits)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress pipeline.ProgressFunc
	if !*quiet {
		progress = progressPrinter(stderr)
	}
	plan, err := comp.orchestrator.Run(ctx, req, progress)
	if err != nil {
		return err
	}

	data, report, err := comp.assembler.Assemble(ctx, plan)
	if err != nil {
		return err
	}

	out := *outPath
	if out == "" {
		out = archive.Filename(plan)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	fmt.Fprintf(stdout, "%s: %d files, %d failed, %d bytes\n",
		out, report.Written, len(plan.Failures()), report.Size)
	return nil
}

// readRequest 读取请求 JSON，未知字段视为错误
func readRequest(path string) (pipeline.RequestInput, error) {
	var in pipeline.RequestInput

	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return in, fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, fmt.Errorf("decode request %s: %w", path, err)
	}
	return in, nil
}

const progressWidth = 30

// progressPrinter 在终端上刷新一行进度条
func progressPrinter(w io.Writer) pipeline.ProgressFunc {
	return func(p pipeline.Progress) {
		filled := int(p.Fraction * progressWidth)
		if filled > progressWidth {
			filled = progressWidth
		}
		bar := make([]byte, progressWidth)
		for i := range bar {
			if i < filled {
				bar[i] = '#'
			} else {
				bar[i] = '.'
			}
		}
		fmt.Fprintf(w, "\r[%s] %3.0f%% %-12s %s", bar, p.Fraction*100, p.Stage, p.Label)
		if p.Stage == pipeline.StageDone {
			fmt.Fprintln(w)
		}
	}
}

// =============================================================================
// 🔑 credentials 命令
// =============================================================================

func runCredentials(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("credentials", flag.ContinueOnError)
	fs.SetOutput(stdout)
	path := fs.String("file", config.DefaultCredentialsPath(), "Credentials file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	rest := fs.Args()
	if len(rest) == 0 {
		printCredentialsUsage(stdout)
		return errUsage
	}

	store := config.NewCredentialStore(*path)
	switch rest[0] {
	case "set":
		if len(rest) != 3 {
			printCredentialsUsage(stdout)
			return errUsage
		}
		if err := store.Set(rest[1], rest[2]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Saved %s key to %s\n", rest[1], store.Path())
	case "list":
		masked, err := store.Masked()
		if err != nil {
			return err
		}
		if len(masked) == 0 {
			fmt.Fprintf(stdout, "No credentials in %s\n", store.Path())
			return nil
		}
		for _, kv := range masked {
			fmt.Fprintf(stdout, "%-12s %s\n", kv[0], kv[1])
		}
	case "delete":
		if len(rest) != 2 {
			printCredentialsUsage(stdout)
			return errUsage
		}
		if err := store.Delete(rest[1]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Deleted %s key\n", rest[1])
	default:
		printCredentialsUsage(stdout)
		return errUsage
	}
	return nil
}

func printCredentialsUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage:
  assetflow credentials [--file <path>] set <vendor> <key>
  assetflow credentials [--file <path>] list
  assetflow credentials [--file <path>] delete <vendor>`)
}

// =============================================================================
// 🎨 render 命令
// =============================================================================

func runRender(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "Path to config file")
	scenePath := fs.String("scene", "", "Scene JSON (default: a single cube)")
	outPath := fs.String("out", "render.png", "Output PNG path")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	scene := render.Scene{}
	if *scenePath != "" {
		data, err := os.ReadFile(*scenePath)
		if err != nil {
			return fmt.Errorf("read scene: %w", err)
		}
		if err := json.Unmarshal(data, &scene); err != nil {
			return fmt.Errorf("decode scene: %w", err)
		}
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	// 命令行显式调用时总是启用
	cfg.Render.Enabled = true

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	png, err := render.NewRenderer(cfg.Render, nil, logger).Render(ctx, scene)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outPath, png, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	fmt.Fprintf(stdout, "%s: %d bytes\n", *outPath, len(png))
	return nil
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(stdout)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}

	fmt.Fprintln(stdout, "OK")
	return nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "AssetFlow %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `AssetFlow - game asset plan generator

Usage:
  assetflow <command> [options]

Commands:
  serve        Start the HTTP API server
  generate     Run one plan locally and write the zip archive
  credentials  Manage vendor API keys (set, list, delete)
  migrate      Database migration commands
  render       Render a scene preview with Blender
  health       Check server health
  version      Show version information
  help         Show this help message

Examples:
  assetflow serve --config /etc/assetflow/config.yaml
  assetflow generate --request request.json --out assets.zip
  assetflow credentials set openai sk-...
  assetflow migrate up
  assetflow render --scene scene.json --out preview.png
  assetflow health --addr http://localhost:8080
  assetflow version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}
