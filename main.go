package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talent-match-go/internal/api/handler"
	"talent-match-go/internal/api/router"
	"talent-match-go/internal/config"
	"talent-match-go/internal/parser"
	"talent-match-go/internal/processor"
	"talent-match-go/internal/storage"
	"talent-match-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	appCoreLogger "talent-match-go/internal/logger"
)

var (
	version     = "1.0.0"           //nolint:gochecknoglobals
	serviceName = "talent-match-go" //nolint:gochecknoglobals
)

func main() {
	initLogger()

	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		glog.Fatalf("配置校验失败: %v", err)
	}
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化链路追踪（如果启用）
	var tracerShutdown func(context.Context) error
	if cfg.Tracing.Enabled {
		tracerShutdown, err = tracing.InitProvider(ctx, cfg.Tracing.ServiceName, cfg.Tracing.OTLPEndpoint)
		if err != nil {
			glog.Fatalf("初始化链路追踪失败: %v", err)
		}
		glog.Info("链路追踪初始化成功")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	aliyunEmbedder, err := parser.NewAliyunEmbedder(cfg.Aliyun.APIKey, cfg.Aliyun.Embedding)
	if err != nil {
		glog.Fatalf("初始化阿里云Embedder失败: %v", err)
	}
	glog.Info("阿里云Embedder初始化成功")

	qwenAnalyzer, err := parser.NewQwenAnalyzer(cfg.Aliyun.APIKey, cfg.Aliyun.Model, cfg.Aliyun.APIURL)
	if err != nil {
		glog.Fatalf("初始化通义千问分析器失败: %v", err)
	}
	glog.Info("通义千问分析器初始化成功")

	pdfExtractor, err := parser.NewEinoPDFTextExtractor(ctx,
		parser.WithEinoLogger(log.New(os.Stderr, "[EinoPDFMain] ", log.LstdFlags)))
	if err != nil {
		glog.Fatalf("创建Eino PDF提取器失败: %v", err)
	}
	resumeParser := parser.NewResumeParser(pdfExtractor)
	glog.Info("简历解析器初始化成功")

	matcherOpts := []processor.MatcherOption{
		processor.WithResumeParser(resumeParser),
	}
	if storageManager.MinIO != nil {
		matcherOpts = append(matcherOpts, processor.WithResumeArchiver(storageManager.MinIO))
	}
	if storageManager.Redis != nil {
		matcherOpts = append(matcherOpts, processor.WithStatusTracker(storageManager.Redis))
	}
	if storageManager.RabbitMQ != nil {
		matcherOpts = append(matcherOpts, processor.WithEventPublisher(storageManager.RabbitMQ, &cfg.RabbitMQ))
	}

	matcher, err := processor.NewMatcher(aliyunEmbedder, qwenAnalyzer, storageManager.Qdrant, matcherOpts...)
	if err != nil {
		glog.Fatalf("初始化匹配处理器失败: %v", err)
	}
	glog.Info("匹配处理器初始化成功")

	ingestHandler := handler.NewIngestHandler(matcher)

	serverOpts := []hertzconfig.Option{
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	}

	var hertzTracerCfg *hertztracing.Config
	if cfg.Tracing.Enabled {
		tracer, tracerCfg := hertztracing.NewServerTracer()
		serverOpts = append(serverOpts, tracer)
		hertzTracerCfg = tracerCfg
	}

	h := server.New(serverOpts...)
	if hertzTracerCfg != nil {
		h.Use(hertztracing.ServerMiddleware(hertzTracerCfg))
	}

	router.RegisterRoutes(h, ingestHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)

	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			glog.Errorf("链路追踪关闭失败: %v", err)
		}
	}
	glog.Info("优雅退出完成")
}

func initLogger() {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.TimeFieldFormat = "15:04:05"

	logger := zerolog.New(consoleWriter).With().Timestamp().Caller().Logger()

	appCoreLogger.Logger = logger
	zlog.Logger = logger

	hertzCompatibleLogger := hertzadapter.From(appCoreLogger.Logger)
	glog.SetLogger(hertzCompatibleLogger)
	glog.SetLevel(glog.LevelInfo)
}
