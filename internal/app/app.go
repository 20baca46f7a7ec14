package app

import (
	"context"
	"edtech_eval_backend/internal/config"
	"edtech_eval_backend/internal/controller"
	"edtech_eval_backend/internal/repository"
	"edtech_eval_backend/internal/service"
	"edtech_eval_backend/pkg/configwatcher"
	"edtech_eval_backend/pkg/database"
	"edtech_eval_backend/pkg/logger"
	"edtech_eval_backend/pkg/monitoring"
	"edtech_eval_backend/pkg/security"
	"edtech_eval_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracerProvider  *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)

	// ctx 随进程退出取消，后台协程（配置监听、限流清理）据此退出
	ctx    context.Context
	cancel context.CancelFunc
}

type repositories struct {
	paper      *repository.PaperRepository
	evaluation *repository.EvaluationRepository
}

type services struct {
	paper      *service.PaperService
	store      *service.EvaluationStore
	similarity *service.SimilarityClient
	archive    *service.ArchiveService
	evaluation *service.EvaluationService
}

type controllers struct {
	evaluation *controller.EvaluationController
	paper      *controller.PaperController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		paper:      repository.NewPaperRepository(db),
		evaluation: repository.NewEvaluationRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	paperSvc := service.NewPaperService(repos.paper, rdb, time.Duration(cfg.Redis.PaperTTLSeconds)*time.Second)
	store := service.NewEvaluationStore(repos.evaluation, cfg.Persistence)
	similarity := service.NewSimilarityClient(service.NewEmbeddingProvider(cfg.Embedding), cfg.Embedding)
	archive := service.NewArchiveService(cfg)

	return &services{
		paper:      paperSvc,
		store:      store,
		similarity: similarity,
		archive:    archive,
		evaluation: service.NewEvaluationService(paperSvc, store, similarity, archive, service.NewScoringPolicy(cfg.Scoring)),
	}
}

func (a *App) initControllers(s *services, repos *repositories) *controllers {
	return &controllers{
		evaluation: controller.NewEvaluationController(s.evaluation),
		paper:      controller.NewPaperController(s.paper),
		health:     controller.NewHealthController(repos.evaluation, s.similarity.Name()),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.RequestID())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(a.ctx, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window()))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// watchConfig 评分阈值支持热更新，其余配置需重启生效
func (a *App) watchConfig() {
	if a.Config.ConfigFile == "" {
		return
	}

	a.RegisterConfigCallback(func(cfg *config.Config) {
		a.services.evaluation.UpdateScoring(cfg.Scoring)
	})

	if err := configwatcher.WatchConfig(a.ctx, a.Config.ConfigFile, a.applyConfig); err != nil {
		logger.Log.Warn("Config hot reload disabled", zap.Error(err))
	}
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	gin.SetMode(cfg.Server.Mode)

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 缓存不可用时直接读库
		logger.Log.Warn("Redis unavailable, paper cache disabled", zap.Error(err))
		rdb = nil
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}
	app.ctx, app.cancel = context.WithCancel(context.Background())

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, repos)

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("edtech-eval", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracerProvider = tp
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, security.RateLimiter(app.ctx, cfg.RateLimit.EvaluateMaxRequests, cfg.RateLimit.Window()))
	app.watchConfig()

	logger.Log.Info("Application initialized",
		zap.String("embedding_provider", services.similarity.Name()),
		zap.Bool("archive", services.archive != nil),
		zap.Bool("paper_cache", rdb != nil),
	)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	a.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	log.Println("Server exiting")
}
