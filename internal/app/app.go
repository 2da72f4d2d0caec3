package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hitoshi/recipebox/internal/auth"
	"github.com/hitoshi/recipebox/internal/config"
	"github.com/hitoshi/recipebox/internal/database"
	"github.com/hitoshi/recipebox/internal/handler"
	"github.com/hitoshi/recipebox/internal/logger"
	"github.com/hitoshi/recipebox/internal/media"
	"github.com/hitoshi/recipebox/internal/metrics"
	"github.com/hitoshi/recipebox/internal/middleware"
	"github.com/hitoshi/recipebox/internal/recipe"
	"github.com/hitoshi/recipebox/internal/repository"
	"github.com/hitoshi/recipebox/internal/user"
	"github.com/hitoshi/recipebox/internal/validation"
	"github.com/hitoshi/recipebox/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELを反映する
	logger.SetupDefaultWithLevel(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandWaitForDB:
		return runWaitForDB(cfg)
	case CommandCreateSuperuser:
		return runCreateSuperuser(cfg)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、応答するまで待機する。
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.WaitForDB(ctx, db, cfg.DBWaitTimeout, cfg.DBWaitInterval); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// newMetrics はプロセス用のレジストリとCollectorを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// mediaPublicURL は画像URLの基点を返す。
// MEDIA_URLがパスの場合はBASE_URLを前置して絶対URLにする。
func mediaPublicURL(cfg *config.Config) string {
	if strings.HasPrefix(cfg.MediaURL, "/") {
		return cfg.BaseURL + cfg.MediaURL
	}
	return cfg.MediaURL
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	tokenRepo := repository.NewPostgresTokenRepo(db)
	tagRepo := repository.NewPostgresTagRepo(db)
	ingredientRepo := repository.NewPostgresIngredientRepo(db)
	recipeRepo := repository.NewPostgresRecipeRepo(db)

	// 3. 共通コンポーネントの初期化
	reg, collector := newMetrics()
	storage := media.NewLocalStorage(cfg.MediaRoot, mediaPublicURL(cfg))

	// 4. ドメインサービスの初期化
	authService := auth.NewService(userRepo, tokenRepo, auth.ServiceConfig{BcryptCost: cfg.BcryptCost}, collector)
	userService := user.NewService(userRepo, authService.Hasher())
	tagService := recipe.NewTagService(tagRepo)
	ingredientService := recipe.NewIngredientService(ingredientRepo)
	recipeService := recipe.NewService(
		recipeRepo, tagRepo, ingredientRepo, storage, collector,
		recipe.ServiceConfig{MaxImageSize: cfg.ImageMaxSize},
	)

	// 5. ルーターの構築
	// configのレート制限はreq/min単位
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitCredential),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		TokenAuthenticator: authService,
		CORSAllowedOrigin:  cfg.CORSAllowedOrigin,
		RateLimiter:        rateLimiter,
		Metrics:            collector,
		Logger:             slog.Default(),

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		MediaURL:  cfg.MediaURL,
		MediaRoot: cfg.MediaRoot,

		AuthService: handler.NewAuthServiceAdapter(authService),
		UserService: userService,

		TagService:        handler.NewTagServiceAdapter(tagService),
		IngredientService: handler.NewIngredientServiceAdapter(ingredientService),

		RecipeService: recipeService,
		ImageURLs:     storage,
		MaxImageSize:  cfg.ImageMaxSize,

		AdminService: handler.NewAdminServiceAdapter(userService, authService),

		Validator: validation.New(),
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、孤立画像のクリーンアップジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. DB接続
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. 依存の初期化
	recipeRepo := repository.NewPostgresRecipeRepo(db)
	storage := media.NewLocalStorage(cfg.MediaRoot, mediaPublicURL(cfg))
	reg, collector := newMetrics()

	// 3. メトリクス配信（WORKER_METRICS_PORTが空なら無効）
	var metricsServer *http.Server
	if cfg.WorkerMetricsPort != "" {
		metricsServer = &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           metrics.SetupMetricsRoute(reg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("worker metrics server error", slog.String("error", err.Error()))
			}
		}()
	}

	// 4. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(recipeRepo, storage, slog.Default(), collector)
	cleanupJob.Grace = cfg.OrphanImageGrace

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.OrphanSweepInterval),
		slog.Duration("grace", cfg.OrphanImageGrace),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.OrphanSweepInterval)

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("worker metrics server shutdown failed", slog.String("error", err.Error()))
		}
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// DBが応答するまで待機してから、すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	db, err := openDB(context.Background(), cfg)
	if err != nil {
		return err
	}
	db.Close()

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runWaitForDB はデータベースが応答するまで待機する。
// コンテナ起動順序の調整用。
func runWaitForDB(cfg *config.Config) error {
	db, err := openDB(context.Background(), cfg)
	if err != nil {
		return err
	}
	return db.Close()
}

// runCreateSuperuser はSUPERUSER_EMAIL / SUPERUSER_PASSWORDから管理者ユーザーを作成する。
func runCreateSuperuser(cfg *config.Config) error {
	if cfg.SuperuserEmail == "" || cfg.SuperuserPassword == "" {
		return errors.New("SUPERUSER_EMAIL and SUPERUSER_PASSWORD must be set")
	}

	ctx := context.Background()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	authService := auth.NewService(
		repository.NewPostgresUserRepo(db),
		repository.NewPostgresTokenRepo(db),
		auth.ServiceConfig{BcryptCost: cfg.BcryptCost},
		nil,
	)

	u, err := authService.CreateSuperuser(ctx, cfg.SuperuserEmail, cfg.SuperuserPassword)
	if err != nil {
		return fmt.Errorf("failed to create superuser: %w", err)
	}

	slog.Info("superuser created", slog.Int64("user_id", u.ID))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
