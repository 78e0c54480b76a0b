package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/gfrate/internal/aggregate"
	"github.com/hitoshi/gfrate/internal/config"
	"github.com/hitoshi/gfrate/internal/database"
	"github.com/hitoshi/gfrate/internal/handler"
	"github.com/hitoshi/gfrate/internal/logger"
	"github.com/hitoshi/gfrate/internal/metrics"
	"github.com/hitoshi/gfrate/internal/middleware"
	"github.com/hitoshi/gfrate/internal/model"
	"github.com/hitoshi/gfrate/internal/product"
	"github.com/hitoshi/gfrate/internal/repository"
	"github.com/hitoshi/gfrate/internal/security"
	"github.com/hitoshi/gfrate/internal/vote"
	"github.com/hitoshi/gfrate/internal/worker"
	"github.com/hitoshi/gfrate/internal/worker/decay"
	"github.com/hitoshi/gfrate/internal/worker/snapshot"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envがあれば読み込む（既存の環境変数は上書きしない）
	_ = godotenv.Load()

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// rateLimiterConfig はConfigのreq/min指定をreq/secのRateLimiterConfigへ変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	limiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		limiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		limiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitVoteCast > 0 {
		limiterCfg.VoteCastRate = rate.Limit(float64(cfg.RateLimitVoteCast) / 60.0)
		limiterCfg.VoteCastBurst = cfg.RateLimitVoteCast
	}
	return limiterCfg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	productRepo := repository.NewPostgresProductRepo(db)
	voteRepo := repository.NewPostgresVoteRepo(db)
	snapshotRepo := repository.NewPostgresSnapshotRepo(db)
	settingsRepo := repository.NewPostgresSettingsRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	sanitizer := security.NewNameSanitizer()
	aggregateService := aggregate.NewService(
		productRepo, settingsRepo, slog.Default(), collector, cfg.RecomputeMaxConcurrent,
	)
	voteService := vote.NewService(
		voteRepo, productRepo, aggregateService, sanitizer, slog.Default(), collector,
	)
	productService := product.NewService(productRepo, snapshotRepo, sanitizer)
	snapshotJob := snapshot.NewJob(
		productRepo, snapshotRepo, settingsRepo, slog.Default(), collector,
	)

	// 5. ルーターの構築
	deps := &handler.RouterDeps{
		HealthChecker:     db,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterConfig(cfg)),
		Logger:            slog.Default(),
		StatusMetrics:     collector,

		ProductService: productService,
		VoteService:    voteService,
		Recomputer:     aggregateService,
		Snapshotter:    snapshotJob,
	}

	router := handler.NewRouter(deps)

	// 6. メトリクスサーバーの起動（メインAPIとは別ポート）
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、日次の減衰再集計ジョブと価格スナップショットジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	productRepo := repository.NewPostgresProductRepo(db)
	snapshotRepo := repository.NewPostgresSnapshotRepo(db)
	settingsRepo := repository.NewPostgresSettingsRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ジョブの初期化
	aggregateService := aggregate.NewService(
		productRepo, settingsRepo, slog.Default(), collector, cfg.RecomputeMaxConcurrent,
	)
	decayJob := decay.NewJob(aggregateService, slog.Default())
	snapshotJob := snapshot.NewJob(
		productRepo, snapshotRepo, settingsRepo, slog.Default(), collector,
	)

	// 5. メトリクスサーバーの起動
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		slog.Info("metrics server starting (worker)", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("snapshot_hour_utc", cfg.SnapshotHourUTC),
		slog.Int("recompute_max_concurrent", cfg.RecomputeMaxConcurrent),
	)

	// 減衰再集計の実行時刻は毎サイクル設定から読み直す
	decayHour := func(ctx context.Context) int {
		settings, err := settingsRepo.Load(ctx)
		if err != nil {
			slog.Warn("設定の読み込みに失敗したためデフォルトの実行時刻を使用します",
				slog.String("error", err.Error()),
			)
			return model.DefaultDecayHour
		}
		return settings.DecayHour
	}

	// スナップショットジョブをバックグラウンドで日次実行
	go worker.RunDaily(ctx, slog.Default(), "price_snapshot",
		func(ctx context.Context) int { return cfg.SnapshotHourUTC },
		func(ctx context.Context) error {
			_, err := snapshotJob.Run(ctx)
			return err
		},
	)

	// 減衰再集計ジョブをメインgoroutineで日次実行（ブロッキング）
	worker.RunDaily(ctx, slog.Default(), "decay_recompute", decayHour, decayJob.Run)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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
