package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/hitoshi/roomkeeper/internal/config"
	"github.com/hitoshi/roomkeeper/internal/database"
	"github.com/hitoshi/roomkeeper/internal/discord"
	"github.com/hitoshi/roomkeeper/internal/handler"
	"github.com/hitoshi/roomkeeper/internal/logger"
	"github.com/hitoshi/roomkeeper/internal/metrics"
	"github.com/hitoshi/roomkeeper/internal/middleware"
	"github.com/hitoshi/roomkeeper/internal/presence"
	"github.com/hitoshi/roomkeeper/internal/registration"
	"github.com/hitoshi/roomkeeper/internal/repository"
	"github.com/hitoshi/roomkeeper/internal/security"
	"github.com/hitoshi/roomkeeper/internal/worker/sweep"
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

// deps はサービス層の組み立て結果を保持する。serveとworkerで共用する。
type deps struct {
	presenceService     *presence.Service
	registrationService *registration.Service
	notifier            *discord.Notifier // 未設定時はnil
	collector           *metrics.Collector
	registry            *prometheus.Registry
}

// buildDeps はリポジトリからサービス層までの依存関係をワイヤリングする。
func buildDeps(cfg *config.Config, db *sql.DB) (*deps, error) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	studentCardRepo := repository.NewPostgresStudentCardRepo(db)
	nfcCardRepo := repository.NewPostgresNfcCardRepo(db)
	unknownNfcRepo := repository.NewPostgresUnknownNfcCardRepo(db)
	entryLogRepo := repository.NewPostgresRoomEntryLogRepo(db)

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. Discord連携の初期化（設定されている場合のみ）
	var fetcher presence.UserInfoFetcher
	if cfg.DiscordBotToken != "" {
		client := discord.NewClient(
			&http.Client{Timeout: 10 * time.Second},
			slog.Default(),
			cfg.DiscordBotToken,
		)

		var rdb *redis.Client
		if cfg.RedisAddr != "" {
			rdb = redis.NewClient(&redis.Options{
				Addr:         cfg.RedisAddr,
				DialTimeout:  2 * time.Second,
				ReadTimeout:  1 * time.Second,
				WriteTimeout: 1 * time.Second,
			})
		}
		fetcher = discord.NewCachedFetcher(client, rdb, slog.Default(), cfg.UserInfoTTL)
	}

	var notifier *discord.Notifier
	if cfg.DiscordWebhookURL != "" {
		guard := security.NewOutboundGuard()
		if err := guard.ValidateWebhookURL(cfg.DiscordWebhookURL); err != nil {
			return nil, fmt.Errorf("invalid DISCORD_WEBHOOK_URL: %w", err)
		}
		notifier = discord.NewNotifier(
			guard.NewSafeClient(10*time.Second),
			slog.Default(),
			cfg.DiscordWebhookURL,
		)
	}

	// 4. ドメインサービスの初期化
	presenceService := presence.NewService(userRepo, unknownNfcRepo, entryLogRepo, fetcher, collector)
	registrationService := registration.NewService(
		userRepo, studentCardRepo, nfcCardRepo, unknownNfcRepo,
		security.NewNameSanitizer(), collector,
	)

	return &deps{
		presenceService:     presenceService,
		registrationService: registrationService,
		notifier:            notifier,
		collector:           collector,
		registry:            registry,
	}, nil
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

	// 2. サービス層のワイヤリング
	d, err := buildDeps(cfg, db)
	if err != nil {
		return err
	}

	// 3. ルーターの構築（req/min -> req/sec に変換）
	rateLimiterCfg := middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		TouchRate:       rate.Limit(float64(cfg.RateLimitTouch) / 60.0),
		TouchBurst:      cfg.RateLimitTouch,
		CleanupInterval: 5 * time.Minute,
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	routerDeps := &handler.RouterDeps{
		DeviceToken:         cfg.DeviceToken,
		RateLimiter:         rateLimiter,
		Logger:              slog.Default(),
		PresenceService:     d.presenceService,
		RegistrationService: d.registrationService,
		HealthChecker:       db,
		Gatherer:            d.registry,
	}
	if d.notifier != nil {
		routerDeps.Notifier = d.notifier
	}

	router := handler.NewRouter(routerDeps)

	// 4. HTTPサーバーの起動
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

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、閉室時刻の一括退室スケジューラを起動する。
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

	// 2. サービス層のワイヤリング
	d, err := buildDeps(cfg, db)
	if err != nil {
		return err
	}

	// 3. 一括退室ジョブの初期化
	var notifier sweep.Notifier
	if d.notifier != nil {
		notifier = d.notifier
	}
	job := sweep.NewJob(d.presenceService, notifier, slog.Default())
	scheduler := sweep.NewScheduler(job, cfg.SweepAt, cfg.Location(), slog.Default())

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
		slog.String("sweep_at", cfg.SweepAt),
		slog.String("timezone", cfg.Timezone),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("sweep scheduler failed: %w", err)
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
