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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/kansha/internal/bot"
	"github.com/hitoshi/kansha/internal/config"
	"github.com/hitoshi/kansha/internal/conversation"
	"github.com/hitoshi/kansha/internal/database"
	"github.com/hitoshi/kansha/internal/handler"
	"github.com/hitoshi/kansha/internal/history"
	"github.com/hitoshi/kansha/internal/logger"
	"github.com/hitoshi/kansha/internal/metrics"
	"github.com/hitoshi/kansha/internal/model"
	"github.com/hitoshi/kansha/internal/repository"
	"github.com/hitoshi/kansha/internal/stats"
	"github.com/hitoshi/kansha/internal/streak"
	"github.com/hitoshi/kansha/internal/telegram"
	"github.com/hitoshi/kansha/internal/week"
	"github.com/hitoshi/kansha/internal/worker/remind"
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

// runServe はボットモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、Telegramの長時間ポーリングと
// 監視用HTTPサーバーを起動する。
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
	userRepo := repository.NewPostgresUserRepo(db)
	settingsRepo := repository.NewPostgresSettingsRepo(db)
	entryRepo := repository.NewPostgresEntryRepo(db)
	answerRepo := repository.NewPostgresAnswerRepo(db)
	questionRepo := repository.NewPostgresQuestionRepo(db)
	weekRepo := repository.NewPostgresWeekRepo(db)
	streakRepo := repository.NewPostgresStreakRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	streakSvc := streak.NewService(streakRepo)
	resolver := week.NewResolver(weekRepo)
	historySvc := history.NewService(entryRepo, answerRepo)
	statsSvc := stats.NewService(entryRepo, answerRepo, weekRepo, streakSvc)

	// 5. 会話エンジンの構築
	engine := conversation.NewEngine(sessionRepo, bot.MainMenu(), collector)
	engine.Register(model.FlowMorning, conversation.FlowConfig{
		Title:  "朝の記録",
		Source: conversation.NewTemplateSource(questionRepo, model.PeriodMorning),
		Target: conversation.NewDailyTarget(model.FlowMorning, entryRepo, answerRepo, streakSvc),
	})
	engine.Register(model.FlowEvening, conversation.FlowConfig{
		Title:  "夜の記録",
		Source: conversation.NewLiteralSource(conversation.EveningQuestions()),
		Target: conversation.NewDailyTarget(model.FlowEvening, entryRepo, answerRepo, streakSvc),
	})
	engine.Register(model.FlowWeek, conversation.FlowConfig{
		Title:  "週の振り返り",
		Source: conversation.NewLiteralSource(conversation.WeekQuestions()),
		Target: conversation.NewWeekTarget(weekRepo, settingsRepo, resolver),
	})

	// 6. 朝の質問テンプレートの初期投入
	if err := conversation.EnsureMorningDefaults(context.Background(), questionRepo); err != nil {
		return fmt.Errorf("failed to seed morning questions: %w", err)
	}

	// 7. Telegramクライアントとルーターの構築
	client := telegram.NewClient(
		&http.Client{Timeout: cfg.TelegramTimeout},
		cfg.TelegramBotToken, slog.Default(), collector,
	)
	router := bot.NewRouter(
		userRepo, settingsRepo, sessionRepo, engine,
		historySvc, statsSvc, resolver, client,
		slog.Default(), collector,
	)
	poller := telegram.NewPoller(client, router, slog.Default(), cfg.PollTimeout)

	// 8. 監視用HTTPサーバーの構築
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(db, registry, slog.Default()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("ops server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	// ポーリングループをバックグラウンドで起動
	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Run(ctx)
	}()

	<-stop
	slog.Info("shutting down bot...")
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("bot stopped gracefully")
	return nil
}

// runWorker はリマインダー配信のワーカーモードで起動する。
// DB接続を開き、リマインダースケジューラを起動する。
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
	settingsRepo := repository.NewPostgresSettingsRepo(db)
	entryRepo := repository.NewPostgresEntryRepo(db)
	streakRepo := repository.NewPostgresStreakRepo(db)
	nudgeRepo := repository.NewPostgresNudgeRepo(db)

	// 3. 送信クライアントとスケジューラの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	client := telegram.NewClient(
		&http.Client{Timeout: cfg.TelegramTimeout},
		cfg.TelegramBotToken, slog.Default(), collector,
	)
	scheduler := remind.NewScheduler(
		settingsRepo, entryRepo, streakRepo, nudgeRepo,
		client, slog.Default(), collector,
	)

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
		slog.Duration("remind_interval", cfg.RemindInterval),
	)

	// リマインダースケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.RemindInterval)

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
