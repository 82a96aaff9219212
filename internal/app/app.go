package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/korvad/korvadweb/internal/auth"
	"github.com/korvad/korvadweb/internal/catalog"
	"github.com/korvad/korvadweb/internal/config"
	"github.com/korvad/korvadweb/internal/database"
	"github.com/korvad/korvadweb/internal/handler"
	"github.com/korvad/korvadweb/internal/logger"
	"github.com/korvad/korvadweb/internal/metrics"
	"github.com/korvad/korvadweb/internal/middleware"
	"github.com/korvad/korvadweb/internal/post"
	"github.com/korvad/korvadweb/internal/repository"
	"github.com/korvad/korvadweb/internal/security"
	"github.com/korvad/korvadweb/internal/view"
	"github.com/korvad/korvadweb/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込み、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .env は任意。存在しない場合は環境変数のみを使う
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", slog.String("error", err.Error()))
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "3000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.Port),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCleanup:
		return runCleanup(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase は設定のプール値でDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// server はserveモードで組み立てた依存関係を保持する。
type server struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
	collector   *metrics.Collector
	sessions    *repository.PostgresSessionRepo
}

// newServer は全依存関係をワイヤリングしてルーターを構築する。
func newServer(cfg *config.Config, db *sql.DB, log *slog.Logger) (*server, error) {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. リポジトリ
	postRepo := repository.NewPostgresPostRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 3. ドメインサービス
	credential, err := buildCredential(cfg)
	if err != nil {
		return nil, err
	}
	authService := auth.NewService(credential, sessionRepo, collector, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	postService := post.NewService(postRepo, collector)

	plans, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}

	// 4. 描画
	renderer, err := view.New(security.NewContentSanitizer())
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	// 5. ミドルウェア
	store := middleware.NewCookieStore([]byte(cfg.SessionSecret), middleware.CookieOptions{
		MaxAge: cfg.SessionMaxAge,
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
	})
	guard := middleware.NewSessionGuard(store, authService)
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.LoginRatePerMin, cfg.AdminRatePerMin),
	)
	collector.ObserveRateLimiter(rateLimiter)

	// 6. ルーター
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		SessionGuard:      guard,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,
		Metrics:     collector,

		Pages: handler.NewPageHandler(renderer, plans),
		Blog:  handler.NewBlogHandler(postService, renderer),
		Admin: handler.NewAdminHandler(authService, guard, postService, renderer),
		Feed: handler.NewFeedHandler(postService, renderer, handler.FeedConfig{
			BaseURL:   cfg.BaseURL,
			ItemLimit: cfg.FeedItemLimit,
		}),
		Health: handler.NewHealthHandler(db),

		MetricsHandler: metrics.Handler(registry),
		StaticHandler:  view.StaticHandler(),
	})

	return &server{
		handler:     router,
		rateLimiter: rateLimiter,
		collector:   collector,
		sessions:    sessionRepo,
	}, nil
}

// buildCredential は管理者パスワードの検証器を構築する。
// ハッシュが設定されていればそれを使い、なければ平文を起動時にハッシュ化する。
func buildCredential(cfg *config.Config) (*auth.Credential, error) {
	if cfg.AdminPasswordHash != "" {
		c, err := auth.NewCredentialFromHash(cfg.AdminPasswordHash)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_PASSWORD_HASH: %w", err)
		}
		return c, nil
	}

	slog.Warn("ADMIN_PASSWORD is set in plain text; prefer ADMIN_PASSWORD_HASH")
	c, err := auth.NewCredentialFromPassword(cfg.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_PASSWORD: %w", err)
	}
	return c, nil
}

// buildCatalog はSERVICE_CATALOG_PATHが設定されていればファイルから、
// なければ組み込みのプランでCatalogを構築する。
func buildCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.ServiceCatalogPath == "" {
		return catalog.Default(), nil
	}
	c, err := catalog.LoadFile(cfg.ServiceCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load service catalog: %w", err)
	}
	slog.Info("service catalog loaded",
		slog.String("path", cfg.ServiceCatalogPath),
		slog.Int("plans", len(c.Plans())),
	)
	return c, nil
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、マイグレーションを適用し、全依存関係をワイヤリングしてHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. マイグレーション（失敗してもサーバーは起動する）
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		slog.Error("database migration failed",
			slog.String("error", err.Error()),
		)
	}

	// 3. ワイヤリング
	srv, err := newServer(cfg, db, slog.Default())
	if err != nil {
		return err
	}
	defer srv.rateLimiter.Stop()

	// 4. 期限切れセッションの定期削除
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanupJob := cleanup.NewCleanupJob(srv.sessions, srv.collector, slog.Default())
	cleanupJob.Interval = cfg.SessionCleanupInterval
	go cleanupJob.Start(ctx)

	// 5. HTTPサーバーの起動
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down web server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	names, err := database.MigrationNames()
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Any("migrations", names),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, _, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runCleanup は期限切れセッションを1回削除して終了する。
func runCleanup(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	job := cleanup.NewCleanupJob(repository.NewPostgresSessionRepo(db), nil, slog.Default())
	return job.Run(context.Background())
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	return checkHealth(fmt.Sprintf("http://localhost:%s/health", port))
}

func checkHealth(target string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
