package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/coffeeshop/internal/config"
	"github.com/nao1215/coffeeshop/internal/drinks"
	"github.com/nao1215/coffeeshop/pkg/jwks"
	"github.com/nao1215/coffeeshop/pkg/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	// readHeaderTimeout はリクエストヘッダー読み込みのタイムアウト。
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout はグレースフルシャットダウンの猶予。
	shutdownTimeout = 10 * time.Second
)

// newServeCmd はAPIサーバーを起動するコマンドを生成する。
func newServeCmd(load configLoader) *cobra.Command {
	var (
		port   string
		dbPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "ドリンクAPIサーバーを起動する",
		Long: `ドリンクAPIサーバーを起動する。

AUTH0_DOMAIN、API_AUDIENCE、AUTH_ALGORITHMS（または設定ファイルのauth節）が必須。
SIGINTまたはSIGTERMを受け取ると処理中のリクエストを待ってから停止する。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("db") {
				cfg.DatabasePath = dbPath
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("設定が不正: %w", err)
			}

			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cfg.LogLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			listener, err := net.Listen("tcp", ":"+cfg.Port)
			if err != nil {
				return fmt.Errorf("ポート %s のリッスンに失敗: %w", cfg.Port, err)
			}
			return runServer(ctx, cfg, listener, logger)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "リッスンポート（COFFEESHOP_PORTより優先）")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLiteデータベースのパス（COFFEESHOP_DATABASE_PATHより優先）")
	return cmd
}

// newGate は設定から鍵セット取得、キャッシュ、認可ゲートを組み立てる。
func newGate(auth config.AuthConfig, logger *zap.Logger, opts ...jwks.FetcherOption) (*middleware.Gate, error) {
	opts = append([]jwks.FetcherOption{jwks.WithFetchTimeout(auth.FetchTimeout)}, opts...)
	fetcher := jwks.NewFetcher(auth.Domain, opts...)
	keys := jwks.NewCache(fetcher, auth.KeySetTTL, jwks.WithMinRefreshInterval(auth.MinRefreshInterval))

	return middleware.NewGate(middleware.GateConfig{
		Issuer:     auth.Issuer(),
		Audience:   auth.Audience,
		Algorithms: auth.Algorithms,
		Leeway:     auth.Leeway,
	}, keys, logger)
}

// runServer はデータベースとサーバーを準備し、ctxがキャンセルされるまでlistenerで待ち受ける。
func runServer(ctx context.Context, cfg config.Config, listener net.Listener, logger *zap.Logger, opts ...jwks.FetcherOption) error {
	db, err := drinks.OpenDB(ctx, cfg.DatabasePath, logger)
	if err != nil {
		_ = listener.Close()
		return err
	}
	defer func() { _ = db.Close() }()

	gate, err := newGate(cfg.Auth, logger, opts...)
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("認可ゲートの初期化に失敗: %w", err)
	}

	server, err := drinks.NewServer(drinks.NewStore(db), gate, logger, drinks.WithAllowedOrigins(cfg.AllowedOrigins))
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("サーバーの初期化に失敗: %w", err)
	}

	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("coffeeshopを起動",
			zap.String("addr", listener.Addr().String()),
			zap.String("issuer", cfg.Auth.Issuer()),
			zap.String("audience", cfg.Auth.Audience),
			zap.Duration("key_set_ttl", cfg.Auth.KeySetTTL),
		)
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("サーバーが停止: %w", err)
	case <-ctx.Done():
	}

	logger.Info("coffeeshopを停止")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	return nil
}
