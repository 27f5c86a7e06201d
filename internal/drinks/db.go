package drinks

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/nao1215/coffeeshop/pkg/migration"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// driverName はmodernc.org/sqliteが登録するドライバ名。
const driverName = "sqlite"

// memoryPath はインメモリデータベースを表すパス。
const memoryPath = ":memory:"

// dsn はパスにSQLiteのプラグマを付与した接続文字列を返す。
func dsn(path string) string {
	if path == memoryPath {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	var b strings.Builder
	b.WriteString("file:")
	b.WriteString(path)
	b.WriteString("?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	return b.String()
}

// OpenDB はSQLiteデータベースを開き、未適用のマイグレーションを適用する。
// ":memory:" を渡すとインメモリデータベースを単一接続で開く。
func OpenDB(ctx context.Context, path string, logger *zap.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの疎通に失敗: %w", err)
	}

	n, err := migration.Run(ctx, db, migrationsFS, "migrations", logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	logger.Info("データベースを準備", zap.String("path", path), zap.Int("migrations_applied", n))
	return db, nil
}
