package migration

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// openMemoryDB はテスト用のインメモリSQLiteを開く。
func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// testFS はテスト用のマイグレーションファイル群。
func testFS() fstest.MapFS {
	return fstest.MapFS{
		"migrations/000002_add_index.up.sql":    {Data: []byte("CREATE INDEX idx_items_name ON items(name);")},
		"migrations/000001_create_items.up.sql": {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL);")},
		"migrations/000001_create_items.down.sql": {Data: []byte("DROP TABLE items;")},
		"migrations/README.md":                   {Data: []byte("ignored")},
		"migrations/abc_invalid.up.sql":          {Data: []byte("ignored")},
	}
}

// TestCollect はマイグレーションファイルの収集を検証する。
func TestCollect(t *testing.T) {
	t.Parallel()

	t.Run("up.sqlのみをバージョン順に収集すること", func(t *testing.T) {
		t.Parallel()

		files, err := Collect(testFS(), "migrations")
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, File{Version: 1, Name: "create_items", Path: "migrations/000001_create_items.up.sql"}, files[0])
		assert.Equal(t, 2, files[1].Version)
	})

	t.Run("バージョンが重複している場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		fsys := testFS()
		fsys["migrations/000001_duplicate.up.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}
		_, err := Collect(fsys, "migrations")
		assert.Error(t, err)
	})

	t.Run("ディレクトリがない場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := Collect(testFS(), "missing")
		assert.Error(t, err)
	})
}

// TestRun はマイグレーションの適用を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("未適用のマイグレーションを適用し、再実行では何もしないこと", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openMemoryDB(t)

		n, err := Run(ctx, db, testFS(), "migrations", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = db.ExecContext(ctx, "INSERT INTO items (name) VALUES ('latte')")
		require.NoError(t, err)

		n, err = Run(ctx, db, testFS(), "migrations", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		applied, err := AppliedVersions(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, map[int]bool{1: true, 2: true}, applied)
	})

	t.Run("失敗したマイグレーションはロールバックされること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openMemoryDB(t)
		fsys := testFS()
		fsys["migrations/000003_broken.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE broken (")}

		n, err := Run(ctx, db, fsys, "migrations", nil)
		assert.Error(t, err)
		assert.Equal(t, 2, n)

		applied, err := AppliedVersions(ctx, db)
		require.NoError(t, err)
		assert.False(t, applied[3])
	})
}
