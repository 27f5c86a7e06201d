package drinks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound は指定したドリンクが存在しない場合のエラー。
	ErrNotFound = errors.New("ドリンクが見つからない")
	// ErrDuplicateTitle は同名のドリンクが既に存在する場合のエラー。
	ErrDuplicateTitle = errors.New("同名のドリンクが既に存在する")
)

// Store はドリンクの永続化を担う。
type Store struct {
	db *sql.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Patch はドリンクの部分更新内容。nilのフィールドは変更しない。
type Patch struct {
	// Title は新しいドリンク名。
	Title *string
	// Recipe は新しいレシピ。
	Recipe *Recipe
}

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDrink(row rowScanner) (Drink, error) {
	var (
		d      Drink
		recipe string
	)
	if err := row.Scan(&d.ID, &d.Title, &recipe); err != nil {
		return Drink{}, err
	}
	if err := json.Unmarshal([]byte(recipe), &d.Recipe); err != nil {
		return Drink{}, fmt.Errorf("ドリンク %d のレシピ解析に失敗: %w", d.ID, err)
	}
	return d, nil
}

// List は全ドリンクをID順に返す。
func (s *Store) List(ctx context.Context) ([]Drink, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, title, recipe FROM drinks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("ドリンク一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	drinks := []Drink{}
	for rows.Next() {
		d, err := scanDrink(rows)
		if err != nil {
			return nil, err
		}
		drinks = append(drinks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ドリンク一覧の走査に失敗: %w", err)
	}
	return drinks, nil
}

// Get は指定IDのドリンクを返す。存在しない場合はErrNotFoundを返す。
func (s *Store) Get(ctx context.Context, id int64) (Drink, error) {
	return getDrink(ctx, s.db, id)
}

// queryRower はsql.DBとsql.Txの共通部分。
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDrink(ctx context.Context, q queryRower, id int64) (Drink, error) {
	d, err := scanDrink(q.QueryRowContext(ctx, "SELECT id, title, recipe FROM drinks WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Drink{}, ErrNotFound
	}
	if err != nil {
		return Drink{}, fmt.Errorf("ドリンク %d の取得に失敗: %w", id, err)
	}
	return d, nil
}

// Create はドリンクを検証して保存し、採番されたIDを含むドリンクを返す。
func (s *Store) Create(ctx context.Context, d Drink) (Drink, error) {
	if err := d.Validate(); err != nil {
		return Drink{}, err
	}
	recipe, err := json.Marshal(d.Recipe)
	if err != nil {
		return Drink{}, fmt.Errorf("レシピのエンコードに失敗: %w", err)
	}

	res, err := s.db.ExecContext(ctx, "INSERT INTO drinks (title, recipe) VALUES (?, ?)", d.Title, string(recipe))
	if err != nil {
		return Drink{}, classifyWriteError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Drink{}, fmt.Errorf("採番IDの取得に失敗: %w", err)
	}
	d.ID = id
	return d, nil
}

// Update は指定IDのドリンクに部分更新を適用し、更新後のドリンクを返す。
func (s *Store) Update(ctx context.Context, id int64, patch Patch) (Drink, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Drink{}, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	d, err := getDrink(ctx, tx, id)
	if err != nil {
		return Drink{}, err
	}
	if patch.Title != nil {
		d.Title = *patch.Title
	}
	if patch.Recipe != nil {
		d.Recipe = *patch.Recipe
	}
	if err := d.Validate(); err != nil {
		return Drink{}, err
	}

	recipe, err := json.Marshal(d.Recipe)
	if err != nil {
		return Drink{}, fmt.Errorf("レシピのエンコードに失敗: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE drinks SET title = ?, recipe = ?, updated_at = datetime('now') WHERE id = ?",
		d.Title, string(recipe), id,
	); err != nil {
		return Drink{}, classifyWriteError(err)
	}
	if err := tx.Commit(); err != nil {
		return Drink{}, fmt.Errorf("コミットに失敗: %w", err)
	}
	return d, nil
}

// Delete は指定IDのドリンクを削除する。存在しない場合はErrNotFoundを返す。
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM drinks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("ドリンク %d の削除に失敗: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// classifyWriteError はSQLiteの制約違反をドメインエラーに変換する。
func classifyWriteError(err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return ErrDuplicateTitle
		case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return fmt.Errorf("%w: %w", ErrInvalidDrink, err)
		}
	}
	return fmt.Errorf("ドリンクの書き込みに失敗: %w", err)
}
