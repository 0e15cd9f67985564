package store

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore はPostgreSQLを使用したStore実装。
// 全コレクションを単一のcollectionsテーブルにキー/JSON値として保存する。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load は指定キーのデータを返す。行が存在しない場合は(nil, nil)を返す。
func (s *PostgresStore) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM collections WHERE key = $1`,
		key,
	).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %q: %w", key, err)
	}

	return data, nil
}

// Save は指定キーにデータをUPSERTする（全コレクション置換）。
func (s *PostgresStore) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (key, data, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE
		 SET data = EXCLUDED.data, updated_at = now()`,
		key, string(data), // lib/pqは[]byteをbyteaとして送るため、JSONBにはstringで渡す
	)
	if err != nil {
		return fmt.Errorf("failed to save collection %q: %w", key, err)
	}
	return nil
}

// compile-time interface check
var _ Store = (*PostgresStore)(nil)
