package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/recipebox/internal/model"
)

// PostgresTokenRepo はPostgreSQLを使用した認証トークンリポジトリ。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// FindByKey はキーでトークンを取得する。見つからない場合はnilを返す。
func (r *PostgresTokenRepo) FindByKey(ctx context.Context, key string) (*model.AuthToken, error) {
	token := &model.AuthToken{}
	err := r.db.QueryRowContext(ctx,
		`SELECT key, user_id, created_at FROM auth_tokens WHERE key = $1`,
		key,
	).Scan(&token.Key, &token.UserID, &token.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}

	return token, nil
}

// GetOrCreate はユーザーの既存トークンを返す。存在しなければtokenを保存して返す。
// 同時リクエストでもuser_idの一意制約により1ユーザー1トークンが保たれる。
func (r *PostgresTokenRepo) GetOrCreate(ctx context.Context, token *model.AuthToken) (*model.AuthToken, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_tokens (key, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO NOTHING`,
		token.Key, token.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	stored := &model.AuthToken{}
	err = r.db.QueryRowContext(ctx,
		`SELECT key, user_id, created_at FROM auth_tokens WHERE user_id = $1`,
		token.UserID,
	).Scan(&stored.Key, &stored.UserID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	return stored, nil
}

// compile-time interface check
var _ TokenRepository = (*PostgresTokenRepo)(nil)
