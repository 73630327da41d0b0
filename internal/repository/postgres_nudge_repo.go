package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kansha/internal/model"
)

// PostgresNudgeRepo はPostgreSQLを使用した応援フレーズリポジトリ。
type PostgresNudgeRepo struct {
	db *sql.DB
}

// NewPostgresNudgeRepo はPostgresNudgeRepoを生成する。
func NewPostgresNudgeRepo(db *sql.DB) *PostgresNudgeRepo {
	return &PostgresNudgeRepo{db: db}
}

// ListActiveByCategory はカテゴリに属する有効なフレーズを登録順で取得する。
func (r *PostgresNudgeRepo) ListActiveByCategory(ctx context.Context, category model.NudgeCategory) ([]*model.NudgePhrase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, text, is_active, created_at
		 FROM nudge_phrases
		 WHERE category = $1 AND is_active = TRUE
		 ORDER BY created_at`,
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("応援フレーズの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var phrases []*model.NudgePhrase
	for rows.Next() {
		p := &model.NudgePhrase{}
		if err := rows.Scan(&p.ID, &p.Category, &p.Text, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("応援フレーズの読み取りに失敗しました: %w", err)
		}
		phrases = append(phrases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("応援フレーズの走査に失敗しました: %w", err)
	}

	return phrases, nil
}

// compile-time interface check
var _ NudgeRepository = (*PostgresNudgeRepo)(nil)
