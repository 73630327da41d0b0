package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kansha/internal/model"
)

// PostgresQuestionRepo はPostgreSQLを使用した質問テンプレートリポジトリ。
type PostgresQuestionRepo struct {
	db *sql.DB
}

// NewPostgresQuestionRepo はPostgresQuestionRepoを生成する。
func NewPostgresQuestionRepo(db *sql.DB) *PostgresQuestionRepo {
	return &PostgresQuestionRepo{db: db}
}

const questionColumns = `id, code, text, period, ord, is_active, created_at`

// FindByID は指定IDのテンプレートを取得する。見つからない場合はnilを返す。
func (r *PostgresQuestionRepo) FindByID(ctx context.Context, id string) (*model.QuestionTemplate, error) {
	q := &model.QuestionTemplate{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM question_templates WHERE id = $1`, id,
	).Scan(&q.ID, &q.Code, &q.Text, &q.Period, &q.Order, &q.IsActive, &q.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("質問テンプレートの取得に失敗しました: %w", err)
	}
	return q, nil
}

// ListActiveByPeriod は指定時間帯のアクティブな質問をorder昇順で返す。
func (r *PostgresQuestionRepo) ListActiveByPeriod(ctx context.Context, period model.Period) ([]*model.QuestionTemplate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM question_templates
		 WHERE period = $1 AND is_active = true
		 ORDER BY ord, created_at`,
		string(period),
	)
	if err != nil {
		return nil, fmt.Errorf("質問テンプレート一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var questions []*model.QuestionTemplate
	for rows.Next() {
		q := &model.QuestionTemplate{}
		if err := rows.Scan(&q.ID, &q.Code, &q.Text, &q.Period, &q.Order, &q.IsActive, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("質問テンプレートのスキャンに失敗しました: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("質問テンプレート一覧の読み取りに失敗しました: %w", err)
	}

	return questions, nil
}

// CountByPeriod は指定時間帯の質問数（非アクティブ含む）を返す。
// 既定質問のシード判定に使用する。
func (r *PostgresQuestionRepo) CountByPeriod(ctx context.Context, period model.Period) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM question_templates WHERE period = $1`,
		string(period),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("質問テンプレート数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Create は質問テンプレートを作成する。
func (r *PostgresQuestionRepo) Create(ctx context.Context, q *model.QuestionTemplate) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO question_templates (id, code, text, period, ord, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (code) DO NOTHING`,
		q.ID, q.Code, q.Text, string(q.Period), q.Order, q.IsActive, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("質問テンプレートの作成に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ QuestionRepository = (*PostgresQuestionRepo)(nil)
