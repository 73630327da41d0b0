package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kansha/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用した会話セッションリポジトリ。
// セッションはユーザーごとに最大1件で、user_idのUNIQUE制約で保証される。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Find はユーザーの進行中セッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) Find(ctx context.Context, userID string) (*model.Session, error) {
	session := &model.Session{}
	var targetID sql.NullString
	var questionIDs sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, flow, state, target_id, question_ids, step, updated_at
		 FROM sessions WHERE user_id = $1`,
		userID,
	).Scan(&session.ID, &session.UserID, &session.Flow, &session.State,
		&targetID, &questionIDs, &session.Step, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}

	session.TargetID = targetID.String
	session.QuestionIDs = splitQuestionIDs(questionIDs.String)

	return session, nil
}

// Save はセッションを保存する。ユーザーに既存セッションがあれば上書きする。
func (r *PostgresSessionRepo) Save(ctx context.Context, session *model.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	session.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, flow, state, target_id, question_ids, step, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id) DO UPDATE SET
		    flow = EXCLUDED.flow,
		    state = EXCLUDED.state,
		    target_id = EXCLUDED.target_id,
		    question_ids = EXCLUDED.question_ids,
		    step = EXCLUDED.step,
		    updated_at = EXCLUDED.updated_at`,
		session.ID, session.UserID, session.Flow, session.State,
		nullString(session.TargetID), nullString(joinQuestionIDs(session.QuestionIDs)),
		session.Step, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}
	return nil
}

// Delete はユーザーのセッションを削除する。セッションが無い場合もエラーとしない。
func (r *PostgresSessionRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func joinQuestionIDs(ids []string) string {
	return strings.Join(ids, ",")
}

func splitQuestionIDs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
