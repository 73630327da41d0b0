package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/kansha/internal/model"
)

// PostgresAnswerRepo はPostgreSQLを使用した回答リポジトリ。
type PostgresAnswerRepo struct {
	db *sql.DB
}

// NewPostgresAnswerRepo はPostgresAnswerRepoを生成する。
func NewPostgresAnswerRepo(db *sql.DB) *PostgresAnswerRepo {
	return &PostgresAnswerRepo{db: db}
}

// CreateWithSessionStep は回答の保存とセッションのステップ前進を
// 単一トランザクションで行う。「回答を保存したのにステップが進んでいない」
// 「回答なしでステップだけ進んだ」という中間状態を作らないための契約。
func (r *PostgresAnswerRepo) CreateWithSessionStep(ctx context.Context, answer *model.Answer, userID string, nextStep int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if answer.ID == "" {
		answer.ID = uuid.New().String()
	}
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = time.Now().UTC()
	}

	var questionID any
	if answer.QuestionID != "" {
		questionID = answer.QuestionID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO answers (id, daily_entry_id, question_id, question_text, answer_text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		answer.ID, answer.DailyEntryID, questionID,
		answer.QuestionText, answer.AnswerText, answer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("回答の保存に失敗しました: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET step = $2, updated_at = $3 WHERE user_id = $1`,
		userID, nextStep, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("セッションステップの更新に失敗しました: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ステップを進めるセッションが存在しません: user_id=%s", userID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

const answerRowColumns = `a.id, a.daily_entry_id, a.question_id, a.question_text, a.answer_text, a.created_at,
	q.period, e.date`

// ListByEntry は記録に属する回答をcreated_at昇順で返す。
func (r *PostgresAnswerRepo) ListByEntry(ctx context.Context, entryID string) ([]AnswerRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+answerRowColumns+`
		 FROM answers a
		 LEFT JOIN question_templates q ON q.id = a.question_id
		 JOIN daily_entries e ON e.id = a.daily_entry_id
		 WHERE a.daily_entry_id = $1
		 ORDER BY a.created_at`,
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("回答一覧の取得に失敗しました: %w", err)
	}
	return collectAnswerRows(rows)
}

// ListByUserInRange はユーザーの回答を日付範囲（両端含む）で新しい順に返す。
func (r *PostgresAnswerRepo) ListByUserInRange(ctx context.Context, userID string, from, to time.Time) ([]AnswerRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+answerRowColumns+`
		 FROM answers a
		 LEFT JOIN question_templates q ON q.id = a.question_id
		 JOIN daily_entries e ON e.id = a.daily_entry_id
		 WHERE e.user_id = $1 AND e.date >= $2 AND e.date <= $3
		 ORDER BY a.created_at DESC`,
		userID, dateOnly(from), dateOnly(to),
	)
	if err != nil {
		return nil, fmt.Errorf("回答一覧の取得に失敗しました: %w", err)
	}
	return collectAnswerRows(rows)
}

// Search はユーザーの回答を質問文・回答文の部分一致（ILIKE）で検索し、
// 記録日の新しい順に最大limit件返す。
func (r *PostgresAnswerRepo) Search(ctx context.Context, userID, query string, limit int) ([]AnswerRow, error) {
	pattern := "%" + escapeLike(query) + "%"

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+answerRowColumns+`
		 FROM answers a
		 LEFT JOIN question_templates q ON q.id = a.question_id
		 JOIN daily_entries e ON e.id = a.daily_entry_id
		 WHERE e.user_id = $1
		   AND (a.answer_text ILIKE $2 OR a.question_text ILIKE $2)
		 ORDER BY e.date DESC, a.created_at DESC
		 LIMIT $3`,
		userID, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("回答の検索に失敗しました: %w", err)
	}
	return collectAnswerRows(rows)
}

// DeleteByIDs は指定IDの回答を削除する。空リストは何もしない。
func (r *PostgresAnswerRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM answers WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("回答の削除に失敗しました: %w", err)
	}
	return nil
}

func collectAnswerRows(rows *sql.Rows) ([]AnswerRow, error) {
	defer rows.Close()

	var result []AnswerRow
	for rows.Next() {
		var row AnswerRow
		var questionID sql.NullString
		var period sql.NullString

		err := rows.Scan(
			&row.ID, &row.DailyEntryID, &questionID,
			&row.QuestionText, &row.AnswerText, &row.CreatedAt,
			&period, &row.EntryDate,
		)
		if err != nil {
			return nil, fmt.Errorf("回答のスキャンに失敗しました: %w", err)
		}

		row.QuestionID = questionID.String
		if period.Valid {
			row.QuestionPeriod = model.Period(period.String)
		} else {
			row.QuestionPeriod = model.PeriodOther
		}
		row.EntryDate = row.EntryDate.UTC()

		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("回答一覧の読み取りに失敗しました: %w", err)
	}

	return result, nil
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// compile-time interface check
var _ AnswerRepository = (*PostgresAnswerRepo)(nil)
