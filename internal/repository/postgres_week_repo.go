package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kansha/internal/model"
)

// PostgresWeekRepo はPostgreSQLを使用した週課題・週次記録リポジトリ。
type PostgresWeekRepo struct {
	db *sql.DB
}

// NewPostgresWeekRepo はPostgresWeekRepoを生成する。
func NewPostgresWeekRepo(db *sql.DB) *PostgresWeekRepo {
	return &PostgresWeekRepo{db: db}
}

const cycleColumns = `id, user_id, task_id, week_start, week_end,
	mid_reflection, final_reflection, is_completed, created_at`

// FindCycleByID は指定IDの週次記録を取得する。見つからない場合はnilを返す。
func (r *PostgresWeekRepo) FindCycleByID(ctx context.Context, id string) (*model.WeeklyCycle, error) {
	return scanCycle(r.db.QueryRowContext(ctx,
		`SELECT `+cycleColumns+` FROM weekly_cycles WHERE id = $1`, id,
	))
}

// GetOrCreateCycle はユーザーと週開始日の記録を取得し、なければ作成する。
// 週開始日設定の変更で既存行のweek_endがずれた場合は補正する。
func (r *PostgresWeekRepo) GetOrCreateCycle(ctx context.Context, userID string, weekStart, weekEnd time.Time) (*model.WeeklyCycle, bool, error) {
	weekStart = dateOnly(weekStart)
	weekEnd = dateOnly(weekEnd)

	cycle, err := r.findCycleByUserAndStart(ctx, userID, weekStart)
	if err != nil {
		return nil, false, err
	}

	if cycle != nil {
		if !cycle.WeekEnd.Equal(weekEnd) {
			_, err := r.db.ExecContext(ctx,
				`UPDATE weekly_cycles SET week_end = $2 WHERE id = $1`,
				cycle.ID, weekEnd,
			)
			if err != nil {
				return nil, false, fmt.Errorf("週次記録のweek_end補正に失敗しました: %w", err)
			}
			cycle.WeekEnd = weekEnd
		}
		return cycle, false, nil
	}

	cycle = &model.WeeklyCycle{
		ID:        uuid.New().String(),
		UserID:    userID,
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
		CreatedAt: time.Now().UTC(),
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO weekly_cycles (id, user_id, week_start, week_end, mid_reflection, final_reflection, is_completed, created_at)
		 VALUES ($1, $2, $3, $4, '', '', false, $5)
		 ON CONFLICT (user_id, week_start) DO NOTHING`,
		cycle.ID, cycle.UserID, cycle.WeekStart, cycle.WeekEnd, cycle.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("週次記録の作成に失敗しました: %w", err)
	}

	// 同時作成に負けた場合は既存行を読み直す
	existing, err := r.findCycleByUserAndStart(ctx, userID, weekStart)
	if err != nil {
		return nil, false, err
	}
	if existing != nil && existing.ID != cycle.ID {
		return existing, false, nil
	}
	return cycle, true, nil
}

// FindCycleCovering は指定日を含む週次記録を検索する。見つからない場合はnilを返す。
func (r *PostgresWeekRepo) FindCycleCovering(ctx context.Context, userID string, date time.Time) (*model.WeeklyCycle, error) {
	return scanCycle(r.db.QueryRowContext(ctx,
		`SELECT `+cycleColumns+` FROM weekly_cycles
		 WHERE user_id = $1 AND week_start <= $2 AND week_end >= $2`,
		userID, dateOnly(date),
	))
}

// BindTask は週次記録に課題を紐付ける。
func (r *PostgresWeekRepo) BindTask(ctx context.Context, cycleID, taskID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE weekly_cycles SET task_id = $2 WHERE id = $1`,
		cycleID, taskID,
	)
	if err != nil {
		return fmt.Errorf("週課題の紐付けに失敗しました: %w", err)
	}
	return nil
}

// SaveReflectionWithSessionStep は振り返りの保存とセッションのステップ前進を
// 単一トランザクションで行う。stepが0なら中間振り返り、1なら最終振り返り。
func (r *PostgresWeekRepo) SaveReflectionWithSessionStep(ctx context.Context, cycleID string, step int, text string, userID string, nextStep int) error {
	var column string
	switch step {
	case 0:
		column = "mid_reflection"
	case 1:
		column = "final_reflection"
	default:
		return fmt.Errorf("週の振り返りに対応しないステップです: %d", step)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE weekly_cycles SET `+column+` = $2 WHERE id = $1`,
		cycleID, text,
	)
	if err != nil {
		return fmt.Errorf("週の振り返りの保存に失敗しました: %w", err)
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

// CompleteCycle は週次記録を完了にする。
func (r *PostgresWeekRepo) CompleteCycle(ctx context.Context, cycleID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE weekly_cycles SET is_completed = true WHERE id = $1`,
		cycleID,
	)
	if err != nil {
		return fmt.Errorf("週次記録の完了更新に失敗しました: %w", err)
	}
	return nil
}

// ResetCycle は振り返りと完了フラグをクリアする。
func (r *PostgresWeekRepo) ResetCycle(ctx context.Context, cycleID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE weekly_cycles SET mid_reflection = '', final_reflection = '', is_completed = false
		 WHERE id = $1`,
		cycleID,
	)
	if err != nil {
		return fmt.Errorf("週次記録のリセットに失敗しました: %w", err)
	}
	return nil
}

// ListCyclesSince は指定日以降に始まる週次記録を週開始日の新しい順に返す。
func (r *PostgresWeekRepo) ListCyclesSince(ctx context.Context, userID string, since time.Time) ([]*model.WeeklyCycle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cycleColumns+` FROM weekly_cycles
		 WHERE user_id = $1 AND week_start >= $2
		 ORDER BY week_start DESC`,
		userID, dateOnly(since),
	)
	if err != nil {
		return nil, fmt.Errorf("週次記録一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var cycles []*model.WeeklyCycle
	for rows.Next() {
		cycle, err := scanCycleRow(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, cycle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("週次記録一覧の読み取りに失敗しました: %w", err)
	}

	return cycles, nil
}

// CountCycles はユーザーの週次記録の総数と完了数を返す。
func (r *PostgresWeekRepo) CountCycles(ctx context.Context, userID string) (int, int, error) {
	var total, completed int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_completed)
		 FROM weekly_cycles WHERE user_id = $1`,
		userID,
	).Scan(&total, &completed)
	if err != nil {
		return 0, 0, fmt.Errorf("週次記録の集計に失敗しました: %w", err)
	}
	return total, completed, nil
}

// FindActiveTask は指定ISO週のアクティブな課題を検索する。見つからない場合はnilを返す。
func (r *PostgresWeekRepo) FindActiveTask(ctx context.Context, isoYear, isoWeek int) (*model.WeeklyTask, error) {
	return r.scanTask(r.db.QueryRowContext(ctx,
		`SELECT id, title, description, is_active, iso_year, iso_week, created_at
		 FROM weekly_tasks
		 WHERE iso_year = $1 AND iso_week = $2 AND is_active = true`,
		isoYear, isoWeek,
	))
}

// FindTaskByID は指定IDの課題を取得する。見つからない場合はnilを返す。
func (r *PostgresWeekRepo) FindTaskByID(ctx context.Context, id string) (*model.WeeklyTask, error) {
	return r.scanTask(r.db.QueryRowContext(ctx,
		`SELECT id, title, description, is_active, iso_year, iso_week, created_at
		 FROM weekly_tasks WHERE id = $1`,
		id,
	))
}

func (r *PostgresWeekRepo) scanTask(row *sql.Row) (*model.WeeklyTask, error) {
	task := &model.WeeklyTask{}
	err := row.Scan(&task.ID, &task.Title, &task.Description, &task.IsActive,
		&task.ISOYear, &task.ISOWeek, &task.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("週課題の取得に失敗しました: %w", err)
	}
	return task, nil
}

func (r *PostgresWeekRepo) findCycleByUserAndStart(ctx context.Context, userID string, weekStart time.Time) (*model.WeeklyCycle, error) {
	return scanCycle(r.db.QueryRowContext(ctx,
		`SELECT `+cycleColumns+` FROM weekly_cycles
		 WHERE user_id = $1 AND week_start = $2`,
		userID, weekStart,
	))
}

func scanCycle(row *sql.Row) (*model.WeeklyCycle, error) {
	cycle, err := scanCycleRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return cycle, nil
}

func scanCycleRow(s rowScanner) (*model.WeeklyCycle, error) {
	cycle := &model.WeeklyCycle{}
	var taskID sql.NullString

	err := s.Scan(
		&cycle.ID, &cycle.UserID, &taskID,
		&cycle.WeekStart, &cycle.WeekEnd,
		&cycle.MidReflection, &cycle.FinalReflection,
		&cycle.IsCompleted, &cycle.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("週次記録の取得に失敗しました: %w", err)
	}

	cycle.TaskID = taskID.String
	cycle.WeekStart = cycle.WeekStart.UTC()
	cycle.WeekEnd = cycle.WeekEnd.UTC()

	return cycle, nil
}

// compile-time interface check
var _ WeekRepository = (*PostgresWeekRepo)(nil)
