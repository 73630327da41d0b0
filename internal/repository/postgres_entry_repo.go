package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kansha/internal/model"
)

// PostgresEntryRepo はPostgreSQLを使用した日次記録リポジトリ。
type PostgresEntryRepo struct {
	db *sql.DB
}

// NewPostgresEntryRepo はPostgresEntryRepoを生成する。
func NewPostgresEntryRepo(db *sql.DB) *PostgresEntryRepo {
	return &PostgresEntryRepo{db: db}
}

const entryColumns = `id, user_id, date, completed_morning, completed_evening, mood, created_at, updated_at`

// FindByID は指定IDの記録を取得する。見つからない場合はnilを返す。
func (r *PostgresEntryRepo) FindByID(ctx context.Context, id string) (*model.DailyEntry, error) {
	return scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM daily_entries WHERE id = $1`, id,
	))
}

// FindByUserAndDate はユーザーとローカル日付で記録を検索する。見つからない場合はnilを返す。
func (r *PostgresEntryRepo) FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*model.DailyEntry, error) {
	return scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM daily_entries WHERE user_id = $1 AND date = $2`,
		userID, dateOnly(date),
	))
}

// GetOrCreate はユーザーとローカル日付の記録を取得し、なければ作成する。
// スケジューラと対話エンジンの両方から呼ばれるため、
// UNIQUE(user_id, date)制約との競合時は既存行を読み直して返す。
func (r *PostgresEntryRepo) GetOrCreate(ctx context.Context, userID string, date time.Time) (*model.DailyEntry, error) {
	entry, err := r.FindByUserAndDate(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return entry, nil
	}

	now := time.Now().UTC()
	entry = &model.DailyEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Date:      dateOnly(date),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO daily_entries (id, user_id, date, completed_morning, completed_evening, created_at, updated_at)
		 VALUES ($1, $2, $3, false, false, $4, $5)
		 ON CONFLICT (user_id, date) DO NOTHING`,
		entry.ID, entry.UserID, entry.Date, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("日次記録の作成に失敗しました: %w", err)
	}

	existing, err := r.FindByUserAndDate(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return entry, nil
}

// SetCompleted は指定フローの完了フラグを更新する。
func (r *PostgresEntryRepo) SetCompleted(ctx context.Context, entryID string, flow model.Flow, completed bool) error {
	var column string
	switch flow {
	case model.FlowMorning:
		column = "completed_morning"
	case model.FlowEvening:
		column = "completed_evening"
	default:
		return fmt.Errorf("日次記録の完了フラグに対応しないフローです: %s", flow)
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE daily_entries SET `+column+` = $2, updated_at = $3 WHERE id = $1`,
		entryID, completed, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("日次記録の完了フラグ更新に失敗しました: %w", err)
	}
	return nil
}

// ListByUserInRange はユーザーの記録を日付範囲（両端含む）で昇順に返す。
func (r *PostgresEntryRepo) ListByUserInRange(ctx context.Context, userID string, from, to time.Time) ([]*model.DailyEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM daily_entries
		 WHERE user_id = $1 AND date >= $2 AND date <= $3
		 ORDER BY date`,
		userID, dateOnly(from), dateOnly(to),
	)
	if err != nil {
		return nil, fmt.Errorf("日次記録一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []*model.DailyEntry
	for rows.Next() {
		entry, err := scanEntryRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("日次記録一覧の読み取りに失敗しました: %w", err)
	}

	return entries, nil
}

// CountCompletion はユーザーの全記録の完了状況を集計する。
func (r *PostgresEntryRepo) CountCompletion(ctx context.Context, userID string) (CompletionCounts, error) {
	return r.countCompletion(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE completed_morning OR completed_evening),
		        COUNT(*) FILTER (WHERE completed_morning AND completed_evening)
		 FROM daily_entries WHERE user_id = $1`,
		userID,
	)
}

// CountCompletionInRange は日付範囲（両端含む）の完了状況を集計する。
func (r *PostgresEntryRepo) CountCompletionInRange(ctx context.Context, userID string, from, to time.Time) (CompletionCounts, error) {
	return r.countCompletion(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE completed_morning OR completed_evening),
		        COUNT(*) FILTER (WHERE completed_morning AND completed_evening)
		 FROM daily_entries WHERE user_id = $1 AND date >= $2 AND date <= $3`,
		userID, dateOnly(from), dateOnly(to),
	)
}

func (r *PostgresEntryRepo) countCompletion(ctx context.Context, query string, args ...any) (CompletionCounts, error) {
	var counts CompletionCounts
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&counts.Total, &counts.Any, &counts.Full)
	if err != nil {
		return CompletionCounts{}, fmt.Errorf("日次記録の集計に失敗しました: %w", err)
	}
	return counts, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row *sql.Row) (*model.DailyEntry, error) {
	entry, err := scanEntryRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

func scanEntryRow(s rowScanner) (*model.DailyEntry, error) {
	entry := &model.DailyEntry{}
	var mood sql.NullInt64

	err := s.Scan(
		&entry.ID, &entry.UserID, &entry.Date,
		&entry.CompletedMorning, &entry.CompletedEvening,
		&mood, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("日次記録の取得に失敗しました: %w", err)
	}

	if mood.Valid {
		m := int(mood.Int64)
		entry.Mood = &m
	}
	entry.Date = entry.Date.UTC()

	return entry, nil
}

// dateOnly は日付キー比較のため時刻成分を落とす。
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// compile-time interface check
var _ EntryRepository = (*PostgresEntryRepo)(nil)
