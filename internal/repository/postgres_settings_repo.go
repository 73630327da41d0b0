package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kansha/internal/model"
)

// PostgresSettingsRepo はPostgreSQLを使用したユーザー設定リポジトリ。
type PostgresSettingsRepo struct {
	db *sql.DB
}

// NewPostgresSettingsRepo はPostgresSettingsRepoを生成する。
func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

const settingsColumns = `id, user_id, timezone, morning_enabled, evening_enabled,
	morning_time, evening_time, week_start, notify_missed_days, created_at, updated_at`

// GetOrCreateByUserID はユーザーの設定を取得し、なければ既定値で作成する。
// UNIQUE(user_id)制約により必ず1件になる。
func (r *PostgresSettingsRepo) GetOrCreateByUserID(ctx context.Context, userID string) (*model.Settings, error) {
	settings, err := r.findByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		return settings, nil
	}

	now := time.Now().UTC()
	settings = model.DefaultSettings(userID)
	settings.ID = uuid.New().String()
	settings.CreatedAt = now
	settings.UpdatedAt = now

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_settings
		 (id, user_id, timezone, morning_enabled, evening_enabled,
		  morning_time, evening_time, week_start, notify_missed_days, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (user_id) DO NOTHING`,
		settings.ID, settings.UserID, settings.Timezone,
		settings.MorningEnabled, settings.EveningEnabled,
		formatTimeOfDay(settings.MorningTime), formatTimeOfDay(settings.EveningTime),
		settings.WeekStart, settings.NotifyMissedDays,
		settings.CreatedAt, settings.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザー設定の作成に失敗しました: %w", err)
	}

	// 同時作成に負けた場合は既存行を読み直す
	existing, err := r.findByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return settings, nil
}

// Update は設定を全カラム上書き更新する。
func (r *PostgresSettingsRepo) Update(ctx context.Context, settings *model.Settings) error {
	settings.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`UPDATE user_settings SET
		    timezone = $2, morning_enabled = $3, evening_enabled = $4,
		    morning_time = $5, evening_time = $6,
		    week_start = $7, notify_missed_days = $8, updated_at = $9
		 WHERE user_id = $1`,
		settings.UserID, settings.Timezone,
		settings.MorningEnabled, settings.EveningEnabled,
		formatTimeOfDay(settings.MorningTime), formatTimeOfDay(settings.EveningTime),
		settings.WeekStart, settings.NotifyMissedDays, settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザー設定の更新に失敗しました: %w", err)
	}
	return nil
}

// ListAllWithUser は全ユーザーの設定を通知先telegram_id付きで返す。
// リマインダースケジューラが毎分全件を走査するための読み取り。
func (r *PostgresSettingsRepo) ListAllWithUser(ctx context.Context) ([]SettingsWithUser, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.user_id, s.timezone, s.morning_enabled, s.evening_enabled,
		        s.morning_time, s.evening_time, s.week_start, s.notify_missed_days,
		        s.created_at, s.updated_at, u.telegram_id
		 FROM user_settings s
		 JOIN users u ON u.id = s.user_id
		 ORDER BY s.created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザー設定一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var result []SettingsWithUser
	for rows.Next() {
		var sw SettingsWithUser
		var morningTime, eveningTime string

		err := rows.Scan(
			&sw.ID, &sw.UserID, &sw.Timezone,
			&sw.MorningEnabled, &sw.EveningEnabled,
			&morningTime, &eveningTime,
			&sw.WeekStart, &sw.NotifyMissedDays,
			&sw.CreatedAt, &sw.UpdatedAt, &sw.TelegramID,
		)
		if err != nil {
			return nil, fmt.Errorf("ユーザー設定のスキャンに失敗しました: %w", err)
		}

		sw.MorningTime = parseTimeOfDay(morningTime)
		sw.EveningTime = parseTimeOfDay(eveningTime)
		result = append(result, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザー設定一覧の読み取りに失敗しました: %w", err)
	}

	return result, nil
}

func (r *PostgresSettingsRepo) findByUserID(ctx context.Context, userID string) (*model.Settings, error) {
	settings := &model.Settings{}
	var morningTime, eveningTime string

	err := r.db.QueryRowContext(ctx,
		`SELECT `+settingsColumns+` FROM user_settings WHERE user_id = $1`,
		userID,
	).Scan(
		&settings.ID, &settings.UserID, &settings.Timezone,
		&settings.MorningEnabled, &settings.EveningEnabled,
		&morningTime, &eveningTime,
		&settings.WeekStart, &settings.NotifyMissedDays,
		&settings.CreatedAt, &settings.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザー設定の取得に失敗しました: %w", err)
	}

	settings.MorningTime = parseTimeOfDay(morningTime)
	settings.EveningTime = parseTimeOfDay(eveningTime)
	return settings, nil
}

// formatTimeOfDay はTIME型カラムへ保存する文字列表現を返す。
func formatTimeOfDay(t model.TimeOfDay) string {
	return fmt.Sprintf("%02d:%02d:00", t.Hour, t.Minute)
}

// parseTimeOfDay はTIME型カラムの文字列表現（HH:MM:SS）を解釈する。
// 読み取れない値はゼロ値（00:00）として扱う。
func parseTimeOfDay(s string) model.TimeOfDay {
	var h, m, sec int
	fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec)
	return model.TimeOfDay{Hour: h, Minute: m}
}

// compile-time interface check
var _ SettingsRepository = (*PostgresSettingsRepo)(nil)
