package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kansha/internal/model"
)

// PostgresStreakRepo はPostgreSQLを使用したストリーク状態リポジトリ。
type PostgresStreakRepo struct {
	db *sql.DB
}

// NewPostgresStreakRepo はPostgresStreakRepoを生成する。
func NewPostgresStreakRepo(db *sql.DB) *PostgresStreakRepo {
	return &PostgresStreakRepo{db: db}
}

// FindByUser はユーザーのストリーク状態を取得する。見つからない場合はnilを返す。
func (r *PostgresStreakRepo) FindByUser(ctx context.Context, userID string) (*model.StreakState, error) {
	state := &model.StreakState{}
	var lastCompleted sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, current_streak, best_streak, last_completed_date, updated_at
		 FROM streak_states WHERE user_id = $1`,
		userID,
	).Scan(&state.ID, &state.UserID, &state.CurrentStreak, &state.BestStreak,
		&lastCompleted, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ストリーク状態の取得に失敗しました: %w", err)
	}

	if lastCompleted.Valid {
		t := lastCompleted.Time.UTC()
		state.LastCompletedDate = &t
	}

	return state, nil
}

// GetOrCreate はユーザーのストリーク状態を取得し、なければゼロ値で作成する。
func (r *PostgresStreakRepo) GetOrCreate(ctx context.Context, userID string) (*model.StreakState, error) {
	state, err := r.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}

	state = &model.StreakState{
		ID:        uuid.New().String(),
		UserID:    userID,
		UpdatedAt: time.Now().UTC(),
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO streak_states (id, user_id, current_streak, best_streak, updated_at)
		 VALUES ($1, $2, 0, 0, $3)
		 ON CONFLICT (user_id) DO NOTHING`,
		state.ID, state.UserID, state.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ストリーク状態の作成に失敗しました: %w", err)
	}

	// 同時作成に負けた場合は既存行を読み直す
	existing, err := r.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return state, nil
}

// Update はストリーク状態を上書き更新する。
func (r *PostgresStreakRepo) Update(ctx context.Context, state *model.StreakState) error {
	state.UpdatedAt = time.Now().UTC()

	var lastCompleted any
	if state.LastCompletedDate != nil {
		lastCompleted = *state.LastCompletedDate
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE streak_states SET
		    current_streak = $2, best_streak = $3, last_completed_date = $4, updated_at = $5
		 WHERE user_id = $1`,
		state.UserID, state.CurrentStreak, state.BestStreak, lastCompleted, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ストリーク状態の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ StreakRepository = (*PostgresStreakRepo)(nil)
