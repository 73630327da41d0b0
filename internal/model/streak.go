package model

import "time"

// StreakState はユーザーの連続記録（ストリーク）の状態を表す。
// 毎回集計し直さないよう、現在値と最高記録を保持する。
// current_streak <= best_streak が常に成り立つ。
type StreakState struct {
	ID                string
	UserID            string
	CurrentStreak     int
	BestStreak        int
	LastCompletedDate *time.Time // 一度も記録がなければnil
	UpdatedAt         time.Time
}
