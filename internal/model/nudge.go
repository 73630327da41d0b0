package model

import "time"

// NudgeCategory はリマインド文言の分類を表す。
type NudgeCategory string

const (
	// NudgeStreak はストリークが途切れそうな時の文言。
	NudgeStreak NudgeCategory = "streak"
	// NudgeComeback は記録が途絶えたユーザーを呼び戻す文言。
	NudgeComeback NudgeCategory = "comeback"
)

// NudgePhrase はリマインド通知で使う文言のバリエーションを表す。
// 毎回同じ文面にならないよう、アクティブな文言からローテーションで選ぶ。
type NudgePhrase struct {
	ID        string
	Text      string
	Category  NudgeCategory
	IsActive  bool
	CreatedAt time.Time
}
