// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
	"time"
)

// User はボットの利用ユーザーを表す。
// パスワードやログインは持たず、全てtelegram_idで識別する。
type User struct {
	ID         string
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	CreatedAt  time.Time
}

// DisplayName はユーザーの表示名を返す。
// usernameがあればusername、なければfirst_name、どちらもなければ固定文言。
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "ユーザー"
}

// Settings はユーザーごとのリマインダー設定とボットの動作設定を表す。
// Userと1:1で、初回接触時に遅延作成される。
type Settings struct {
	ID               string
	UserID           string
	Timezone         string
	MorningEnabled   bool
	EveningEnabled   bool
	MorningTime      TimeOfDay
	EveningTime      TimeOfDay
	WeekStart        int // 1 = 月曜, 7 = 日曜（ISO）
	NotifyMissedDays bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DefaultSettings は新規ユーザーに適用される既定の設定を返す。
func DefaultSettings(userID string) *Settings {
	return &Settings{
		UserID:           userID,
		Timezone:         "Asia/Tokyo",
		MorningEnabled:   true,
		EveningEnabled:   true,
		MorningTime:      TimeOfDay{Hour: 8, Minute: 0},
		EveningTime:      TimeOfDay{Hour: 21, Minute: 0},
		WeekStart:        1,
		NotifyMissedDays: true,
	}
}

// TimeOfDay は日内の時刻（時:分）を表す。リマインダー時刻の保持に使用する。
type TimeOfDay struct {
	Hour   int
	Minute int
}

// String はHH:MM形式の文字列を返す。スケジューラの分単位一致判定にも使用する。
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay はユーザー入力のHH:MM形式を解釈する。
// 解釈できない場合はエラーを返す（再プロンプト用）。
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &hour, &minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("時刻として解釈できません: %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("時刻の範囲が不正です: %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}
