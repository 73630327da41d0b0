package model

import "time"

// DailyEntry は1日分の記録を表す。ユーザー＋ローカル日付ごとに1件。
// 該当日に初めてアクセスされた時点で遅延作成され、削除されることはない。
type DailyEntry struct {
	ID               string
	UserID           string
	Date             time.Time // ユーザーのローカル日付（時刻成分は持たない）
	CompletedMorning bool
	CompletedEvening bool
	Mood             *int // 1-5、未記録ならnil
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Answer はある日のある質問に対するユーザーの回答を表す。
// question_textは回答時点の質問文のスナップショットで、
// 後からQuestionTemplateが変更されても履歴は変わらない。
type Answer struct {
	ID           string
	DailyEntryID string
	QuestionID   string // QuestionTemplateのID。テンプレート削除後は空
	QuestionText string
	AnswerText   string
	CreatedAt    time.Time
}
