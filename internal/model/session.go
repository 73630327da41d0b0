package model

import "time"

// Flow は複数ステップの対話の種別を表す。
type Flow string

const (
	// FlowMorning は朝の質問フロー。
	FlowMorning Flow = "morning"
	// FlowEvening は夜の質問フロー。
	FlowEvening Flow = "evening"
	// FlowWeek は週の振り返りフロー。
	FlowWeek Flow = "week"
	// FlowMenu はメニュー操作の入力待ち状態（履歴の日付入力や設定変更など）。
	FlowMenu Flow = "menu"
)

// Session はユーザーごとの進行中対話の状態を表す。ユーザーにつき最大1件。
// フロー完了またはキャンセル時に削除される短命なレコードで、
// 同一ユーザーで別フローを開始すると古いセッションは暗黙に上書きされる。
type Session struct {
	ID          string
	UserID      string
	Flow        Flow
	State       string   // フロー内の画面状態。質問フローでは空、メニュー入力待ちで使用
	TargetID    string   // 対象のDailyEntry/WeeklyCycleのID
	QuestionIDs []string // 開始時点の質問列のスナップショット。途中でテンプレートが変わってもずれない
	Step        int
	UpdatedAt   time.Time
}
