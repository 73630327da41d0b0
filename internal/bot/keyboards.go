// Package bot は受信メッセージをユースケースに振り分けるルーターを提供する。
package bot

import "github.com/hitoshi/kansha/internal/conversation"

// メインメニューのボタン文言。ルーターは文言との完全一致で選択を読み取る。
const (
	LabelMorning  = "☀️ 朝の記録"
	LabelEvening  = "🌙 夜の記録"
	LabelWeek     = "📅 週の振り返り"
	LabelToday    = "📖 今日の記録"
	LabelHistory  = "🗂 履歴"
	LabelStats    = "📊 統計"
	LabelSettings = "⚙️ 設定"
)

// 履歴サブメニュー。
const (
	LabelHistoryByDate = "🗓 日付で見る"
	LabelHistorySearch = "🔍 検索"
)

// 統計サブメニュー。
const (
	LabelStatsGeneral = "📋 全体"
	LabelStatsChart   = "📈 14日間"
	LabelStatsWeekday = "📊 曜日別"
	LabelStatsTopics  = "💬 よく出る言葉"
)

// 設定サブメニュー。
const (
	LabelSetTimezone   = "🌏 タイムゾーン"
	LabelSetMorning    = "⏰ 朝の時刻"
	LabelSetEvening    = "⏰ 夜の時刻"
	LabelSetWeekStart  = "📅 週の開始曜日"
	LabelToggleMorning = "☀️ 朝リマインダー切替"
	LabelToggleEvening = "🌙 夜リマインダー切替"
	LabelToggleMissed  = "🔔 記録忘れ通知切替"
)

// 日付・曜日入力のショートカット。
const (
	LabelDateToday     = "今日"
	LabelDateYesterday = "昨日"
	LabelDateTwoAgo    = "一昨日"
	LabelWeekdayMonday = "月曜日"
	LabelWeekdaySunday = "日曜日"
)

// MainMenu はメインメニューのキーボードを返す。
func MainMenu() [][]string {
	return [][]string{
		{LabelMorning, LabelEvening},
		{LabelWeek, LabelToday},
		{LabelHistory, LabelStats},
		{LabelSettings},
	}
}

func historyMenu() [][]string {
	return [][]string{
		{LabelHistoryByDate, LabelHistorySearch},
		{LabelStatsChart},
		{conversation.LabelCancel},
	}
}

func statsMenu() [][]string {
	return [][]string{
		{LabelStatsGeneral, LabelStatsChart},
		{LabelStatsWeekday, LabelStatsTopics},
		{conversation.LabelCancel},
	}
}

func settingsMenu() [][]string {
	return [][]string{
		{LabelSetTimezone, LabelSetWeekStart},
		{LabelSetMorning, LabelSetEvening},
		{LabelToggleMorning, LabelToggleEvening},
		{LabelToggleMissed},
		{conversation.LabelCancel},
	}
}

func cancelOnly() [][]string {
	return [][]string{{conversation.LabelCancel}}
}

func dateShortcuts() [][]string {
	return [][]string{
		{LabelDateToday, LabelDateYesterday, LabelDateTwoAgo},
		{conversation.LabelCancel},
	}
}

// timezoneChoices はよく使われるタイムゾーンのプリセット。
// ボタンの文面はそのままタイムゾーン指定として解釈できる。
func timezoneChoices() [][]string {
	return [][]string{
		{"Asia/Tokyo", "UTC"},
		{"America/New_York", "Europe/London"},
		{conversation.LabelCancel},
	}
}

func weekdayChoices() [][]string {
	return [][]string{
		{LabelWeekdayMonday, LabelWeekdaySunday},
		{conversation.LabelCancel},
	}
}
