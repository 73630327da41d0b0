package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/kansha/internal/clock"
	"github.com/hitoshi/kansha/internal/conversation"
	"github.com/hitoshi/kansha/internal/model"
)

// handleSettingsInput はセッションなし状態での設定メニューの選択を処理する。
// 設定関連のボタンでなければhandled=falseを返し、呼び出し側が他の解釈を続ける。
func (r *Router) handleSettingsInput(ctx context.Context, userID string, st *model.Settings, text string) (conversation.Reply, bool, error) {
	switch text {
	case LabelSettings:
		return conversation.Reply{Text: settingsSummary(st), Options: settingsMenu()}, true, nil

	case LabelSetTimezone:
		if err := r.saveMenuSession(ctx, userID, stateTimezone); err != nil {
			return conversation.Reply{}, true, err
		}
		return conversation.Reply{
			Text:    "タイムゾーンを選ぶか、入力してください。\n例: Asia/Tokyo、UTC+9、UTC-5:30",
			Options: timezoneChoices(),
		}, true, nil

	case LabelSetMorning:
		if err := r.saveMenuSession(ctx, userID, stateMorningTime); err != nil {
			return conversation.Reply{}, true, err
		}
		return conversation.Reply{
			Text:    fmt.Sprintf("朝のリマインダー時刻をHH:MM形式で入力してください。\n現在: %s", st.MorningTime),
			Options: cancelOnly(),
		}, true, nil

	case LabelSetEvening:
		if err := r.saveMenuSession(ctx, userID, stateEveningTime); err != nil {
			return conversation.Reply{}, true, err
		}
		return conversation.Reply{
			Text:    fmt.Sprintf("夜のリマインダー時刻をHH:MM形式で入力してください。\n現在: %s", st.EveningTime),
			Options: cancelOnly(),
		}, true, nil

	case LabelSetWeekStart:
		if err := r.saveMenuSession(ctx, userID, stateWeekStart); err != nil {
			return conversation.Reply{}, true, err
		}
		return conversation.Reply{Text: "週の開始曜日を選んでください。", Options: weekdayChoices()}, true, nil

	case LabelToggleMorning:
		st.MorningEnabled = !st.MorningEnabled
		reply, err := r.applyToggle(ctx, st, "朝のリマインダー", st.MorningEnabled)
		return reply, true, err
	case LabelToggleEvening:
		st.EveningEnabled = !st.EveningEnabled
		reply, err := r.applyToggle(ctx, st, "夜のリマインダー", st.EveningEnabled)
		return reply, true, err
	case LabelToggleMissed:
		st.NotifyMissedDays = !st.NotifyMissedDays
		reply, err := r.applyToggle(ctx, st, "記録忘れの通知", st.NotifyMissedDays)
		return reply, true, err
	}

	return conversation.Reply{}, false, nil
}

// applyToggle はトグル済みの設定を保存して結果を表示する。
func (r *Router) applyToggle(ctx context.Context, st *model.Settings, name string, enabled bool) (conversation.Reply, error) {
	if err := r.settings.Update(ctx, st); err != nil {
		return conversation.Reply{}, fmt.Errorf("設定の更新に失敗しました: %w", err)
	}
	return conversation.Reply{
		Text:    fmt.Sprintf("%sを%sにしました。\n\n%s", name, onOff(enabled), settingsSummary(st)),
		Options: settingsMenu(),
	}, nil
}

// handleSettingsState はメニューセッション中の設定値入力を処理する。
// 解釈できない入力はセッションを残したまま再プロンプトする。
func (r *Router) handleSettingsState(ctx context.Context, userID string, st *model.Settings, state, text string) (conversation.Reply, error) {
	switch state {
	case stateTimezone:
		if !clock.Valid(text) {
			return conversation.Reply{
				Text:    "タイムゾーンを読み取れませんでした。\n例: Asia/Tokyo、UTC+9、UTC-5:30",
				Options: timezoneChoices(),
			}, nil
		}
		st.Timezone = strings.TrimSpace(text)

	case stateMorningTime:
		tod, err := model.ParseTimeOfDay(text)
		if err != nil {
			return conversation.Reply{
				Text:    "時刻を読み取れませんでした。HH:MM形式で入力してください。",
				Options: cancelOnly(),
			}, nil
		}
		st.MorningTime = tod

	case stateEveningTime:
		tod, err := model.ParseTimeOfDay(text)
		if err != nil {
			return conversation.Reply{
				Text:    "時刻を読み取れませんでした。HH:MM形式で入力してください。",
				Options: cancelOnly(),
			}, nil
		}
		st.EveningTime = tod

	case stateWeekStart:
		switch text {
		case LabelWeekdayMonday:
			st.WeekStart = 1
		case LabelWeekdaySunday:
			st.WeekStart = 7
		default:
			return conversation.Reply{Text: "ボタンから選んでください。", Options: weekdayChoices()}, nil
		}
	}

	if err := r.settings.Update(ctx, st); err != nil {
		return conversation.Reply{}, fmt.Errorf("設定の更新に失敗しました: %w", err)
	}
	if err := r.sessions.Delete(ctx, userID); err != nil {
		return conversation.Reply{}, err
	}

	return conversation.Reply{
		Text:    "設定を更新しました。\n\n" + settingsSummary(st),
		Options: settingsMenu(),
	}, nil
}

// settingsSummary は現在の設定の一覧表示を組み立てる。
func settingsSummary(st *model.Settings) string {
	var b strings.Builder
	b.WriteString("⚙️ 現在の設定\n\n")
	fmt.Fprintf(&b, "🌏 タイムゾーン: %s\n", st.Timezone)
	fmt.Fprintf(&b, "☀️ 朝のリマインダー: %s（%s）\n", onOff(st.MorningEnabled), st.MorningTime)
	fmt.Fprintf(&b, "🌙 夜のリマインダー: %s（%s）\n", onOff(st.EveningEnabled), st.EveningTime)
	fmt.Fprintf(&b, "📅 週の開始: %s\n", weekStartName(st.WeekStart))
	fmt.Fprintf(&b, "🔔 記録忘れの通知: %s", onOff(st.NotifyMissedDays))
	return b.String()
}

func onOff(enabled bool) string {
	if enabled {
		return "オン"
	}
	return "オフ"
}

func weekStartName(weekStart int) string {
	if weekStart == 7 {
		return LabelWeekdaySunday
	}
	return LabelWeekdayMonday
}
