package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/kansha/internal/model"
	"github.com/hitoshi/kansha/internal/repository"
	"github.com/hitoshi/kansha/internal/streak"
	"github.com/hitoshi/kansha/internal/week"
)

// FlowTarget はフロー完了の書き込み先を抽象化する。
// 日次記録（朝・夜）と週次記録（週）の2実装がある。
type FlowTarget interface {
	// Prepare は対象エンティティを解決（必要なら遅延作成）し、
	// そのIDとフローが完了済みかどうかを返す。
	Prepare(ctx context.Context, userID string, today time.Time) (targetID string, completed bool, err error)

	// SaveStep は回答の保存とセッションのステップ前進を単一トランザクションで行う。
	SaveStep(ctx context.Context, userID, targetID string, q Question, answer string, step, nextStep int) error

	// Complete は完了フラグを立てて完了メッセージを返す。
	Complete(ctx context.Context, userID, targetID string) (string, error)

	// Reset はこのフローの過去の回答と完了フラグをクリアする。やり直し用。
	// 他のフローの回答には触れない。
	Reset(ctx context.Context, userID, targetID string) error
}

// dailyTarget は朝・夜のフローをDailyEntryに書き込むFlowTarget。
type dailyTarget struct {
	flow    model.Flow
	entries repository.EntryRepository
	answers repository.AnswerRepository
	streaks *streak.Service
}

// NewDailyTarget は日次記録向けのFlowTargetを生成する。flowはmorningかevening。
func NewDailyTarget(
	flow model.Flow,
	entries repository.EntryRepository,
	answers repository.AnswerRepository,
	streaks *streak.Service,
) FlowTarget {
	return &dailyTarget{flow: flow, entries: entries, answers: answers, streaks: streaks}
}

func (t *dailyTarget) Prepare(ctx context.Context, userID string, today time.Time) (string, bool, error) {
	entry, err := t.entries.GetOrCreate(ctx, userID, today)
	if err != nil {
		return "", false, err
	}

	completed := entry.CompletedMorning
	if t.flow == model.FlowEvening {
		completed = entry.CompletedEvening
	}
	return entry.ID, completed, nil
}

func (t *dailyTarget) SaveStep(ctx context.Context, userID, targetID string, q Question, answer string, step, nextStep int) error {
	a := &model.Answer{
		DailyEntryID: targetID,
		QuestionID:   q.TemplateID,
		QuestionText: q.Text,
		AnswerText:   answer,
	}
	return t.answers.CreateWithSessionStep(ctx, a, userID, nextStep)
}

func (t *dailyTarget) Complete(ctx context.Context, userID, targetID string) (string, error) {
	entry, err := t.entries.FindByID(ctx, targetID)
	if err != nil {
		return "", err
	}
	if entry == nil {
		return "", fmt.Errorf("完了対象の日次記録が見つかりません: id=%s", targetID)
	}

	if err := t.entries.SetCompleted(ctx, targetID, t.flow, true); err != nil {
		return "", err
	}

	state, err := t.streaks.RecordActivity(ctx, userID, entry.Date)
	if err != nil {
		return "", err
	}

	if t.flow == model.FlowMorning {
		return fmt.Sprintf("☀️ 朝の記録を保存しました。今日も良い一日を！\n🔥 連続記録: %d日", state.CurrentStreak), nil
	}
	return fmt.Sprintf("🌙 今日の記録を保存しました。おやすみなさい！\n🔥 連続記録: %d日", state.CurrentStreak), nil
}

// Reset はやり直しのために、このフローの時間帯に属する回答だけを削除する。
// 質問テンプレートが削除され構造的リンクが切れた回答は、
// スナップショット文面による二次判定で分類される。
// それでも分類できない回答は夜のフロー由来として扱う。夜の質問は
// テンプレートに紐づかない固定文言で、構造的リンクを持たないため。
func (t *dailyTarget) Reset(ctx context.Context, userID, targetID string) error {
	rows, err := t.answers.ListByEntry(ctx, targetID)
	if err != nil {
		return err
	}

	period := model.PeriodMorning
	if t.flow == model.FlowEvening {
		period = model.PeriodEvening
	}

	var ids []string
	for _, row := range rows {
		p := model.ClassifyAnswerPeriod(row.QuestionPeriod, row.QuestionText)
		if p == period || (t.flow == model.FlowEvening && p == model.PeriodOther) {
			ids = append(ids, row.ID)
		}
	}

	if len(ids) > 0 {
		if err := t.answers.DeleteByIDs(ctx, ids); err != nil {
			return err
		}
	}

	return t.entries.SetCompleted(ctx, targetID, t.flow, false)
}

// weekTarget は週の振り返りフローをWeeklyCycleに書き込むFlowTarget。
// 回答はAnswer行ではなくcycleのmid/final_reflectionカラムに入る。
type weekTarget struct {
	weeks    repository.WeekRepository
	settings repository.SettingsRepository
	resolver *week.Resolver
}

// NewWeekTarget は週次記録向けのFlowTargetを生成する。
func NewWeekTarget(
	weeks repository.WeekRepository,
	settings repository.SettingsRepository,
	resolver *week.Resolver,
) FlowTarget {
	return &weekTarget{weeks: weeks, settings: settings, resolver: resolver}
}

func (t *weekTarget) Prepare(ctx context.Context, userID string, today time.Time) (string, bool, error) {
	st, err := t.settings.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return "", false, err
	}

	cycle, err := t.resolver.CurrentCycle(ctx, userID, today, st.WeekStart)
	if err != nil {
		return "", false, err
	}
	return cycle.ID, cycle.IsCompleted, nil
}

func (t *weekTarget) SaveStep(ctx context.Context, userID, targetID string, q Question, answer string, step, nextStep int) error {
	return t.weeks.SaveReflectionWithSessionStep(ctx, targetID, step, answer, userID, nextStep)
}

func (t *weekTarget) Complete(ctx context.Context, userID, targetID string) (string, error) {
	// 週の完了は日次ストリークに影響しない
	if err := t.weeks.CompleteCycle(ctx, targetID); err != nil {
		return "", err
	}
	return "📅 今週の振り返りを保存しました。お疲れさまでした！", nil
}

func (t *weekTarget) Reset(ctx context.Context, userID, targetID string) error {
	return t.weeks.ResetCycle(ctx, targetID)
}
