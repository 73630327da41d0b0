// Package week は週の区切りの解決と週次記録の管理を提供する。
package week

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/kansha/internal/model"
	"github.com/hitoshi/kansha/internal/repository"
)

// Resolver はユーザー設定に基づいて「今週」を解決するサービス。
type Resolver struct {
	weekRepo repository.WeekRepository
}

// NewResolver はResolverの新しいインスタンスを生成する。
func NewResolver(weekRepo repository.WeekRepository) *Resolver {
	return &Resolver{weekRepo: weekRepo}
}

// WeekStartFor はローカル日付todayを含む週の開始日を返す。
// weekStartはISO曜日番号（1=月曜〜7=日曜）で、その曜日に週が始まる。
func WeekStartFor(today time.Time, weekStart int) time.Time {
	if weekStart < 1 || weekStart > 7 {
		weekStart = 1
	}
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	// time.WeekdayはSunday=0なのでISO曜日番号（Monday=1..Sunday=7）に直す
	iso := int(today.Weekday())
	if iso == 0 {
		iso = 7
	}

	back := (iso - weekStart + 7) % 7
	return today.AddDate(0, 0, -back)
}

// CurrentCycle はローカル日付todayを含む週次記録を取得し、なければ作成する。
// 既存レコードの週終了日が設定変更でずれていれば補正される。
// 課題が未紐付けの場合のみ、該当ISO週のアクティブな課題を紐付ける。
// 一度紐付いた課題は週替わりの設定変更でも付け替えない。
func (r *Resolver) CurrentCycle(ctx context.Context, userID string, today time.Time, weekStart int) (*model.WeeklyCycle, error) {
	start := WeekStartFor(today, weekStart)
	end := start.AddDate(0, 0, 6)

	cycle, _, err := r.weekRepo.GetOrCreateCycle(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("週次記録の解決に失敗しました: %w", err)
	}

	if cycle.TaskID == "" {
		isoYear, isoWeek := start.ISOWeek()
		task, err := r.weekRepo.FindActiveTask(ctx, isoYear, isoWeek)
		if err != nil {
			return nil, fmt.Errorf("週課題の検索に失敗しました: %w", err)
		}
		if task != nil {
			if err := r.weekRepo.BindTask(ctx, cycle.ID, task.ID); err != nil {
				return nil, fmt.Errorf("週課題の紐付けに失敗しました: %w", err)
			}
			cycle.TaskID = task.ID
		}
	}

	return cycle, nil
}

// TaskFor は週次記録に紐付いた課題を返す。未紐付けならnilを返す。
func (r *Resolver) TaskFor(ctx context.Context, cycle *model.WeeklyCycle) (*model.WeeklyTask, error) {
	if cycle.TaskID == "" {
		return nil, nil
	}
	return r.weekRepo.FindTaskByID(ctx, cycle.TaskID)
}
