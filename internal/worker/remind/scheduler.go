// Package remind はリマインダー通知のバックグラウンド配信を提供する。
// 毎分のティックで全ユーザーの設定を走査し、ローカル時刻が
// 設定時刻と分単位で一致したユーザーにだけ通知を送る。
package remind

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/kansha/internal/clock"
	"github.com/hitoshi/kansha/internal/metrics"
	"github.com/hitoshi/kansha/internal/model"
	"github.com/hitoshi/kansha/internal/repository"
)

// Sender はリマインダーの送信インターフェース。telegram.Clientが実装する。
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, options [][]string) error
}

const (
	msgMorning = "☀️ おはようございます！朝の記録の時間です。「☀️ 朝の記録」から始めましょう。"
	msgEvening = "🌙 こんばんは！今日の振り返りの時間です。「🌙 夜の記録」から始めましょう。"
	msgMissed  = "昨日は記録がありませんでした。今日はひとつだけでも書いてみませんか？"
)

// missedDayHour は前日未記録の通知を出すローカル時刻（正午）。
const missedDayHour = 12

// Scheduler はリマインダー配信のスケジューラ。
// ティックごとに全ユーザーを独立に評価し、1ユーザーの失敗は他に波及しない。
// 送信の記録は持たず、分単位の一致だけで1日1回の配信を成立させる。
// プロセスが該当の分を跨いで停止していた場合、その日の通知は黙って落ちる。
type Scheduler struct {
	settingsRepo repository.SettingsRepository
	entryRepo    repository.EntryRepository
	streakRepo   repository.StreakRepository
	nudgeRepo    repository.NudgeRepository
	sender       Sender
	logger       *slog.Logger
	metrics      metrics.MetricsCollector
	now          func() time.Time // テスト用に差し替え可能
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(
	settingsRepo repository.SettingsRepository,
	entryRepo repository.EntryRepository,
	streakRepo repository.StreakRepository,
	nudgeRepo repository.NudgeRepository,
	sender Sender,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Scheduler {
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &Scheduler{
		settingsRepo: settingsRepo,
		entryRepo:    entryRepo,
		streakRepo:   streakRepo,
		nudgeRepo:    nudgeRepo,
		sender:       sender,
		logger:       logger,
		metrics:      collector,
		now:          time.Now,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("リマインダースケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("リマインダーサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("リマインダースケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("リマインダーサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全ユーザーの設定を1回走査してリマインダーを配信する。
// カーソルは持たず、毎回独立した全件走査になる。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := s.now().UTC()

	all, err := s.settingsRepo.ListAllWithUser(ctx)
	if err != nil {
		return err
	}

	sent := 0
	for _, su := range all {
		n, err := s.evaluateUser(ctx, su, start)
		if err != nil {
			// 1ユーザーの失敗は記録して次へ進む
			s.logger.Error("リマインダーの評価に失敗しました",
				slog.String("user_id", su.UserID),
				slog.String("error", err.Error()),
			)
			continue
		}
		sent += n
	}

	if sent > 0 {
		s.logger.Info("リマインダーサイクルが完了しました",
			slog.Int("user_count", len(all)),
			slog.Int("sent", sent),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}

	return nil
}

// evaluateUser は1ユーザーの3条件（朝・夜・前日未記録）を評価する。
// 各条件は独立で、同じティックで複数の通知が出ることもある。
func (s *Scheduler) evaluateUser(ctx context.Context, su repository.SettingsWithUser, now time.Time) (int, error) {
	loc := clock.Resolve(su.Timezone)
	localNow := now.In(loc)
	localMinute := model.TimeOfDay{Hour: localNow.Hour(), Minute: localNow.Minute()}
	today := clock.LocalDate(now, loc)

	sent := 0

	if su.MorningEnabled && localMinute == su.MorningTime {
		entry, err := s.entryRepo.GetOrCreate(ctx, su.UserID, today)
		if err != nil {
			return sent, err
		}
		if !entry.CompletedMorning {
			if err := s.sender.SendMessage(ctx, su.TelegramID, msgMorning, nil); err != nil {
				return sent, err
			}
			s.metrics.RecordReminderSent("morning")
			sent++
		}
	}

	if su.EveningEnabled && localMinute == su.EveningTime {
		entry, err := s.entryRepo.GetOrCreate(ctx, su.UserID, today)
		if err != nil {
			return sent, err
		}
		if !entry.CompletedEvening {
			text := msgEvening
			if phrase := s.streakPhrase(ctx, su.UserID); phrase != "" {
				text += "\n" + phrase
			}
			if err := s.sender.SendMessage(ctx, su.TelegramID, text, nil); err != nil {
				return sent, err
			}
			s.metrics.RecordReminderSent("evening")
			sent++
		}
	}

	if su.NotifyMissedDays && localMinute.Hour == missedDayHour && localMinute.Minute == 0 {
		yesterday := today.AddDate(0, 0, -1)
		entry, err := s.entryRepo.FindByUserAndDate(ctx, su.UserID, yesterday)
		if err != nil {
			return sent, err
		}
		if entry == nil || (!entry.CompletedMorning && !entry.CompletedEvening) {
			if err := s.sender.SendMessage(ctx, su.TelegramID, s.missedDayText(ctx, today), nil); err != nil {
				return sent, err
			}
			s.metrics.RecordReminderSent("missed")
			sent++
		}
	}

	return sent, nil
}

// streakPhrase は継続中のストリークがあるユーザー向けのひとことを返す。
// 文言が取れない場合は空文字を返し、リマインダー本体の配信は止めない。
func (s *Scheduler) streakPhrase(ctx context.Context, userID string) string {
	state, err := s.streakRepo.FindByUser(ctx, userID)
	if err != nil || state == nil || state.CurrentStreak == 0 {
		return ""
	}

	phrases, err := s.nudgeRepo.ListActiveByCategory(ctx, model.NudgeStreak)
	if err != nil || len(phrases) == 0 {
		return ""
	}

	// ユーザーと日でローテーションし、毎日同じ文面にならないようにする
	idx := (state.CurrentStreak + len(userID)) % len(phrases)
	return phrases[idx].Text
}

// missedDayText は前日未記録の通知文面を返す。
// アクティブな呼び戻し文言があれば日替わりのローテーションで選ぶ。
func (s *Scheduler) missedDayText(ctx context.Context, today time.Time) string {
	phrases, err := s.nudgeRepo.ListActiveByCategory(ctx, model.NudgeComeback)
	if err != nil || len(phrases) == 0 {
		return msgMissed
	}
	return phrases[today.YearDay()%len(phrases)].Text
}
