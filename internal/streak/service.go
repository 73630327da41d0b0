// Package streak は連続記録日数の計算と更新を提供する。
package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/kansha/internal/model"
	"github.com/hitoshi/kansha/internal/repository"
)

// Service はストリーク状態の更新サービス。
type Service struct {
	streakRepo repository.StreakRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(streakRepo repository.StreakRepository) *Service {
	return &Service{streakRepo: streakRepo}
}

// RecordActivity は記録完了をストリークに反映し、更新後の状態を返す。
// dateはユーザーのローカル日付（時刻ゼロのUTC表現）を渡す。
//
//   - 同じ日付の2回目以降の完了は何も変えない（冪等）
//   - 前回完了日の翌日ならcurrent_streakを+1する
//   - それ以外（空白日あり、または過去日付の遡り記録）は1にリセットする
//
// 過去日付の記録でもリセット扱いになるのは既知の簡略化で、
// ストリークは常に前回完了日から前方向にのみ伸びる。
func (s *Service) RecordActivity(ctx context.Context, userID string, date time.Time) (*model.StreakState, error) {
	state, err := s.streakRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ストリーク状態の取得に失敗しました: %w", err)
	}

	date = truncateDate(date)

	if state.LastCompletedDate != nil {
		last := truncateDate(*state.LastCompletedDate)
		switch {
		case date.Equal(last):
			// 同日2回目の完了。変更なし。
			return state, nil
		case date.Equal(last.AddDate(0, 0, 1)):
			state.CurrentStreak++
		default:
			state.CurrentStreak = 1
		}
	} else {
		state.CurrentStreak = 1
	}

	if state.CurrentStreak > state.BestStreak {
		state.BestStreak = state.CurrentStreak
	}
	state.LastCompletedDate = &date

	if err := s.streakRepo.Update(ctx, state); err != nil {
		return nil, fmt.Errorf("ストリーク状態の更新に失敗しました: %w", err)
	}

	return state, nil
}

// Current はユーザーの現在のストリーク状態を返す。記録がなければゼロ値を返す。
func (s *Service) Current(ctx context.Context, userID string) (*model.StreakState, error) {
	state, err := s.streakRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &model.StreakState{UserID: userID}, nil
	}
	return state, nil
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
