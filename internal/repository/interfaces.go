// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/kansha/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// GetOrCreateByTelegramID はtelegram_idでユーザーを取得し、
	// 存在しなければ作成する。表示属性が変わっていれば更新する。
	GetOrCreateByTelegramID(ctx context.Context, telegramID int64, username, firstName, lastName string) (*model.User, error)
}

// SettingsRepository はユーザー設定の永続化インターフェース。
type SettingsRepository interface {
	// GetOrCreateByUserID はユーザーの設定を取得し、なければ既定値で作成する。
	// ユーザーにつき必ず1件になる。
	GetOrCreateByUserID(ctx context.Context, userID string) (*model.Settings, error)

	// Update は設定を上書き更新する。
	Update(ctx context.Context, settings *model.Settings) error

	// ListAllWithUser は全ユーザーの設定を通知先telegram_id付きで返す。
	// リマインダースケジューラの全件走査用。
	ListAllWithUser(ctx context.Context) ([]SettingsWithUser, error)
}

// SettingsWithUser は設定と通知先情報を結合した構造体。
type SettingsWithUser struct {
	model.Settings
	TelegramID int64
}

// EntryRepository は日次記録の永続化インターフェース。
type EntryRepository interface {
	// FindByID は指定IDの記録を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.DailyEntry, error)

	// FindByUserAndDate はユーザーとローカル日付で記録を検索する。見つからない場合はnilを返す。
	FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*model.DailyEntry, error)

	// GetOrCreate はユーザーとローカル日付の記録を取得し、なければ作成する。
	// UNIQUE(user_id, date)制約により同一日付の重複は発生しない。
	GetOrCreate(ctx context.Context, userID string, date time.Time) (*model.DailyEntry, error)

	// SetCompleted は指定フローの完了フラグを更新する。
	SetCompleted(ctx context.Context, entryID string, flow model.Flow, completed bool) error

	// ListByUserInRange はユーザーの記録を日付範囲（両端含む）で昇順に返す。
	ListByUserInRange(ctx context.Context, userID string, from, to time.Time) ([]*model.DailyEntry, error)

	// CountCompletion はユーザーの全記録の完了状況を集計する。
	CountCompletion(ctx context.Context, userID string) (CompletionCounts, error)

	// CountCompletionInRange は日付範囲（両端含む）の完了状況を集計する。
	CountCompletionInRange(ctx context.Context, userID string, from, to time.Time) (CompletionCounts, error)
}

// CompletionCounts は日次記録の完了集計を表す。
type CompletionCounts struct {
	Total int // 記録が存在する日数
	Any   int // 朝か夜のどちらかが完了した日数
	Full  int // 朝夜両方が完了した日数
}

// AnswerRow は回答と、結合した質問の時間帯・記録日を持つ読み取り用構造体。
type AnswerRow struct {
	model.Answer
	QuestionPeriod model.Period // 質問テンプレートが削除済みの場合はPeriodOther
	EntryDate      time.Time
}

// AnswerRepository は回答の永続化インターフェース。
type AnswerRepository interface {
	// CreateWithSessionStep は回答の保存とセッションのステップ前進を
	// 単一トランザクションで行う。途中でクラッシュしても
	// 回答とステップがずれないことを保証する。
	CreateWithSessionStep(ctx context.Context, answer *model.Answer, userID string, nextStep int) error

	// ListByEntry は記録に属する回答をcreated_at昇順で返す。
	ListByEntry(ctx context.Context, entryID string) ([]AnswerRow, error)

	// ListByUserInRange はユーザーの回答を日付範囲（両端含む）で新しい順に返す。
	ListByUserInRange(ctx context.Context, userID string, from, to time.Time) ([]AnswerRow, error)

	// Search はユーザーの回答を質問文・回答文の部分一致（大文字小文字無視）で
	// 検索し、記録日の新しい順に最大limit件返す。
	Search(ctx context.Context, userID, query string, limit int) ([]AnswerRow, error)

	// DeleteByIDs は指定IDの回答を削除する。やり直し（redo）専用。
	DeleteByIDs(ctx context.Context, ids []string) error
}

// QuestionRepository は質問テンプレートの永続化インターフェース。
type QuestionRepository interface {
	// FindByID は指定IDのテンプレートを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.QuestionTemplate, error)

	// ListActiveByPeriod は指定時間帯のアクティブな質問をorder昇順で返す。
	ListActiveByPeriod(ctx context.Context, period model.Period) ([]*model.QuestionTemplate, error)

	// CountByPeriod は指定時間帯の質問数（非アクティブ含む）を返す。
	CountByPeriod(ctx context.Context, period model.Period) (int, error)

	// Create は質問テンプレートを作成する。
	Create(ctx context.Context, q *model.QuestionTemplate) error
}

// WeekRepository は週課題・週次記録の永続化インターフェース。
type WeekRepository interface {
	// FindCycleByID は指定IDの週次記録を取得する。見つからない場合はnilを返す。
	FindCycleByID(ctx context.Context, id string) (*model.WeeklyCycle, error)

	// GetOrCreateCycle はユーザーと週開始日の記録を取得し、なければ作成する。
	// 既存レコードのweek_endが渡された値とずれていれば補正する。
	// 新規作成した場合はcreated=trueを返す。
	GetOrCreateCycle(ctx context.Context, userID string, weekStart, weekEnd time.Time) (cycle *model.WeeklyCycle, created bool, err error)

	// FindCycleCovering は指定日を含む週次記録を検索する。見つからない場合はnilを返す。
	FindCycleCovering(ctx context.Context, userID string, date time.Time) (*model.WeeklyCycle, error)

	// BindTask は週次記録に課題を紐付ける。
	BindTask(ctx context.Context, cycleID, taskID string) error

	// SaveReflectionWithSessionStep は振り返りの保存とセッションのステップ前進を
	// 単一トランザクションで行う。stepが0なら中間振り返り、1なら最終振り返り。
	SaveReflectionWithSessionStep(ctx context.Context, cycleID string, step int, text string, userID string, nextStep int) error

	// CompleteCycle は週次記録を完了にする。
	CompleteCycle(ctx context.Context, cycleID string) error

	// ResetCycle は振り返りと完了フラグをクリアする。やり直し（redo）専用。
	ResetCycle(ctx context.Context, cycleID string) error

	// ListCyclesSince は指定日以降に始まる週次記録を週開始日の新しい順に返す。
	ListCyclesSince(ctx context.Context, userID string, since time.Time) ([]*model.WeeklyCycle, error)

	// CountCycles はユーザーの週次記録の総数と完了数を返す。
	CountCycles(ctx context.Context, userID string) (total, completed int, err error)

	// FindActiveTask は指定ISO週のアクティブな課題を検索する。見つからない場合はnilを返す。
	FindActiveTask(ctx context.Context, isoYear, isoWeek int) (*model.WeeklyTask, error)

	// FindTaskByID は指定IDの課題を取得する。見つからない場合はnilを返す。
	FindTaskByID(ctx context.Context, id string) (*model.WeeklyTask, error)
}

// StreakRepository はストリーク状態の永続化インターフェース。
type StreakRepository interface {
	// FindByUser はユーザーのストリーク状態を取得する。見つからない場合はnilを返す。
	FindByUser(ctx context.Context, userID string) (*model.StreakState, error)

	// GetOrCreate はユーザーのストリーク状態を取得し、なければゼロ値で作成する。
	GetOrCreate(ctx context.Context, userID string) (*model.StreakState, error)

	// Update はストリーク状態を上書き更新する。
	Update(ctx context.Context, state *model.StreakState) error
}

// SessionRepository は進行中対話セッションの永続化インターフェース。
// ユーザーにつき最大1件で、Saveは同一ユーザーの既存セッションを上書きする。
type SessionRepository interface {
	// Find はユーザーのセッションを取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, userID string) (*model.Session, error)

	// Save はセッションをUPSERTする。別フローの古いセッションは上書きされる。
	Save(ctx context.Context, session *model.Session) error

	// Delete はユーザーのセッションを削除する。存在しなくてもエラーにしない。
	Delete(ctx context.Context, userID string) error
}

// NudgeRepository はリマインド文言の永続化インターフェース。
type NudgeRepository interface {
	// ListActiveByCategory は指定カテゴリのアクティブな文言を返す。
	ListActiveByCategory(ctx context.Context, category model.NudgeCategory) ([]*model.NudgePhrase, error)
}
