package remind

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/kansha/internal/model"
	"github.com/hitoshi/kansha/internal/repository"
)

func newTestLogger() *slog.Logger {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// mockSettingsRepo はSettingsRepositoryのモック実装。
type mockSettingsRepo struct {
	all []repository.SettingsWithUser
	err error
}

func (m *mockSettingsRepo) GetOrCreateByUserID(ctx context.Context, userID string) (*model.Settings, error) {
	return nil, nil
}

func (m *mockSettingsRepo) Update(ctx context.Context, settings *model.Settings) error {
	return nil
}

func (m *mockSettingsRepo) ListAllWithUser(ctx context.Context) ([]repository.SettingsWithUser, error) {
	return m.all, m.err
}

// mockEntryRepo はEntryRepositoryのモック実装。
// entriesのキーは "userID/YYYY-MM-DD"。
type mockEntryRepo struct {
	entries map[string]*model.DailyEntry
	getErr  map[string]error
}

func entryKey(userID string, date time.Time) string {
	return userID + "/" + date.Format("2006-01-02")
}

func (m *mockEntryRepo) FindByID(ctx context.Context, id string) (*model.DailyEntry, error) {
	return nil, nil
}

func (m *mockEntryRepo) FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*model.DailyEntry, error) {
	return m.entries[entryKey(userID, date)], nil
}

func (m *mockEntryRepo) GetOrCreate(ctx context.Context, userID string, date time.Time) (*model.DailyEntry, error) {
	if err := m.getErr[userID]; err != nil {
		return nil, err
	}
	key := entryKey(userID, date)
	if e, ok := m.entries[key]; ok {
		return e, nil
	}
	e := &model.DailyEntry{ID: "entry-" + key, UserID: userID, Date: date}
	if m.entries == nil {
		m.entries = make(map[string]*model.DailyEntry)
	}
	m.entries[key] = e
	return e, nil
}

func (m *mockEntryRepo) SetCompleted(ctx context.Context, entryID string, flow model.Flow, completed bool) error {
	return nil
}

func (m *mockEntryRepo) ListByUserInRange(ctx context.Context, userID string, from, to time.Time) ([]*model.DailyEntry, error) {
	return nil, nil
}

func (m *mockEntryRepo) CountCompletion(ctx context.Context, userID string) (repository.CompletionCounts, error) {
	return repository.CompletionCounts{}, nil
}

func (m *mockEntryRepo) CountCompletionInRange(ctx context.Context, userID string, from, to time.Time) (repository.CompletionCounts, error) {
	return repository.CompletionCounts{}, nil
}

// mockStreakRepo はStreakRepositoryのモック実装。
type mockStreakRepo struct {
	state *model.StreakState
}

func (m *mockStreakRepo) FindByUser(ctx context.Context, userID string) (*model.StreakState, error) {
	return m.state, nil
}

func (m *mockStreakRepo) GetOrCreate(ctx context.Context, userID string) (*model.StreakState, error) {
	return m.state, nil
}

func (m *mockStreakRepo) Update(ctx context.Context, state *model.StreakState) error {
	return nil
}

// mockNudgeRepo はNudgeRepositoryのモック実装。
type mockNudgeRepo struct {
	phrases map[model.NudgeCategory][]*model.NudgePhrase
}

func (m *mockNudgeRepo) ListActiveByCategory(ctx context.Context, category model.NudgeCategory) ([]*model.NudgePhrase, error) {
	return m.phrases[category], nil
}

// mockSender は送信内容を記録するSender。
type mockSender struct {
	sent []sentMessage
}

type sentMessage struct {
	chatID int64
	text   string
}

func (m *mockSender) SendMessage(ctx context.Context, chatID int64, text string, options [][]string) error {
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func settingsFor(userID string, telegramID int64, morning, evening model.TimeOfDay) repository.SettingsWithUser {
	s := model.DefaultSettings(userID)
	s.Timezone = "UTC"
	s.MorningTime = morning
	s.EveningTime = evening
	return repository.SettingsWithUser{Settings: *s, TelegramID: telegramID}
}

func newTestScheduler(settings *mockSettingsRepo, entries *mockEntryRepo, sender *mockSender) *Scheduler {
	return NewScheduler(settings, entries, &mockStreakRepo{}, &mockNudgeRepo{}, sender, newTestLogger(), nil)
}

// TestRunOnce_MorningReminderAtExactMinute は朝の設定時刻の分にだけ
// リマインダーが届くことを検証する。
func TestRunOnce_MorningReminderAtExactMinute(t *testing.T) {
	settings := &mockSettingsRepo{all: []repository.SettingsWithUser{
		settingsFor("user-1", 100, model.TimeOfDay{Hour: 8, Minute: 30}, model.TimeOfDay{Hour: 21, Minute: 0}),
	}}
	entries := &mockEntryRepo{}
	sender := &mockSender{}
	s := newTestScheduler(settings, entries, sender)

	// 08:30ちょうど: 送信される
	s.now = func() time.Time { return time.Date(2026, 8, 31, 8, 30, 45, 0, time.UTC) }
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("送信件数 = %d, want 1", len(sender.sent))
	}
	if sender.sent[0].chatID != 100 {
		t.Errorf("chatID = %d, want 100", sender.sent[0].chatID)
	}

	// 08:31: 未完了のままでも送信されない
	s.now = func() time.Time { return time.Date(2026, 8, 31, 8, 31, 0, 0, time.UTC) }
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("08:31の送信件数 = %d, want 1（追加なし）", len(sender.sent))
	}
}

// TestRunOnce_SkipsCompletedEntry は完了済みのユーザーにリマインダーが
// 届かないことを検証する。
func TestRunOnce_SkipsCompletedEntry(t *testing.T) {
	settings := &mockSettingsRepo{all: []repository.SettingsWithUser{
		settingsFor("user-1", 100, model.TimeOfDay{Hour: 8, Minute: 0}, model.TimeOfDay{Hour: 21, Minute: 0}),
	}}
	today := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	entries := &mockEntryRepo{entries: map[string]*model.DailyEntry{
		entryKey("user-1", today): {ID: "e1", UserID: "user-1", Date: today, CompletedMorning: true},
	}}
	sender := &mockSender{}
	s := newTestScheduler(settings, entries, sender)

	s.now = func() time.Time { return time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC) }
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("完了済みユーザーへの送信件数 = %d, want 0", len(sender.sent))
	}
}

// TestRunOnce_TimezoneAware はユーザーのタイムゾーンで時刻が判定されることを検証する。
func TestRunOnce_TimezoneAware(t *testing.T) {
	su := settingsFor("user-1", 100, model.TimeOfDay{Hour: 8, Minute: 0}, model.TimeOfDay{Hour: 21, Minute: 0})
	su.Timezone = "UTC+9"
	settings := &mockSettingsRepo{all: []repository.SettingsWithUser{su}}
	sender := &mockSender{}
	s := newTestScheduler(settings, &mockEntryRepo{}, sender)

	// UTC 23:00 = UTC+9の08:00
	s.now = func() time.Time { return time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC) }
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("送信件数 = %d, want 1", len(sender.sent))
	}
}

// TestRunOnce_MissedDayAtNoon は前日未記録のユーザーに正午の通知が
// 届くことを検証する。
func TestRunOnce_MissedDayAtNoon(t *testing.T) {
	settings := &mockSettingsRepo{all: []repository.SettingsWithUser{
		settingsFor("user-1", 100, model.TimeOfDay{Hour: 8, Minute: 0}, model.TimeOfDay{Hour: 21, Minute: 0}),
	}}
	entries := &mockEntryRepo{} // 前日の記録なし
	sender := &mockSender{}
	s := newTestScheduler(settings, entries, sender)

	s.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 30, 0, time.UTC) }
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("送信件数 = %d, want 1", len(sender.sent))
	}
	if sender.sent[0].text != msgMissed {
		t.Errorf("通知文面 = %q, want %q", sender.sent[0].text, msgMissed)
	}
}

// TestRunOnce_MissedDaySkippedWhenYesterdayRecorded は前日に記録がある
// ユーザーに正午の通知が届かないことを検証する。
func TestRunOnce_MissedDaySkippedWhenYesterdayRecorded(t *testing.T) {
	settings := &mockSettingsRepo{all: []repository.SettingsWithUser{
		settingsFor("user-1", 100, model.TimeOfDay{Hour: 8, Minute: 0}, model.TimeOfDay{Hour: 21, Minute: 0}),
	}}
	yesterday := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	entries := &mockEntryRepo{entries: map[string]*model.DailyEntry{
		entryKey("user-1", yesterday): {ID: "e1", UserID: "user-1", Date: yesterday, CompletedEvening: true},
	}}
	sender := &mockSender{}
	s := newTestScheduler(settings, entries, sender)

	s.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("送信件数 = %d, want 0", len(sender.sent))
	}
}

// TestRunOnce_OneUserFailureDoesNotStopOthers は1ユーザーの失敗が
// 他のユーザーへの配信を止めないことを検証する。
func TestRunOnce_OneUserFailureDoesNotStopOthers(t *testing.T) {
	settings := &mockSettingsRepo{all: []repository.SettingsWithUser{
		settingsFor("user-1", 100, model.TimeOfDay{Hour: 8, Minute: 0}, model.TimeOfDay{Hour: 21, Minute: 0}),
		settingsFor("user-2", 200, model.TimeOfDay{Hour: 8, Minute: 0}, model.TimeOfDay{Hour: 21, Minute: 0}),
	}}
	entries := &mockEntryRepo{getErr: map[string]error{
		"user-1": errors.New("接続エラー"),
	}}
	sender := &mockSender{}
	s := newTestScheduler(settings, entries, sender)

	s.now = func() time.Time { return time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC) }
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("送信件数 = %d, want 1", len(sender.sent))
	}
	if sender.sent[0].chatID != 200 {
		t.Errorf("chatID = %d, want 200", sender.sent[0].chatID)
	}
}

// TestRunOnce_EveningIncludesStreakPhrase は継続中のストリークがある
// ユーザーの夜リマインダーにひとことが付くことを検証する。
func TestRunOnce_EveningIncludesStreakPhrase(t *testing.T) {
	settings := &mockSettingsRepo{all: []repository.SettingsWithUser{
		settingsFor("user-1", 100, model.TimeOfDay{Hour: 8, Minute: 0}, model.TimeOfDay{Hour: 21, Minute: 0}),
	}}
	sender := &mockSender{}
	s := NewScheduler(
		settings,
		&mockEntryRepo{},
		&mockStreakRepo{state: &model.StreakState{UserID: "user-1", CurrentStreak: 6}},
		&mockNudgeRepo{phrases: map[model.NudgeCategory][]*model.NudgePhrase{
			model.NudgeStreak: {{ID: "n1", Text: "連続記録が途切れないように今日も一言どうぞ！"}},
		}},
		sender,
		newTestLogger(),
		nil,
	)

	s.now = func() time.Time { return time.Date(2026, 8, 31, 21, 0, 0, 0, time.UTC) }
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("送信件数 = %d, want 1", len(sender.sent))
	}
	if sender.sent[0].text == msgEvening {
		t.Error("ストリーク継続中のユーザーにはひとことが付くべき")
	}
}
