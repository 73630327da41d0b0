package stats

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/kansha/internal/model"
	"github.com/hitoshi/kansha/internal/repository"
	"github.com/hitoshi/kansha/internal/streak"
)

// mockEntryRepo はEntryRepositoryのモック。
type mockEntryRepo struct {
	countCompletionFunc func(ctx context.Context, userID string) (repository.CompletionCounts, error)
	listInRangeFunc     func(ctx context.Context, userID string, from, to time.Time) ([]*model.DailyEntry, error)
}

func (m *mockEntryRepo) FindByID(ctx context.Context, id string) (*model.DailyEntry, error) {
	return nil, nil
}

func (m *mockEntryRepo) FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*model.DailyEntry, error) {
	return nil, nil
}

func (m *mockEntryRepo) GetOrCreate(ctx context.Context, userID string, date time.Time) (*model.DailyEntry, error) {
	return nil, nil
}

func (m *mockEntryRepo) SetCompleted(ctx context.Context, entryID string, flow model.Flow, completed bool) error {
	return nil
}

func (m *mockEntryRepo) ListByUserInRange(ctx context.Context, userID string, from, to time.Time) ([]*model.DailyEntry, error) {
	if m.listInRangeFunc != nil {
		return m.listInRangeFunc(ctx, userID, from, to)
	}
	return nil, nil
}

func (m *mockEntryRepo) CountCompletion(ctx context.Context, userID string) (repository.CompletionCounts, error) {
	if m.countCompletionFunc != nil {
		return m.countCompletionFunc(ctx, userID)
	}
	return repository.CompletionCounts{}, nil
}

func (m *mockEntryRepo) CountCompletionInRange(ctx context.Context, userID string, from, to time.Time) (repository.CompletionCounts, error) {
	return repository.CompletionCounts{}, nil
}

// mockAnswerRepo はAnswerRepositoryのモック。
type mockAnswerRepo struct {
	listInRangeFunc func(ctx context.Context, userID string, from, to time.Time) ([]repository.AnswerRow, error)
}

func (m *mockAnswerRepo) CreateWithSessionStep(ctx context.Context, answer *model.Answer, userID string, nextStep int) error {
	return nil
}

func (m *mockAnswerRepo) ListByEntry(ctx context.Context, entryID string) ([]repository.AnswerRow, error) {
	return nil, nil
}

func (m *mockAnswerRepo) ListByUserInRange(ctx context.Context, userID string, from, to time.Time) ([]repository.AnswerRow, error) {
	if m.listInRangeFunc != nil {
		return m.listInRangeFunc(ctx, userID, from, to)
	}
	return nil, nil
}

func (m *mockAnswerRepo) Search(ctx context.Context, userID, query string, limit int) ([]repository.AnswerRow, error) {
	return nil, nil
}

func (m *mockAnswerRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	return nil
}

// mockWeekRepo はWeekRepositoryのモック。統計で使うCountCyclesのみ差し替え可能。
type mockWeekRepo struct {
	countCyclesFunc func(ctx context.Context, userID string) (int, int, error)
}

func (m *mockWeekRepo) FindCycleByID(ctx context.Context, id string) (*model.WeeklyCycle, error) {
	return nil, nil
}

func (m *mockWeekRepo) GetOrCreateCycle(ctx context.Context, userID string, weekStart, weekEnd time.Time) (*model.WeeklyCycle, bool, error) {
	return nil, false, nil
}

func (m *mockWeekRepo) FindCycleCovering(ctx context.Context, userID string, date time.Time) (*model.WeeklyCycle, error) {
	return nil, nil
}

func (m *mockWeekRepo) BindTask(ctx context.Context, cycleID, taskID string) error {
	return nil
}

func (m *mockWeekRepo) SaveReflectionWithSessionStep(ctx context.Context, cycleID string, step int, text string, userID string, nextStep int) error {
	return nil
}

func (m *mockWeekRepo) CompleteCycle(ctx context.Context, cycleID string) error {
	return nil
}

func (m *mockWeekRepo) ResetCycle(ctx context.Context, cycleID string) error {
	return nil
}

func (m *mockWeekRepo) ListCyclesSince(ctx context.Context, userID string, since time.Time) ([]*model.WeeklyCycle, error) {
	return nil, nil
}

func (m *mockWeekRepo) CountCycles(ctx context.Context, userID string) (int, int, error) {
	if m.countCyclesFunc != nil {
		return m.countCyclesFunc(ctx, userID)
	}
	return 0, 0, nil
}

func (m *mockWeekRepo) FindActiveTask(ctx context.Context, isoYear, isoWeek int) (*model.WeeklyTask, error) {
	return nil, nil
}

func (m *mockWeekRepo) FindTaskByID(ctx context.Context, id string) (*model.WeeklyTask, error) {
	return nil, nil
}

// mockStreakRepo はStreakRepositoryのモック。
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

func today() time.Time {
	return time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
}

func newService(entries *mockEntryRepo, answers *mockAnswerRepo, weeks *mockWeekRepo, streaks *mockStreakRepo) *Service {
	return NewService(entries, answers, weeks, streak.NewService(streaks))
}

// TestService_General は全体統計の各数値が表示に反映されることを検証する。
func TestService_General(t *testing.T) {
	entries := &mockEntryRepo{
		countCompletionFunc: func(ctx context.Context, userID string) (repository.CompletionCounts, error) {
			return repository.CompletionCounts{Total: 20, Any: 18, Full: 12}, nil
		},
	}
	weeks := &mockWeekRepo{
		countCyclesFunc: func(ctx context.Context, userID string) (int, int, error) {
			return 4, 3, nil
		},
	}
	streaks := &mockStreakRepo{state: &model.StreakState{UserID: "user-1", CurrentStreak: 5, BestStreak: 9}}

	text, err := newService(entries, &mockAnswerRepo{}, weeks, streaks).General(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("General returned error: %v", err)
	}

	for _, want := range []string{"20日", "18日", "12日", "連続記録: 5日", "最長の連続記録: 9日", "3/4週"} {
		if !strings.Contains(text, want) {
			t.Errorf("表示に %q がありません: %q", want, text)
		}
	}
}

// TestService_General_NoStreak はストリーク未記録でもゼロ表示になることを検証する。
func TestService_General_NoStreak(t *testing.T) {
	text, err := newService(&mockEntryRepo{}, &mockAnswerRepo{}, &mockWeekRepo{}, &mockStreakRepo{}).General(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("General returned error: %v", err)
	}
	if !strings.Contains(text, "連続記録: 0日") {
		t.Errorf("ゼロ値のストリークが表示されていません: %q", text)
	}
}

// TestService_Chart は14日分のマスが完了状況に応じて描かれることを検証する。
func TestService_Chart(t *testing.T) {
	entries := &mockEntryRepo{
		listInRangeFunc: func(ctx context.Context, userID string, from, to time.Time) ([]*model.DailyEntry, error) {
			wantFrom := today().AddDate(0, 0, -13)
			if !from.Equal(wantFrom) {
				t.Errorf("from = %v, want %v", from, wantFrom)
			}
			return []*model.DailyEntry{
				{Date: today(), CompletedMorning: true, CompletedEvening: true},
				{Date: today().AddDate(0, 0, -1), CompletedMorning: true},
				{Date: today().AddDate(0, 0, -2)}, // 作成されたが未完了の日
			}, nil
		},
	}

	text, err := newService(entries, &mockAnswerRepo{}, &mockWeekRepo{}, &mockStreakRepo{}).Chart(context.Background(), "user-1", today())
	if err != nil {
		t.Fatalf("Chart returned error: %v", err)
	}

	if got := strings.Count(text, "🟩"); got != 2 {
		t.Errorf("🟩の数 = %d, want 2（凡例含む）", got)
	}
	if got := strings.Count(text, "🟨"); got != 2 {
		t.Errorf("🟨の数 = %d, want 2（凡例含む）", got)
	}
	// 未完了の日と記録なしの日は同じ空マス。14 - 2 + 凡例1
	if got := strings.Count(text, "⬜️"); got != 13 {
		t.Errorf("⬜️の数 = %d, want 13（凡例含む）", got)
	}
}

// TestService_Weekday は曜日ごとの件数が月曜始まりで集計されることを検証する。
func TestService_Weekday(t *testing.T) {
	answers := &mockAnswerRepo{
		listInRangeFunc: func(ctx context.Context, userID string, from, to time.Time) ([]repository.AnswerRow, error) {
			monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
			sunday := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
			return []repository.AnswerRow{
				{EntryDate: monday},
				{EntryDate: monday},
				{EntryDate: sunday},
			}, nil
		},
	}

	text, err := newService(&mockEntryRepo{}, answers, &mockWeekRepo{}, &mockStreakRepo{}).Weekday(context.Background(), "user-1", today())
	if err != nil {
		t.Fatalf("Weekday returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")
	var monLine, sunLine string
	for _, line := range lines {
		if strings.HasPrefix(line, "月") {
			monLine = line
		}
		if strings.HasPrefix(line, "日") {
			sunLine = line
		}
	}
	if !strings.HasSuffix(monLine, "2") {
		t.Errorf("月曜の件数が不正: %q", monLine)
	}
	if !strings.HasSuffix(sunLine, "1") {
		t.Errorf("日曜の件数が不正: %q", sunLine)
	}
}

// TestService_Weekday_Empty は記録なしでもエラーにならないことを検証する。
func TestService_Weekday_Empty(t *testing.T) {
	text, err := newService(&mockEntryRepo{}, &mockAnswerRepo{}, &mockWeekRepo{}, &mockStreakRepo{}).Weekday(context.Background(), "user-1", today())
	if err != nil {
		t.Fatalf("Weekday returned error: %v", err)
	}
	if !strings.Contains(text, "まだありません") {
		t.Errorf("記録なしの文面が不正: %q", text)
	}
}

// TestService_Topics は頻出語が回数順に並び、短い語と定型語が除外されることを検証する。
func TestService_Topics(t *testing.T) {
	answers := &mockAnswerRepo{
		listInRangeFunc: func(ctx context.Context, userID string, from, to time.Time) ([]repository.AnswerRow, error) {
			return []repository.AnswerRow{
				{Answer: model.Answer{AnswerText: "家族と 散歩 した"}},
				{Answer: model.Answer{AnswerText: "散歩 と 読書"}},
				{Answer: model.Answer{AnswerText: "散歩 が 楽しかった こと"}},
			}, nil
		},
	}

	text, err := newService(&mockEntryRepo{}, answers, &mockWeekRepo{}, &mockStreakRepo{}).Topics(context.Background(), "user-1", today())
	if err != nil {
		t.Fatalf("Topics returned error: %v", err)
	}

	if !strings.Contains(text, "1. 散歩（3回）") {
		t.Errorf("最頻出語が先頭にありません: %q", text)
	}
	if strings.Contains(text, "こと") {
		t.Errorf("定型語が除外されていません: %q", text)
	}
	if strings.Contains(text, "1. と") || strings.Contains(text, " と（") {
		t.Errorf("1文字の語が除外されていません: %q", text)
	}
}

// TestService_Topics_ExcludesMorningAnswers は朝の回答が頻出語集計に
// 入らないことを検証する。朝の語が何度出ても夜の語だけが並ぶ。
func TestService_Topics_ExcludesMorningAnswers(t *testing.T) {
	answers := &mockAnswerRepo{
		listInRangeFunc: func(ctx context.Context, userID string, from, to time.Time) ([]repository.AnswerRow, error) {
			return []repository.AnswerRow{
				{
					Answer:         model.Answer{QuestionText: "今日の目標は？", AnswerText: "仕事 仕事 仕事 仕事"},
					QuestionPeriod: model.PeriodMorning,
				},
				{
					Answer:         model.Answer{QuestionText: "🌙 今日感謝したことは？", AnswerText: "家族 家族"},
					QuestionPeriod: model.PeriodEvening,
				},
				// リンク切れで分類不能な回答は夜扱いで集計に入る
				{Answer: model.Answer{AnswerText: "散歩 散歩 散歩"}},
			}, nil
		},
	}

	text, err := newService(&mockEntryRepo{}, answers, &mockWeekRepo{}, &mockStreakRepo{}).Topics(context.Background(), "user-1", today())
	if err != nil {
		t.Fatalf("Topics returned error: %v", err)
	}

	if strings.Contains(text, "仕事") {
		t.Errorf("朝の回答の語が集計に入っています: %q", text)
	}
	if !strings.Contains(text, "1. 散歩（3回）") {
		t.Errorf("夜扱いの語が先頭にありません: %q", text)
	}
	if !strings.Contains(text, "2. 家族（2回）") {
		t.Errorf("夜の語が集計されていません: %q", text)
	}
}

// TestTokenize は記号区切りと小文字化の挙動を検証する。
func TestTokenize(t *testing.T) {
	words := tokenize("Morning Run、公園で10km！")
	want := map[string]bool{"morning": true, "run": true, "公園で10km": true}
	for _, w := range words {
		if !want[w] {
			t.Errorf("予期しない語: %q (all=%v)", w, words)
		}
	}
}
