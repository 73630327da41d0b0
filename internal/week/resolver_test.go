package week

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/kansha/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestWeekStartFor は週開始曜日の設定ごとに週開始日が正しく計算されることを検証する。
func TestWeekStartFor(t *testing.T) {
	tests := []struct {
		name      string
		today     time.Time
		weekStart int
		want      time.Time
	}{
		// 2026-08-31は月曜
		{"月曜開始_当日が月曜", date(2026, 8, 31), 1, date(2026, 8, 31)},
		{"月曜開始_当日が日曜", date(2026, 9, 6), 1, date(2026, 8, 31)},
		{"月曜開始_当日が水曜", date(2026, 9, 2), 1, date(2026, 8, 31)},
		{"日曜開始_当日が日曜", date(2026, 9, 6), 7, date(2026, 9, 6)},
		{"日曜開始_当日が月曜", date(2026, 8, 31), 7, date(2026, 8, 30)},
		{"水曜開始_当日が火曜", date(2026, 9, 1), 3, date(2026, 8, 26)},
		{"水曜開始_当日が水曜", date(2026, 9, 2), 3, date(2026, 9, 2)},
		{"不正な曜日番号は月曜扱い", date(2026, 9, 2), 0, date(2026, 8, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeekStartFor(tt.today, tt.weekStart)
			if !got.Equal(tt.want) {
				t.Errorf("WeekStartFor(%v, %d) = %v, want %v", tt.today, tt.weekStart, got, tt.want)
			}
		})
	}
}

// mockWeekRepo はWeekRepositoryのモック実装。
type mockWeekRepo struct {
	cycle      *model.WeeklyCycle
	activeTask *model.WeeklyTask
	boundTask  string
}

func (m *mockWeekRepo) FindCycleByID(ctx context.Context, id string) (*model.WeeklyCycle, error) {
	return m.cycle, nil
}

func (m *mockWeekRepo) GetOrCreateCycle(ctx context.Context, userID string, weekStart, weekEnd time.Time) (*model.WeeklyCycle, bool, error) {
	if m.cycle != nil {
		return m.cycle, false, nil
	}
	m.cycle = &model.WeeklyCycle{
		ID: "cycle-1", UserID: userID,
		WeekStart: weekStart, WeekEnd: weekEnd,
	}
	return m.cycle, true, nil
}

func (m *mockWeekRepo) FindCycleCovering(ctx context.Context, userID string, d time.Time) (*model.WeeklyCycle, error) {
	return m.cycle, nil
}

func (m *mockWeekRepo) BindTask(ctx context.Context, cycleID, taskID string) error {
	m.boundTask = taskID
	return nil
}

func (m *mockWeekRepo) SaveReflectionWithSessionStep(ctx context.Context, cycleID string, step int, text string, userID string, nextStep int) error {
	return nil
}

func (m *mockWeekRepo) CompleteCycle(ctx context.Context, cycleID string) error { return nil }
func (m *mockWeekRepo) ResetCycle(ctx context.Context, cycleID string) error    { return nil }

func (m *mockWeekRepo) ListCyclesSince(ctx context.Context, userID string, since time.Time) ([]*model.WeeklyCycle, error) {
	return nil, nil
}

func (m *mockWeekRepo) CountCycles(ctx context.Context, userID string) (int, int, error) {
	return 0, 0, nil
}

func (m *mockWeekRepo) FindActiveTask(ctx context.Context, isoYear, isoWeek int) (*model.WeeklyTask, error) {
	return m.activeTask, nil
}

func (m *mockWeekRepo) FindTaskByID(ctx context.Context, id string) (*model.WeeklyTask, error) {
	if m.activeTask != nil && m.activeTask.ID == id {
		return m.activeTask, nil
	}
	return nil, nil
}

// TestCurrentCycle_CreatesAndBindsTask は新規の週次記録にアクティブな課題が
// 紐付けられることを検証する。
func TestCurrentCycle_CreatesAndBindsTask(t *testing.T) {
	repo := &mockWeekRepo{activeTask: &model.WeeklyTask{ID: "task-1", Title: "散歩する"}}
	r := NewResolver(repo)

	cycle, err := r.CurrentCycle(context.Background(), "user-1", date(2026, 9, 2), 1)
	if err != nil {
		t.Fatalf("CurrentCycle returned error: %v", err)
	}

	if !cycle.WeekStart.Equal(date(2026, 8, 31)) {
		t.Errorf("WeekStart = %v, want 2026-08-31", cycle.WeekStart)
	}
	if !cycle.WeekEnd.Equal(date(2026, 9, 6)) {
		t.Errorf("WeekEnd = %v, want 2026-09-06", cycle.WeekEnd)
	}
	if cycle.TaskID != "task-1" {
		t.Errorf("TaskID = %q, want %q", cycle.TaskID, "task-1")
	}
	if repo.boundTask != "task-1" {
		t.Errorf("BindTaskが呼ばれていません: boundTask = %q", repo.boundTask)
	}
}

// TestCurrentCycle_KeepsExistingTask は紐付け済みの課題が付け替えられないことを検証する。
func TestCurrentCycle_KeepsExistingTask(t *testing.T) {
	repo := &mockWeekRepo{
		cycle: &model.WeeklyCycle{
			ID: "cycle-1", UserID: "user-1", TaskID: "task-old",
			WeekStart: date(2026, 8, 31), WeekEnd: date(2026, 9, 6),
		},
		activeTask: &model.WeeklyTask{ID: "task-new"},
	}
	r := NewResolver(repo)

	cycle, err := r.CurrentCycle(context.Background(), "user-1", date(2026, 9, 2), 1)
	if err != nil {
		t.Fatalf("CurrentCycle returned error: %v", err)
	}

	if cycle.TaskID != "task-old" {
		t.Errorf("TaskID = %q, want %q", cycle.TaskID, "task-old")
	}
	if repo.boundTask != "" {
		t.Errorf("紐付け済みの週でBindTaskが呼ばれるべきではありません: %q", repo.boundTask)
	}
}

// TestCurrentCycle_NoActiveTask はアクティブ課題がない週に紐付けが起きないことを検証する。
func TestCurrentCycle_NoActiveTask(t *testing.T) {
	repo := &mockWeekRepo{}
	r := NewResolver(repo)

	cycle, err := r.CurrentCycle(context.Background(), "user-1", date(2026, 9, 2), 1)
	if err != nil {
		t.Fatalf("CurrentCycle returned error: %v", err)
	}

	if cycle.TaskID != "" {
		t.Errorf("TaskID = %q, want empty", cycle.TaskID)
	}
}
