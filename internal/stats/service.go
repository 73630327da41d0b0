// Package stats は記録の集計と統計表示を組み立てる。
package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/hitoshi/kansha/internal/clock"
	"github.com/hitoshi/kansha/internal/model"
	"github.com/hitoshi/kansha/internal/repository"
	"github.com/hitoshi/kansha/internal/streak"
)

const (
	chartDays   = 14 // 日次チャートの対象日数
	weekdayDays = 56 // 曜日別集計の対象日数（8週間）
	topicsDays  = 30 // 頻出語集計の対象日数
	topicsCount = 10 // 頻出語の表示件数
)

// stopwords は頻出語集計から除外する、それ自体に意味の薄い語。
var stopwords = map[string]bool{
	"こと": true, "もの": true, "ため": true, "よう": true,
	"それ": true, "これ": true, "した": true, "する": true,
	"いる": true, "ある": true, "ない": true, "です": true,
	"ます": true, "今日": true, "とても": true, "少し": true,
	"the": true, "and": true, "was": true, "for": true,
}

// weekdayLabels は月曜始まりの曜日表示。
var weekdayLabels = []string{"月", "火", "水", "木", "金", "土", "日"}

// Service は統計表示のユースケースを提供する。
type Service struct {
	entries repository.EntryRepository
	answers repository.AnswerRepository
	weeks   repository.WeekRepository
	streaks *streak.Service
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(entries repository.EntryRepository, answers repository.AnswerRepository, weeks repository.WeekRepository, streaks *streak.Service) *Service {
	return &Service{entries: entries, answers: answers, weeks: weeks, streaks: streaks}
}

// General は全期間の完了状況・ストリーク・週の振り返りをまとめた表示文を返す。
func (s *Service) General(ctx context.Context, userID string) (string, error) {
	counts, err := s.entries.CountCompletion(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("完了状況の集計に失敗しました: %w", err)
	}

	state, err := s.streaks.Current(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("ストリーク状態の取得に失敗しました: %w", err)
	}

	cycleTotal, cycleCompleted, err := s.weeks.CountCycles(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("週次記録の集計に失敗しました: %w", err)
	}

	var b strings.Builder
	b.WriteString("📊 全体の統計\n\n")
	fmt.Fprintf(&b, "記録のある日: %d日\n", counts.Total)
	fmt.Fprintf(&b, "どちらか完了: %d日\n", counts.Any)
	fmt.Fprintf(&b, "朝夜とも完了: %d日\n\n", counts.Full)
	fmt.Fprintf(&b, "🔥 現在の連続記録: %d日\n", state.CurrentStreak)
	fmt.Fprintf(&b, "🏆 最長の連続記録: %d日\n\n", state.BestStreak)
	fmt.Fprintf(&b, "📅 週の振り返り: %d/%d週 完了", cycleCompleted, cycleTotal)

	return b.String(), nil
}

// Chart は直近14日の完了状況を絵文字で並べた表示文を返す。
// 🟩は朝夜両方完了、🟨はどちらか完了、⬜️は記録なしの日。
func (s *Service) Chart(ctx context.Context, userID string, today time.Time) (string, error) {
	from := today.AddDate(0, 0, -(chartDays - 1))

	entries, err := s.entries.ListByUserInRange(ctx, userID, from, today)
	if err != nil {
		return "", fmt.Errorf("記録の取得に失敗しました: %w", err)
	}

	byDate := make(map[string]cellKind, len(entries))
	for _, e := range entries {
		key := e.Date.Format("2006-01-02")
		switch {
		case e.CompletedMorning && e.CompletedEvening:
			byDate[key] = cellFull
		case e.CompletedMorning || e.CompletedEvening:
			byDate[key] = cellAny
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📈 %s 〜 %s の記録\n", clock.FormatDateShort(from), clock.FormatDateShort(today))
	for i := 0; i < chartDays; i++ {
		if i%7 == 0 {
			b.WriteString("\n")
		}
		d := from.AddDate(0, 0, i)
		switch byDate[d.Format("2006-01-02")] {
		case cellFull:
			b.WriteString("🟩")
		case cellAny:
			b.WriteString("🟨")
		default:
			b.WriteString("⬜️")
		}
	}
	b.WriteString("\n\n🟩 朝夜完了 / 🟨 どちらか完了 / ⬜️ 記録なし")

	return b.String(), nil
}

type cellKind int

const (
	cellNone cellKind = iota
	cellAny
	cellFull
)

// Weekday は直近8週間の曜日別の回答数を棒グラフで返す。
func (s *Service) Weekday(ctx context.Context, userID string, today time.Time) (string, error) {
	from := today.AddDate(0, 0, -(weekdayDays - 1))

	rows, err := s.answers.ListByUserInRange(ctx, userID, from, today)
	if err != nil {
		return "", fmt.Errorf("回答の取得に失敗しました: %w", err)
	}

	// time.Weekdayは日曜=0なので月曜始まりに詰め替える
	counts := make([]int, 7)
	max := 0
	for _, row := range rows {
		idx := (int(row.EntryDate.Weekday()) + 6) % 7
		counts[idx]++
		if counts[idx] > max {
			max = counts[idx]
		}
	}

	if max == 0 {
		return "この期間の記録はまだありません。", nil
	}

	var b strings.Builder
	b.WriteString("📊 曜日別の記録数（直近8週間）\n\n")
	for i, label := range weekdayLabels {
		bar := strings.Repeat("█", barLength(counts[i], max))
		fmt.Fprintf(&b, "%s %s %d\n", label, bar, counts[i])
	}

	return b.String(), nil
}

// barLength は最大値を10マスとして件数をバーの長さに換算する。
func barLength(count, max int) int {
	if count == 0 {
		return 0
	}
	n := count * 10 / max
	if n == 0 {
		n = 1
	}
	return n
}

// Topics は直近30日の夜の回答から頻出語の上位を返す。
// 朝の回答は意図や宣言の文面なので感謝の集計には含めない。
// 分類できない回答は夜のフロー由来とみなす（回答の分類規則と同じ扱い）。
// 分かち書きは空白と記号による素朴な分割で、2文字未満の語と定型語は除外する。
func (s *Service) Topics(ctx context.Context, userID string, today time.Time) (string, error) {
	from := today.AddDate(0, 0, -(topicsDays - 1))

	rows, err := s.answers.ListByUserInRange(ctx, userID, from, today)
	if err != nil {
		return "", fmt.Errorf("回答の取得に失敗しました: %w", err)
	}

	freq := make(map[string]int)
	for _, row := range rows {
		if model.ClassifyAnswerPeriod(row.QuestionPeriod, row.QuestionText) == model.PeriodMorning {
			continue
		}
		for _, word := range tokenize(row.AnswerText) {
			freq[word]++
		}
	}

	if len(freq) == 0 {
		return "この期間の記録はまだありません。", nil
	}

	type wordCount struct {
		word  string
		count int
	}
	ranked := make([]wordCount, 0, len(freq))
	for word, count := range freq {
		ranked = append(ranked, wordCount{word, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	if len(ranked) > topicsCount {
		ranked = ranked[:topicsCount]
	}

	var b strings.Builder
	b.WriteString("💬 よく出る言葉（直近30日）\n\n")
	for i, wc := range ranked {
		fmt.Fprintf(&b, "%d. %s（%d回）\n", i+1, wc.word, wc.count)
	}

	return b.String(), nil
}

// tokenize は回答文を語に分割する。文字・数字以外を区切りとして扱う。
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 || stopwords[f] {
			continue
		}
		words = append(words, f)
	}
	return words
}
