// Package history は過去の記録の閲覧・検索表示を組み立てる。
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/kansha/internal/clock"
	"github.com/hitoshi/kansha/internal/model"
	"github.com/hitoshi/kansha/internal/repository"
)

// searchLimit は検索結果の最大表示件数。
const searchLimit = 10

// Service は履歴表示のユースケースを提供する。
type Service struct {
	entries repository.EntryRepository
	answers repository.AnswerRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(entries repository.EntryRepository, answers repository.AnswerRepository) *Service {
	return &Service{entries: entries, answers: answers}
}

// ByDate は指定日の記録を時間帯ごとにまとめた表示文を返す。
// 記録がない日でもエラーにせず、その旨の文面を返す。
func (s *Service) ByDate(ctx context.Context, userID string, date time.Time) (string, error) {
	entry, err := s.entries.FindByUserAndDate(ctx, userID, date)
	if err != nil {
		return "", fmt.Errorf("記録の取得に失敗しました: %w", err)
	}
	if entry == nil {
		return fmt.Sprintf("%s の記録はありません。", clock.FormatDate(date)), nil
	}

	rows, err := s.answers.ListByEntry(ctx, entry.ID)
	if err != nil {
		return "", fmt.Errorf("回答の取得に失敗しました: %w", err)
	}

	// 分類できない回答は夜のブロックに出す。夜の質問はテンプレートに
	// 紐づかない固定文言で、構造的リンクを持たないため。
	var morning, evening []repository.AnswerRow
	for _, row := range rows {
		switch model.ClassifyAnswerPeriod(row.QuestionPeriod, row.QuestionText) {
		case model.PeriodMorning:
			morning = append(morning, row)
		default:
			evening = append(evening, row)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📖 %s の記録\n", clock.FormatDate(entry.Date))
	if entry.Mood != nil {
		fmt.Fprintf(&b, "気分: %d/5\n", *entry.Mood)
	}

	writeSection(&b, "☀️ 朝", morning)
	writeSection(&b, "🌙 夜", evening)

	if len(rows) == 0 {
		b.WriteString("\nこの日の回答はまだありません。")
	}

	return b.String(), nil
}

// Search は質問文・回答文の部分一致検索の結果表示を返す。新しい記録から最大10件。
func (s *Service) Search(ctx context.Context, userID, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "検索する言葉を入力してください。", nil
	}

	rows, err := s.answers.Search(ctx, userID, query, searchLimit)
	if err != nil {
		return "", fmt.Errorf("記録の検索に失敗しました: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Sprintf("「%s」に一致する記録は見つかりませんでした。", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 「%s」の検索結果（%d件）\n", query, len(rows))
	for _, row := range rows {
		fmt.Fprintf(&b, "\n%s %s\n%s\n", clock.FormatDate(row.EntryDate), row.QuestionText, row.AnswerText)
	}

	return b.String(), nil
}

// writeSection は時間帯1ブロック分の質問と回答を書き出す。回答がなければ何も出さない。
func writeSection(b *strings.Builder, title string, rows []repository.AnswerRow) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", title)
	for _, row := range rows {
		fmt.Fprintf(b, "%s\n→ %s\n", row.QuestionText, row.AnswerText)
	}
}
