// Package conversation は複数ステップの質問フローを進める状態機械を提供する。
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kansha/internal/model"
	"github.com/hitoshi/kansha/internal/repository"
)

// ErrQuestionNotFound はスナップショットに残る質問IDが解決できないことを表す。
// フロー進行中にテンプレートが削除された場合に発生する。
var ErrQuestionNotFound = errors.New("質問が見つかりません")

// Question はフローの1ステップ分の質問を表す。
// TemplateIDはquestion_templatesの行を指す場合のみ設定され、
// 固定文言のフローでは空になる。
type Question struct {
	ID         string // セッションに保存される識別子
	TemplateID string
	Text       string
}

// FlowSource はフローの質問列を提供する。
// テンプレート駆動と固定文言の2実装があり、フロー種別で選択される。
type FlowSource interface {
	// Questions はフロー開始時点の質問列を順序どおりに返す。
	Questions(ctx context.Context, userID string) ([]Question, error)

	// QuestionByID はセッションに保存されたIDから質問を解決する。
	// 解決できない場合はErrQuestionNotFoundを返す。
	QuestionByID(ctx context.Context, id string) (Question, error)
}

// templateSource はquestion_templatesテーブルから質問を引くFlowSource。
type templateSource struct {
	questions repository.QuestionRepository
	period    model.Period
}

// NewTemplateSource はテンプレート駆動のFlowSourceを生成する。
func NewTemplateSource(questions repository.QuestionRepository, period model.Period) FlowSource {
	return &templateSource{questions: questions, period: period}
}

func (s *templateSource) Questions(ctx context.Context, userID string) ([]Question, error) {
	templates, err := s.questions.ListActiveByPeriod(ctx, s.period)
	if err != nil {
		return nil, err
	}

	qs := make([]Question, 0, len(templates))
	for _, t := range templates {
		qs = append(qs, Question{ID: t.ID, TemplateID: t.ID, Text: t.Text})
	}
	return qs, nil
}

func (s *templateSource) QuestionByID(ctx context.Context, id string) (Question, error) {
	t, err := s.questions.FindByID(ctx, id)
	if err != nil {
		return Question{}, err
	}
	if t == nil {
		return Question{}, ErrQuestionNotFound
	}
	return Question{ID: t.ID, TemplateID: t.ID, Text: t.Text}, nil
}

// literalSource は固定の質問列を返すFlowSource。
type literalSource struct {
	items []Question
}

// NewLiteralSource は固定文言のFlowSourceを生成する。
func NewLiteralSource(items []Question) FlowSource {
	return &literalSource{items: items}
}

func (s *literalSource) Questions(ctx context.Context, userID string) ([]Question, error) {
	qs := make([]Question, len(s.items))
	copy(qs, s.items)
	return qs, nil
}

func (s *literalSource) QuestionByID(ctx context.Context, id string) (Question, error) {
	for _, q := range s.items {
		if q.ID == id {
			return q, nil
		}
	}
	return Question{}, ErrQuestionNotFound
}

// EveningQuestions は夜のフローの固定質問列。
func EveningQuestions() []Question {
	return []Question{
		{ID: "gratitude_1", Text: "🌙 今日感謝したいことを3つ教えてください。まず1つ目は？"},
		{ID: "gratitude_2", Text: "2つ目は？"},
		{ID: "gratitude_3", Text: "3つ目は？"},
		{ID: "best_event", Text: "今日いちばん良かった出来事は何ですか？"},
	}
}

// WeekQuestions は週の振り返りフローの固定質問列。
// ステップ順がweekly_cyclesのmid_reflection、final_reflectionに対応する。
func WeekQuestions() []Question {
	return []Question{
		{ID: "week_mid", Text: "📅 今週を振り返ってみましょう。うまくいったことは何ですか？"},
		{ID: "week_final", Text: "今週の経験から学んだこと、来週に活かしたいことは？"},
	}
}

// defaultMorningQuestions は初回起動時に投入される朝の質問テンプレート。
var defaultMorningQuestions = []struct {
	code string
	text string
}{
	{"morning_grateful", "☀️ おはようございます！今朝、感謝していることは何ですか？"},
	{"morning_great_day", "今日をすばらしい一日にするために、何をしますか？"},
	{"morning_affirmation", "今日の自分へのひとことをどうぞ。"},
}

// EnsureMorningDefaults は朝の質問テンプレートが1件もなければ既定の質問を投入する。
// 既存のテンプレートがある場合（無効化済みも含む）は何もしない。
func EnsureMorningDefaults(ctx context.Context, questions repository.QuestionRepository) error {
	count, err := questions.CountByPeriod(ctx, model.PeriodMorning)
	if err != nil {
		return fmt.Errorf("朝の質問数の取得に失敗しました: %w", err)
	}
	if count > 0 {
		return nil
	}

	for i, d := range defaultMorningQuestions {
		q := &model.QuestionTemplate{
			ID:        uuid.New().String(),
			Code:      d.code,
			Text:      d.text,
			Period:    model.PeriodMorning,
			Order:     i,
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		}
		if err := questions.Create(ctx, q); err != nil {
			return fmt.Errorf("朝の質問テンプレートの投入に失敗しました: %w", err)
		}
	}
	return nil
}
