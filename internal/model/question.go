package model

import (
	"strings"
	"time"
)

// Period は質問が属する時間帯を表す。
type Period string

const (
	// PeriodMorning は朝の質問ブロック。
	PeriodMorning Period = "morning"
	// PeriodEvening は夜の質問ブロック。
	PeriodEvening Period = "evening"
	// PeriodWeekly は週単位の質問ブロック。
	PeriodWeekly Period = "weekly"
	// PeriodOther は分類できなかった回答のフォールバック。
	PeriodOther Period = "other"
)

// QuestionTemplate は質問文のテンプレートを表す。
// 質問をコードにハードコードせず、管理画面から編集できるようにするための器。
type QuestionTemplate struct {
	ID        string
	Code      string
	Text      string
	Period    Period
	Order     int
	IsActive  bool
	CreatedAt time.Time
}

// ClassifyAnswerPeriod は回答の時間帯を判定する。
// 構造的リンク（periodが判明している場合）を常に優先し、
// リンクが失われた回答に限りスナップショット文面のマーカーで二次判定する。
func ClassifyAnswerPeriod(linked Period, questionText string) Period {
	switch linked {
	case PeriodMorning, PeriodEvening, PeriodWeekly:
		return linked
	}
	return classifyPeriodByText(questionText)
}

// classifyPeriodByText はスナップショット文面から時間帯を推定する二次判定。
// 質問テンプレートが削除されリンクが切れた過去の回答のためだけに存在する。
func classifyPeriodByText(questionText string) Period {
	t := strings.ToLower(questionText)
	if strings.Contains(t, "☀️") || strings.Contains(t, "朝") {
		return PeriodMorning
	}
	if strings.Contains(t, "🌙") || strings.Contains(t, "夜") {
		return PeriodEvening
	}
	return PeriodOther
}
