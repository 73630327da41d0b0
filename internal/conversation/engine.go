package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/kansha/internal/metrics"
	"github.com/hitoshi/kansha/internal/model"
	"github.com/hitoshi/kansha/internal/repository"
)

// ユーザーに見えるボタン文言。ルーターはこの文言との完全一致で選択を読み取る。
const (
	LabelCancel = "⬅️ メニューに戻る"
	LabelRedo   = "🔄 やり直す"
	LabelView   = "👀 回答を見る"
)

const (
	msgReturned    = "メニューに戻りました。"
	msgEmpty       = "空の回答は記録できません。もう一度入力してください。"
	msgSessionLost = "セッションが見つかりませんでした。お手数ですが、メニューからもう一度始めてください。"
)

// Reply はフローがユーザーに返す応答を表す。
// Optionsはクイックリプライとして表示するボタン文言の行列。nilならキーボードを変えない。
type Reply struct {
	Text    string
	Options [][]string
}

// FlowConfig はフロー1種別分の構成を表す。
type FlowConfig struct {
	Title  string // 「朝の記録」のような表示名
	Source FlowSource
	Target FlowTarget
}

// Engine は質問フローをステップ実行する状態機械。
// セッションはユーザーにつき最大1件で、別フローの開始は古いセッションを暗黙に上書きする。
type Engine struct {
	sessions repository.SessionRepository
	flows    map[model.Flow]FlowConfig
	menu     [][]string // 完了・キャンセル時に復元するメインメニュー
	metrics  metrics.MetricsCollector
}

// NewEngine はEngineの新しいインスタンスを生成する。
// menuにはフロー終了時に復元するメインメニューのボタン行列を渡す。
// collectorがnilの場合はメトリクスを記録しない。
func NewEngine(sessions repository.SessionRepository, menu [][]string, collector metrics.MetricsCollector) *Engine {
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &Engine{
		sessions: sessions,
		flows:    make(map[model.Flow]FlowConfig),
		menu:     menu,
		metrics:  collector,
	}
}

// Register はフロー種別に構成を登録する。
func (e *Engine) Register(flow model.Flow, cfg FlowConfig) {
	e.flows[flow] = cfg
}

// Knows は指定のフロー種別が登録済みかどうかを返す。
func (e *Engine) Knows(flow model.Flow) bool {
	_, ok := e.flows[flow]
	return ok
}

// Start はフローを開始する。todayはユーザーのローカル日付。
// 対象がすでに完了済みなら質問に入らず、やり直しの選択肢を提示する。
// 返り値のstartedは質問フローが実際に始まったかどうかを示す。
func (e *Engine) Start(ctx context.Context, flow model.Flow, userID string, today time.Time) (Reply, bool, error) {
	cfg, ok := e.flows[flow]
	if !ok {
		return Reply{}, false, fmt.Errorf("未登録のフローです: %s", flow)
	}

	targetID, completed, err := cfg.Target.Prepare(ctx, userID, today)
	if err != nil {
		return Reply{}, false, fmt.Errorf("フローの開始に失敗しました: %w", err)
	}

	if completed {
		return Reply{
			Text:    fmt.Sprintf("%sはすでに完了しています。", cfg.Title),
			Options: [][]string{{LabelRedo, LabelView}, {LabelCancel}},
		}, false, nil
	}

	reply, err := e.begin(ctx, flow, cfg, userID, targetID)
	if err != nil {
		return Reply{}, false, err
	}
	return reply, true, nil
}

// Redo は完了済みフローの回答を消してやり直す。
// 消えるのは対象フローの回答だけで、同じ日の他フローの回答は残る。
func (e *Engine) Redo(ctx context.Context, flow model.Flow, userID string, today time.Time) (Reply, error) {
	cfg, ok := e.flows[flow]
	if !ok {
		return Reply{}, fmt.Errorf("未登録のフローです: %s", flow)
	}

	targetID, _, err := cfg.Target.Prepare(ctx, userID, today)
	if err != nil {
		return Reply{}, fmt.Errorf("やり直しの準備に失敗しました: %w", err)
	}

	if err := cfg.Target.Reset(ctx, userID, targetID); err != nil {
		return Reply{}, fmt.Errorf("回答のクリアに失敗しました: %w", err)
	}

	return e.begin(ctx, flow, cfg, userID, targetID)
}

// begin は質問列を確定してセッションを保存し、最初の質問を返す。
func (e *Engine) begin(ctx context.Context, flow model.Flow, cfg FlowConfig, userID, targetID string) (Reply, error) {
	questions, err := cfg.Source.Questions(ctx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("質問列の取得に失敗しました: %w", err)
	}
	if len(questions) == 0 {
		return Reply{}, fmt.Errorf("フロー %s に質問が設定されていません", flow)
	}

	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}

	// 開始時点の質問列をセッションに固定する。
	// フロー進行中にテンプレートが編集されてもステップがずれない。
	session := &model.Session{
		UserID:      userID,
		Flow:        flow,
		TargetID:    targetID,
		QuestionIDs: ids,
		Step:        0,
	}
	if err := e.sessions.Save(ctx, session); err != nil {
		return Reply{}, fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}

	return Reply{
		Text:    questions[0].Text,
		Options: [][]string{{LabelCancel}},
	}, nil
}

// HandleMessage は進行中フローへの1通のメッセージを処理する。
// sessionがnilの場合はセッション消失として扱い、復旧手順をユーザーに伝える。
func (e *Engine) HandleMessage(ctx context.Context, session *model.Session, text string) (Reply, error) {
	if session == nil {
		return Reply{Text: msgSessionLost, Options: e.menu}, nil
	}

	cfg, ok := e.flows[session.Flow]
	if !ok {
		// 旧バージョンが残した未知のフロー。消して仕切り直す。
		if err := e.sessions.Delete(ctx, session.UserID); err != nil {
			return Reply{}, err
		}
		return Reply{Text: msgSessionLost, Options: e.menu}, nil
	}

	text = strings.TrimSpace(text)

	if text == LabelCancel {
		if err := e.sessions.Delete(ctx, session.UserID); err != nil {
			return Reply{}, fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
		return Reply{Text: msgReturned, Options: e.menu}, nil
	}

	if text == "" {
		return Reply{Text: msgEmpty, Options: [][]string{{LabelCancel}}}, nil
	}

	if session.Step < 0 || session.Step >= len(session.QuestionIDs) || session.TargetID == "" {
		return e.abandon(ctx, session.UserID)
	}

	q, err := cfg.Source.QuestionByID(ctx, session.QuestionIDs[session.Step])
	if err != nil {
		if errors.Is(err, ErrQuestionNotFound) {
			// フロー進行中に質問が消された。状態を推測せず仕切り直す。
			return e.abandon(ctx, session.UserID)
		}
		return Reply{}, fmt.Errorf("質問の解決に失敗しました: %w", err)
	}

	nextStep := session.Step + 1

	if err := cfg.Target.SaveStep(ctx, session.UserID, session.TargetID, q, text, session.Step, nextStep); err != nil {
		return Reply{}, fmt.Errorf("回答の保存に失敗しました: %w", err)
	}
	session.Step = nextStep

	if nextStep == len(session.QuestionIDs) {
		message, err := cfg.Target.Complete(ctx, session.UserID, session.TargetID)
		if err != nil {
			return Reply{}, fmt.Errorf("フローの完了処理に失敗しました: %w", err)
		}
		if err := e.sessions.Delete(ctx, session.UserID); err != nil {
			return Reply{}, fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
		e.metrics.RecordFlowCompleted(string(session.Flow))
		return Reply{Text: message, Options: e.menu}, nil
	}

	next, err := cfg.Source.QuestionByID(ctx, session.QuestionIDs[nextStep])
	if err != nil {
		if errors.Is(err, ErrQuestionNotFound) {
			return e.abandon(ctx, session.UserID)
		}
		return Reply{}, fmt.Errorf("次の質問の解決に失敗しました: %w", err)
	}

	return Reply{Text: next.Text, Options: [][]string{{LabelCancel}}}, nil
}

// abandon は復旧不能なセッションを破棄してユーザーに仕切り直しを伝える。
func (e *Engine) abandon(ctx context.Context, userID string) (Reply, error) {
	if err := e.sessions.Delete(ctx, userID); err != nil {
		return Reply{}, fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	return Reply{Text: msgSessionLost, Options: e.menu}, nil
}
