package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/kansha/internal/clock"
	"github.com/hitoshi/kansha/internal/conversation"
	"github.com/hitoshi/kansha/internal/history"
	"github.com/hitoshi/kansha/internal/metrics"
	"github.com/hitoshi/kansha/internal/model"
	"github.com/hitoshi/kansha/internal/repository"
	"github.com/hitoshi/kansha/internal/stats"
	"github.com/hitoshi/kansha/internal/telegram"
	"github.com/hitoshi/kansha/internal/week"
)

// Sender は応答メッセージの送信先を抽象化する。実体はtelegram.Client。
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, options [][]string) error
}

// メニュー入力待ちの画面状態。FlowMenuセッションのStateに入る。
const (
	stateHistoryDate = "history_date"
	stateSearch      = "history_search"
	stateTimezone    = "settings_timezone"
	stateMorningTime = "settings_morning_time"
	stateEveningTime = "settings_evening_time"
	stateWeekStart   = "settings_week_start"

	// offerPrefix は完了済みフローのやり直し確認中を表す。後ろにフロー名が続く。
	offerPrefix = "offer:"
)

const msgPickFromMenu = "メニューから選んでください。"

// Router は受信メッセージをユースケースに振り分けるハンドラー。
// telegram.UpdateHandlerを実装し、ポーリングループから1件ずつ呼び出される。
type Router struct {
	users    repository.UserRepository
	settings repository.SettingsRepository
	sessions repository.SessionRepository
	engine   *conversation.Engine
	history  *history.Service
	stats    *stats.Service
	resolver *week.Resolver
	sender   Sender
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// NewRouter はRouterの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewRouter(
	users repository.UserRepository,
	settings repository.SettingsRepository,
	sessions repository.SessionRepository,
	engine *conversation.Engine,
	historySvc *history.Service,
	statsSvc *stats.Service,
	resolver *week.Resolver,
	sender Sender,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Router {
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &Router{
		users:    users,
		settings: settings,
		sessions: sessions,
		engine:   engine,
		history:  historySvc,
		stats:    statsSvc,
		resolver: resolver,
		sender:   sender,
		logger:   logger,
		metrics:  collector,
		now:      time.Now,
	}
}

// HandleUpdate は1件の更新を処理して応答を送信する。
// メッセージ以外の更新とボットからのメッセージは黙って読み飛ばす。
func (r *Router) HandleUpdate(ctx context.Context, update telegram.Update) error {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return nil
	}

	reply, err := r.route(ctx, msg)
	if err != nil {
		r.metrics.RecordUpdateFailure()
		r.logger.Error("メッセージの処理に失敗しました",
			slog.Int64("telegram_id", msg.From.ID),
			slog.String("error", err.Error()),
		)
		// 処理に失敗してもユーザーを無言で放置しない
		sendErr := r.sender.SendMessage(ctx, msg.Chat.ID,
			"エラーが発生しました。時間をおいてもう一度お試しください。", MainMenu())
		if sendErr != nil {
			return sendErr
		}
		return err
	}

	if err := r.sender.SendMessage(ctx, msg.Chat.ID, reply.Text, reply.Options); err != nil {
		return err
	}
	r.metrics.RecordUpdateProcessed()
	return nil
}

// route はメッセージ1通を適切なハンドラーに振り分ける。
func (r *Router) route(ctx context.Context, msg *telegram.Message) (conversation.Reply, error) {
	user, err := r.users.GetOrCreateByTelegramID(ctx, msg.From.ID, msg.From.Username, msg.From.FirstName, msg.From.LastName)
	if err != nil {
		return conversation.Reply{}, fmt.Errorf("ユーザーの解決に失敗しました: %w", err)
	}

	st, err := r.settings.GetOrCreateByUserID(ctx, user.ID)
	if err != nil {
		return conversation.Reply{}, fmt.Errorf("設定の解決に失敗しました: %w", err)
	}

	loc := clock.Resolve(st.Timezone)
	today := clock.LocalDate(r.now(), loc)
	text := strings.TrimSpace(msg.Text)

	session, err := r.sessions.Find(ctx, user.ID)
	if err != nil {
		return conversation.Reply{}, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}

	if session != nil {
		if session.Flow == model.FlowMenu {
			return r.handleMenuState(ctx, user, st, session, text, today)
		}
		return r.engine.HandleMessage(ctx, session, text)
	}

	return r.handleIdle(ctx, user, st, text, today)
}

// handleIdle はセッションがない状態のメッセージを処理する。
func (r *Router) handleIdle(ctx context.Context, user *model.User, st *model.Settings, text string, today time.Time) (conversation.Reply, error) {
	switch text {
	case "/start":
		return conversation.Reply{
			Text: fmt.Sprintf(
				"こんにちは、%sさん！\n毎日の感謝と振り返りを記録するボットです。\nメニューから始めてください。",
				user.DisplayName()),
			Options: MainMenu(),
		}, nil

	case LabelMorning:
		return r.startFlow(ctx, model.FlowMorning, user.ID, today)
	case LabelEvening:
		return r.startFlow(ctx, model.FlowEvening, user.ID, today)
	case LabelWeek:
		return r.startFlow(ctx, model.FlowWeek, user.ID, today)

	case LabelToday:
		view, err := r.history.ByDate(ctx, user.ID, today)
		if err != nil {
			return conversation.Reply{}, err
		}
		return conversation.Reply{Text: view, Options: MainMenu()}, nil

	case LabelHistory:
		return conversation.Reply{Text: "履歴の見方を選んでください。", Options: historyMenu()}, nil
	case LabelHistoryByDate:
		if err := r.saveMenuSession(ctx, user.ID, stateHistoryDate); err != nil {
			return conversation.Reply{}, err
		}
		return conversation.Reply{
			Text:    "見たい日付をYYYY/MM/DD形式で入力するか、ボタンから選んでください。",
			Options: dateShortcuts(),
		}, nil
	case LabelHistorySearch:
		if err := r.saveMenuSession(ctx, user.ID, stateSearch); err != nil {
			return conversation.Reply{}, err
		}
		return conversation.Reply{Text: "検索する言葉を入力してください。", Options: cancelOnly()}, nil

	case LabelStats:
		return conversation.Reply{Text: "見たい統計を選んでください。", Options: statsMenu()}, nil
	case LabelStatsGeneral:
		return r.statsReply(r.stats.General(ctx, user.ID))
	case LabelStatsChart:
		return r.statsReply(r.stats.Chart(ctx, user.ID, today))
	case LabelStatsWeekday:
		return r.statsReply(r.stats.Weekday(ctx, user.ID, today))
	case LabelStatsTopics:
		return r.statsReply(r.stats.Topics(ctx, user.ID, today))

	case conversation.LabelCancel:
		return conversation.Reply{Text: "メニューに戻りました。", Options: MainMenu()}, nil
	}

	if reply, handled, err := r.handleSettingsInput(ctx, user.ID, st, text); handled || err != nil {
		return reply, err
	}

	return conversation.Reply{Text: msgPickFromMenu, Options: MainMenu()}, nil
}

// startFlow はフローを開始し、完了済みならやり直し確認のセッションを置く。
func (r *Router) startFlow(ctx context.Context, flow model.Flow, userID string, today time.Time) (conversation.Reply, error) {
	reply, started, err := r.engine.Start(ctx, flow, userID, today)
	if err != nil {
		return conversation.Reply{}, err
	}

	if !started {
		// やり直し・回答表示のボタン入力を受けるための画面状態
		if err := r.saveMenuSession(ctx, userID, offerPrefix+string(flow)); err != nil {
			return conversation.Reply{}, err
		}
	}
	return reply, nil
}

// handleMenuState はメニュー入力待ちセッションへのメッセージを処理する。
func (r *Router) handleMenuState(ctx context.Context, user *model.User, st *model.Settings, session *model.Session, text string, today time.Time) (conversation.Reply, error) {
	if text == conversation.LabelCancel {
		if err := r.sessions.Delete(ctx, user.ID); err != nil {
			return conversation.Reply{}, err
		}
		return conversation.Reply{Text: "メニューに戻りました。", Options: MainMenu()}, nil
	}

	if flow, ok := strings.CutPrefix(session.State, offerPrefix); ok {
		return r.handleOffer(ctx, user, model.Flow(flow), text, today)
	}

	switch session.State {
	case stateHistoryDate:
		return r.handleHistoryDate(ctx, user.ID, text, today)

	case stateSearch:
		if err := r.sessions.Delete(ctx, user.ID); err != nil {
			return conversation.Reply{}, err
		}
		view, err := r.history.Search(ctx, user.ID, text)
		if err != nil {
			return conversation.Reply{}, err
		}
		return conversation.Reply{Text: view, Options: MainMenu()}, nil

	case stateTimezone, stateMorningTime, stateEveningTime, stateWeekStart:
		return r.handleSettingsState(ctx, user.ID, st, session.State, text)
	}

	// 旧バージョンが残した未知の画面状態。消して仕切り直す。
	if err := r.sessions.Delete(ctx, user.ID); err != nil {
		return conversation.Reply{}, err
	}
	return conversation.Reply{Text: msgPickFromMenu, Options: MainMenu()}, nil
}

// handleOffer は完了済みフローに対するやり直し・閲覧の選択を処理する。
func (r *Router) handleOffer(ctx context.Context, user *model.User, flow model.Flow, text string, today time.Time) (conversation.Reply, error) {
	switch text {
	case conversation.LabelRedo:
		// Redoが新しいフローセッションを保存するので、確認用セッションは上書きで消える
		return r.engine.Redo(ctx, flow, user.ID, today)

	case conversation.LabelView:
		if err := r.sessions.Delete(ctx, user.ID); err != nil {
			return conversation.Reply{}, err
		}
		if flow == model.FlowWeek {
			view, err := r.weekView(ctx, user.ID, today)
			if err != nil {
				return conversation.Reply{}, err
			}
			return conversation.Reply{Text: view, Options: MainMenu()}, nil
		}
		view, err := r.history.ByDate(ctx, user.ID, today)
		if err != nil {
			return conversation.Reply{}, err
		}
		return conversation.Reply{Text: view, Options: MainMenu()}, nil
	}

	return conversation.Reply{
		Text:    "ボタンから選んでください。",
		Options: [][]string{{conversation.LabelRedo, conversation.LabelView}, {conversation.LabelCancel}},
	}, nil
}

// handleHistoryDate は履歴の日付入力を処理する。解釈できない入力は再プロンプトする。
func (r *Router) handleHistoryDate(ctx context.Context, userID, text string, today time.Time) (conversation.Reply, error) {
	var date time.Time
	switch text {
	case LabelDateToday:
		date = today
	case LabelDateYesterday:
		date = today.AddDate(0, 0, -1)
	case LabelDateTwoAgo:
		date = today.AddDate(0, 0, -2)
	default:
		parsed, err := clock.ParseDate(text)
		if err != nil {
			return conversation.Reply{
				Text:    "日付を読み取れませんでした。YYYY/MM/DD形式で入力してください。",
				Options: dateShortcuts(),
			}, nil
		}
		date = parsed
	}

	if err := r.sessions.Delete(ctx, userID); err != nil {
		return conversation.Reply{}, err
	}

	view, err := r.history.ByDate(ctx, userID, date)
	if err != nil {
		return conversation.Reply{}, err
	}
	return conversation.Reply{Text: view, Options: MainMenu()}, nil
}

// weekView は今週の記録のまとめ表示を組み立てる。
func (r *Router) weekView(ctx context.Context, userID string, today time.Time) (string, error) {
	st, err := r.settings.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return "", err
	}

	cycle, err := r.resolver.CurrentCycle(ctx, userID, today, st.WeekStart)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 %s 〜 %s の振り返り\n",
		clock.FormatDateShort(cycle.WeekStart), clock.FormatDateShort(cycle.WeekEnd))

	task, err := r.resolver.TaskFor(ctx, cycle)
	if err != nil {
		return "", err
	}
	if task != nil {
		fmt.Fprintf(&b, "\n今週の課題: %s\n", task.Title)
	}

	if cycle.MidReflection != "" {
		fmt.Fprintf(&b, "\nうまくいったこと:\n%s\n", cycle.MidReflection)
	}
	if cycle.FinalReflection != "" {
		fmt.Fprintf(&b, "\n学んだこと:\n%s\n", cycle.FinalReflection)
	}
	if cycle.MidReflection == "" && cycle.FinalReflection == "" {
		b.WriteString("\n今週の振り返りはまだ記録されていません。")
	}

	return b.String(), nil
}

// saveMenuSession はメニュー入力待ちの画面状態を保存する。
func (r *Router) saveMenuSession(ctx context.Context, userID, state string) error {
	session := &model.Session{
		UserID: userID,
		Flow:   model.FlowMenu,
		State:  state,
	}
	if err := r.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("画面状態の保存に失敗しました: %w", err)
	}
	return nil
}

func (r *Router) statsReply(text string, err error) (conversation.Reply, error) {
	if err != nil {
		return conversation.Reply{}, err
	}
	return conversation.Reply{Text: text, Options: statsMenu()}, nil
}
