package telegram

import (
	"context"
	"log/slog"
	"time"
)

// UpdateHandler は1件の更新を処理する。
// 実装はルーターで、エラーはそのメッセージの処理だけを打ち切る。
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update Update) error
}

// Poller はgetUpdatesの長時間ポーリングループ。
// 更新は受信順に1件ずつ処理する。同一ユーザーの並行処理は発生しない。
type Poller struct {
	client  *Client
	handler UpdateHandler
	logger  *slog.Logger
	timeout time.Duration // 長時間ポーリングの待機時間
	backoff time.Duration // API呼び出し失敗時の待機時間
}

// NewPoller はPollerの新しいインスタンスを生成する。
func NewPoller(client *Client, handler UpdateHandler, logger *slog.Logger, timeout time.Duration) *Poller {
	return &Poller{
		client:  client,
		handler: handler,
		logger:  logger,
		timeout: timeout,
		backoff: 5 * time.Second,
	}
}

// Run はポーリングループを開始する。ctxのキャンセルで停止する。
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Telegramポーリングを開始します",
		slog.Duration("timeout", p.timeout),
	)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Telegramポーリングを停止します")
			return
		default:
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("Telegramポーリングを停止します")
				return
			}
			p.logger.Error("更新の取得に失敗しました",
				slog.String("error", err.Error()),
			)
			p.sleep(ctx)
			continue
		}

		for _, update := range updates {
			p.dispatch(ctx, update)
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
		}
	}
}

// dispatch は1件の更新をハンドラーに渡す。
// 1件の失敗やパニックが他の更新の処理を止めないよう隔離する。
func (p *Poller) dispatch(ctx context.Context, update Update) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("更新処理中にパニックが発生しました",
				slog.Int64("update_id", update.UpdateID),
				slog.Any("panic", r),
			)
		}
	}()

	if err := p.handler.HandleUpdate(ctx, update); err != nil {
		p.logger.Error("更新の処理に失敗しました",
			slog.Int64("update_id", update.UpdateID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Poller) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.backoff):
	}
}
