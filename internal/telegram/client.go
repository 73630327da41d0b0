package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/kansha/internal/metrics"
)

const (
	// defaultAPIBase はTelegram Bot APIのエンドポイント。
	defaultAPIBase = "https://api.telegram.org"
	// defaultSendRate は全体の送信レート（msg/sec）。Telegramの上限30に余裕を持たせる。
	defaultSendRate  = rate.Limit(25)
	defaultSendBurst = 5
)

// Client はTelegram Bot APIのクライアント。
// 送信はグローバルなレートリミッタを通る。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	limiter    *rate.Limiter
	baseURL    string // テスト用にエンドポイントを差し替え可能
	token      string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, token string, logger *slog.Logger, collector metrics.MetricsCollector) *Client {
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    collector,
		limiter:    rate.NewLimiter(defaultSendRate, defaultSendBurst),
		baseURL:    defaultAPIBase,
		token:      token,
	}
}

// sendMessageRequest はsendMessageのリクエストボディ。
type sendMessageRequest struct {
	ChatID      int64                `json:"chat_id"`
	Text        string               `json:"text"`
	ReplyMarkup *ReplyKeyboardMarkup `json:"reply_markup,omitempty"`
}

// SendMessage はテキストメッセージを送信する。
// optionsが非nilならクイックリプライのキーボードを付ける。
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, options [][]string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("送信レート制限の待機に失敗しました: %w", err)
	}

	req := sendMessageRequest{ChatID: chatID, Text: text}
	if options != nil {
		keyboard := make([][]KeyboardButton, 0, len(options))
		for _, row := range options {
			buttons := make([]KeyboardButton, 0, len(row))
			for _, label := range row {
				buttons = append(buttons, KeyboardButton{Text: label})
			}
			keyboard = append(keyboard, buttons)
		}
		req.ReplyMarkup = &ReplyKeyboardMarkup{Keyboard: keyboard, ResizeKeyboard: true}
	}

	start := time.Now()
	err := c.call(ctx, "sendMessage", req, nil)
	c.metrics.RecordSendLatency(time.Since(start))
	if err != nil {
		c.metrics.RecordSendFailure()
		c.logger.Error("メッセージの送信に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		return err
	}

	return nil
}

// GetUpdates は更新を長時間ポーリングで取得する。
// offsetには前回取得した最後のupdate_id+1を渡す。
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	req := struct {
		Offset  int64 `json:"offset"`
		Timeout int   `json:"timeout"`
	}{
		Offset:  offset,
		Timeout: int(timeout.Seconds()),
	}

	var updates []Update
	if err := c.call(ctx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// call はBot APIの1メソッドをJSONで呼び出す。resultが非nilなら結果をデコードする。
func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("Telegram APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	c.metrics.RecordTelegramStatus(resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var api apiResponse
	if err := json.Unmarshal(respBody, &api); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if !api.OK {
		return fmt.Errorf("Telegram APIがエラーを返しました（status %d）: %s", resp.StatusCode, api.Description)
	}

	if result != nil {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("レスポンス結果のパースに失敗しました: %w", err)
		}
	}

	return nil
}
