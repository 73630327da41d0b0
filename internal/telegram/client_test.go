package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewClient_ReturnsNonNil(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	c := NewClient(http.DefaultClient, "test-token", logger, nil)
	if c == nil {
		t.Fatal("NewClient は nil を返してはならない")
	}
}

func TestClient_SendMessage_PostsJSONBody(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("HTTPメソッド = %s, want POST", r.Method)
		}
		gotPath = r.URL.Path

		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("リクエストボディのパースに失敗: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), "test-token", newTestLogger(&buf), nil)
	c.baseURL = server.URL

	options := [][]string{{"☀️ 朝", "🌙 夜"}, {"⬅️ メニューに戻る"}}
	err := c.SendMessage(context.Background(), 12345, "おはようございます", options)
	if err != nil {
		t.Fatalf("SendMessage がエラーを返した: %v", err)
	}

	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("リクエストパス = %s, want /bottest-token/sendMessage", gotPath)
	}
	if gotBody.ChatID != 12345 {
		t.Errorf("chat_id = %d, want 12345", gotBody.ChatID)
	}
	if gotBody.Text != "おはようございます" {
		t.Errorf("text = %q", gotBody.Text)
	}
	if gotBody.ReplyMarkup == nil {
		t.Fatal("reply_markupが設定されていません")
	}
	if len(gotBody.ReplyMarkup.Keyboard) != 2 {
		t.Errorf("キーボード行数 = %d, want 2", len(gotBody.ReplyMarkup.Keyboard))
	}
	if gotBody.ReplyMarkup.Keyboard[0][1].Text != "🌙 夜" {
		t.Errorf("ボタン文言 = %q, want 🌙 夜", gotBody.ReplyMarkup.Keyboard[0][1].Text)
	}
	if !gotBody.ReplyMarkup.ResizeKeyboard {
		t.Error("resize_keyboardが設定されていません")
	}
}

func TestClient_SendMessage_OmitsKeyboardWhenNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "reply_markup") {
			t.Errorf("キーボードなしの送信にreply_markupが含まれています: %s", body)
		}
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), "test-token", newTestLogger(&buf), nil)
	c.baseURL = server.URL

	if err := c.SendMessage(context.Background(), 1, "テスト", nil); err != nil {
		t.Fatalf("SendMessage がエラーを返した: %v", err)
	}
}

func TestClient_SendMessage_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok":false,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), "test-token", newTestLogger(&buf), nil)
	c.baseURL = server.URL

	err := c.SendMessage(context.Background(), 1, "テスト", nil)
	if err == nil {
		t.Fatal("APIエラーでerrorを返すべき")
	}
	if !strings.Contains(err.Error(), "blocked") {
		t.Errorf("エラーにAPIのdescriptionが含まれていません: %v", err)
	}
}

func TestClient_GetUpdates_ReturnsUpdates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Offset  int64 `json:"offset"`
			Timeout int   `json:"timeout"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("リクエストボディのパースに失敗: %v", err)
		}
		if req.Offset != 100 {
			t.Errorf("offset = %d, want 100", req.Offset)
		}
		if req.Timeout != 30 {
			t.Errorf("timeout = %d, want 30", req.Timeout)
		}

		w.Write([]byte(`{"ok":true,"result":[
			{"update_id":100,"message":{"message_id":1,"from":{"id":42,"first_name":"太郎","username":"taro"},"chat":{"id":42},"text":"/start"}},
			{"update_id":101,"message":{"message_id":2,"from":{"id":42,"first_name":"太郎"},"chat":{"id":42},"text":"☀️ 朝"}}
		]}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), "test-token", newTestLogger(&buf), nil)
	c.baseURL = server.URL

	updates, err := c.GetUpdates(context.Background(), 100, 30*time.Second)
	if err != nil {
		t.Fatalf("GetUpdates がエラーを返した: %v", err)
	}

	if len(updates) != 2 {
		t.Fatalf("更新件数 = %d, want 2", len(updates))
	}
	if updates[0].UpdateID != 100 || updates[1].UpdateID != 101 {
		t.Errorf("update_idが不正: %d, %d", updates[0].UpdateID, updates[1].UpdateID)
	}
	if updates[0].Message == nil || updates[0].Message.Text != "/start" {
		t.Errorf("1件目のメッセージが不正: %+v", updates[0].Message)
	}
	if updates[1].Message.From.ID != 42 {
		t.Errorf("from.id = %d, want 42", updates[1].Message.From.ID)
	}
}
