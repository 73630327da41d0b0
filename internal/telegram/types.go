// Package telegram はTelegram Bot APIのクライアントと更新の長時間ポーリングを提供する。
package telegram

import "encoding/json"

// Update はgetUpdatesが返す1件の更新を表す。
// メッセージ以外の更新（編集・コールバック等）はMessageがnilになる。
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message は受信メッセージを表す。
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// User はTelegram上のユーザーを表す。
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// Chat は会話の相手を表す。1対1のボットではユーザーIDと一致する。
type Chat struct {
	ID int64 `json:"id"`
}

// ReplyKeyboardMarkup はクイックリプライ用のキーボードを表す。
type ReplyKeyboardMarkup struct {
	Keyboard       [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard"`
}

// KeyboardButton はキーボードの1ボタンを表す。
// ボタンが押されるとその文言がそのままテキストメッセージとして届く。
type KeyboardButton struct {
	Text string `json:"text"`
}

// apiResponse はBot APIの共通レスポンスラッパー。
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}
