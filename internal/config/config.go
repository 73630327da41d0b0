package config

import (
	"fmt"
	"os"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Telegram
	TelegramBotToken string
	PollTimeout      time.Duration // getUpdatesの長時間ポーリング待機時間
	TelegramTimeout  time.Duration // Bot API呼び出しのHTTPタイムアウト

	// Reminder
	RemindInterval time.Duration // リマインダー判定の実行間隔

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if cfg.TelegramBotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.PollTimeout = getEnvDuration("POLL_TIMEOUT", 30*time.Second)
	cfg.TelegramTimeout = getEnvDuration("TELEGRAM_TIMEOUT", 90*time.Second)
	// 判定はローカル時刻の分単位一致なので、1分未満の間隔だと同じ分に二重送信する
	cfg.RemindInterval = getEnvDuration("REMIND_INTERVAL", time.Minute)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	// HTTPタイムアウトが長時間ポーリングより短いと接続が毎回切れる
	if cfg.TelegramTimeout <= cfg.PollTimeout {
		cfg.TelegramTimeout = cfg.PollTimeout + 60*time.Second
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
