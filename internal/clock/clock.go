// Package clock はユーザー設定のタイムゾーン文字列を解決し、
// 「このユーザーにとっての今日」を決定するための純粋関数を提供する。
// 日付の判定は必ず本パッケージを経由し、サーバーのローカル時計を直接使わない。
package clock

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// utcOffsetRe は固定オフセット形式（UTC、UTC+3、UTC-9、UTC+9:30）にマッチする。
var utcOffsetRe = regexp.MustCompile(`^UTC(?:([+-])(\d{1,2})(?::(\d{2}))?)?$`)

// Resolve はタイムゾーン設定文字列を*time.Locationに解決する。
// 受け付ける形式:
//   - "UTC"
//   - "UTC±H" / "UTC±H:MM"（Hは0..14、分は00/15/30/45のみ）
//   - IANAゾーン名（"Asia/Tokyo" など）
//
// 解釈できない値はエラーにせずUTCへ静かにフォールバックする。
// 保存済み設定が壊れていてもリマインダー配信と日付計算を止めないため。
func Resolve(tzSpec string) *time.Location {
	spec := strings.TrimSpace(tzSpec)
	if spec == "" {
		return time.UTC
	}

	if m := utcOffsetRe.FindStringSubmatch(spec); m != nil {
		if m[1] == "" {
			return time.UTC
		}

		hours, _ := strconv.Atoi(m[2])
		minutes := 0
		if m[3] != "" {
			minutes, _ = strconv.Atoi(m[3])
		}

		// 実在しないオフセットは弾いてUTCに落とす
		if hours > 14 || !validOffsetMinutes(minutes) {
			return time.UTC
		}

		offset := hours*3600 + minutes*60
		if m[1] == "-" {
			offset = -offset
		}
		return time.FixedZone(spec, offset)
	}

	loc, err := time.LoadLocation(spec)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocalNow はinstantを指定ゾーンのローカル時刻に変換する。
func LocalNow(now time.Time, loc *time.Location) time.Time {
	return now.In(loc)
}

// LocalDate はinstantの指定ゾーンにおけるカレンダー日付を返す。
// 返り値は時刻成分をゼロにしたUTCのtime.Timeで、日付キーとして比較できる。
func LocalDate(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate は日付をYYYY/MM/DD形式で整形する。
func FormatDate(d time.Time) string {
	return d.Format("2006/01/02")
}

// FormatDateShort は日付をMM/DD形式で整形する。
func FormatDateShort(d time.Time) string {
	return d.Format("01/02")
}

// ParseDate はYYYY/MM/DD形式の入力を日付として解釈する。
// 解釈できない場合はエラーを返す（ユーザー入力の再プロンプト用）。
func ParseDate(text string) (time.Time, error) {
	d, err := time.Parse("2006/01/02", strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, fmt.Errorf("日付として解釈できません: %q", text)
	}
	return d, nil
}

// Valid は設定値として保存してよいタイムゾーン文字列かを判定する。
// Resolveと異なりフォールバックせず、UTC以外に解決できない入力はfalseを返す。
func Valid(tzSpec string) bool {
	spec := strings.TrimSpace(tzSpec)
	if spec == "" {
		return false
	}
	if spec == "UTC" {
		return true
	}
	return Resolve(spec) != time.UTC
}

func validOffsetMinutes(m int) bool {
	switch m {
	case 0, 15, 30, 45:
		return true
	}
	return false
}
