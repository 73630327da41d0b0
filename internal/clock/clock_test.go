package clock

import (
	"testing"
	"time"
)

// TestResolve_FixedOffsets は固定オフセット形式の解決とフォールバックを検証する。
func TestResolve_FixedOffsets(t *testing.T) {
	tests := []struct {
		name       string
		spec       string
		wantOffset int // 秒
	}{
		{"UTCそのもの", "UTC", 0},
		{"プラス9時間", "UTC+9", 9 * 3600},
		{"マイナス5時間", "UTC-5", -5 * 3600},
		{"30分オフセット", "UTC+9:30", 9*3600 + 30*60},
		{"45分オフセット", "UTC+5:45", 5*3600 + 45*60},
		{"上限14時間", "UTC+14", 14 * 3600},
		{"範囲外の時間はUTCに落ちる", "UTC+15", 0},
		{"不正な分はUTCに落ちる", "UTC+9:10", 0},
		{"でたらめな文字列はUTCに落ちる", "not-a-real-zone", 0},
		{"空文字はUTC", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := Resolve(tt.spec)
			_, offset := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC).In(loc).Zone()
			if offset != tt.wantOffset {
				t.Errorf("Resolve(%q)のオフセット = %d, want %d", tt.spec, offset, tt.wantOffset)
			}
		})
	}
}

// TestResolve_IANAZone はIANAゾーン名が解決されることを検証する。
func TestResolve_IANAZone(t *testing.T) {
	loc := Resolve("Asia/Tokyo")
	if loc.String() != "Asia/Tokyo" {
		t.Errorf("Resolve(Asia/Tokyo) = %v", loc)
	}
}

// TestLocalDate_CrossesMidnight はUTCでは前日でもローカルでは今日になる
// 境界を検証する。
func TestLocalDate_CrossesMidnight(t *testing.T) {
	// UTC 2026-08-30 23:00 は UTC+9 では 2026-08-31 08:00
	now := time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC)
	got := LocalDate(now, Resolve("UTC+9"))
	want := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("LocalDate = %v, want %v", got, want)
	}

	// UTC側の日付はそのまま
	got = LocalDate(now, time.UTC)
	want = time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("LocalDate(UTC) = %v, want %v", got, want)
	}
}

// TestParseDate は日付入力の解釈と不正入力のエラーを検証する。
func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2026/08/31 ")
	if err != nil {
		t.Fatalf("ParseDate returned error: %v", err)
	}
	if !d.Equal(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDate = %v", d)
	}

	if _, err := ParseDate("昨日"); err == nil {
		t.Error("不正な入力でエラーを返すべき")
	}
	if _, err := ParseDate("2026-08-31"); err == nil {
		t.Error("ハイフン区切りはエラーを返すべき")
	}
}

// TestFormatDate は表示形式を検証する。
func TestFormatDate(t *testing.T) {
	d := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)
	if got := FormatDate(d); got != "2026/08/05" {
		t.Errorf("FormatDate = %q", got)
	}
	if got := FormatDateShort(d); got != "08/05" {
		t.Errorf("FormatDateShort = %q", got)
	}
}
