package model

import "time"

// WeeklyTask は特定のISO週に紐づく「今週の課題」を表す。
// (iso_year, iso_week)の組で一意。
type WeeklyTask struct {
	ID          string
	Title       string
	Description string
	IsActive    bool
	ISOYear     int
	ISOWeek     int
	CreatedAt   time.Time
}

// WeeklyCycle はユーザーの1週間分の記録を表す。ユーザー＋週開始日ごとに1件。
// week_endは常にweek_start+6日で導出される。
// taskは作成時（または未紐付けの間）に一度だけ解決され、以後は再解決しない。
type WeeklyCycle struct {
	ID              string
	UserID          string
	TaskID          string // 紐づくWeeklyTaskのID。未紐付けなら空
	WeekStart       time.Time
	WeekEnd         time.Time
	MidReflection   string
	FinalReflection string
	IsCompleted     bool
	CreatedAt       time.Time
}
