// Package schedule はモーニングパーティーの時間枠ルールを実装する。
//
// 平日（月〜金）は06:00〜09:00、週末（土日）は09:00〜12:00。
// 時刻はすべて会場のタイムゾーンで計算する。
package schedule

import (
	"strings"
	"time"

	"github.com/hitoshi/waterbar/internal/catalog"
	"github.com/hitoshi/waterbar/internal/model"
)

const (
	weekdayStartHour = 6
	weekdayEndHour   = 9
	weekendStartHour = 9
	weekendEndHour   = 12
)

// IsWeekend は土曜または日曜かを返す。
func IsWeekend(day time.Weekday) bool {
	return day == time.Saturday || day == time.Sunday
}

// Window はdateの暦日（loc基準）における枠の開始・終了時刻を返す。
func Window(date time.Time, loc *time.Location) (time.Time, time.Time) {
	d := date.In(loc)
	startHour, endHour := weekdayStartHour, weekdayEndHour
	if IsWeekend(d.Weekday()) {
		startHour, endHour = weekendStartHour, weekendEndHour
	}
	start := time.Date(d.Year(), d.Month(), d.Day(), startHour, 0, 0, 0, loc)
	end := time.Date(d.Year(), d.Month(), d.Day(), endHour, 0, 0, 0, loc)
	return start, end
}

// ParseDate は予約日を解釈する。YYYY-MM-DDはloc基準の日付、
// RFC 3339の場合はその時刻をlocに変換した値を返す。
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, model.NewValidationError("User ID and date are required")
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, model.NewInvalidDateError(s)
}

// Slot はウェルネス体験の開始時刻候補。
type Slot struct {
	Start time.Time `json:"start"`
	Label string    `json:"time"`
}

// ExperienceSlots は体験の所要時間ごとに、その日の枠内の開始時刻を列挙する。
// 所要時間を持たない体験は空を返す。
func ExperienceSlots(w catalog.Wellness, date time.Time, loc *time.Location) []Slot {
	if w.DurationMinutes <= 0 {
		return nil
	}
	start, end := Window(date, loc)
	step := time.Duration(w.DurationMinutes) * time.Minute

	var slots []Slot
	for t := start; t.Before(end); t = t.Add(step) {
		slots = append(slots, Slot{Start: t, Label: t.Format("3:04 PM")})
	}
	return slots
}
