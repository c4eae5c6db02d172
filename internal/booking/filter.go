package booking

import (
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/waterbar/internal/model"
)

// 日付範囲フィルタ
const (
	RangeAll      = "ALL"
	RangeToday    = "TODAY"
	RangeUpcoming = "UPCOMING"
	RangePast     = "PAST"
)

// 並び順
const (
	SortDateDesc = "date-desc"
	SortDateAsc  = "date-asc"
	SortStatus   = "status"
)

// statusAll はステータスで絞り込まないことを表す。
const statusAll = "ALL"

// Filter は管理画面の予約一覧の絞り込み条件。Statusが空の場合は全ステータス。
type Filter struct {
	Status model.BookingStatus
	Range  string
	Sort   string
}

// ParseFilter はクエリパラメータからFilterを生成する。空の値は既定値（ALL, ALL, date-desc）。
func ParseFilter(status, dateRange, sortBy string) (Filter, error) {
	f := Filter{Range: RangeAll, Sort: SortDateDesc}

	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" && status != statusAll {
		st, err := model.ParseBookingStatus(status)
		if err != nil {
			return Filter{}, err
		}
		f.Status = st
	}

	switch r := strings.ToUpper(strings.TrimSpace(dateRange)); r {
	case "":
	case RangeAll, RangeToday, RangeUpcoming, RangePast:
		f.Range = r
	default:
		return Filter{}, model.NewInvalidFilterError("range", dateRange)
	}

	switch s := strings.ToLower(strings.TrimSpace(sortBy)); s {
	case "":
	case SortDateDesc, SortDateAsc, SortStatus:
		f.Sort = s
	default:
		return Filter{}, model.NewInvalidFilterError("sort", sortBy)
	}

	return f, nil
}

// Apply は絞り込みと並べ替えを行った新しいスライスを返す。
// 日付範囲はnowを会場のタイムゾーンで見た暦日を基準にする。
func (f Filter) Apply(bookings []*model.BookingDetail, now time.Time, loc *time.Location) []*model.BookingDetail {
	today := startOfDay(now, loc)
	tomorrow := today.AddDate(0, 0, 1)

	out := make([]*model.BookingDetail, 0, len(bookings))
	for _, b := range bookings {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		switch f.Range {
		case RangeToday:
			if b.Date.Before(today) || !b.Date.Before(tomorrow) {
				continue
			}
		case RangeUpcoming:
			if b.Date.Before(today) {
				continue
			}
		case RangePast:
			if !b.Date.Before(today) {
				continue
			}
		}
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch f.Sort {
		case SortDateAsc:
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		case SortStatus:
			if oa, ob := a.Status.SortOrder(), b.Status.SortOrder(); oa != ob {
				return oa < ob
			}
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	return out
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	d := t.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}
