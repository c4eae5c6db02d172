package booking

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hitoshi/waterbar/internal/model"
)

const exportSheet = "Bookings"

// TableHeader は予約一覧の表形式出力（Excel、Google Sheets）の見出し行。
var TableHeader = []string{"Booking ID", "Name", "Email", "Date", "Time", "Experience", "Status", "Created At"}

// TableRow は予約1件を表形式の1行にする。
func TableRow(b *model.BookingDetail, loc *time.Location) []string {
	date := b.Date.In(loc).Format("2006-01-02")
	slot := ""
	if b.TimeSlot != nil {
		slot = WindowLabel(b.TimeSlot.StartTime, b.TimeSlot.EndTime, loc)
	}
	return []string{
		b.ID,
		b.User.Name,
		b.User.Email,
		date,
		slot,
		b.Experience,
		string(b.Status),
		b.CreatedAt.In(loc).Format("2006-01-02 15:04"),
	}
}

// Export は絞り込んだ予約一覧をxlsxとしてwに書き出す。
func (s *Service) Export(ctx context.Context, f Filter, w io.Writer) (int, error) {
	bookings, err := s.AdminList(ctx, f)
	if err != nil {
		return 0, err
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", exportSheet); err != nil {
		return 0, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(TableHeader))
	for i, h := range TableHeader {
		header[i] = h
	}
	if err := file.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	style, err := file.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create header style: %w", err)
	}
	_ = file.SetRowStyle(exportSheet, 1, 1, style)
	_ = file.SetColWidth(exportSheet, "A", "A", 38)
	_ = file.SetColWidth(exportSheet, "B", "H", 20)

	for i, b := range bookings {
		cells := TableRow(b, s.config.Location)
		row := make([]any, len(cells))
		for j, c := range cells {
			row[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		if err := file.SetSheetRow(exportSheet, cell, &row); err != nil {
			return 0, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := file.Write(w); err != nil {
		return 0, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return len(bookings), nil
}
