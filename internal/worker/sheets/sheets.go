// Package sheets は全予約をGoogle Sheetsへミラーリングするジョブを提供する。
// 運営チームが表計算で予約を確認できるよう、シートを毎回全件で上書きする。
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/hitoshi/waterbar/internal/booking"
	"github.com/hitoshi/waterbar/internal/model"
)

// DefaultSheet は書き込み先のシート名。
const DefaultSheet = "Bookings"

// BookingLister は全予約の取得に必要なインターフェース。repository.BookingRepositoryが満たす。
type BookingLister interface {
	ListDetailed(ctx context.Context) ([]*model.BookingDetail, error)
}

// NewService はサービスアカウントの認証情報ファイルからSheets APIクライアントを生成する。
func NewService(ctx context.Context, credentialsFile string) (*sheets.Service, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return srv, nil
}

// Job は予約一覧をスプレッドシートに同期する。
type Job struct {
	service       *sheets.Service
	spreadsheetID string
	sheet         string
	bookings      BookingLister
	loc           *time.Location
	logger        *slog.Logger
}

// NewJob はJobを生成する。sheetが空の場合はDefaultSheetを使う。
func NewJob(service *sheets.Service, spreadsheetID, sheet string, bookings BookingLister, loc *time.Location, logger *slog.Logger) *Job {
	if sheet == "" {
		sheet = DefaultSheet
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Job{
		service:       service,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		bookings:      bookings,
		loc:           loc,
		logger:        logger,
	}
}

// Name はジョブ名を返す。
func (j *Job) Name() string { return "sheets_sync" }

// Run はシートをクリアし、見出し行と全予約を書き込む。
func (j *Job) Run(ctx context.Context) error {
	all, err := j.bookings.ListDetailed(ctx)
	if err != nil {
		return fmt.Errorf("failed to list bookings: %w", err)
	}

	values := Rows(all, j.loc)
	lastCol := columnName(len(booking.TableHeader))

	// 削除された予約の行が残らないよう、先に全体をクリアする
	clearRange := fmt.Sprintf("%s!A:%s", j.sheet, lastCol)
	if _, err := j.service.Spreadsheets.Values.Clear(j.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("failed to clear sheet: %w", err)
	}

	updateRange := fmt.Sprintf("%s!A1:%s%d", j.sheet, lastCol, len(values))
	if _, err := j.service.Spreadsheets.Values.Update(j.spreadsheetID, updateRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("failed to update sheet: %w", err)
	}

	j.logger.Info("bookings synced to Google Sheets",
		slog.Int("rows", len(all)),
		slog.String("range", updateRange),
	)
	return nil
}

// Rows は見出し行を先頭にしたシートの値を返す。
func Rows(bookings []*model.BookingDetail, loc *time.Location) [][]interface{} {
	values := make([][]interface{}, 0, len(bookings)+1)
	values = append(values, toInterfaces(booking.TableHeader))
	for _, b := range bookings {
		values = append(values, toInterfaces(booking.TableRow(b, loc)))
	}
	return values
}

func toInterfaces(cells []string) []interface{} {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

// columnName は1始まりの列番号をA, B, ..., Z, AA形式に変換する。
func columnName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}
