package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/hitoshi/waterbar/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// BookingInfo はメール本文に埋め込む予約情報。日付・時刻は表示用に整形済み。
type BookingInfo struct {
	Name       string
	BookingID  string
	Date       string
	Time       string
	Experience string
}

// VerificationEmail はメールアドレス確認メールを生成する。
func VerificationEmail(to, name, link, expiresIn string) (Message, error) {
	data := struct {
		Name      string
		Link      string
		ExpiresIn string
	}{Name: name, Link: link, ExpiresIn: expiresIn}

	return render([]string{to}, "Verify your email address", "verification.html", data)
}

// BookingConfirmationEmail は予約受付メールを生成する。
func BookingConfirmationEmail(to string, info BookingInfo) (Message, error) {
	return render([]string{to}, "Booking Confirmation - Morning Party", "booking_confirmation.html", info)
}

// BookingReminderEmail は前日リマインダーメールを生成する。
func BookingReminderEmail(to string, info BookingInfo) (Message, error) {
	return render([]string{to}, "Reminder - Morning Party tomorrow", "booking_reminder.html", info)
}

// TeamRequestEmail はチーム宛のリクエスト通知メールを生成する。
func TeamRequestEmail(teamEmail string, req *model.WellnessRequest) (Message, error) {
	return render([]string{teamEmail}, "New Wellness & Drinks Request", "team_request.html", requestView(req))
}

// RequestConfirmationEmail はリクエスト者宛の受付メールを生成する。
func RequestConfirmationEmail(req *model.WellnessRequest) (Message, error) {
	return render([]string{req.Email}, "Your Wellness & Drinks Request Received", "request_confirmation.html", requestView(req))
}

type requestData struct {
	*model.WellnessRequest
	DrinksLabel string
}

func requestView(req *model.WellnessRequest) requestData {
	label := strings.Join(req.Drinks, ", ")
	if label == "" {
		label = "None specified"
	}
	return requestData{WellnessRequest: req, DrinksLabel: label}
}

func render(to []string, subject, name string, data any) (Message, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return Message{To: to, Subject: subject, HTML: buf.String()}, nil
}
