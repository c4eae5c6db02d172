// Package mail はトランザクションメールの生成と送信を行う。
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"
)

// Message は送信するメール1通分。
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Mailer はメール送信のインターフェース。
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ResendMailer はResend APIでメールを送信する。
type ResendMailer struct {
	client *resend.Client
	from   string
}

// NewResendMailer はResendMailerを生成する。
func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// Send はメールを送信する。
func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("mail has no recipients")
	}
	resp, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send mail %q: %w", msg.Subject, err)
	}

	slog.Info("mail sent",
		slog.String("id", resp.Id),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// LogMailer は送信せずにログへ出力するだけのMailer。
// RESEND_API_KEY未設定の開発環境で使う。
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer はLogMailerを生成する。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send はメールの宛先と件名をログに出力する。
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail delivery skipped (no mail provider configured)",
		slog.String("to", strings.Join(msg.To, ",")),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// New はAPIキーの有無に応じてMailerを選択する。
func New(apiKey, from string, logger *slog.Logger) Mailer {
	if apiKey == "" {
		return NewLogMailer(logger)
	}
	return NewResendMailer(apiKey, from)
}

// compile-time interface check
var (
	_ Mailer = (*ResendMailer)(nil)
	_ Mailer = (*LogMailer)(nil)
)
