package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hitoshi/waterbar/internal/auth"
	"github.com/hitoshi/waterbar/internal/config"
	"github.com/hitoshi/waterbar/internal/mail"
	"github.com/hitoshi/waterbar/internal/model"
	"github.com/hitoshi/waterbar/internal/repository"
)

// StaffCreator はSTAFFユーザーの作成に必要なインターフェース。
type StaffCreator interface {
	EnsureStaff(ctx context.Context, email, name, password string) (*model.User, error)
}

// UserLister はユーザー一覧の取得に必要なインターフェース。
type UserLister interface {
	List(ctx context.Context) ([]*model.User, error)
}

// userLine はlist-usersの1行分の出力。パスワードハッシュ等は含めない。
type userLine struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// runCreateStaff はSTAFF_EMAIL・STAFF_PASSWORD・STAFF_NAMEからSTAFFユーザーを作成する。
// パスワードをコマンドライン引数に残さないよう、環境変数からのみ受け取る。
func runCreateStaff(cfg *config.Config) error {
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := auth.NewService(
		repository.NewPostgresUserRepo(db),
		repository.NewPostgresSessionRepo(db),
		mail.New(cfg.ResendAPIKey, cfg.MailFrom, slog.Default()),
		auth.ServiceConfig{
			SessionMaxAge:  cfg.SessionMaxAge,
			TokenSecret:    cfg.SessionSecret,
			VerifyTokenTTL: cfg.VerifyTokenTTL,
			BaseURL:        cfg.BaseURL,
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return createStaff(ctx, svc, os.Getenv("STAFF_EMAIL"), os.Getenv("STAFF_NAME"), os.Getenv("STAFF_PASSWORD"))
}

func createStaff(ctx context.Context, creator StaffCreator, email, name, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("STAFF_EMAIL and STAFF_PASSWORD must be set")
	}

	u, err := creator.EnsureStaff(ctx, email, name, password)
	if err != nil {
		return fmt.Errorf("failed to create staff user: %w", err)
	}

	slog.Info("staff user ready",
		slog.String("user_id", u.ID),
		slog.String("email", u.Email),
	)
	return nil
}

// runListUsers は登録ユーザーをJSON Linesでoutに書き出す。
func runListUsers(cfg *config.Config, out io.Writer) error {
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return listUsers(ctx, repository.NewPostgresUserRepo(db), out)
}

func listUsers(ctx context.Context, lister UserLister, out io.Writer) error {
	users, err := lister.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	enc := json.NewEncoder(out)
	for _, u := range users {
		line := userLine{
			ID:            u.ID,
			Email:         u.Email,
			Name:          u.Name,
			Role:          string(u.Role),
			EmailVerified: u.EmailVerified,
			CreatedAt:     u.CreatedAt,
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to write user: %w", err)
		}
	}
	return nil
}
