// Package auth はメール・パスワード認証、メールアドレス確認、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/waterbar/internal/mail"
	"github.com/hitoshi/waterbar/internal/model"
	"github.com/hitoshi/waterbar/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge  int           // セッション有効期間（秒）
	TokenSecret    string        // 確認トークンの署名鍵
	VerifyTokenTTL time.Duration // 確認トークンの有効期間
	BaseURL        string        // 確認リンクのベースURL
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	mailer      mail.Mailer
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	mailer mail.Mailer,
	config ServiceConfig,
) *Service {
	if config.VerifyTokenTTL <= 0 {
		config.VerifyTokenTTL = 24 * time.Hour
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		mailer:      mailer,
		config:      config,
		now:         time.Now,
	}
}

// Register はユーザーを登録し、メールアドレス確認メールを送信する。
// 確認メールの送信に失敗しても登録は成功とし、再送で回復できるようにする。
func (s *Service) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = model.NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, model.NewValidationError("Missing required fields")
	}
	if !strings.Contains(email, "@") {
		return nil, model.NewValidationError("Invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, model.NewValidationError(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		return nil, model.NewUserExistsError()
	}

	hash, err := HashPassword(password)
	if isTooLong(err) {
		return nil, model.NewValidationError("Password is too long")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	token, err := MakeVerifyToken(user.ID, s.config.TokenSecret, s.config.VerifyTokenTTL, now)
	if err != nil {
		return nil, fmt.Errorf("failed to sign verify token: %w", err)
	}
	user.VerifyToken = token

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewUserExistsError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID))

	if err := s.sendVerification(ctx, user); err != nil {
		slog.Error("failed to send verification email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// Login はメールアドレスとパスワードを検証してセッションを発行する。
// メールアドレス未確認のユーザーはログインできない。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, *model.User, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil, model.NewValidationError("Email and password are required")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !CheckPassword(user.PasswordHash, password) {
		return nil, nil, model.NewInvalidCredentialsError()
	}
	if !user.EmailVerified {
		return nil, nil, model.NewEmailNotVerifiedError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return session, user, nil
}

// VerifyEmail は確認トークンを検証し、ユーザーを確認済みにする。
// トークンはユーザーに保存されたものと一致する場合のみ有効で、確認後は消去される。
func (s *Service) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, model.NewValidationError("Missing verification token")
	}

	claims, err := ParseVerifyToken(token, s.config.TokenSecret)
	if err != nil {
		return nil, model.NewInvalidTokenError()
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || user.VerifyToken == "" || user.VerifyToken != token {
		return nil, model.NewInvalidTokenError()
	}

	if err := s.userRepo.MarkVerified(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to mark user verified: %w", err)
	}
	user.EmailVerified = true
	user.VerifyToken = ""

	slog.Info("email verified", slog.String("user_id", user.ID))
	return user, nil
}

// ResendVerification は確認トークンを再発行してメールを再送する。
// アカウントの有無を推測されないよう、未登録・確認済みの場合も成功として扱う。
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return model.NewValidationError("Email is required")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || user.EmailVerified {
		return nil
	}

	token, err := MakeVerifyToken(user.ID, s.config.TokenSecret, s.config.VerifyTokenTTL, s.now())
	if err != nil {
		return fmt.Errorf("failed to sign verify token: %w", err)
	}
	if err := s.userRepo.SetVerifyToken(ctx, user.ID, token); err != nil {
		return fmt.Errorf("failed to store verify token: %w", err)
	}
	user.VerifyToken = token

	if err := s.sendVerification(ctx, user); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	return user, nil
}

// EnsureStaff はSTAFFユーザーを作成する。既存ユーザーの場合は名前とパスワードを更新して昇格する。
// create-staffコマンドから呼ばれる。
func (s *Service) EnsureStaff(ctx context.Context, email, name, password string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewValidationError("Email and password are required")
	}
	if name == "" {
		name = "Staff"
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		if err := s.userRepo.PromoteToStaff(ctx, existing.ID, name, hash); err != nil {
			return nil, fmt.Errorf("failed to promote user: %w", err)
		}
		existing.Name = name
		existing.Role = model.RoleStaff
		existing.EmailVerified = true
		existing.VerifyToken = ""
		slog.Info("user promoted to staff", slog.String("user_id", existing.ID))
		return existing, nil
	}

	now := s.now()
	user := &model.User{
		ID:            uuid.New().String(),
		Email:         email,
		Name:          name,
		PasswordHash:  hash,
		Role:          model.RoleStaff,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create staff user: %w", err)
	}

	slog.Info("staff user created", slog.String("user_id", user.ID))
	return user, nil
}

// sendVerification は確認リンク付きのメールを送信する。
func (s *Service) sendVerification(ctx context.Context, user *model.User) error {
	link := s.config.BaseURL + "/verify?token=" + url.QueryEscape(user.VerifyToken)
	msg, err := mail.VerificationEmail(user.Email, user.Name, link, humanDuration(s.config.VerifyTokenTTL))
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, msg)
}

// humanDuration は有効期間をメール本文向けに整形する。
func humanDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
