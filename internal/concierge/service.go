// Package concierge はウェルネス体験とドリンクのリクエスト受付を提供する。
package concierge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/waterbar/internal/catalog"
	"github.com/hitoshi/waterbar/internal/events"
	"github.com/hitoshi/waterbar/internal/mail"
	"github.com/hitoshi/waterbar/internal/metrics"
	"github.com/hitoshi/waterbar/internal/model"
	"github.com/hitoshi/waterbar/internal/repository"
	"github.com/hitoshi/waterbar/internal/security"
)

const (
	// maxSpecialRequestsRunes は特記事項の最大文字数。
	maxSpecialRequestsRunes = 1000
	maxNameRunes            = 200
	// listLimit は管理画面に返すリクエストの最大件数。
	listLimit = 500
)

// Input はリクエストフォームの入力値。
type Input struct {
	UserName        string
	Email           string
	WellnessType    string
	Drinks          []string
	SpecialRequests string
}

// Service はウェルネスリクエストのサービス層。
type Service struct {
	repo      repository.RequestRepository
	catalog   *catalog.Catalog
	mailer    mail.Mailer
	events    events.Publisher
	metrics   metrics.Recorder
	sanitizer *security.TextSanitizer
	teamEmail string
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	repo repository.RequestRepository,
	cat *catalog.Catalog,
	mailer mail.Mailer,
	publisher events.Publisher,
	recorder metrics.Recorder,
	teamEmail string,
) *Service {
	return &Service{
		repo:      repo,
		catalog:   cat,
		mailer:    mailer,
		events:    publisher,
		metrics:   recorder,
		sanitizer: security.NewTextSanitizer(),
		teamEmail: teamEmail,
		now:       time.Now,
	}
}

// Submit はリクエストを検証して保存し、チームと依頼者にメールを送る。
// メール送信に失敗した場合、保存済みでもDELIVERY_FAILEDを返し、request.createdは発行しない。
func (s *Service) Submit(ctx context.Context, userID string, in Input) (*model.WellnessRequest, error) {
	name := s.sanitizer.Sanitize(in.UserName, maxNameRunes)
	email := model.NormalizeEmail(in.Email)
	wellnessType := strings.TrimSpace(in.WellnessType)
	if name == "" || email == "" || wellnessType == "" {
		return nil, model.NewValidationError("User name, email and wellness type are required")
	}
	if !strings.Contains(email, "@") {
		return nil, model.NewValidationError("A valid email address is required")
	}

	w, ok := s.catalog.FindWellness(wellnessType)
	if !ok {
		return nil, model.NewUnknownWellnessError(wellnessType)
	}

	drinks := make([]string, 0, len(in.Drinks))
	for _, raw := range in.Drinks {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		d, ok := s.catalog.FindDrink(raw)
		if !ok {
			return nil, model.NewUnknownDrinkError(strings.TrimSpace(raw))
		}
		drinks = append(drinks, d.Name)
	}

	req := &model.WellnessRequest{
		ID:              uuid.New().String(),
		UserID:          userID,
		UserName:        name,
		Email:           email,
		WellnessType:    w.Name,
		Drinks:          drinks,
		SpecialRequests: s.sanitizer.Sanitize(in.SpecialRequests, maxSpecialRequestsRunes),
		CreatedAt:       s.now(),
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save wellness request: %w", err)
	}

	s.metrics.RecordRequestSubmitted()
	slog.Info("wellness request received",
		slog.String("request_id", req.ID),
		slog.String("wellness_type", req.WellnessType),
		slog.Int("drinks", len(req.Drinks)),
	)

	if err := s.deliver(ctx, req); err != nil {
		s.metrics.RecordMailFailure("wellness_request")
		slog.Error("failed to send wellness request",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewDeliveryFailedError()
	}

	// request.createdはメール送信に成功した場合のみ発行する
	if err := s.events.PublishJSON(events.TypeRequestCreated, events.RequestPayload{
		RequestID:    req.ID,
		UserName:     req.UserName,
		Email:        req.Email,
		WellnessType: req.WellnessType,
		Drinks:       req.Drinks,
	}); err != nil {
		slog.Error("failed to publish request event", slog.String("error", err.Error()))
	}
	return req, nil
}

// List は受け付けたリクエストを新しい順に返す。
func (s *Service) List(ctx context.Context) ([]*model.WellnessRequest, error) {
	reqs, err := s.repo.List(ctx, listLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wellness requests: %w", err)
	}
	if reqs == nil {
		reqs = []*model.WellnessRequest{}
	}
	return reqs, nil
}

func (s *Service) deliver(ctx context.Context, req *model.WellnessRequest) error {
	team, err := mail.TeamRequestEmail(s.teamEmail, req)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, team); err != nil {
		return fmt.Errorf("team email: %w", err)
	}

	confirm, err := mail.RequestConfirmationEmail(req)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, confirm); err != nil {
		return fmt.Errorf("confirmation email: %w", err)
	}
	return nil
}

// SplitDrinks はカンマ区切りのドリンク指定を分割する。
func SplitDrinks(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
