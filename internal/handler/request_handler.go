package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/waterbar/internal/concierge"
	"github.com/hitoshi/waterbar/internal/model"
)

// RequestServiceInterface はウェルネスリクエストの受付に必要なサービスインターフェース。
type RequestServiceInterface interface {
	Submit(ctx context.Context, userID string, in concierge.Input) (*model.WellnessRequest, error)
}

// RequestHandler はウェルネスリクエストのHTTPハンドラー。
type RequestHandler struct {
	service RequestServiceInterface
}

// NewRequestHandler はRequestHandlerを生成する。
func NewRequestHandler(service RequestServiceInterface) *RequestHandler {
	return &RequestHandler{service: service}
}

// drinkList は配列とカンマ区切り文字列のどちらでも受け付けるドリンク指定。
type drinkList []string

func (d *drinkList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*d = list
		return nil
	}
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.New("drinks must be a string or an array of strings")
	}
	if raw == nil {
		*d = nil
		return nil
	}
	*d = concierge.SplitDrinks(*raw)
	return nil
}

type wellnessRequestBody struct {
	UserName        string    `json:"userName"`
	Email           string    `json:"email"`
	WellnessType    string    `json:"wellnessType"`
	Drinks          drinkList `json:"drinks"`
	SpecialRequests string    `json:"specialRequests"`
}

// Submit はウェルネス体験とドリンクのリクエストを受け付ける。
// POST /api/requests
func (h *RequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var body wellnessRequestBody
	if !decodeJSON(w, r, &body) {
		return
	}

	_, err := h.service.Submit(r.Context(), userID, concierge.Input{
		UserName:        body.UserName,
		Email:           body.Email,
		WellnessType:    body.WellnessType,
		Drinks:          body.Drinks,
		SpecialRequests: body.SpecialRequests,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Request sent successfully"})
}
