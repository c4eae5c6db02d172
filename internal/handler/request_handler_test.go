package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/hitoshi/waterbar/internal/concierge"
	"github.com/hitoshi/waterbar/internal/model"
)

func TestDrinkList_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want drinkList
	}{
		{"array", `["Kombucha Blend","Herbal Tonic"]`, drinkList{"Kombucha Blend", "Herbal Tonic"}},
		{"comma string", `"Kombucha Blend, Herbal Tonic,"`, drinkList{"Kombucha Blend", "Herbal Tonic"}},
		{"empty string", `""`, nil},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got drinkList
			if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDrinkList_UnmarshalJSON_RejectsNumbers(t *testing.T) {
	var got drinkList
	if err := json.Unmarshal([]byte(`42`), &got); err == nil {
		t.Error("expected error for numeric drinks")
	}
}

func TestRequestHandler_Submit_Success(t *testing.T) {
	var gotUser string
	var gotInput concierge.Input
	svc := &mockRequestService{
		submitFn: func(ctx context.Context, userID string, in concierge.Input) (*model.WellnessRequest, error) {
			gotUser, gotInput = userID, in
			return &model.WellnessRequest{ID: "req-1"}, nil
		},
	}
	h := NewRequestHandler(svc)

	body := `{"userName":"Omar","email":"omar@example.com","wellnessType":"Yoga","drinks":"Pure Water,Focus Formula","specialRequests":"Near the bow"}`
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(body)), "user-1")
	w := httptest.NewRecorder()
	h.Submit(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp messageResponse
	decodeBody(t, w, &resp)
	if resp.Message != "Request sent successfully" {
		t.Errorf("message = %q", resp.Message)
	}
	if gotUser != "user-1" {
		t.Errorf("userID = %q, want user-1", gotUser)
	}
	want := concierge.Input{
		UserName:        "Omar",
		Email:           "omar@example.com",
		WellnessType:    "Yoga",
		Drinks:          []string{"Pure Water", "Focus Formula"},
		SpecialRequests: "Near the bow",
	}
	if !reflect.DeepEqual(gotInput, want) {
		t.Errorf("input = %+v, want %+v", gotInput, want)
	}
}

func TestRequestHandler_Submit_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"bad drinks type", `{"drinks":1}`, nil, http.StatusBadRequest, model.ErrCodeValidation},
		{"unknown wellness", `{}`, model.NewUnknownWellnessError("Surfing"), http.StatusBadRequest, model.ErrCodeUnknownWellness},
		{"unknown drink", `{}`, model.NewUnknownDrinkError("Cola"), http.StatusBadRequest, model.ErrCodeUnknownDrink},
		{"delivery failed", `{}`, model.NewDeliveryFailedError(), http.StatusInternalServerError, model.ErrCodeDeliveryFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockRequestService{
				submitFn: func(ctx context.Context, userID string, in concierge.Input) (*model.WellnessRequest, error) {
					return nil, tt.err
				},
			}
			h := NewRequestHandler(svc)
			req := withUserID(httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(tt.body)), "user-1")
			w := httptest.NewRecorder()
			h.Submit(w, req)
			assertAPIError(t, w, tt.status, tt.code)
		})
	}
}

func TestRequestHandler_Submit_RequiresUser(t *testing.T) {
	h := NewRequestHandler(&mockRequestService{})

	req := httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.Submit(w, req)

	assertAPIError(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}
