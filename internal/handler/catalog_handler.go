package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/waterbar/internal/catalog"
	"github.com/hitoshi/waterbar/internal/model"
	"github.com/hitoshi/waterbar/internal/schedule"
)

// AvailabilityServiceInterface は枠の空き状況の取得に必要なサービスインターフェース。
type AvailabilityServiceInterface interface {
	Availability(ctx context.Context, dateStr string) (*model.SlotAvailability, error)
}

// CatalogHandler はカタログと予約枠の公開APIのハンドラー。
type CatalogHandler struct {
	catalog  *catalog.Catalog
	bookings AvailabilityServiceInterface
	loc      *time.Location
	now      func() time.Time
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(cat *catalog.Catalog, bookings AvailabilityServiceInterface, loc *time.Location) *CatalogHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CatalogHandler{
		catalog:  cat,
		bookings: bookings,
		loc:      loc,
		now:      time.Now,
	}
}

type experienceResponse struct {
	catalog.Wellness
	Slots []schedule.Slot `json:"slots"`
}

type yachtResponse struct {
	catalog.Yacht
	Time string `json:"time"`
}

type experiencesResponse struct {
	Date        string               `json:"date"`
	StartTime   time.Time            `json:"startTime"`
	EndTime     time.Time            `json:"endTime"`
	Yacht       *yachtResponse       `json:"yacht"`
	Experiences []experienceResponse `json:"experiences"`
}

// Catalog はウェルネス体験・ドリンク・ヨット体験の一覧を返す。
// GET /api/catalog
func (h *CatalogHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog)
}

// Experiences は指定日の枠内で予約できるウェルネス体験の開始時刻を返す。
// dateを省略した場合は会場の今日。
// GET /api/experiences?date=YYYY-MM-DD
func (h *CatalogHandler) Experiences(w http.ResponseWriter, r *http.Request) {
	date := h.now().In(h.loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := schedule.ParseDate(raw, h.loc)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		date = d
	}

	start, end := schedule.Window(date, h.loc)
	resp := experiencesResponse{
		Date:        start.Format("2006-01-02"),
		StartTime:   start,
		EndTime:     end,
		Experiences: make([]experienceResponse, 0, len(h.catalog.Wellness)),
	}
	if y, ok := h.catalog.YachtFor(start.Weekday()); ok {
		resp.Yacht = &yachtResponse{Yacht: y, Time: y.TimeLabel()}
	}
	for _, wl := range h.catalog.Wellness {
		slots := schedule.ExperienceSlots(wl, start, h.loc)
		if slots == nil {
			slots = []schedule.Slot{}
		}
		resp.Experiences = append(resp.Experiences, experienceResponse{Wellness: wl, Slots: slots})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Slots は指定日のモーニングパーティー枠の空き状況を返す。
// GET /api/slots?date=YYYY-MM-DD
func (h *CatalogHandler) Slots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("date is required"))
		return
	}

	availability, err := h.bookings.Availability(r.Context(), date)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}
