package booking

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/skip2/go-qrcode"

	"github.com/hitoshi/waterbar/internal/schedule"
)

// qrSize はQRコードPNGの一辺のピクセル数。
const qrSize = 256

// QRPayload はチェックイン用QRコードに埋め込む内容。
type QRPayload struct {
	BookingID  string `json:"bookingId"`
	Experience string `json:"experience"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

// QRCode は本人の予約のチェックイン用QRコードをPNGで返す。
func (s *Service) QRCode(ctx context.Context, userID, bookingID string) ([]byte, error) {
	b, err := s.findOwned(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}

	start, end := schedule.Window(b.Date, s.config.Location)
	payload, err := json.Marshal(QRPayload{
		BookingID:  b.ID,
		Experience: b.Experience,
		Date:       start.Format("2006-01-02"),
		Time:       WindowLabel(start, end, s.config.Location),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr payload: %w", err)
	}

	png, err := qrcode.Encode(string(payload), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	return png, nil
}
