package model

import "time"

// WellnessRequest はウェルネス体験とドリンクのリクエストを表す。
type WellnessRequest struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId,omitempty"`
	UserName        string    `json:"userName"`
	Email           string    `json:"email"`
	WellnessType    string    `json:"wellnessType"`
	Drinks          []string  `json:"drinks"`
	SpecialRequests string    `json:"specialRequests,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}
