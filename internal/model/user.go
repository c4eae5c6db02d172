// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Role はユーザーの権限区分。
type Role string

const (
	RoleUser  Role = "USER"
	RoleStaff Role = "STAFF"
)

// User はサービス利用ユーザーを表す。
// PasswordHashとVerifyTokenはJSONに出力しない。
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	VerifyToken   string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// IsStaff はスタッフ権限を持つかを返す。
func (u *User) IsStaff() bool {
	return u.Role == RoleStaff
}

// NormalizeEmail はメールアドレスを比較用に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
