package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/waterbar/internal/model"
)

// PostgresRequestRepo はPostgreSQLを使用したウェルネスリクエストリポジトリ。
type PostgresRequestRepo struct {
	db *sql.DB
}

// NewPostgresRequestRepo はPostgresRequestRepoを生成する。
func NewPostgresRequestRepo(db *sql.DB) *PostgresRequestRepo {
	return &PostgresRequestRepo{db: db}
}

// Create はリクエストを保存する。
func (r *PostgresRequestRepo) Create(ctx context.Context, req *model.WellnessRequest) error {
	var userID sql.NullString
	if req.UserID != "" {
		userID = sql.NullString{String: req.UserID, Valid: true}
	}
	drinks := req.Drinks
	if drinks == nil {
		drinks = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wellness_requests (id, user_id, user_name, email, wellness_type, drinks, special_requests, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		req.ID, userID, req.UserName, req.Email, req.WellnessType, pq.Array(drinks), req.SpecialRequests, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert wellness request: %w", err)
	}
	return nil
}

// List はリクエストを新しい順に最大limit件返す。
func (r *PostgresRequestRepo) List(ctx context.Context, limit int) ([]*model.WellnessRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, user_name, email, wellness_type, drinks, special_requests, created_at
		 FROM wellness_requests ORDER BY created_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wellness requests: %w", err)
	}
	defer rows.Close()

	var out []*model.WellnessRequest
	for rows.Next() {
		req := &model.WellnessRequest{}
		var userID sql.NullString
		if err := rows.Scan(&req.ID, &userID, &req.UserName, &req.Email, &req.WellnessType,
			pq.Array(&req.Drinks), &req.SpecialRequests, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wellness request: %w", err)
		}
		req.UserID = userID.String
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wellness requests: %w", err)
	}
	return out, nil
}

// compile-time interface check
var _ RequestRepository = (*PostgresRequestRepo)(nil)
