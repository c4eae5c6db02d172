package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/waterbar/internal/model"
)

const userColumns = `id, email, name, password_hash, role, email_verified, verify_token, created_at, updated_at`

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var token sql.NullString
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role,
		&user.EmailVerified, &token, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.VerifyToken = token.String
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, model.NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	var token sql.NullString
	if user.VerifyToken != "" {
		token = sql.NullString{String: user.VerifyToken, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, role, email_verified, verify_token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role,
		user.EmailVerified, token, user.CreatedAt, user.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// SetVerifyToken はメール確認トークンを更新する。
func (r *PostgresUserRepo) SetVerifyToken(ctx context.Context, id, token string) error {
	return r.execOne(ctx, "set verify token",
		`UPDATE users SET verify_token = $2, updated_at = now() WHERE id = $1`, id, token)
}

// MarkVerified はメール確認済みにし、確認トークンを消去する。
func (r *PostgresUserRepo) MarkVerified(ctx context.Context, id string) error {
	return r.execOne(ctx, "mark verified",
		`UPDATE users SET email_verified = TRUE, verify_token = NULL, updated_at = now() WHERE id = $1`, id)
}

// PromoteToStaff はパスワードと名前を更新し、確認済みのSTAFFにする。
func (r *PostgresUserRepo) PromoteToStaff(ctx context.Context, id, name, passwordHash string) error {
	return r.execOne(ctx, "promote to staff",
		`UPDATE users
		 SET name = $2, password_hash = $3, role = 'STAFF', email_verified = TRUE, verify_token = NULL, updated_at = now()
		 WHERE id = $1`,
		id, name, passwordHash)
}

// List は全ユーザーを作成日時の新しい順に返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するsessions、bookingsはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete user", `DELETE FROM users WHERE id = $1`, id)
}

// execOne は1行だけ更新されることを期待するSQLを実行する。
func (r *PostgresUserRepo) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("failed to %s: user not found: %v", op, args[0])
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
