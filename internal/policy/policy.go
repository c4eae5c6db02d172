// Package policy は管理画面へのアクセス可否をRegoポリシーで判定する。
package policy

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"

	"github.com/hitoshi/waterbar/internal/model"
)

//go:embed admin.rego
var adminModule string

// Authorizer は管理者アクセスを判定するOPAポリシー。
type Authorizer struct {
	query rego.PreparedEvalQuery
}

// NewAuthorizer はポリシーをコンパイルする。adminEmailsは役割に関わらず管理画面を許可するアドレス。
func NewAuthorizer(ctx context.Context, adminEmails []string) (*Authorizer, error) {
	emails := make([]any, 0, len(adminEmails))
	for _, e := range adminEmails {
		emails = append(emails, model.NormalizeEmail(e))
	}

	query, err := rego.New(
		rego.Query("data.waterbar.admin.allow"),
		rego.Module("admin.rego", adminModule),
		rego.Store(inmem.NewFromObject(map[string]any{"admin_emails": emails})),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare admin policy: %w", err)
	}
	return &Authorizer{query: query}, nil
}

// AllowAdmin はユーザーが管理画面にアクセスできるかを返す。
func (a *Authorizer) AllowAdmin(ctx context.Context, user *model.User) (bool, error) {
	if user == nil {
		return false, nil
	}
	input := map[string]any{
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"role":  string(user.Role),
		},
	}

	rs, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate admin policy: %w", err)
	}
	return rs.Allowed(), nil
}
