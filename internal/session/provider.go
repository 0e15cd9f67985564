package session

import (
	"context"

	"github.com/techwave/storefront/internal/model"
)

// Provider は外部IdPサインインの結果契約。
// コアはプロトコル詳細を扱わず、成功時のアイデンティティのみを消費する。
// 将来的に複数のIdP（Google, GitHub等）に対応可能な構造。
type Provider interface {
	// SignIn はIdPとのラウンドトリップを実行し、アイデンティティを返す。
	SignIn(ctx context.Context) (*model.User, error)
}

// DemoProvider は固定のデモアイデンティティを返すProvider実装。
// 外部IdPラウンドトリップ成功の結果を模す。失敗しない。
type DemoProvider struct{}

// NewDemoProvider はDemoProviderを生成する。
func NewDemoProvider() *DemoProvider {
	return &DemoProvider{}
}

// SignIn は固定のデモアイデンティティを返す。
func (p *DemoProvider) SignIn(ctx context.Context) (*model.User, error) {
	return &model.User{
		Email: "demo@techwave.com",
		Name:  "Demo User",
	}, nil
}

// compile-time interface check
var _ Provider = (*DemoProvider)(nil)
