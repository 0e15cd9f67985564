// Package state は訪問者ごとのセッション・カート状態エンジンを提供する。
//
// エンジンはアンビエントなシングルトンではなく、明示的に構築して
// 必要とするレイヤーに参照で渡す。HTTPレイヤーはRegistryを通じて
// 訪問者Cookieごとに1つのエンジンを取得する。
package state

import (
	"context"

	"github.com/techwave/storefront/internal/cart"
	"github.com/techwave/storefront/internal/session"
	"github.com/techwave/storefront/internal/store"
)

// Engine は1訪問者分のセッションマネージャと台帳を束ねる。
type Engine struct {
	Session *session.Manager
	Ledger  *cart.Ledger
}

// NewEngine は指定ストアの上にエンジンを構築する。
// 台帳は構築時にストアから初期状態を読み込む。
func NewEngine(ctx context.Context, st store.Store, provider session.Provider) *Engine {
	ledger := cart.NewLedger(ctx, st)
	return &Engine{
		Session: session.NewManager(ledger, provider),
		Ledger:  ledger,
	}
}
