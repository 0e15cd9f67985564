// Package payment は決済プロバイダとの契約を定義する。
// コアはプロトコル・リダイレクト詳細を扱わず、「チェックアウト完了」の
// シグナルのみを消費する。
package payment

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Provider は決済プロバイダのインターフェース。
type Provider interface {
	// CreateCheckoutSession はチェックアウトセッションを作成し、セッションIDを返す。
	CreateCheckoutSession(ctx context.Context, courseIDs []int, total float64) (string, error)

	// CompleteCheckout はセッションの決済を完了する。
	// trueが返った場合のみ受講確定処理を行う。
	CompleteCheckout(ctx context.Context, sessionID string) (bool, error)
}

// StubProvider は常に成功するProvider実装。
// 実際のStripe連携の代わりにデモ環境で使用する。
type StubProvider struct{}

// NewStubProvider はStubProviderを生成する。
func NewStubProvider() *StubProvider {
	return &StubProvider{}
}

// CreateCheckoutSession はモックのチェックアウトセッションを作成する。
func (p *StubProvider) CreateCheckoutSession(ctx context.Context, courseIDs []int, total float64) (string, error) {
	sessionID := "cs_" + uuid.New().String()
	slog.Info("checkout session created",
		slog.String("session_id", sessionID),
		slog.Int("course_count", len(courseIDs)),
		slog.Float64("total", total),
	)
	return sessionID, nil
}

// CompleteCheckout は常に決済完了を返す。
func (p *StubProvider) CompleteCheckout(ctx context.Context, sessionID string) (bool, error) {
	slog.Info("checkout completed", slog.String("session_id", sessionID))
	return true, nil
}

// compile-time interface check
var _ Provider = (*StubProvider)(nil)
