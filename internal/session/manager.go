// Package session はログインセッション（認証済みアイデンティティ）を管理する。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/techwave/storefront/internal/model"
)

// LedgerClearer はログアウト時に台帳を空にするためのインターフェース。
// cart.Ledgerの部分集合として定義する。
type LedgerClearer interface {
	ClearAll(ctx context.Context) error
}

// Manager は現在の認証済みアイデンティティを所有する。
// 同時に存在するアイデンティティは常に0件または1件。
type Manager struct {
	mu       sync.RWMutex
	current  *model.User
	ledger   LedgerClearer
	provider Provider

	obsMu     sync.Mutex
	observers []func()
}

// NewManager はManagerを生成する。初期状態は未ログイン。
// providerは外部IdPサインインの結果を供給する（本番ではOAuthプロバイダ、
// デモではDemoProvider）。
func NewManager(ledger LedgerClearer, provider Provider) *Manager {
	return &Manager{
		ledger:   ledger,
		provider: provider,
	}
}

// Subscribe は状態変更の通知コールバックを登録する。
func (m *Manager) Subscribe(fn func()) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.observers = append(m.observers, fn)
}

// Login はメールアドレスとパスワードでログインする。
// 資格情報の検証はコアでは行わない（本番ではIdPコラボレータの責務）。
// 表示名はメールアドレスのローカル部から導出する。
func (m *Manager) Login(email, password string) (*model.User, error) {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return nil, model.NewValidationError(fmt.Sprintf("メールアドレスの形式が不正です: %s", email))
	}

	user := &model.User{
		Email: email,
		Name:  local,
	}

	m.mu.Lock()
	m.current = user
	m.mu.Unlock()

	slog.Info("user logged in", slog.String("email", email))

	m.notify()
	return m.copyCurrent(), nil
}

// LoginViaProvider は外部IdPサインインの成功結果でログインする。
// プロバイダの失敗は型付きエラーとしてそのまま伝播する。
func (m *Manager) LoginViaProvider(ctx context.Context) (*model.User, error) {
	user, err := m.provider.SignIn(ctx)
	if err != nil {
		return nil, fmt.Errorf("provider sign-in failed: %w", err)
	}

	m.mu.Lock()
	m.current = user
	m.mu.Unlock()

	slog.Info("user logged in via provider", slog.String("email", user.Email))

	m.notify()
	return m.copyCurrent(), nil
}

// Logout はアイデンティティを破棄し、台帳のカートと受講記録を空にする。
// 3つのクリアは単一の同期呼び出し連鎖として実行され、以後の読み取りは
// 必ず全てクリア済みの状態を観測する（部分クリアは観測されない）。
// 台帳の保存失敗はPERSISTENCE_UNAVAILABLEとして返るが、クリア自体は成立する。
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.current = nil
	err := m.ledger.ClearAll(ctx)
	m.mu.Unlock()

	slog.Info("user logged out")

	m.notify()
	return err
}

// Current は現在のアイデンティティを返す。未ログインの場合はnil。
func (m *Manager) Current() *model.User {
	return m.copyCurrent()
}

// copyCurrent は現在のアイデンティティのコピーを返す。
func (m *Manager) copyCurrent() *model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil
	}
	u := *m.current
	return &u
}

// notify は登録済みの全オブザーバを呼び出す。
func (m *Manager) notify() {
	m.obsMu.Lock()
	observers := make([]func(), len(m.observers))
	copy(observers, m.observers)
	m.obsMu.Unlock()

	for _, fn := range observers {
		fn()
	}
}
