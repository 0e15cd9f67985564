package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/techwave/storefront/internal/catalog"
	"github.com/techwave/storefront/internal/model"
	"github.com/techwave/storefront/internal/payment"
)

// --- モック ---

type mockPaymentProvider struct {
	createFn   func(ctx context.Context, courseIDs []int, total float64) (string, error)
	completeFn func(ctx context.Context, sessionID string) (bool, error)
}

func (m *mockPaymentProvider) CreateCheckoutSession(ctx context.Context, courseIDs []int, total float64) (string, error) {
	if m.createFn != nil {
		return m.createFn(ctx, courseIDs, total)
	}
	return "cs_test", nil
}

func (m *mockPaymentProvider) CompleteCheckout(ctx context.Context, sessionID string) (bool, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, sessionID)
	}
	return true, nil
}

// --- ヘルパー ---

// setupCheckout はログイン済み+カート2行の状態を準備する。
func setupCheckout(t *testing.T, engines EngineSource) {
	t.Helper()
	cartHandler := NewCartHandler(engines, catalog.NewDefault(), nil)
	authHandler := NewAuthHandler(engines)

	loginBody := bytes.NewBufferString(`{"email":"taro@example.com","password":"pw"}`)
	authHandler.Login(httptest.NewRecorder(), newRequest(http.MethodPost, "/auth/login", loginBody))

	for _, body := range []string{`{"course_id":1}`, `{"course_id":2}`} {
		w := httptest.NewRecorder()
		cartHandler.AddItem(w, newRequest(http.MethodPost, "/api/cart/items", bytes.NewBufferString(body)))
		if w.Result().StatusCode != http.StatusOK {
			t.Fatalf("AddItem status = %d", w.Result().StatusCode)
		}
	}
}

// --- テスト ---

// チェックアウト成功で受講が確定しカートが空になることを検証
func TestCheckoutHandler_Checkout_Success(t *testing.T) {
	engines := newTestEngines(t)
	setupCheckout(t, engines)

	h := NewCheckoutHandler(engines, payment.NewStubProvider(), nil)

	w := httptest.NewRecorder()
	h.Checkout(w, newRequest(http.MethodPost, "/api/checkout", nil))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}

	var resp checkoutResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !strings.HasPrefix(resp.SessionID, "cs_") {
		t.Errorf("session_id = %q, want cs_ prefix", resp.SessionID)
	}
	if len(resp.Enrollments) != 2 {
		t.Errorf("len(enrollments) = %d, want 2", len(resp.Enrollments))
	}

	// カートは空になっている
	engine := engines.GetOrCreate(context.Background(), "visitor-test")
	if len(engine.Ledger.Lines()) != 0 {
		t.Errorf("lines = %+v, want empty after checkout", engine.Ledger.Lines())
	}
}

// 未ログインでのチェックアウトが401になることを検証
func TestCheckoutHandler_Checkout_NotAuthenticated(t *testing.T) {
	engines := newTestEngines(t)
	h := NewCheckoutHandler(engines, payment.NewStubProvider(), nil)

	w := httptest.NewRecorder()
	h.Checkout(w, newRequest(http.MethodPost, "/api/checkout", nil))

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Result().StatusCode)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Code != model.ErrCodeNotAuthenticated {
		t.Errorf("code = %q, want NOT_AUTHENTICATED", resp.Code)
	}
}

// 空カートでのチェックアウトが409になることを検証
func TestCheckoutHandler_Checkout_EmptyCart(t *testing.T) {
	engines := newTestEngines(t)
	authHandler := NewAuthHandler(engines)
	loginBody := bytes.NewBufferString(`{"email":"taro@example.com","password":"pw"}`)
	authHandler.Login(httptest.NewRecorder(), newRequest(http.MethodPost, "/auth/login", loginBody))

	h := NewCheckoutHandler(engines, payment.NewStubProvider(), nil)

	w := httptest.NewRecorder()
	h.Checkout(w, newRequest(http.MethodPost, "/api/checkout", nil))

	if w.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Result().StatusCode)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Code != model.ErrCodeCartEmpty {
		t.Errorf("code = %q, want CART_EMPTY", resp.Code)
	}
}

// 決済プロバイダの失敗が502になり、カートが維持されることを検証
func TestCheckoutHandler_Checkout_ProviderFailure(t *testing.T) {
	engines := newTestEngines(t)
	setupCheckout(t, engines)

	provider := &mockPaymentProvider{
		createFn: func(ctx context.Context, courseIDs []int, total float64) (string, error) {
			return "", errors.New("provider unreachable")
		},
	}
	h := NewCheckoutHandler(engines, provider, nil)

	w := httptest.NewRecorder()
	h.Checkout(w, newRequest(http.MethodPost, "/api/checkout", nil))

	if w.Result().StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Result().StatusCode)
	}

	// カートは手つかずのまま
	engine := engines.GetOrCreate(context.Background(), "visitor-test")
	if len(engine.Ledger.Lines()) != 2 {
		t.Errorf("lines = %d, want 2 (untouched)", len(engine.Ledger.Lines()))
	}
	if len(engine.Ledger.Enrollments()) != 0 {
		t.Errorf("enrollments = %d, want 0", len(engine.Ledger.Enrollments()))
	}
}

// 決済未完了シグナルが502になることを検証
func TestCheckoutHandler_Checkout_NotCompleted(t *testing.T) {
	engines := newTestEngines(t)
	setupCheckout(t, engines)

	provider := &mockPaymentProvider{
		completeFn: func(ctx context.Context, sessionID string) (bool, error) {
			return false, nil
		},
	}
	h := NewCheckoutHandler(engines, provider, nil)

	w := httptest.NewRecorder()
	h.Checkout(w, newRequest(http.MethodPost, "/api/checkout", nil))

	if w.Result().StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Result().StatusCode)
	}
}

// 受講記録一覧の取得を検証
func TestCheckoutHandler_ListEnrollments(t *testing.T) {
	engines := newTestEngines(t)
	setupCheckout(t, engines)

	h := NewCheckoutHandler(engines, payment.NewStubProvider(), nil)
	h.Checkout(httptest.NewRecorder(), newRequest(http.MethodPost, "/api/checkout", nil))

	w := httptest.NewRecorder()
	h.ListEnrollments(w, newRequest(http.MethodGet, "/api/enrollments", nil))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}

	var resp struct {
		Enrollments []model.Enrollment `json:"enrollments"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(resp.Enrollments) != 2 {
		t.Errorf("len(enrollments) = %d, want 2", len(resp.Enrollments))
	}
	for _, e := range resp.Enrollments {
		if e.Progress != 0 {
			t.Errorf("progress = %d, want 0", e.Progress)
		}
	}
}

// 進捗更新エンドポイントを検証
func TestCheckoutHandler_UpdateProgress(t *testing.T) {
	engines := newTestEngines(t)
	setupCheckout(t, engines)

	h := NewCheckoutHandler(engines, payment.NewStubProvider(), nil)
	h.Checkout(httptest.NewRecorder(), newRequest(http.MethodPost, "/api/checkout", nil))

	body := bytes.NewBufferString(`{"progress":60}`)
	req := withURLParam(newRequest(http.MethodPatch, "/api/enrollments/1/progress", body), "id", "1")
	w := httptest.NewRecorder()
	h.UpdateProgress(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}

	engine := engines.GetOrCreate(context.Background(), "visitor-test")
	for _, e := range engine.Ledger.Enrollments() {
		if e.ID == 1 && e.Progress != 60 {
			t.Errorf("progress = %d, want 60", e.Progress)
		}
	}
}

// 未受講コースの進捗更新が404になることを検証
func TestCheckoutHandler_UpdateProgress_NotEnrolled(t *testing.T) {
	engines := newTestEngines(t)

	h := NewCheckoutHandler(engines, payment.NewStubProvider(), nil)

	body := bytes.NewBufferString(`{"progress":60}`)
	req := withURLParam(newRequest(http.MethodPatch, "/api/enrollments/42/progress", body), "id", "42")
	w := httptest.NewRecorder()
	h.UpdateProgress(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Result().StatusCode)
	}
}
