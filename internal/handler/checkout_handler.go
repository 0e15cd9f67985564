package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/techwave/storefront/internal/model"
	"github.com/techwave/storefront/internal/payment"
)

// CheckoutRecorder はチェックアウトメトリクスの記録インターフェース。
type CheckoutRecorder interface {
	RecordCheckout(courseCount int)
	RecordEnrollment()
	RecordPersistenceFailure()
	RecordCheckoutLatency(duration time.Duration)
}

// CheckoutHandler はチェックアウトと受講記録のHTTPハンドラー。
type CheckoutHandler struct {
	engines  EngineSource
	provider payment.Provider
	metrics  CheckoutRecorder
}

// NewCheckoutHandler はCheckoutHandlerを生成する。
func NewCheckoutHandler(engines EngineSource, provider payment.Provider, metrics CheckoutRecorder) *CheckoutHandler {
	return &CheckoutHandler{
		engines:  engines,
		provider: provider,
		metrics:  metrics,
	}
}

// checkoutResponse はチェックアウト結果のAPIレスポンス。
type checkoutResponse struct {
	SessionID   string              `json:"session_id"`
	Enrollments []model.Enrollment  `json:"enrollments"`
	Warning     *persistenceWarning `json:"warning,omitempty"`
}

// updateProgressRequest は進捗更新リクエストのボディ。
type updateProgressRequest struct {
	Progress int `json:"progress"`
}

// Checkout はカート全行のチェックアウトを処理する。
// 決済プロバイダの完了シグナルを受けて各行の受講を確定し、カートを空にする。
// ログインが必要。
// POST /api/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	engine, apiErr := engineForRequest(h.engines, r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	if engine.Session.Current() == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	lines := engine.Ledger.Lines()
	if len(lines) == 0 {
		writeAPIErrorResponse(w, http.StatusConflict, model.NewCartEmptyError())
		return
	}

	courseIDs := make([]int, len(lines))
	for i, line := range lines {
		courseIDs[i] = line.ID
	}

	// 1. 決済セッションの作成と完了
	sessionID, err := h.provider.CreateCheckoutSession(r.Context(), courseIDs, engine.Ledger.Total())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewCheckoutFailedError(err.Error()))
		return
	}

	completed, err := h.provider.CompleteCheckout(r.Context(), sessionID)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewCheckoutFailedError(err.Error()))
		return
	}
	if !completed {
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewCheckoutFailedError("決済が完了しませんでした"))
		return
	}

	// 2. 完了シグナルを受けて各カート行の受講を確定する。
	// Enrollは同一コースIDのカート行を削除するため、全行処理後のカートは空になる。
	var warning *persistenceWarning
	for _, line := range lines {
		w2, enrollErr := warningFrom(engine.Ledger.Enroll(r.Context(), line.Course))
		if enrollErr != nil {
			handleServiceError(w, enrollErr)
			return
		}
		if w2 != nil {
			warning = w2
		}
		if h.metrics != nil {
			h.metrics.RecordEnrollment()
		}
	}

	if h.metrics != nil {
		h.metrics.RecordCheckout(len(lines))
		h.metrics.RecordCheckoutLatency(time.Since(start))
		if warning != nil {
			h.metrics.RecordPersistenceFailure()
		}
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		SessionID:   sessionID,
		Enrollments: engine.Ledger.Enrollments(),
		Warning:     warning,
	})
}

// ListEnrollments は受講記録一覧を返す。
// GET /api/enrollments
func (h *CheckoutHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	engine, apiErr := engineForRequest(h.engines, r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"enrollments": engine.Ledger.Enrollments(),
	})
}

// UpdateProgress は受講記録の進捗を更新する。
// PATCH /api/enrollments/{id}/progress
func (h *CheckoutHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	engine, apiErr := engineForRequest(h.engines, r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	courseID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("コースIDが不正です"))
		return
	}

	var req updateProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	warning, err := warningFrom(engine.Ledger.UpdateProgress(r.Context(), courseID, req.Progress))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"enrollments": engine.Ledger.Enrollments(),
		"warning":     warning,
	})
}
