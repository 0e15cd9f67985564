package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/techwave/storefront/internal/model"
	"github.com/techwave/storefront/internal/state"
)

// CatalogInterface はカートハンドラーが必要とするカタログインターフェース。
type CatalogInterface interface {
	List() []model.Course
	FindByID(id int) (model.Course, bool)
}

// MutationRecorder はカート操作メトリクスの記録インターフェース。
type MutationRecorder interface {
	RecordCartMutation(operation string)
	RecordPersistenceFailure()
}

// CartHandler はカート管理のHTTPハンドラー。
type CartHandler struct {
	engines EngineSource
	catalog CatalogInterface
	metrics MutationRecorder
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(engines EngineSource, catalog CatalogInterface, metrics MutationRecorder) *CartHandler {
	return &CartHandler{
		engines: engines,
		catalog: catalog,
		metrics: metrics,
	}
}

// addItemRequest はカート追加リクエストのボディ。
type addItemRequest struct {
	CourseID int `json:"course_id"`
}

// updateQuantityRequest は数量更新リクエストのボディ。
type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// cartResponse はカート全体のAPIレスポンス。
type cartResponse struct {
	Lines     []model.CartLine    `json:"lines"`
	Total     float64             `json:"total"`
	ItemCount int                 `json:"item_count"`
	Warning   *persistenceWarning `json:"warning,omitempty"`
}

// GetCart はカート内容を返す。
// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	engine, apiErr := engineForRequest(h.engines, r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	h.writeCart(w, engine, nil)
}

// AddItem はコースをカートに追加する。
// 既存行があれば数量を1増やす。スナップショットは追加時点のまま維持される。
// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	engine, apiErr := engineForRequest(h.engines, r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	course, ok := h.catalog.FindByID(req.CourseID)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewCourseNotFoundError(req.CourseID))
		return
	}

	warning, err := h.mutation(engine.Ledger.AddToCart(r.Context(), course), "add")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeCart(w, engine, warning)
}

// UpdateQuantity はカート行の数量を置き換える。0以下は削除と等価。
// PATCH /api/cart/items/{id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
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

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	warning, err := h.mutation(engine.Ledger.UpdateQuantity(r.Context(), courseID, req.Quantity), "update_quantity")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeCart(w, engine, warning)
}

// RemoveItem はカート行を削除する。行が存在しなくてもエラーにはしない。
// DELETE /api/cart/items/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
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

	warning, err := h.mutation(engine.Ledger.RemoveFromCart(r.Context(), courseID), "remove")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeCart(w, engine, warning)
}

// ClearCart はカートを空にする。
// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	engine, apiErr := engineForRequest(h.engines, r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	warning, err := h.mutation(engine.Ledger.ClearCart(r.Context()), "clear")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeCart(w, engine, warning)
}

// mutation はミューテーション結果をメトリクスに記録し、
// 保存失敗を警告に変換する。検証エラー等はそのままエラーとして返す。
func (h *CartHandler) mutation(err error, operation string) (*persistenceWarning, error) {
	warning, err := warningFrom(err)
	if err != nil {
		return nil, err
	}
	if h.metrics != nil {
		h.metrics.RecordCartMutation(operation)
		if warning != nil {
			h.metrics.RecordPersistenceFailure()
		}
	}
	return warning, nil
}

// writeCart はカート状態のレスポンスを書き込む。
func (h *CartHandler) writeCart(w http.ResponseWriter, engine *state.Engine, warning *persistenceWarning) {
	writeJSON(w, http.StatusOK, cartResponse{
		Lines:     engine.Ledger.Lines(),
		Total:     engine.Ledger.Total(),
		ItemCount: engine.Ledger.ItemCount(),
		Warning:   warning,
	})
}
