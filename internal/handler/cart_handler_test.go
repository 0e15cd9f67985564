package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/techwave/storefront/internal/catalog"
	"github.com/techwave/storefront/internal/model"
	"github.com/techwave/storefront/internal/session"
	"github.com/techwave/storefront/internal/state"
)

func newCartHandler(t *testing.T) (*CartHandler, EngineSource) {
	t.Helper()
	engines := newTestEngines(t)
	return NewCartHandler(engines, catalog.NewDefault(), nil), engines
}

func decodeCart(t *testing.T, w *httptest.ResponseRecorder) cartResponse {
	t.Helper()
	var resp cartResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return resp
}

// 空カートの取得を検証
func TestCartHandler_GetCart_Empty(t *testing.T) {
	h, _ := newCartHandler(t)

	w := httptest.NewRecorder()
	h.GetCart(w, newRequest(http.MethodGet, "/api/cart", nil))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}

	resp := decodeCart(t, w)
	if len(resp.Lines) != 0 || resp.Total != 0 || resp.ItemCount != 0 {
		t.Errorf("resp = %+v, want empty cart", resp)
	}
}

// コース追加とカタログスナップショットの反映を検証
func TestCartHandler_AddItem(t *testing.T) {
	h, _ := newCartHandler(t)

	body := bytes.NewBufferString(`{"course_id":1}`)
	w := httptest.NewRecorder()
	h.AddItem(w, newRequest(http.MethodPost, "/api/cart/items", body))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}

	resp := decodeCart(t, w)
	if len(resp.Lines) != 1 {
		t.Fatalf("len(lines) = %d, want 1", len(resp.Lines))
	}
	if resp.Lines[0].ID != 1 || resp.Lines[0].Quantity != 1 {
		t.Errorf("line = %+v, want course 1 qty 1", resp.Lines[0])
	}
	if math.Abs(resp.Total-89.99) > 1e-9 {
		t.Errorf("total = %v, want 89.99", resp.Total)
	}
}

// 同一コースの再追加で数量がマージされることを検証
func TestCartHandler_AddItem_Merges(t *testing.T) {
	h, _ := newCartHandler(t)

	for i := 0; i < 2; i++ {
		body := bytes.NewBufferString(`{"course_id":2}`)
		w := httptest.NewRecorder()
		h.AddItem(w, newRequest(http.MethodPost, "/api/cart/items", body))
		if w.Result().StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Result().StatusCode)
		}
	}

	w := httptest.NewRecorder()
	h.GetCart(w, newRequest(http.MethodGet, "/api/cart", nil))
	resp := decodeCart(t, w)

	if len(resp.Lines) != 1 || resp.Lines[0].Quantity != 2 {
		t.Errorf("lines = %+v, want single line qty 2", resp.Lines)
	}
	if resp.ItemCount != 2 {
		t.Errorf("item_count = %d, want 2", resp.ItemCount)
	}
}

// 存在しないコースIDで404が返ることを検証
func TestCartHandler_AddItem_CourseNotFound(t *testing.T) {
	h, _ := newCartHandler(t)

	body := bytes.NewBufferString(`{"course_id":42}`)
	w := httptest.NewRecorder()
	h.AddItem(w, newRequest(http.MethodPost, "/api/cart/items", body))

	if w.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Result().StatusCode)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Code != model.ErrCodeCourseNotFound {
		t.Errorf("code = %q, want COURSE_NOT_FOUND", resp.Code)
	}
}

// 数量更新と0指定による削除を検証
func TestCartHandler_UpdateQuantity(t *testing.T) {
	h, _ := newCartHandler(t)

	addBody := bytes.NewBufferString(`{"course_id":1}`)
	h.AddItem(httptest.NewRecorder(), newRequest(http.MethodPost, "/api/cart/items", addBody))

	// 数量を5に置き換え
	body := bytes.NewBufferString(`{"quantity":5}`)
	req := withURLParam(newRequest(http.MethodPatch, "/api/cart/items/1", body), "id", "1")
	w := httptest.NewRecorder()
	h.UpdateQuantity(w, req)

	resp := decodeCart(t, w)
	if len(resp.Lines) != 1 || resp.Lines[0].Quantity != 5 {
		t.Errorf("lines = %+v, want qty 5", resp.Lines)
	}

	// 0で削除
	body = bytes.NewBufferString(`{"quantity":0}`)
	req = withURLParam(newRequest(http.MethodPatch, "/api/cart/items/1", body), "id", "1")
	w = httptest.NewRecorder()
	h.UpdateQuantity(w, req)

	resp = decodeCart(t, w)
	if len(resp.Lines) != 0 {
		t.Errorf("lines = %+v, want empty", resp.Lines)
	}
}

// 不正なIDパラメータで400が返ることを検証
func TestCartHandler_UpdateQuantity_InvalidID(t *testing.T) {
	h, _ := newCartHandler(t)

	body := bytes.NewBufferString(`{"quantity":1}`)
	req := withURLParam(newRequest(http.MethodPatch, "/api/cart/items/abc", body), "id", "abc")
	w := httptest.NewRecorder()
	h.UpdateQuantity(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}
}

// カート行の削除と、存在しない行の削除が成功扱いになることを検証
func TestCartHandler_RemoveItem(t *testing.T) {
	h, _ := newCartHandler(t)

	addBody := bytes.NewBufferString(`{"course_id":1}`)
	h.AddItem(httptest.NewRecorder(), newRequest(http.MethodPost, "/api/cart/items", addBody))

	req := withURLParam(newRequest(http.MethodDelete, "/api/cart/items/1", nil), "id", "1")
	w := httptest.NewRecorder()
	h.RemoveItem(w, req)

	resp := decodeCart(t, w)
	if len(resp.Lines) != 0 {
		t.Errorf("lines = %+v, want empty", resp.Lines)
	}

	// 存在しない行の削除もエラーにしない
	req = withURLParam(newRequest(http.MethodDelete, "/api/cart/items/42", nil), "id", "42")
	w = httptest.NewRecorder()
	h.RemoveItem(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Result().StatusCode)
	}
}

// カートの全クリアを検証
func TestCartHandler_ClearCart(t *testing.T) {
	h, _ := newCartHandler(t)

	for _, id := range []string{`{"course_id":1}`, `{"course_id":2}`} {
		h.AddItem(httptest.NewRecorder(), newRequest(http.MethodPost, "/api/cart/items", bytes.NewBufferString(id)))
	}

	w := httptest.NewRecorder()
	h.ClearCart(w, newRequest(http.MethodDelete, "/api/cart", nil))

	resp := decodeCart(t, w)
	if len(resp.Lines) != 0 || resp.ItemCount != 0 {
		t.Errorf("resp = %+v, want empty cart", resp)
	}
}

// 保存失敗時に200+警告が返り、メモリ上の状態は反映されることを検証
func TestCartHandler_AddItem_PersistenceWarning(t *testing.T) {
	engine := state.NewEngine(context.Background(), &failingStore{}, session.NewDemoProvider())
	h := NewCartHandler(&fixedEngineSource{engine: engine}, catalog.NewDefault(), nil)

	body := bytes.NewBufferString(`{"course_id":1}`)
	w := httptest.NewRecorder()
	h.AddItem(w, newRequest(http.MethodPost, "/api/cart/items", body))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 with warning", w.Result().StatusCode)
	}

	resp := decodeCart(t, w)
	if resp.Warning == nil || resp.Warning.Code != model.ErrCodePersistenceUnavailable {
		t.Errorf("warning = %+v, want PERSISTENCE_UNAVAILABLE", resp.Warning)
	}
	if len(resp.Lines) != 1 {
		t.Errorf("lines = %+v, want mutation applied", resp.Lines)
	}
}
