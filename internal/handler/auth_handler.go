package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/techwave/storefront/internal/middleware"
	"github.com/techwave/storefront/internal/model"
	"github.com/techwave/storefront/internal/state"
)

// EngineSource は訪問者IDから状態エンジンを取得するインターフェース。
// state.Registryの部分集合として定義する。
type EngineSource interface {
	GetOrCreate(ctx context.Context, visitorID string) *state.Engine
}

// AuthHandler はログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	engines EngineSource
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(engines EngineSource) *AuthHandler {
	return &AuthHandler{engines: engines}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はアイデンティティのAPIレスポンス。
type userResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// engineForRequest はリクエストの訪問者IDに対応するエンジンを返す。
func engineForRequest(engines EngineSource, r *http.Request) (*state.Engine, *model.APIError) {
	visitorID, err := middleware.VisitorIDFromContext(r.Context())
	if err != nil {
		return nil, model.NewValidationError("訪問者IDが特定できません")
	}
	return engines.GetOrCreate(r.Context(), visitorID), nil
}

// Login はメール/パスワードログインを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	engine, apiErr := engineForRequest(h.engines, r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	user, err := engine.Session.Login(req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{Email: user.Email, Name: user.Name})
}

// LoginProvider は外部IdPサインインを処理する。
// POST /auth/provider
func (h *AuthHandler) LoginProvider(w http.ResponseWriter, r *http.Request) {
	engine, apiErr := engineForRequest(h.engines, r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	user, err := engine.Session.LoginViaProvider(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{Email: user.Email, Name: user.Name})
}

// Logout はログアウトを処理する。
// アイデンティティ・カート・受講記録がすべてクリアされる。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	engine, apiErr := engineForRequest(h.engines, r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	warning, err := warningFrom(engine.Session.Logout(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"logged_out": true,
		"warning":    warning,
	})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	engine, apiErr := engineForRequest(h.engines, r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	user := engine.Session.Current()
	if user == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	writeJSON(w, http.StatusOK, userResponse{Email: user.Email, Name: user.Name})
}
