// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/techwave/storefront/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case model.ErrCodeCourseNotFound:
		return http.StatusNotFound
	case model.ErrCodeNotAuthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeCartEmpty:
		return http.StatusConflict
	case model.ErrCodeCheckoutFailed:
		return http.StatusBadGateway
	case model.ErrCodeBlogUnavailable:
		return http.StatusBadGateway
	case model.ErrCodePersistenceUnavailable:
		// 操作自体は成立しているため、ハンドラー側でwarning付き200として
		// 処理するのが原則。ここに到達するのは読み込み系のみ。
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// persistenceWarning はミューテーション成功+保存失敗時のレスポンスに含める警告。
type persistenceWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

// warningFrom はエラーがPERSISTENCE_UNAVAILABLEの場合に警告レスポンスを生成する。
// それ以外のエラーの場合はnilと元のエラーを返す。
func warningFrom(err error) (*persistenceWarning, error) {
	if err == nil {
		return nil, nil
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodePersistenceUnavailable {
		return &persistenceWarning{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Action:  apiErr.Action,
		}, nil
	}
	return nil, err
}
