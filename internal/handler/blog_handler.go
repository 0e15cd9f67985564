package handler

import (
	"context"
	"net/http"

	"github.com/techwave/storefront/internal/model"
)

// BlogReaderInterface はブログハンドラーが必要とするリーダーインターフェース。
type BlogReaderInterface interface {
	Posts(ctx context.Context) ([]model.BlogPost, error)
}

// BlogHandler はプラットフォームブログのHTTPハンドラー。
type BlogHandler struct {
	reader BlogReaderInterface
}

// NewBlogHandler はBlogHandlerを生成する。
// readerがnilの場合（BLOG_FEED_URL未設定）、エンドポイントは無効応答を返す。
func NewBlogHandler(reader BlogReaderInterface) *BlogHandler {
	return &BlogHandler{reader: reader}
}

// ListPosts はブログ記事一覧を返す。
// GET /api/blog
func (h *BlogHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewBlogUnavailableError("ブログフィードが設定されていません"))
		return
	}

	posts, err := h.reader.Posts(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"posts": posts,
	})
}
