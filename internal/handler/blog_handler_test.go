package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/techwave/storefront/internal/model"
)

// --- モック ---

type mockBlogReader struct {
	postsFn func(ctx context.Context) ([]model.BlogPost, error)
}

func (m *mockBlogReader) Posts(ctx context.Context) ([]model.BlogPost, error) {
	return m.postsFn(ctx)
}

// --- テスト ---

// 記事一覧の取得を検証
func TestBlogHandler_ListPosts(t *testing.T) {
	reader := &mockBlogReader{
		postsFn: func(ctx context.Context) ([]model.BlogPost, error) {
			return []model.BlogPost{
				{Title: "New Course: Advanced Go", Link: "https://blog.example.com/advanced-go"},
			}, nil
		},
	}
	h := NewBlogHandler(reader)

	w := httptest.NewRecorder()
	h.ListPosts(w, newRequest(http.MethodGet, "/api/blog", nil))

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Result().StatusCode)
	}

	var resp struct {
		Posts []model.BlogPost `json:"posts"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(resp.Posts) != 1 || resp.Posts[0].Title != "New Course: Advanced Go" {
		t.Errorf("posts = %+v", resp.Posts)
	}
}

// リーダー未設定（BLOG_FEED_URLなし）で404が返ることを検証
func TestBlogHandler_ListPosts_Disabled(t *testing.T) {
	h := NewBlogHandler(nil)

	w := httptest.NewRecorder()
	h.ListPosts(w, newRequest(http.MethodGet, "/api/blog", nil))

	if w.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Result().StatusCode)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Code != model.ErrCodeBlogUnavailable {
		t.Errorf("code = %q, want BLOG_UNAVAILABLE", resp.Code)
	}
}

// フィード取得失敗で502が返ることを検証
func TestBlogHandler_ListPosts_FetchFailure(t *testing.T) {
	reader := &mockBlogReader{
		postsFn: func(ctx context.Context) ([]model.BlogPost, error) {
			return nil, model.NewBlogUnavailableError("feed returned status 500")
		},
	}
	h := NewBlogHandler(reader)

	w := httptest.NewRecorder()
	h.ListPosts(w, newRequest(http.MethodGet, "/api/blog", nil))

	if w.Result().StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Result().StatusCode)
	}
}
