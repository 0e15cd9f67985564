// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

const visitorCookieName = "visitor_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// visitorIDContextKey はリクエストコンテキストに訪問者IDを格納するためのキー。
var visitorIDContextKey = contextKey("visitor_id")

// VisitorCookieConfig は訪問者Cookieの設定。
type VisitorCookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // 秒
}

// NewVisitorMiddleware はHTTP Only Cookieから訪問者IDを読み取り、
// 未設定の場合は新規発行するミドルウェアを返す。
// 訪問者IDをリクエストコンテキストに注入する。
// 訪問者IDはブラウザ（シングルタブ）1つにつき1つの状態エンジンを特定する。
func NewVisitorMiddleware(config VisitorCookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var visitorID string

			// 1. Cookieから訪問者IDを取得
			cookie, err := r.Cookie(visitorCookieName)
			if err == nil && cookie.Value != "" {
				if _, parseErr := uuid.Parse(cookie.Value); parseErr == nil {
					visitorID = cookie.Value
				}
			}

			// 2. 未設定または不正な場合は新規発行
			if visitorID == "" {
				visitorID = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     visitorCookieName,
					Value:    visitorID,
					Path:     "/",
					Domain:   config.Domain,
					MaxAge:   config.MaxAge,
					HttpOnly: true,
					Secure:   config.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			// 3. 訪問者IDをコンテキストに注入
			ctx := context.WithValue(r.Context(), visitorIDContextKey, visitorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// VisitorIDFromContext はリクエストコンテキストから訪問者IDを取得する。
// 訪問者ミドルウェアを通過したリクエストでのみ有効。
func VisitorIDFromContext(ctx context.Context) (string, error) {
	visitorID, ok := ctx.Value(visitorIDContextKey).(string)
	if !ok || visitorID == "" {
		return "", fmt.Errorf("visitor ID not found in context")
	}
	return visitorID, nil
}

// ContextWithVisitorID はコンテキストに訪問者IDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithVisitorID(ctx context.Context, visitorID string) context.Context {
	return context.WithValue(ctx, visitorIDContextKey, visitorID)
}
