// Package blog はプラットフォームブログのフィード取得を提供する。
//
// ブログ本体は外部のCMSでホストされており、ストアフロントはそのRSS/Atom
// フィードをSSRF防止付きクライアントで取得し、要約をサニタイズして
// TTL付きでキャッシュする。
package blog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/techwave/storefront/internal/model"
)

// maxPosts はAPIで返す記事数の上限。
const maxPosts = 20

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Sanitizer はHTMLサニタイズのインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// ReaderConfig はブログリーダーの設定。
type ReaderConfig struct {
	FeedURL     string
	CacheTTL    time.Duration
	Timeout     time.Duration
	MaxBodySize int64
}

// Reader はブログフィードの取得・パース・キャッシュを行う。
type Reader struct {
	config    ReaderConfig
	ssrfGuard SSRFValidator
	sanitizer Sanitizer
	now       func() time.Time

	mu        sync.Mutex
	cached    []model.BlogPost
	fetchedAt time.Time
}

// NewReader はReaderの新しいインスタンスを生成する。
func NewReader(config ReaderConfig, ssrfGuard SSRFValidator, sanitizer Sanitizer) *Reader {
	return &Reader{
		config:    config,
		ssrfGuard: ssrfGuard,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Posts はブログ記事一覧を返す。
// キャッシュが有効期間内であればフェッチせずキャッシュを返す。
// フェッチ失敗時、期限切れでもキャッシュがあればそれを返す（劣化運転）。
func (r *Reader) Posts(ctx context.Context) ([]model.BlogPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && r.now().Sub(r.fetchedAt) < r.config.CacheTTL {
		return r.copyCached(), nil
	}

	posts, err := r.fetch(ctx)
	if err != nil {
		if r.cached != nil {
			slog.Warn("blog fetch failed, serving stale cache",
				slog.String("error", err.Error()),
			)
			return r.copyCached(), nil
		}
		return nil, model.NewBlogUnavailableError(err.Error())
	}

	r.cached = posts
	r.fetchedAt = r.now()
	return r.copyCached(), nil
}

// copyCached はキャッシュのコピーを返す。呼び出し元がロックを保持すること。
func (r *Reader) copyCached() []model.BlogPost {
	out := make([]model.BlogPost, len(r.cached))
	copy(out, r.cached)
	return out
}

// fetch はフィードを取得してパースする。
// フィードURLがHTMLページの場合はheadタグからフィードリンクを自動検出する。
func (r *Reader) fetch(ctx context.Context) ([]model.BlogPost, error) {
	body, contentType, err := r.get(ctx, r.config.FeedURL)
	if err != nil {
		return nil, err
	}

	feed, parseErr := gofeed.NewParser().Parse(bytes.NewReader(body))
	if parseErr != nil {
		// HTMLページの可能性: フィードリンクの自動検出を試みる
		if !strings.Contains(strings.ToLower(contentType), "html") {
			return nil, fmt.Errorf("failed to parse feed: %w", parseErr)
		}
		feedURL := discoverFeedLink(body, r.config.FeedURL)
		if feedURL == "" {
			return nil, fmt.Errorf("no feed link found in HTML page: %s", r.config.FeedURL)
		}
		body, _, err = r.get(ctx, feedURL)
		if err != nil {
			return nil, err
		}
		feed, err = gofeed.NewParser().Parse(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to parse discovered feed: %w", err)
		}
	}

	posts := make([]model.BlogPost, 0, len(feed.Items))
	for _, item := range feed.Items {
		if len(posts) >= maxPosts {
			break
		}
		post := model.BlogPost{
			Title:       item.Title,
			Link:        item.Link,
			Summary:     r.sanitizer.Sanitize(item.Description),
			PublishedAt: item.PublishedParsed,
		}
		if item.Author != nil {
			post.Author = item.Author.Name
		}
		posts = append(posts, post)
	}

	return posts, nil
}

// get はSSRF検証付きでURLを取得し、ボディとContent-Typeを返す。
func (r *Reader) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := r.ssrfGuard.ValidateURL(rawURL); err != nil {
		return nil, "", fmt.Errorf("unsafe feed URL: %w", err)
	}

	client := r.ssrfGuard.NewSafeClient(r.config.Timeout, r.config.MaxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "TechWave-Storefront/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.config.MaxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read feed body: %w", err)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// discoverFeedLink はHTMLのheadタグからRSS/Atomフィードリンクを検出する。
// 相対URLはbaseURLを基準に絶対URLに解決される。最初の候補を返す。
func discoverFeedLink(htmlBody []byte, baseURL string) string {
	baseU, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}
			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return ""
			}
			if !inHead || tagName != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}

			if rel != "alternate" || href == "" {
				continue
			}
			if linkType != "application/rss+xml" && linkType != "application/atom+xml" {
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			return baseU.ResolveReference(ref).String()

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return ""
			}
		}
	}
}
