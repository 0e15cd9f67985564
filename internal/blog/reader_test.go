package blog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// --- モック ---

// mockSSRF は検証を素通しするSSRFValidator。
// httptestサーバーはループバックで動くため、実際のガードは使えない。
type mockSSRF struct {
	validateFn func(rawURL string) error
}

func (m *mockSSRF) ValidateURL(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}

func (m *mockSSRF) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

type mockSanitizer struct {
	sanitizeFn func(rawHTML string) string
}

func (m *mockSanitizer) Sanitize(rawHTML string) string {
	if m.sanitizeFn != nil {
		return m.sanitizeFn(rawHTML)
	}
	return rawHTML
}

// --- テストデータ ---

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>TechWave Blog</title>
    <link>https://blog.example.com</link>
    <item>
      <title>New Course: Advanced Go</title>
      <link>https://blog.example.com/advanced-go</link>
      <description>&lt;p&gt;Learn Go&lt;/p&gt;&lt;script&gt;bad()&lt;/script&gt;</description>
      <pubDate>Mon, 04 Aug 2025 10:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Platform Update</title>
      <link>https://blog.example.com/update</link>
      <description>Minor fixes</description>
    </item>
  </channel>
</rss>`

func testReader(feedURL string, ttl time.Duration, sanitizer Sanitizer) *Reader {
	if sanitizer == nil {
		sanitizer = &mockSanitizer{}
	}
	return NewReader(ReaderConfig{
		FeedURL:     feedURL,
		CacheTTL:    ttl,
		Timeout:     5 * time.Second,
		MaxBodySize: 1 << 20,
	}, &mockSSRF{}, sanitizer)
}

// --- テスト ---

// RSSフィードのパースと記事変換を検証
func TestReader_Posts_ParsesRSS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testRSS)
	}))
	defer server.Close()

	r := testReader(server.URL, time.Minute, nil)

	posts, err := r.Posts(context.Background())
	if err != nil {
		t.Fatalf("Posts failed: %v", err)
	}

	if len(posts) != 2 {
		t.Fatalf("len(posts) = %d, want 2", len(posts))
	}
	if posts[0].Title != "New Course: Advanced Go" {
		t.Errorf("title = %q", posts[0].Title)
	}
	if posts[0].Link != "https://blog.example.com/advanced-go" {
		t.Errorf("link = %q", posts[0].Link)
	}
	if posts[0].PublishedAt == nil {
		t.Error("PublishedAt is nil, want parsed date")
	}
	if posts[1].PublishedAt != nil {
		t.Error("PublishedAt set for item without pubDate")
	}
}

// 要約がサニタイザを通過することを検証
func TestReader_Posts_SanitizesSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testRSS)
	}))
	defer server.Close()

	sanitizer := &mockSanitizer{
		sanitizeFn: func(rawHTML string) string {
			return strings.ReplaceAll(rawHTML, "<script>bad()</script>", "")
		},
	}
	r := testReader(server.URL, time.Minute, sanitizer)

	posts, err := r.Posts(context.Background())
	if err != nil {
		t.Fatalf("Posts failed: %v", err)
	}

	if strings.Contains(posts[0].Summary, "<script>") {
		t.Errorf("summary contains script tag: %q", posts[0].Summary)
	}
	if !strings.Contains(posts[0].Summary, "<p>Learn Go</p>") {
		t.Errorf("summary lost safe content: %q", posts[0].Summary)
	}
}

// TTL内の再取得がキャッシュから返されることを検証
func TestReader_Posts_ServesCacheWithinTTL(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testRSS)
	}))
	defer server.Close()

	r := testReader(server.URL, 10*time.Minute, nil)

	if _, err := r.Posts(context.Background()); err != nil {
		t.Fatalf("Posts failed: %v", err)
	}
	if _, err := r.Posts(context.Background()); err != nil {
		t.Fatalf("Posts failed: %v", err)
	}

	if hits != 1 {
		t.Errorf("server hits = %d, want 1", hits)
	}
}

// TTL経過後に再取得されることを検証
func TestReader_Posts_RefetchesAfterTTL(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testRSS)
	}))
	defer server.Close()

	r := testReader(server.URL, 10*time.Minute, nil)

	current := time.Now()
	r.now = func() time.Time { return current }

	if _, err := r.Posts(context.Background()); err != nil {
		t.Fatalf("Posts failed: %v", err)
	}

	current = current.Add(11 * time.Minute)
	if _, err := r.Posts(context.Background()); err != nil {
		t.Fatalf("Posts failed: %v", err)
	}

	if hits != 2 {
		t.Errorf("server hits = %d, want 2", hits)
	}
}

// フェッチ失敗時に期限切れキャッシュで劣化運転することを検証
func TestReader_Posts_ServesStaleOnFailure(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testRSS)
	}))
	defer server.Close()

	r := testReader(server.URL, 10*time.Minute, nil)

	current := time.Now()
	r.now = func() time.Time { return current }

	if _, err := r.Posts(context.Background()); err != nil {
		t.Fatalf("Posts failed: %v", err)
	}

	// TTL切れ後のフェッチは失敗するが、古いキャッシュが返る
	current = current.Add(11 * time.Minute)
	posts, err := r.Posts(context.Background())
	if err != nil {
		t.Fatalf("Posts failed: %v", err)
	}
	if len(posts) != 2 {
		t.Errorf("len(posts) = %d, want stale cache of 2", len(posts))
	}
}

// キャッシュがない状態でのフェッチ失敗がBLOG_UNAVAILABLEになることを検証
func TestReader_Posts_FailureWithoutCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := testReader(server.URL, time.Minute, nil)

	_, err := r.Posts(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

// SSRF検証に失敗したURLがフェッチされないことを検証
func TestReader_Posts_RejectsUnsafeURL(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	reader := NewReader(ReaderConfig{
		FeedURL:     server.URL,
		CacheTTL:    time.Minute,
		Timeout:     5 * time.Second,
		MaxBodySize: 1 << 20,
	}, &mockSSRF{
		validateFn: func(rawURL string) error {
			return fmt.Errorf("blocked host")
		},
	}, &mockSanitizer{})

	_, err := reader.Posts(context.Background())
	if err == nil {
		t.Fatal("expected error for unsafe URL")
	}
	if hits != 0 {
		t.Errorf("server hits = %d, want 0", hits)
	}
}

// HTMLページからのフィードリンク自動検出を検証
func TestReader_Posts_DiscoversFeedFromHTML(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
  <title>TechWave Blog</title>
  <link rel="alternate" type="application/rss+xml" href="/feed.xml">
</head>
<body>blog</body>
</html>`)
	})
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testRSS)
	})

	r := testReader(server.URL+"/", time.Minute, nil)

	posts, err := r.Posts(context.Background())
	if err != nil {
		t.Fatalf("Posts failed: %v", err)
	}
	if len(posts) != 2 {
		t.Errorf("len(posts) = %d, want 2", len(posts))
	}
}

// discoverFeedLinkの相対URL解決とAtom対応を検証
func TestDiscoverFeedLink(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"相対URLの解決",
			`<html><head><link rel="alternate" type="application/rss+xml" href="/feed.xml"></head></html>`,
			"https://blog.example.com/feed.xml",
		},
		{
			"絶対URL",
			`<html><head><link rel="alternate" type="application/atom+xml" href="https://cdn.example.com/atom.xml"></head></html>`,
			"https://cdn.example.com/atom.xml",
		},
		{
			"フィードリンクなし",
			`<html><head><link rel="stylesheet" href="/style.css"></head></html>`,
			"",
		},
		{
			"type不一致",
			`<html><head><link rel="alternate" type="text/html" href="/other"></head></html>`,
			"",
		},
		{
			"body内のlinkは無視",
			`<html><head></head><body><link rel="alternate" type="application/rss+xml" href="/feed.xml"></body></html>`,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := discoverFeedLink([]byte(tt.html), "https://blog.example.com/")
			if got != tt.want {
				t.Errorf("discoverFeedLink = %q, want %q", got, tt.want)
			}
		})
	}
}
