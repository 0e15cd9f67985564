// Package model はドメインモデルを定義する。
package model

import "time"

// BlogPost はプラットフォームブログの記事を表す。
// Summaryはサニタイズ済みHTML。
type BlogPost struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Summary     string     `json:"summary"`
	Author      string     `json:"author"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
