// Package model はドメインモデルを定義する。
package model

import "time"

// Course はカタログ上のコースを表す。
// コア（カート・受講台帳）からは読み取り専用として扱う。
type Course struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	Instructor    string  `json:"instructor"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"original_price"`
	Image         string  `json:"image"`
	Level         string  `json:"level"`
}

// CartLine はカート内の1エントリを表す。
// コース情報は追加時点のスナップショットであり、以後カタログが変わっても更新しない。
type CartLine struct {
	Course
	Quantity int `json:"quantity"`
}

// Enrollment は受講記録を表す。
// コース情報は受講確定時点のスナップショット。
type Enrollment struct {
	Course
	EnrolledAt time.Time `json:"enrolled_at"`
	Progress   int       `json:"progress"` // 0-100
}
