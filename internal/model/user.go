// Package model はドメインモデルを定義する。
package model

// User はログイン中の利用者を表す。
// 同時に存在するのは常に0件または1件（シングルユーザーセッション）。
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}
