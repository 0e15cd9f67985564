// Package store はカート・受講記録の永続化アダプタを提供する。
//
// ストアはメモリ上の状態の受動的なミラーであり、所有権を持たない。
// 台帳が各ミューテーション後にコレクション全体を上書き保存し、
// 起動時に1回だけ読み込む。耐久性はベストエフォートで、
// 保存失敗はメモリ上の状態をロールバックしない。
package store

import "context"

// 論理コレクションのキー。値はそれぞれのレコード形式のJSON配列。
const (
	KeyCart        = "cart"
	KeyEnrollments = "enrollments"
)

// Store は永続化アダプタのインターフェース。
type Store interface {
	// Load は指定キーのシリアライズ済みデータを返す。
	// データが存在しない場合は(nil, nil)を返す。
	Load(ctx context.Context, key string) ([]byte, error)

	// Save は指定キーにデータを上書き保存する（全コレクション置換、追記ではない）。
	Save(ctx context.Context, key string, data []byte) error
}
