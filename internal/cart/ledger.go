// Package cart はカートと受講記録の台帳を提供する。
//
// 台帳はメモリ上の状態を唯一の真実として保持し、各ミューテーション後に
// 永続化ストアへコレクション全体を上書き保存する。保存失敗は
// PERSISTENCE_UNAVAILABLEとして呼び出し側に報告されるが、
// メモリ上の変更はロールバックされない（耐久性はベストエフォート）。
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/techwave/storefront/internal/model"
	"github.com/techwave/storefront/internal/store"
)

// maxQuantity は1カート行あたりの数量上限。
const maxQuantity = 999

// Ledger はカート行と受講記録を所有する台帳。
// カート行は挿入順を保持し、コースIDごとに最大1行（重複なし）。
type Ledger struct {
	mu    sync.Mutex
	store store.Store
	now   func() time.Time

	lines       []model.CartLine
	enrollments []model.Enrollment

	obsMu     sync.Mutex
	observers []func()
}

// NewLedger は台帳を生成し、ストアから初期状態を読み込む。
// データ欠損・破損・読み込み失敗はすべて空コレクションにフォールバックし、
// エラーにはしない（永続化はベストエフォートであり、クラッシュ要因にしない）。
func NewLedger(ctx context.Context, st store.Store) *Ledger {
	l := &Ledger{
		store: st,
		now:   time.Now,
	}

	loadCollection(ctx, st, store.KeyCart, &l.lines)
	loadCollection(ctx, st, store.KeyEnrollments, &l.enrollments)

	return l
}

// loadCollection はストアから1コレクションを読み込んでdstに格納する。
// 失敗時はdstを空のまま残し、警告ログのみ出力する。
func loadCollection[T any](ctx context.Context, st store.Store, key string, dst *[]T) {
	data, err := st.Load(ctx, key)
	if err != nil {
		slog.Warn("failed to load collection, starting empty",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	if data == nil {
		return
	}
	if err := json.Unmarshal(data, dst); err != nil {
		slog.Warn("failed to decode collection, starting empty",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		*dst = nil
	}
}

// Subscribe は状態変更の通知コールバックを登録する。
// UIレイヤーが再描画のために購読する。コールバックはミューテーション完了後、
// 台帳のロック外で呼び出される。
func (l *Ledger) Subscribe(fn func()) {
	l.obsMu.Lock()
	defer l.obsMu.Unlock()
	l.observers = append(l.observers, fn)
}

// AddToCart はコースをカートに追加する。
// 既存行があれば数量を1増やす（追加時点のスナップショットは更新しない）。
// なければ数量1の新規行を末尾に追加する。
func (l *Ledger) AddToCart(ctx context.Context, course model.Course) error {
	if err := validateCourse(course); err != nil {
		return err
	}

	l.mu.Lock()
	merged := false
	for i := range l.lines {
		if l.lines[i].ID == course.ID {
			if l.lines[i].Quantity >= maxQuantity {
				l.mu.Unlock()
				return model.NewValidationError(fmt.Sprintf("数量が上限（%d）に達しています", maxQuantity))
			}
			l.lines[i].Quantity++
			merged = true
			break
		}
	}
	if !merged {
		l.lines = append(l.lines, model.CartLine{Course: course, Quantity: 1})
	}
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return err
}

// RemoveFromCart は指定コースのカート行を削除する。
// 行が存在しない場合は何もしない（エラーではない）。
func (l *Ledger) RemoveFromCart(ctx context.Context, courseID int) error {
	l.mu.Lock()
	l.removeLineLocked(courseID)
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return err
}

// UpdateQuantity はカート行の数量を置き換える。
// newQuantityが0以下の場合は行の削除と等価。スナップショットは変更しない。
func (l *Ledger) UpdateQuantity(ctx context.Context, courseID, newQuantity int) error {
	if newQuantity > maxQuantity {
		return model.NewValidationError(fmt.Sprintf("数量が上限（%d）を超えています", maxQuantity))
	}

	l.mu.Lock()
	if newQuantity <= 0 {
		l.removeLineLocked(courseID)
	} else {
		for i := range l.lines {
			if l.lines[i].ID == courseID {
				l.lines[i].Quantity = newQuantity
				break
			}
		}
	}
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return err
}

// ClearCart はカートを無条件に空にする。受講記録は変更しない。
func (l *Ledger) ClearCart(ctx context.Context) error {
	l.mu.Lock()
	l.lines = nil
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return err
}

// Enroll はコースの受講を確定する。
// 受講記録をコースIDでUPSERTし（再受講はスナップショットと受講日時を更新し、
// 進捗は維持する）、同じコースIDのカート行を削除する。
func (l *Ledger) Enroll(ctx context.Context, course model.Course) error {
	if err := validateCourse(course); err != nil {
		return err
	}

	l.mu.Lock()
	record := model.Enrollment{
		Course:     course,
		EnrolledAt: l.now(),
		Progress:   0,
	}
	updated := false
	for i := range l.enrollments {
		if l.enrollments[i].ID == course.ID {
			record.Progress = l.enrollments[i].Progress
			l.enrollments[i] = record
			updated = true
			break
		}
	}
	if !updated {
		l.enrollments = append(l.enrollments, record)
	}
	l.removeLineLocked(course.ID)
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return err
}

// UpdateProgress は受講記録の進捗（0-100）を更新する。
func (l *Ledger) UpdateProgress(ctx context.Context, courseID, progress int) error {
	if progress < 0 || progress > 100 {
		return model.NewValidationError(fmt.Sprintf("進捗は0から100の範囲で指定してください: %d", progress))
	}

	l.mu.Lock()
	found := false
	for i := range l.enrollments {
		if l.enrollments[i].ID == courseID {
			l.enrollments[i].Progress = progress
			found = true
			break
		}
	}
	if !found {
		l.mu.Unlock()
		return model.NewCourseNotFoundError(courseID)
	}
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return err
}

// ClearAll はカートと受講記録の両方を空にする。
// ログアウト時にセッションマネージャから呼ばれる。
func (l *Ledger) ClearAll(ctx context.Context) error {
	l.mu.Lock()
	l.lines = nil
	l.enrollments = nil
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return err
}

// Lines はカート行を挿入順で返す（コピー、副作用なし）。
func (l *Ledger) Lines() []model.CartLine {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.CartLine, len(l.lines))
	copy(out, l.lines)
	return out
}

// Enrollments は受講記録を返す（コピー、副作用なし）。
func (l *Ledger) Enrollments() []model.Enrollment {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.Enrollment, len(l.enrollments))
	copy(out, l.enrollments)
	return out
}

// Total は全カート行の単価×数量の合計を返す（副作用なし）。
func (l *Ledger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total float64
	for _, line := range l.lines {
		total += line.Price * float64(line.Quantity)
	}
	return total
}

// ItemCount は全カート行の数量の合計を返す（副作用なし）。
func (l *Ledger) ItemCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var count int
	for _, line := range l.lines {
		count += line.Quantity
	}
	return count
}

// removeLineLocked は指定コースIDの行を削除する。呼び出し元がロックを保持すること。
func (l *Ledger) removeLineLocked(courseID int) {
	for i := range l.lines {
		if l.lines[i].ID == courseID {
			l.lines = append(l.lines[:i], l.lines[i+1:]...)
			return
		}
	}
}

// persistLocked は両コレクションをストアに上書き保存する。
// 呼び出し元がロックを保持すること。保存失敗はPERSISTENCE_UNAVAILABLEとして
// 返すが、メモリ上の状態は変更済みのまま維持される。
func (l *Ledger) persistLocked(ctx context.Context) error {
	cartData, err := marshalCollection(l.lines)
	if err != nil {
		return model.NewPersistenceUnavailableError(err)
	}
	enrollData, err := marshalCollection(l.enrollments)
	if err != nil {
		return model.NewPersistenceUnavailableError(err)
	}

	if err := l.store.Save(ctx, store.KeyCart, cartData); err != nil {
		slog.Warn("failed to save cart", slog.String("error", err.Error()))
		return model.NewPersistenceUnavailableError(err)
	}
	if err := l.store.Save(ctx, store.KeyEnrollments, enrollData); err != nil {
		slog.Warn("failed to save enrollments", slog.String("error", err.Error()))
		return model.NewPersistenceUnavailableError(err)
	}
	return nil
}

// marshalCollection はコレクションをJSON配列にエンコードする。
// 空のコレクションはnullではなく[]として保存する（ストア契約はJSON配列）。
func marshalCollection[T any](items []T) ([]byte, error) {
	if len(items) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(items)
}

// notify は登録済みの全オブザーバを呼び出す。
func (l *Ledger) notify() {
	l.obsMu.Lock()
	observers := make([]func(), len(l.observers))
	copy(observers, l.observers)
	l.obsMu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

// validateCourse はコース入力を検証する。
// 不正な入力はVALIDATION_FAILEDとして拒否し、状態変更も保存も行わない。
func validateCourse(course model.Course) error {
	if course.ID <= 0 {
		return model.NewValidationError(fmt.Sprintf("コースIDが不正です: %d", course.ID))
	}
	if course.Price < 0 || math.IsNaN(course.Price) || math.IsInf(course.Price, 0) {
		return model.NewValidationError(fmt.Sprintf("価格が不正です: %v", course.Price))
	}
	return nil
}
