package store

import "context"

// Scoped はキーに訪問者ごとのスコープを前置するStoreラッパー。
// コア側は常に契約キー（"cart", "enrollments"）のまま操作し、
// サーバー側で訪問者間の分離を行う。
type Scoped struct {
	inner Store
	scope string
}

// NewScoped は指定スコープでキーを前置するStoreを生成する。
func NewScoped(inner Store, scope string) *Scoped {
	return &Scoped{
		inner: inner,
		scope: scope,
	}
}

// Load はスコープ付きキーでinnerから読み込む。
func (s *Scoped) Load(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Load(ctx, s.scope+":"+key)
}

// Save はスコープ付きキーでinnerに保存する。
func (s *Scoped) Save(ctx context.Context, key string, data []byte) error {
	return s.inner.Save(ctx, s.scope+":"+key, data)
}
