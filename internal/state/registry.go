package state

import (
	"context"
	"sync"
	"time"

	"github.com/techwave/storefront/internal/session"
	"github.com/techwave/storefront/internal/store"
)

// RegistryConfig はエンジンレジストリの設定。
type RegistryConfig struct {
	CleanupInterval time.Duration // 未使用エンジンのクリーンアップ間隔
	EngineTTL       time.Duration // 最終アクセスからエンジンを破棄するまでの時間
}

// DefaultRegistryConfig はデフォルトのレジストリ設定を返す。
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		CleanupInterval: 10 * time.Minute,
		EngineTTL:       1 * time.Hour,
	}
}

// engineEntry はエンジンと最終アクセス時刻を保持する。
type engineEntry struct {
	engine     *Engine
	lastAccess time.Time
}

// Registry は訪問者IDごとのエンジンを管理する。
// エンジンはメモリ上にのみ存在し、破棄後も永続化ストアの内容から再構築できる。
type Registry struct {
	config   RegistryConfig
	backing  store.Store
	provider session.Provider

	mu      sync.Mutex
	engines map[string]*engineEntry

	stopCh chan struct{}
}

// NewRegistry はRegistryを生成する。
// バックグラウンドで未使用エンジンのクリーンアップを開始する。
func NewRegistry(backing store.Store, provider session.Provider, config RegistryConfig) *Registry {
	r := &Registry{
		config:   config,
		backing:  backing,
		provider: provider,
		engines:  make(map[string]*engineEntry),
		stopCh:   make(chan struct{}),
	}

	go r.cleanupLoop()

	return r
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (r *Registry) Stop() {
	close(r.stopCh)
}

// GetOrCreate は訪問者IDに対応するエンジンを取得または構築する。
// 新規構築時は訪問者スコープ付きストアから状態を読み込む。
func (r *Registry) GetOrCreate(ctx context.Context, visitorID string) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.engines[visitorID]; ok {
		entry.lastAccess = time.Now()
		return entry.engine
	}

	engine := NewEngine(ctx, store.NewScoped(r.backing, visitorID), r.provider)
	r.engines[visitorID] = &engineEntry{
		engine:     engine,
		lastAccess: time.Now(),
	}
	return engine
}

// Count は現在管理されているエンジン数を返す。テストおよびメトリクス用。
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// cleanupLoop はバックグラウンドで未使用エンジンを定期的にクリーンアップする。
func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスがEngineTTLを超えたエンジンを破棄する。
// 状態は永続化ストアに残っているため、次のアクセスで再構築される。
func (r *Registry) cleanup() {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, entry := range r.engines {
		if now.Sub(entry.lastAccess) > r.config.EngineTTL {
			delete(r.engines, id)
		}
	}
}
