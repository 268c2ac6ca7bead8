// Package studycache は学習デッキの結果をセッション単位で保持するキャッシュを提供する。
// 1セッションにつき1スロット（直近に表示したデッキ）だけを持ち、
// キーが変わった時点で前の内容は破棄する。
package studycache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

type slot struct {
	key     string
	items   []model.StudyItem
	touched time.Time
}

// Cache はセッションIDごとの単一スロットキャッシュ。
// 複数のリクエストから並行して呼ばれる。
type Cache struct {
	mu    sync.Mutex
	ttl   time.Duration
	slots map[string]*slot
	now   func() time.Time
}

// New は新しいCacheを生成する。ttlが0以下の場合は30分を使う。
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Cache{
		ttl:   ttl,
		slots: make(map[string]*slot),
		now:   time.Now,
	}
}

// Get はキーが一致する場合にキャッシュ済みのデッキを返す。
// キーが異なる、期限切れ、または全件回答・除外済みで空の場合は
// スロットを破棄してfalseを返す。
func (c *Cache) Get(sessionID, key string) ([]model.StudyItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[sessionID]
	if !ok {
		return nil, false
	}
	now := c.now()
	if s.key != key || len(s.items) == 0 || now.Sub(s.touched) > c.ttl {
		delete(c.slots, sessionID)
		return nil, false
	}
	s.touched = now
	return cloneItems(s.items), true
}

// Put はセッションのスロットをkeyとitemsで置き換える。
func (c *Cache) Put(sessionID, key string, items []model.StudyItem) {
	if sessionID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.slots[sessionID] = &slot{
		key:     key,
		items:   cloneItems(items),
		touched: c.now(),
	}
}

// RemoveItem は回答済み・除外済みのアイテムをスロットから取り除く。
func (c *Cache) RemoveItem(sessionID, itemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[sessionID]
	if !ok {
		return
	}
	kept := s.items[:0]
	for _, it := range s.items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	s.items = kept
}

// PatchFavorite はスロット内のアイテムのお気に入りフラグを書き換える。
func (c *Cache) PatchFavorite(sessionID, itemID string, favorite bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[sessionID]
	if !ok {
		return
	}
	for i := range s.items {
		if s.items[i].ID == itemID {
			s.items[i].IsFavorite = favorite
		}
	}
}

// Drop はセッションのスロットを破棄する。ログアウト時に呼ぶ。
func (c *Cache) Drop(sessionID string) {
	c.mu.Lock()
	delete(c.slots, sessionID)
	c.mu.Unlock()
}

// Len は保持しているスロット数を返す。
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// Sweep はTTLを超えて参照されていないスロットを削除し、削除数を返す。
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for id, s := range c.slots {
		if now.Sub(s.touched) > c.ttl {
			delete(c.slots, id)
			removed++
		}
	}
	return removed
}

// Start はintervalごとにSweepを実行する。コンテキストがキャンセルされるまで戻らない。
func (c *Cache) Start(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				logger.Debug("期限切れの学習キャッシュを削除しました",
					slog.Int("removed", n),
					slog.Int("remaining", c.Len()),
				)
			}
		}
	}
}

func cloneItems(items []model.StudyItem) []model.StudyItem {
	if items == nil {
		return nil
	}
	out := make([]model.StudyItem, len(items))
	copy(out, items)
	return out
}
