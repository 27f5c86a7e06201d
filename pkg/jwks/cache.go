package jwks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultMinRefreshInterval は強制再取得の最小間隔の既定値。
const DefaultMinRefreshInterval = time.Minute

// singleflightKey は鍵セット取得をまとめるためのキー。
const singleflightKey = "jwks"

// ErrRefreshSkipped はRefreshが取得を行わなかったことを示す。
// キャッシュしない設定では呼び出し元が直前に取得した鍵セットが最新なので、取り直さない。
var ErrRefreshSkipped = errors.New("鍵セットの再取得は不要")

// Resolver は検証に使う鍵セットを解決する。
type Resolver interface {
	// KeySet は現在有効な鍵セットを返す。
	KeySet(ctx context.Context) (KeySet, error)
}

// Refresher はキャッシュを無視して鍵セットを取り直せるResolver。
// 未知のkidを受け取ったとき（鍵ローテーション直後など）に使う。
type Refresher interface {
	Resolver
	// Refresh は鍵セットを取り直して返す。取り直す必要がない場合はErrRefreshSkippedを返す。
	Refresh(ctx context.Context) (KeySet, error)
}

// Cache はSourceの結果をTTLの間保持するResolver。
//
// ttlが0の場合はキャッシュせず、KeySetの呼び出しごとに取得する。
// 並行する読み出しはRWMutexで保護し、期限切れ時の取得はsingleflightで
// 1回にまとめる。失敗した取得結果はキャッシュしない。
type Cache struct {
	// source は鍵セットの取得元。
	source Source
	// ttl はキャッシュの有効期間。0なら毎回取得する。
	ttl time.Duration
	// minRefreshInterval はRefreshで再取得を許す最小間隔。
	minRefreshInterval time.Duration
	// now は現在時刻を返す関数。テストで差し替える。
	now func() time.Time

	// group は同時に発生した取得を1本にまとめる。
	group singleflight.Group

	mu        sync.RWMutex
	set       KeySet
	fetchedAt time.Time
	loaded    bool
}

// CacheOption はCacheの生成オプション。
type CacheOption func(*Cache)

// WithMinRefreshInterval は強制再取得の最小間隔を設定する。
func WithMinRefreshInterval(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d >= 0 {
			c.minRefreshInterval = d
		}
	}
}

// WithClock は現在時刻を返す関数を設定する。
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache は新しいCacheを生成する。ttlが0以下の場合は毎回取得する。
func NewCache(source Source, ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl < 0 {
		ttl = 0
	}
	c := &Cache{
		source:             source,
		ttl:                ttl,
		minRefreshInterval: DefaultMinRefreshInterval,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL はキャッシュの有効期間を返す。
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// KeySet は有効なキャッシュがあればそれを返し、なければ取得する。
func (c *Cache) KeySet(ctx context.Context) (KeySet, error) {
	if c.ttl == 0 {
		return c.source.Fetch(ctx)
	}
	if set, ok := c.fresh(); ok {
		return set, nil
	}
	return c.load(ctx)
}

// Refresh はキャッシュを無視して取得し直す。ただし直前の取得から
// minRefreshIntervalが経過していない場合は保持している鍵セットを返す。
// ttlが0の場合はKeySetが毎回取得しているため、取得せずErrRefreshSkippedを返す。
func (c *Cache) Refresh(ctx context.Context) (KeySet, error) {
	if c.ttl == 0 {
		return KeySet{}, ErrRefreshSkipped
	}
	c.mu.RLock()
	set, fetchedAt, loaded := c.set, c.fetchedAt, c.loaded
	c.mu.RUnlock()
	if loaded && c.now().Sub(fetchedAt) < c.minRefreshInterval {
		return set, nil
	}
	return c.load(ctx)
}

// fresh はTTL内のキャッシュを返す。
func (c *Cache) fresh() (KeySet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded || c.now().Sub(c.fetchedAt) >= c.ttl {
		return KeySet{}, false
	}
	return c.set, true
}

// load は鍵セットを取得してキャッシュに格納する。
// 同時に呼ばれた場合、取得は1回だけ行われ全員が同じ結果を受け取る。
// 取得は呼び出し元のキャンセルから切り離して実行し、
// 待機側は自分のコンテキストが終わった時点で待つのをやめる。
func (c *Cache) load(ctx context.Context) (KeySet, error) {
	ch := c.group.DoChan(singleflightKey, func() (any, error) {
		set, err := c.source.Fetch(context.WithoutCancel(ctx))
		if err != nil {
			return KeySet{}, err
		}
		c.mu.Lock()
		c.set = set
		c.fetchedAt = c.now()
		c.loaded = true
		c.mu.Unlock()
		return set, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return KeySet{}, res.Err
		}
		set, ok := res.Val.(KeySet)
		if !ok {
			return KeySet{}, fmt.Errorf("%w: 想定外の取得結果", ErrKeySetUnavailable)
		}
		return set, nil
	case <-ctx.Done():
		return KeySet{}, fmt.Errorf("%w: %w", ErrKeySetUnavailable, ctx.Err())
	}
}
