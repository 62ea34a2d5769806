package umimage

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
)

type cacheEntry struct {
	img     *Image
	modTime time.Time
}

// Cache holds recently loaded images by path.
// An entry is reloaded when the size or modification time of the file changes.
//
// Images returned by the cache are shared, callers must not modify Words.
type Cache struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, cacheEntry]
}

func NewCache(size int) *Cache {
	lru, err := simplelru.NewLRU[string, cacheEntry](size, nil)
	if err != nil {
		panic(err)
	}
	return &Cache{lru: lru}
}

func (c *Cache) Get(ctx context.Context, p string) (*Image, error) {
	finfo, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	ent, ok := c.lru.Get(p)
	c.mu.Unlock()
	if ok && ent.img.Size == finfo.Size() && ent.modTime.Equal(finfo.ModTime()) {
		return ent.img, nil
	}
	img, err := Load(p)
	if err != nil {
		return nil, err
	}
	logctx.Debug(ctx, "loaded image",
		zap.String("path", p),
		zap.Int("words", len(img.Words)),
		zap.Stringer("fingerprint", img.Fingerprint),
	)
	c.mu.Lock()
	c.lru.Add(p, cacheEntry{img: img, modTime: finfo.ModTime()})
	c.mu.Unlock()
	return img, nil
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
