// Package framecache keeps recently rasterized frames so looping playback
// does not rasterize the same frame twice.
package framecache

import (
	"image"

	"github.com/gogpu/gg/cache"
)

type key struct {
	frame, width, height int
}

func hashKey(k key) uint64 {
	return cache.IntHasher(k.frame ^ k.width<<24 ^ k.height<<44)
}

// Cache is a bounded LRU of frames keyed by frame index and size. It is safe
// for concurrent use.
type Cache struct {
	lru *cache.ShardedCache[key, *image.RGBA]
}

// New returns a cache holding roughly capacity frames. The underlying cache
// is sharded, so capacity is rounded up to a whole number of frames per shard.
func New(capacity int) *Cache {
	perShard := max(1, (capacity+cache.DefaultShardCount-1)/cache.DefaultShardCount)
	return &Cache{lru: cache.NewSharded[key, *image.RGBA](perShard, hashKey)}
}

// Get copies the cached frame into dst. It reports false on a miss or when
// dst has a different size.
func (c *Cache) Get(frame int, dst *image.RGBA) bool {
	b := dst.Bounds()
	img, ok := c.lru.Get(key{frame, b.Dx(), b.Dy()})
	if !ok {
		return false
	}
	copyRGBA(dst, img)
	return true
}

// Put stores a private copy of src.
func (c *Cache) Put(frame int, src *image.RGBA) {
	b := src.Bounds()
	cp := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	copyRGBA(cp, src)
	c.lru.Set(key{frame, b.Dx(), b.Dy()}, cp)
}

func (c *Cache) Clear() { c.lru.Clear() }

func (c *Cache) Len() int { return c.lru.Len() }

func (c *Cache) Stats() cache.Stats { return c.lru.Stats() }

func copyRGBA(dst, src *image.RGBA) {
	db, sb := dst.Bounds(), src.Bounds()
	rows := min(db.Dy(), sb.Dy())
	cols := min(db.Dx(), sb.Dx()) * 4
	for y := 0; y < rows; y++ {
		d := dst.PixOffset(db.Min.X, db.Min.Y+y)
		s := src.PixOffset(sb.Min.X, sb.Min.Y+y)
		copy(dst.Pix[d:d+cols], src.Pix[s:s+cols])
	}
}
