package texture

import "sync"

// PoolKey identifies interchangeable textures: same animation, same size.
type PoolKey struct {
	URL           string
	Width, Height int
}

// Pool parks textures released under the Never policy so the next visual of
// the same animation and size starts with the last frame already on screen.
type Pool struct {
	mu   sync.Mutex
	idle map[PoolKey][]Texture
}

func NewPool() *Pool {
	return &Pool{idle: make(map[PoolKey][]Texture)}
}

var shared = NewPool()

// Shared returns the process-wide pool.
func Shared() *Pool { return shared }

func (p *Pool) Put(key PoolKey, tex Texture) {
	if tex == nil || tex.IsDestroyed() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle[key] = append(p.idle[key], tex)
}

// Take removes and returns a parked texture for key.
func (p *Pool) Take(key PoolKey) (Texture, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.idle[key]
	for len(list) > 0 {
		tex := list[len(list)-1]
		list = list[:len(list)-1]
		if !tex.IsDestroyed() {
			p.store(key, list)
			return tex, true
		}
	}
	p.store(key, list)
	return nil, false
}

func (p *Pool) store(key PoolKey, list []Texture) {
	if len(list) == 0 {
		delete(p.idle, key)
		return
	}
	p.idle[key] = list
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, list := range p.idle {
		n += len(list)
	}
	return n
}

// Purge destroys every parked texture.
func (p *Pool) Purge() {
	p.mu.Lock()
	idle := p.idle
	p.idle = make(map[PoolKey][]Texture)
	p.mu.Unlock()
	for _, list := range idle {
		for _, tex := range list {
			tex.Destroy()
		}
	}
}
