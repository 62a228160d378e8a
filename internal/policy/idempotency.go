package policy

import "sync"

// Guard prevents two concurrent workers from processing the same unit of
// work. Keys are arbitrary strings, typically "kind:id".
type Guard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewGuard builds an empty Guard.
func NewGuard() *Guard {
	return &Guard{active: make(map[string]struct{})}
}

// Begin claims key. On success it returns a release func that MUST be called
// on every exit path, and true. If the key is already claimed it returns
// (nil, false) and the caller skips the work.
func (g *Guard) Begin(key string) (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.active[key]; ok {
		return nil, false
	}
	g.active[key] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, key)
			g.mu.Unlock()
		})
	}
	return release, true
}

// Active returns the number of currently claimed keys.
func (g *Guard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}
