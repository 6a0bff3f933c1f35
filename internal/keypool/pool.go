package keypool

import (
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dbv111m/tb1/internal/logger"
)

// Registry is the durable mapping of user id to contributed key.
type Registry interface {
	All() (map[string]string, error)
	Remove(key string) ([]string, error)
}

// Pool holds every currently valid credential. Keys are contributed by
// users and shared by everyone; the provider grants each key a small
// per-minute budget, so the more keys the better.
type Pool struct {
	mu         sync.Mutex
	keys       []string
	present    map[string]bool
	removed    map[string]bool
	limiters   map[string]*rate.Limiter
	seed       []string
	registry   Registry
	ratePerMin int
}

func New(registry Registry, ratePerMin int) *Pool {
	return &Pool{
		present:    make(map[string]bool),
		removed:    make(map[string]bool),
		limiters:   make(map[string]*rate.Limiter),
		registry:   registry,
		ratePerMin: ratePerMin,
	}
}

// Load rebuilds the key list from the seed list plus every key in the
// registry. Duplicates collapse; keys removed for invalidity stay out.
func (p *Pool) Load(seed []string) error {
	userKeys, err := p.registry.All()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.seed = append([]string(nil), seed...)
	p.keys = p.keys[:0]
	p.present = make(map[string]bool)

	add := func(key string) {
		if key == "" || p.present[key] || p.removed[key] {
			return
		}
		p.present[key] = true
		p.keys = append(p.keys, key)
		if p.ratePerMin > 0 && p.limiters[key] == nil {
			p.limiters[key] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(p.ratePerMin)), p.ratePerMin)
		}
	}

	for _, key := range seed {
		add(key)
	}
	for _, key := range userKeys {
		add(key)
	}

	logger.Debug("key pool loaded", "keys", len(p.keys))
	return nil
}

// Reload re-runs Load with the seed list given last time.
func (p *Pool) Reload() error {
	p.mu.Lock()
	seed := append([]string(nil), p.seed...)
	p.mu.Unlock()
	return p.Load(seed)
}

// Sample returns up to n distinct keys chosen at random. Keys whose rate
// limiter has budget left come first; an empty pool yields an empty slice.
func (p *Pool) Sample(n int) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n <= 0 || len(p.keys) == 0 {
		return nil
	}

	shuffled := append([]string(nil), p.keys...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	if p.ratePerMin > 0 {
		var ready, throttled []string
		for _, key := range shuffled {
			if lim := p.limiters[key]; lim != nil && lim.Tokens() < 1 {
				throttled = append(throttled, key)
			} else {
				ready = append(ready, key)
			}
		}
		shuffled = append(ready, throttled...)
	}

	if n > len(shuffled) {
		n = len(shuffled)
	}
	picked := shuffled[:n]

	if p.ratePerMin > 0 {
		for _, key := range picked {
			if lim := p.limiters[key]; lim != nil {
				lim.Allow()
			}
		}
	}

	return picked
}

// Remove permanently drops a key that was proven invalid, and deletes
// every user record still referencing it. Removing an absent key is a
// no-op.
func (p *Pool) Remove(key string) {
	p.mu.Lock()
	if p.present[key] {
		delete(p.present, key)
		delete(p.limiters, key)
		for i, k := range p.keys {
			if k == key {
				p.keys = append(p.keys[:i], p.keys[i+1:]...)
				break
			}
		}
	}
	p.removed[key] = true
	p.mu.Unlock()

	users, err := p.registry.Remove(key)
	if err != nil {
		logger.Error("failed to remove key from registry", "error", err)
		return
	}
	for _, user := range users {
		logger.Info("invalid key removed", "user", user)
	}
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Contains is used by tests and diagnostics.
func (p *Pool) Contains(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.present[key]
}
