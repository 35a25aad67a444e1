package fanout

import (
	lru "github.com/hashicorp/golang-lru"
)

// Deduper remembers the most recent message ids seen by one subscriber.
type Deduper struct {
	cache *lru.Cache
}

func NewDeduper(window int) (*Deduper, error) {
	if window <= 0 {
		window = 1024
	}
	cache, err := lru.New(window)
	if err != nil {
		return nil, err
	}
	return &Deduper{cache: cache}, nil
}

// First reports whether id is seen for the first time within the window.
func (d *Deduper) First(id string) bool {
	seen, _ := d.cache.ContainsOrAdd(id, struct{}{})
	return !seen
}
