package discovery

import (
	"github.com/aluiziolira/go-scrape-pudl/models"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultDedupeSize = 10000

// Deduper remembers candidate URLs and identities so each artifact is
// fetched at most once per run and no two candidates share a destination.
type Deduper struct {
	seen *lru.Cache[string, struct{}]
}

// NewDeduper creates a deduper holding up to size keys.
func NewDeduper(size int) *Deduper {
	if size <= 0 {
		size = defaultDedupeSize
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		// Only reachable with a non-positive size, which is excluded above.
		panic(err)
	}
	return &Deduper{seen: cache}
}

// Add records c and reports whether it was new.
func (d *Deduper) Add(c models.Candidate) bool {
	urlKey := "url:" + c.URL
	idKey := "id:" + c.Identity()
	if d.seen.Contains(urlKey) || d.seen.Contains(idKey) {
		return false
	}
	d.seen.Add(urlKey, struct{}{})
	d.seen.Add(idKey, struct{}{})
	return true
}

// Len is the number of keys held.
func (d *Deduper) Len() int {
	return d.seen.Len()
}
