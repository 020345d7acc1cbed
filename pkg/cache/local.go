package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// localStore is the in-process fallback layer used when no Redis connection
// is configured. Entries are private to the process and vanish on restart,
// which is acceptable for a best-effort cache.
type localStore struct {
	c *gocache.Cache
}

func newLocalStore() *localStore {
	// Per-entry TTLs are set on write; the default here is never used.
	return &localStore{
		c: gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
}

func (s *localStore) get(key string) ([]byte, bool) {
	v, found := s.c.Get(key)
	if !found {
		return nil, false
	}
	return v.([]byte), true
}

func (s *localStore) set(key string, data []byte, ttl time.Duration) {
	s.c.Set(key, data, ttl)
}

func (s *localStore) delete(key string) {
	s.c.Delete(key)
}
