package watch

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ProgramCache stores compiled filter programs keyed by filter text.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

type expiringProgramCache struct {
	items *gocache.Cache
}

// NewProgramCache returns a ProgramCache that drops programs ttl after they
// were stored. A ttl <= 0 keeps programs forever.
func NewProgramCache(ttl time.Duration) ProgramCache {
	if ttl <= 0 {
		return &expiringProgramCache{items: gocache.New(gocache.NoExpiration, 0)}
	}
	return &expiringProgramCache{items: gocache.New(ttl, 2*ttl)}
}

func (c *expiringProgramCache) Get(key string) (any, bool) {
	return c.items.Get(key)
}

func (c *expiringProgramCache) Set(key string, value any) {
	c.items.SetDefault(key, value)
}
