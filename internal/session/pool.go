// Package session keeps authenticated portal sessions alive between API
// calls so a client can log in once and search many times.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/JustJay7/ojv-scraper/internal/scraper"
	"github.com/JustJay7/ojv-scraper/pkg/logger"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var ErrUnknownSession = errors.New("unknown or expired session")

const logoutTimeout = 10 * time.Second

// Pool maps opaque ids to live sessions. Idle sessions expire after the TTL
// and are logged out of the portal on the way out.
type Pool struct {
	items  *cache.Cache
	ttl    time.Duration
	logger *logger.Logger
}

func NewPool(ttl time.Duration, log *logger.Logger) *Pool {
	p := &Pool{
		items:  cache.New(ttl, ttl/2+time.Second),
		ttl:    ttl,
		logger: log,
	}
	p.items.OnEvicted(func(id string, v interface{}) {
		s, ok := v.(*scraper.Session)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
		defer cancel()
		s.Logout(ctx)
		p.logger.Debug("Session released", "session_id", id)
	})
	return p
}

// Add stores s and returns its id.
func (p *Pool) Add(s *scraper.Session) string {
	id := uuid.NewString()
	p.items.Set(id, s, cache.DefaultExpiration)
	return id
}

// Get returns the session for id and extends its lifetime.
func (p *Pool) Get(id string) (*scraper.Session, error) {
	v, found := p.items.Get(id)
	if !found {
		return nil, ErrUnknownSession
	}
	s := v.(*scraper.Session)
	if !s.IsAuthenticated() {
		p.items.Delete(id)
		return nil, ErrUnknownSession
	}
	p.items.Set(id, s, cache.DefaultExpiration)
	return s, nil
}

// Remove logs the session out and forgets it.
func (p *Pool) Remove(id string) {
	p.items.Delete(id)
}

func (p *Pool) Len() int {
	return p.items.ItemCount()
}

// Close logs out every remaining session.
func (p *Pool) Close() {
	for id := range p.items.Items() {
		p.items.Delete(id)
	}
}
