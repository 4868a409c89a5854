package todo

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mwopitz/anylist-daemon/internal/anylist"
	"github.com/mwopitz/anylist-daemon/internal/coordinator"
)

// Client defines the AnyList operations needed to set up the entities.
type Client interface {
	ItemService
	coordinator.ItemsFetcher
	GetLists(ctx context.Context) (int, []anylist.List, error)
}

// Platform holds the entities of all lists.
type Platform struct {
	entities []*Entity
	byID     map[string]*Entity
}

// Setup creates one coordinator and one entity per AnyList list and performs
// the first refresh of each coordinator. It fails if the lists cannot be
// retrieved or any first refresh fails.
func Setup(ctx context.Context, client Client, interval time.Duration, logger *slog.Logger) (*Platform, error) {
	logger = cmp.Or(logger, slog.Default())
	code, lists, err := client.GetLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", coordinator.ErrNotReady, err)
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("%w: cannot get lists: code %d", coordinator.ErrNotReady, code)
	}

	p := &Platform{byID: make(map[string]*Entity, len(lists))}
	for _, list := range lists {
		c := coordinator.NewList(client, list.Name, interval, logger)
		if err := c.FirstRefresh(ctx); err != nil {
			return nil, err
		}
		e := NewEntity(list.Name, c, client)
		p.entities = append(p.entities, e)
		p.byID[e.ID()] = e
		logger.InfoContext(ctx, "added entity", "entity_id", e.ID())
	}
	return p, nil
}

// NewPlatform creates a platform from existing entities.
func NewPlatform(entities ...*Entity) *Platform {
	p := &Platform{byID: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		p.entities = append(p.entities, e)
		p.byID[e.ID()] = e
	}
	return p
}

// Entities returns all entities in list order.
func (p *Platform) Entities() []*Entity {
	return p.entities
}

// Entity returns the entity with the specified ID.
func (p *Platform) Entity(id string) (*Entity, error) {
	e, ok := p.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	return e, nil
}

// Run polls every entity's coordinator until ctx is done.
func (p *Platform) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, e := range p.entities {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Coordinator().Run(ctx)
		}()
	}
	wg.Wait()
}
