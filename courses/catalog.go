package courses

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Catalog pairs the Client with the ordered Cache the views render from.
type Catalog struct {
	client *Client
	cache  *Cache
}

func NewCatalog(client *Client) *Catalog {
	return &Catalog{client: client, cache: NewCache()}
}

func (c *Catalog) Client() *Client { return c.client }

// Refresh lists courses and replaces the cache. Courses created, updated or
// deleted while the list was in flight are kept. On error the cache is left
// as it was.
func (c *Catalog) Refresh(ctx context.Context) ([]Course, error) {
	fetch := c.cache.Begin()
	list, err := c.client.List(ctx)
	if !c.cache.Finish(fetch, list, err == nil) {
		if err != nil {
			return nil, err
		}
		// cleared meanwhile; the list belongs to a session that has ended
		return list, nil
	}
	merged, _ := c.cache.Snapshot()
	return merged, nil
}

// Create posts a course and appends the server's copy to the cache without refetching.
func (c *Catalog) Create(ctx context.Context, in Input) (Course, error) {
	created, err := c.client.Create(ctx, in)
	if err != nil {
		return Course{}, err
	}
	c.cache.Append(created)
	log.Info().Int64("course_id", created.ID).Str("title", created.Title).Msg("course created")
	return created, nil
}

func (c *Catalog) Update(ctx context.Context, id int64, in Input) (Course, error) {
	updated, err := c.client.Update(ctx, id, in)
	if err != nil {
		return Course{}, err
	}
	c.cache.Upsert(updated)
	return updated, nil
}

func (c *Catalog) Delete(ctx context.Context, id int64) error {
	if err := c.client.Delete(ctx, id); err != nil {
		return err
	}
	c.cache.Remove(id)
	return nil
}

func (c *Catalog) Get(ctx context.Context, id int64) (Course, error) {
	return c.client.Get(ctx, id)
}

func (c *Catalog) Search(ctx context.Context, title string) ([]Course, error) {
	return c.client.Search(ctx, title)
}

func (c *Catalog) ByInstructor(ctx context.Context, name string) ([]Course, error) {
	return c.client.ByInstructor(ctx, name)
}

// Cached returns the cached courses and whether a list has been loaded yet.
func (c *Catalog) Cached() ([]Course, bool) {
	return c.cache.Snapshot()
}

// Clear discards the cache (logout).
func (c *Catalog) Clear() {
	c.cache.Clear()
}
