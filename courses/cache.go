package courses

import "sync"

// Cache is the ordered local copy of the course list. Order is the backend's
// list order followed by courses created since, in creation order.
//
// A list fetched while local changes land is merged with them: changes made
// after the fetch started are replayed onto the fetched list.
type Cache struct {
	mu      sync.RWMutex
	courses []Course
	loaded  bool

	epoch    uint64 // bumped by Clear
	seq      uint64 // bumped by every local change
	inflight int
	journal  []change
}

type change struct {
	seq     uint64
	course  Course
	removed bool
}

// Fetch marks a list request started with Begin.
type Fetch struct {
	epoch uint64
	seq   uint64
}

func NewCache() *Cache {
	return &Cache{}
}

// Begin records the start of a list request. Every Begin must be followed by
// exactly one Finish.
func (c *Cache) Begin() Fetch {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight++
	return Fetch{epoch: c.epoch, seq: c.seq}
}

// Finish ends the request started as f. With ok set, list replaces the cache
// after the local changes made since f began are replayed onto it. A list
// fetched before a Clear is discarded. Finish reports whether the cache was
// replaced.
func (c *Cache) Finish(f Fetch, list []Course, ok bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f.epoch == c.epoch {
		c.inflight--
	}
	defer func() {
		if c.inflight <= 0 {
			c.inflight = 0
			c.journal = nil
		}
	}()

	if !ok || f.epoch != c.epoch {
		return false
	}

	next := append([]Course(nil), list...)
	for _, ch := range c.journal {
		if ch.seq <= f.seq {
			continue
		}
		if ch.removed {
			next = remove(next, ch.course.ID)
		} else {
			next = upsert(next, ch.course)
		}
	}
	c.courses = next
	c.loaded = true
	return true
}

// Replace swaps in a freshly listed set of courses.
func (c *Cache) Replace(courses []Course) {
	c.Finish(c.Begin(), courses, true)
}

// Append adds a course at the end.
func (c *Cache) Append(course Course) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses = append(c.courses, course)
	c.record(change{course: course})
}

// Upsert replaces the course with the same ID in place, or appends it.
func (c *Cache) Upsert(course Course) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses = upsert(c.courses, course)
	c.record(change{course: course})
}

// Remove drops the course with id, keeping the order of the rest.
func (c *Cache) Remove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses = remove(c.courses, id)
	c.record(change{course: Course{ID: id}, removed: true})
}

// Snapshot returns a copy of the cached courses and whether a list has been loaded.
func (c *Cache) Snapshot() ([]Course, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Course(nil), c.courses...), c.loaded
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses = nil
	c.loaded = false
	c.epoch++
	c.inflight = 0
	c.journal = nil
}

// record must be called with mu held. Changes are only kept while a list
// request is in flight.
func (c *Cache) record(ch change) {
	c.seq++
	if c.inflight == 0 {
		return
	}
	ch.seq = c.seq
	c.journal = append(c.journal, ch)
}

func upsert(list []Course, course Course) []Course {
	for i := range list {
		if list[i].ID == course.ID {
			list[i] = course
			return list
		}
	}
	return append(list, course)
}

func remove(list []Course, id int64) []Course {
	for i := range list {
		if list[i].ID == id {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
