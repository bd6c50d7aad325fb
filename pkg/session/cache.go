package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// Descriptor is the in-process copy of a room's active session.
type Descriptor struct {
	SessionID string
	RoomID    int64
	MosqueID  string
	StartedAt time.Time
}

// Cache maps room names to their active session.
type Cache struct {
	sessions sync.Map
	count    atomic.Int64
}

func NewCache() *Cache {
	return &Cache{}
}

// Put records d as the room's active session, replacing any previous entry.
func (c *Cache) Put(roomName string, d Descriptor) {
	if _, loaded := c.sessions.Swap(roomName, d); !loaded {
		c.count.Add(1)
	}
}

func (c *Cache) Get(roomName string) (Descriptor, bool) {
	if v, ok := c.sessions.Load(roomName); ok {
		return v.(Descriptor), true
	}
	return Descriptor{}, false
}

func (c *Cache) Remove(roomName string) {
	if _, ok := c.sessions.LoadAndDelete(roomName); ok {
		c.count.Add(-1)
	}
}

func (c *Cache) Count() int64 {
	return c.count.Load()
}
