// Package presence tracks which users currently hold a live connection.
package presence

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Conn is a live connection a user can be reached on.
type Conn interface {
	// Send queues data for delivery and reports whether it was accepted.
	// It must not block.
	Send(data []byte) bool
	// Close tears the connection down, reason is shown to the peer.
	Close(reason string)
}

// Directory maps each online user to exactly one connection. A second
// connection for the same user replaces the first.
//
// All methods are safe for concurrent use. The lock is never held while
// calling into a Conn.
type Directory struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]Conn

	onChange func(online int)
}

func NewDirectory() *Directory {
	return &Directory{conns: make(map[uuid.UUID]Conn)}
}

// OnChange installs a hook called with the online count after every change.
// It must be set before the directory is shared.
func (d *Directory) OnChange(fn func(online int)) {
	d.onChange = fn
}

// Register associates userID with conn and returns the connection it
// replaced, if any.
func (d *Directory) Register(userID uuid.UUID, conn Conn) Conn {
	d.mu.Lock()
	prev := d.conns[userID]
	d.conns[userID] = conn
	n := len(d.conns)
	d.mu.Unlock()

	d.changed(n)
	if prev == conn {
		return nil
	}
	return prev
}

// Unregister removes userID. It is a no-op when the user is offline.
func (d *Directory) Unregister(userID uuid.UUID) {
	d.mu.Lock()
	_, ok := d.conns[userID]
	delete(d.conns, userID)
	n := len(d.conns)
	d.mu.Unlock()

	if ok {
		d.changed(n)
	}
}

// Release removes userID only while conn is still its registered
// connection, so a replaced connection shutting down late cannot evict
// its successor. It reports whether anything was removed.
func (d *Directory) Release(userID uuid.UUID, conn Conn) bool {
	d.mu.Lock()
	cur, ok := d.conns[userID]
	if ok && cur == conn {
		delete(d.conns, userID)
	} else {
		ok = false
	}
	n := len(d.conns)
	d.mu.Unlock()

	if ok {
		d.changed(n)
	}
	return ok
}

func (d *Directory) Resolve(userID uuid.UUID) (Conn, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.conns[userID]
	return c, ok
}

func (d *Directory) IsOnline(userID uuid.UUID) bool {
	_, ok := d.Resolve(userID)
	return ok
}

// ListOnline returns the online user ids, sorted for stable output.
func (d *Directory) ListOnline() []uuid.UUID {
	d.mu.RLock()
	ids := make([]uuid.UUID, 0, len(d.conns))
	for id := range d.conns {
		ids = append(ids, id)
	}
	d.mu.RUnlock()

	return SortIDs(ids)
}

// SortIDs sorts ids in place by their byte value and returns them.
func SortIDs(ids []uuid.UUID) []uuid.UUID {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}

// Snapshot returns the current connections.
func (d *Directory) Snapshot() []Conn {
	d.mu.RLock()
	defer d.mu.RUnlock()
	conns := make([]Conn, 0, len(d.conns))
	for _, c := range d.conns {
		conns = append(conns, c)
	}
	return conns
}

func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}

func (d *Directory) changed(n int) {
	if d.onChange != nil {
		d.onChange(n)
	}
}
