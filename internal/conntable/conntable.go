// Package conntable implements the shared connection table: the single
// map[fd]*Connection the reactor, the worker pool, and the idle reaper all
// operate on, protected by one mutex held only for map operations.
package conntable

import (
	"sync"
	"syscall"
	"time"

	"github.com/hyperreactor/reactord/internal/poller"
)

// State is a connection's position in the Reading/Processing/Writing
// state machine.
type State int

const (
	StateReading State = iota
	StateProcessing
	StateWriting
	StateKeepAliveIdle
	StateClosed
)

// Connection holds one accepted socket's buffers and state. All fields
// are guarded by the embedded mutex except FD, which is immutable after
// SetFD until the connection is recycled.
type Connection struct {
	mu sync.Mutex

	FD         int
	RemoteAddr string

	State State

	ReadBuf         []byte
	WriteBuf        []byte
	WriteOffset     int
	HasPendingWrite bool
	Processing      bool
	KeepAlive       bool
	LastActivity    time.Time
}

// Lock acquires the per-connection lock. Callers that also need the
// table lock must acquire the table lock first.
func (c *Connection) Lock() { c.mu.Lock() }

// Unlock releases the per-connection lock.
func (c *Connection) Unlock() { c.mu.Unlock() }

// Reset clears a Connection for reuse, keeping the read buffer's
// capacity.
func (c *Connection) Reset() {
	c.FD = -1
	c.RemoteAddr = ""
	c.State = StateReading
	c.ReadBuf = c.ReadBuf[:0]
	c.WriteBuf = nil
	c.WriteOffset = 0
	c.HasPendingWrite = false
	c.Processing = false
	c.KeepAlive = true
	c.LastActivity = time.Time{}
}

// SetFD binds a freshly accepted descriptor to a (possibly reused)
// Connection and stamps its activity clock.
func (c *Connection) SetFD(fd int) {
	c.FD = fd
	c.LastActivity = time.Now()
}

// Table is the shared fd -> Connection map with a hard capacity.
type Table struct {
	mu    sync.Mutex
	conns map[int]*Connection
	max   int
}

// New creates a Table capped at max live connections.
func New(max int) *Table {
	return &Table{
		conns: make(map[int]*Connection, max),
		max:   max,
	}
}

// TryInsert adds conn under its FD if the table has room, reporting
// whether the insert happened. Callers must close the descriptor
// themselves on a false return, per the accept-path contract.
func (t *Table) TryInsert(conn *Connection) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) >= t.max {
		return false
	}
	t.conns[conn.FD] = conn
	return true
}

// Get looks up fd. Callers that then operate on the returned Connection
// must recheck liveness after acquiring its lock, since another path may
// close it concurrently between Get and Lock.
func (t *Table) Get(fd int) (*Connection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[fd]
	return c, ok
}

// Remove deletes fd if present and returns the removed Connection. It
// does not deregister or close the descriptor; see Close.
func (t *Table) Remove(fd int) (*Connection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[fd]
	if ok {
		delete(t.conns, fd)
	}
	return c, ok
}

// Len reports the current live-connection count.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// Snapshot copies out the current connections so a caller (idle reaper,
// shutdown) can inspect and close them without holding the table lock
// across syscalls.
func (t *Table) Snapshot() []*Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Connection, 0, len(t.conns))
	for _, c := range t.conns {
		out = append(out, c)
	}
	return out
}

// Close idempotently removes fd from the table, deregisters it from p,
// and closes the descriptor. A second call for an already-removed fd is
// a no-op.
func (t *Table) Close(fd int, p poller.Poller) {
	conn, ok := t.Remove(fd)
	if !ok {
		return
	}
	p.Deregister(fd)
	syscall.Close(fd)

	conn.Lock()
	conn.State = StateClosed
	conn.Unlock()
}
