package pool

import (
	"database/sql"
	"sync"
	"time"
)

// Lease is a checked-out database connection. The holder must call
// Pool.Release (or rely on WithTransaction) when done; the background sweep
// reclaims leases held past the leak window.
type Lease struct {
	pool       *Pool
	conn       *sql.Conn
	directDB   *sql.DB // non-nil for out-of-pool connections
	acquiredAt time.Time
	once       sync.Once
}

// Conn returns the underlying connection.
func (l *Lease) Conn() *sql.Conn {
	return l.conn
}

// Age reports how long the lease has been held.
func (l *Lease) Age() time.Duration {
	return time.Since(l.acquiredAt)
}

// Direct reports whether the lease bypassed the pool.
func (l *Lease) Direct() bool {
	return l.directDB != nil
}

// close releases the lease exactly once, from Release or from the sweep.
func (l *Lease) close() {
	l.once.Do(func() {
		l.pool.remove(l)
		_ = l.conn.Close()
		if l.directDB != nil {
			_ = l.directDB.Close()
		}
	})
}
