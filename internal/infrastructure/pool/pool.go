// Package pool manages a bounded set of database connections with bounded
// acquisition, a direct-connection fallback, and a background leak sweep.
// Leases are raw *sql.Conn handles; WithTransaction wraps a leased
// connection's transaction into a gorm session so repositories stay on gorm.
package pool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/beataims/backend/internal/infrastructure/logger"
)

// Opener opens the underlying database handle. Production wires a postgres
// opener; tests substitute sqlite or sqlmock.
type Opener func() (*sql.DB, error)

// DialectorFactory builds a gorm dialector bound to an existing connection
// (a leased *sql.Conn or an open *sql.Tx), so gorm sessions run on exactly
// the connection the pool handed out.
type DialectorFactory func(conn gorm.ConnPool) gorm.Dialector

// Config holds pool sizing and timing knobs.
type Config struct {
	Size           int           // maximum pooled connections
	AcquireRetries int           // attempts before the direct fallback
	RetryBaseDelay time.Duration // base delay for exponential backoff
	AcquireTimeout time.Duration // per-attempt wait for a pooled connection
	SweepInterval  time.Duration // background sweep interval
	LeakWindow     time.Duration // lease age after which a lease counts as leaked
	LeaseCeiling   int           // in-use count that triggers forced reclaim
	MaxDirect      int           // cap on temporary out-of-pool connections
}

// Stats is a point-in-time snapshot of pool usage.
type Stats struct {
	Capacity  int    `json:"capacity"`
	InUse     int    `json:"in_use"`
	Direct    int    `json:"direct"`
	Reclaimed uint64 `json:"reclaimed"`
	Reinits   uint64 `json:"reinits"`
}

// Pool is a bounded database connection pool. All mutable state is guarded
// by mu; Acquire never holds mu while waiting on the database.
type Pool struct {
	cfg       Config
	opener    Opener
	dialector DialectorFactory
	log       *zap.Logger

	mu        sync.Mutex
	db        *sql.DB
	leases    map[*Lease]struct{}
	direct    int
	closed    bool
	reclaimed uint64
	reinits   uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New opens the underlying database and returns a ready pool. The sweep
// goroutine is not started until Start is called.
func New(cfg Config, opener Opener, dialector DialectorFactory, log *zap.Logger) (*Pool, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", cfg.Size)
	}
	if cfg.AcquireRetries < 1 {
		cfg.AcquireRetries = 1
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 100 * time.Millisecond
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 2 * time.Second
	}
	if cfg.LeaseCeiling <= 0 || cfg.LeaseCeiling > cfg.Size {
		cfg.LeaseCeiling = cfg.Size
	}
	if log == nil {
		log = zap.NewNop()
	}

	db, err := opener()
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	configureHandle(db, cfg.Size)

	return &Pool{
		cfg:       cfg,
		opener:    opener,
		dialector: dialector,
		log:       log.Named("pool"),
		db:        db,
		leases:    make(map[*Lease]struct{}),
		stopCh:    make(chan struct{}),
	}, nil
}

func configureHandle(db *sql.DB, size int) {
	db.SetMaxOpenConns(size)
	db.SetMaxIdleConns(size)
	db.SetConnMaxLifetime(30 * time.Minute)
}

// Acquire leases a connection. It retries with exponential backoff when the
// pool is saturated, replaces dead connections silently, and falls back to a
// temporary direct connection before giving up with ErrPoolExhausted. Every
// wait is bounded by the configured timeout or the caller's context.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	db := p.db
	p.mu.Unlock()

	for attempt := 0; attempt < p.cfg.AcquireRetries; attempt++ {
		if attempt > 0 {
			delay := p.cfg.RetryBaseDelay * (1 << (attempt - 1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		conn, err := p.leaseFrom(ctx, db)
		if err == nil {
			return p.register(conn, nil), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.log.Debug("pooled acquire attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	// Pooled attempts exhausted: open a temporary out-of-pool connection so
	// a slow consumer cannot wedge order placement entirely.
	lease, err := p.acquireDirect(ctx)
	if err != nil {
		p.log.Error("connection pool exhausted",
			zap.Int("size", p.cfg.Size),
			zap.Int("retries", p.cfg.AcquireRetries),
			zap.Error(err))
		return nil, ErrPoolExhausted
	}
	return lease, nil
}

// leaseFrom checks a connection out of db and verifies it is alive. A dead
// connection is discarded and replaced with one fresh attempt.
func (p *Pool) leaseFrom(ctx context.Context, db *sql.DB) (*sql.Conn, error) {
	for replace := 0; replace < 2; replace++ {
		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		conn, err := db.Conn(attemptCtx)
		if err != nil {
			cancel()
			return nil, err
		}

		pingCtx, pingCancel := context.WithTimeout(ctx, time.Second)
		err = conn.PingContext(pingCtx)
		pingCancel()
		cancel()
		if err == nil {
			return conn, nil
		}

		// Stale connection: ErrBadConn evicts it from the pool.
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		_ = conn.Close()
		p.log.Warn("replaced dead pooled connection", zap.Error(err))
	}
	return nil, fmt.Errorf("pooled connection failed liveness check twice")
}

// acquireDirect opens a dedicated single-connection handle outside the pool.
func (p *Pool) acquireDirect(ctx context.Context) (*Lease, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.direct >= p.cfg.MaxDirect {
		p.mu.Unlock()
		return nil, fmt.Errorf("direct connection limit reached (%d)", p.cfg.MaxDirect)
	}
	p.direct++
	p.mu.Unlock()

	release := func() {
		p.mu.Lock()
		p.direct--
		p.mu.Unlock()
	}

	db, err := p.opener()
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to open direct connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	connCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	conn, err := db.Conn(connCtx)
	cancel()
	if err != nil {
		_ = db.Close()
		release()
		return nil, fmt.Errorf("failed to lease direct connection: %w", err)
	}

	p.log.Warn("serving request on direct out-of-pool connection")
	return p.register(conn, db), nil
}

func (p *Pool) register(conn *sql.Conn, directDB *sql.DB) *Lease {
	lease := &Lease{
		pool:       p,
		conn:       conn,
		directDB:   directDB,
		acquiredAt: time.Now(),
	}
	p.mu.Lock()
	p.leases[lease] = struct{}{}
	p.mu.Unlock()
	return lease
}

// Release returns a lease to the pool. Safe to call more than once and safe
// to call on a lease the sweep already reclaimed.
func (p *Pool) Release(l *Lease) {
	if l == nil {
		return
	}
	l.close()
}

// remove drops the lease from tracking; called exactly once per lease.
func (p *Pool) remove(l *Lease) {
	p.mu.Lock()
	delete(p.leases, l)
	if l.directDB != nil {
		p.direct--
	}
	p.mu.Unlock()
}

// WithTransaction leases a connection, begins a transaction on it, and runs
// fn with a gorm session bound to that transaction. Commit on nil error,
// rollback on error or panic; the lease is released on every path.
func (p *Pool) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(lease)

	sqlTx, err := lease.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	gormDB, err := p.sessionFor(ctx, sqlTx)
	if err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = sqlTx.Rollback()
			panic(r)
		}
	}()

	if err := fn(gormDB); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			p.log.Error("transaction rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Session returns a gorm session bound to the lease's connection, outside
// any transaction. Used for read paths that still want pool accounting.
func (p *Pool) Session(ctx context.Context, lease *Lease) (*gorm.DB, error) {
	return p.sessionFor(ctx, lease.Conn())
}

func (p *Pool) sessionFor(ctx context.Context, conn gorm.ConnPool) (*gorm.DB, error) {
	gormDB, err := gorm.Open(p.dialector(conn), &gorm.Config{
		Logger:                 logger.NewGormLogger(p.log, gormlogger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm session: %w", err)
	}
	return gormDB.WithContext(ctx), nil
}

// Stats returns a snapshot of pool usage.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Capacity:  p.cfg.Size,
		InUse:     len(p.leases),
		Direct:    p.direct,
		Reclaimed: p.reclaimed,
		Reinits:   p.reinits,
	}
}

// Start launches the background sweep. No-op when SweepInterval is zero.
func (p *Pool) Start(ctx context.Context) {
	if p.cfg.SweepInterval <= 0 {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.sweep(ctx)
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			}
		}
	}()
}

// Stop halts the sweep, waits for it, and closes the pool. Outstanding
// leases are force-closed.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	p.mu.Lock()
	p.closed = true
	stale := p.snapshotLeasesLocked()
	db := p.db
	p.mu.Unlock()

	for _, l := range stale {
		l.close()
	}
	if db != nil {
		_ = db.Close()
	}
}

// sweep reclaims leaked leases, enforces the safety ceiling, and
// re-initializes the pool when the database handle is no longer usable.
func (p *Pool) sweep(ctx context.Context) {
	now := time.Now()

	p.mu.Lock()
	leases := p.snapshotLeasesLocked()
	db := p.db
	p.mu.Unlock()

	var reclaim []*Lease
	for _, l := range leases {
		if now.Sub(l.acquiredAt) > p.cfg.LeakWindow {
			reclaim = append(reclaim, l)
		}
	}

	// Over the ceiling: force out the oldest leases first, even inside the
	// leak window, so a burst of stuck holders cannot starve everyone else.
	if len(leases)-len(reclaim) > p.cfg.LeaseCeiling {
		remaining := make([]*Lease, 0, len(leases))
		inReclaim := make(map[*Lease]struct{}, len(reclaim))
		for _, l := range reclaim {
			inReclaim[l] = struct{}{}
		}
		for _, l := range leases {
			if _, ok := inReclaim[l]; !ok {
				remaining = append(remaining, l)
			}
		}
		sortLeasesByAge(remaining)
		for len(remaining) > p.cfg.LeaseCeiling {
			reclaim = append(reclaim, remaining[0])
			remaining = remaining[1:]
		}
	}

	for _, l := range reclaim {
		age := now.Sub(l.acquiredAt)
		p.log.Warn("reclaiming leaked connection",
			zap.Duration("age", age),
			zap.Duration("leak_window", p.cfg.LeakWindow))
		l.close()
		p.mu.Lock()
		p.reclaimed++
		p.mu.Unlock()
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := db.PingContext(pingCtx)
	cancel()
	if err != nil {
		p.log.Error("pool health check failed, reinitializing", zap.Error(err))
		p.reinit(db)
	}
}

// reinit replaces the database handle. On failure the previous handle is
// kept so callers degrade to retry errors instead of nil dereferences.
func (p *Pool) reinit(old *sql.DB) {
	fresh, err := p.opener()
	if err != nil {
		p.log.Error("pool reinitialization failed, keeping previous handle", zap.Error(err))
		return
	}
	configureHandle(fresh, p.cfg.Size)

	p.mu.Lock()
	if p.closed || p.db != old {
		// Someone else already swapped it.
		p.mu.Unlock()
		_ = fresh.Close()
		return
	}
	p.db = fresh
	p.reinits++
	p.mu.Unlock()

	_ = old.Close()
	p.log.Info("connection pool reinitialized")
}

func (p *Pool) snapshotLeasesLocked() []*Lease {
	out := make([]*Lease, 0, len(p.leases))
	for l := range p.leases {
		out = append(out, l)
	}
	return out
}

func sortLeasesByAge(leases []*Lease) {
	// Oldest first. Insertion sort: the slice is tiny (bounded by pool size).
	for i := 1; i < len(leases); i++ {
		for j := i; j > 0 && leases[j].acquiredAt.Before(leases[j-1].acquiredAt); j-- {
			leases[j], leases[j-1] = leases[j-1], leases[j]
		}
	}
}
