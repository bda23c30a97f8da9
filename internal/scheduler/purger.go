// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// TokenStore deletes refresh tokens that can never be used again.
type TokenStore interface {
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// TokenPurger removes expired and revoked refresh tokens. Rows are kept
// for Grace after they die so a replayed token still reads as revoked
// for a while instead of unknown.
type TokenPurger struct {
	cron  *cron.Cron
	store TokenStore
	spec  string
	now   func() time.Time

	Grace time.Duration

	mu      sync.Mutex
	entry   cron.EntryID
	running bool
}

// NewTokenPurger schedules store.PurgeStale on spec, a cron expression
// or descriptor such as "@every 1h". An empty spec means hourly.
func NewTokenPurger(store TokenStore, spec string) *TokenPurger {
	if spec == "" {
		spec = "@every 1h"
	}
	return &TokenPurger{
		cron:  cron.New(),
		store: store,
		spec:  spec,
		now:   func() time.Time { return time.Now().UTC() },
		Grace: 24 * time.Hour,
	}
}

// Start registers the purge job and starts the cron loop. It returns an
// error only when the schedule cannot be parsed.
func (p *TokenPurger) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	id, err := p.cron.AddFunc(p.spec, func() { p.RunOnce(context.Background()) })
	if err != nil {
		return fmt.Errorf("schedule token purge %q: %w", p.spec, err)
	}
	p.entry = id
	p.running = true
	p.cron.Start()
	log.Printf("token purger started (%s)", p.spec)
	return nil
}

// Stop halts the schedule and waits for a running purge to finish.
func (p *TokenPurger) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	<-p.cron.Stop().Done()
	log.Println("token purger stopped")
}

// Run starts the purger and blocks until ctx is cancelled, so it can be
// supervised like the other long-running parts of the server.
func (p *TokenPurger) Run(ctx context.Context) error {
	if err := p.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	p.Stop()
	return nil
}

// NextRun reports when the purge runs next; zero when not started.
func (p *TokenPurger) NextRun() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return time.Time{}
	}
	return p.cron.Entry(p.entry).Next
}

// RunOnce performs a single purge and returns the number of rows
// removed. Failures are logged; the next tick tries again.
func (p *TokenPurger) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := p.store.PurgeStale(ctx, p.now().Add(-p.Grace))
	if err != nil {
		log.Printf("token purge failed: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("token purge removed %d refresh tokens", n)
	}
	return n
}
