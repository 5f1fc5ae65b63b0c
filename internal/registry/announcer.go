package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"aqstn/internal/logger"
)

// HeartbeatRecorder receives the outcome of every announcement.
type HeartbeatRecorder interface {
	RecordHeartbeat(err error)
}

type AnnouncerConfig struct {
	// Schedule is a cron spec with a leading seconds field, or a descriptor
	// such as "@every 15s".
	Schedule string
	TTL      time.Duration
}

// Announcer keeps the local node's record alive in a Store.
type Announcer struct {
	store    Store
	config   AnnouncerConfig
	recorder HeartbeatRecorder
	log      logger.Logger
	cron     *cron.Cron

	mu      sync.RWMutex
	node    Node
	running bool
	now     func() time.Time
}

// NewAnnouncer validates config and returns an announcer for node.
func NewAnnouncer(store Store, node Node, config AnnouncerConfig, recorder HeartbeatRecorder, log logger.Logger) (*Announcer, error) {
	if config.TTL <= 0 {
		return nil, fmt.Errorf("announcer ttl must be positive, got %s", config.TTL)
	}

	a := &Announcer{
		store:    store,
		config:   config,
		recorder: recorder,
		log:      log.WithFields(map[string]interface{}{"component": "announcer", "node_id": node.ID}),
		cron:     cron.New(cron.WithSeconds()),
		node:     node,
		now:      func() time.Time { return time.Now().UTC() },
	}

	if _, err := a.cron.AddFunc(config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.config.TTL)
		defer cancel()
		_ = a.Heartbeat(ctx)
	}); err != nil {
		return nil, fmt.Errorf("failed to add heartbeat schedule %q: %w", config.Schedule, err)
	}
	return a, nil
}

// Start announces the node immediately and then on every scheduled tick. A
// failing first announcement is logged; the schedule keeps retrying.
func (a *Announcer) Start(ctx context.Context) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()

	_ = a.Heartbeat(ctx)
	a.cron.Start()
	a.log.Info("Node announcer started", "schedule", a.config.Schedule, "ttl", a.config.TTL.String())
}

// Heartbeat writes the node record once with a fresh LastSeen.
func (a *Announcer) Heartbeat(ctx context.Context) error {
	a.mu.Lock()
	a.node.LastSeen = a.now()
	node := a.node
	a.mu.Unlock()

	err := a.store.Put(ctx, node, a.config.TTL)
	if a.recorder != nil {
		a.recorder.RecordHeartbeat(err)
	}
	if err != nil {
		a.log.Warn("Node heartbeat failed", "error", err)
		return err
	}
	a.log.Debug("Node heartbeat sent")
	return nil
}

// Stop halts the schedule, waits for a running heartbeat and removes the node
// from the store.
func (a *Announcer) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	select {
	case <-a.cron.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := a.store.Delete(ctx, a.node.ID); err != nil {
		return fmt.Errorf("failed to deregister node: %w", err)
	}
	a.log.Info("Node announcer stopped")
	return nil
}

func (a *Announcer) Node() Node {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.node
}
