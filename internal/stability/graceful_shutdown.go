package stability

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"aqstn/internal/logger"
)

type ShutdownStatus string

const (
	ShutdownStatusPending   ShutdownStatus = "pending"
	ShutdownStatusCompleted ShutdownStatus = "completed"
	ShutdownStatusFailed    ShutdownStatus = "failed"
	ShutdownStatusSkipped   ShutdownStatus = "skipped"
)

// ShutdownComponent is one piece of the node that must be stopped on exit.
type ShutdownComponent struct {
	Name         string
	Priority     int
	Timeout      time.Duration
	ShutdownFunc func(ctx context.Context) error
	Status       ShutdownStatus
	Error        string

	order int
}

type ShutdownResult struct {
	Success    bool
	Duration   time.Duration
	Components []*ShutdownComponent
	Errors     []string
}

// ShutdownManager stops registered components, highest priority first.
// Components with equal priority stop in registration order.
type ShutdownManager struct {
	mu               sync.Mutex
	components       []*ShutdownComponent
	componentTimeout time.Duration
	shuttingDown     bool
	log              logger.Logger
}

// NewShutdownManager creates a manager whose components default to componentTimeout.
func NewShutdownManager(componentTimeout time.Duration, log logger.Logger) *ShutdownManager {
	if componentTimeout <= 0 {
		componentTimeout = 10 * time.Second
	}
	return &ShutdownManager{
		componentTimeout: componentTimeout,
		log:              log.WithField("component", "shutdown"),
	}
}

// RegisterComponent adds fn to the shutdown sequence. Higher priorities stop first.
func (sm *ShutdownManager) RegisterComponent(name string, priority int, timeout time.Duration, fn func(ctx context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if timeout <= 0 {
		timeout = sm.componentTimeout
	}
	sm.components = append(sm.components, &ShutdownComponent{
		Name:         name,
		Priority:     priority,
		Timeout:      timeout,
		ShutdownFunc: fn,
		Status:       ShutdownStatusPending,
		order:        len(sm.components),
	})
	sm.log.Debug("Registered shutdown component", "name", name, "priority", priority)
}

// Shutdown runs every component once. A second call returns immediately with
// an error. Components not yet reached when ctx ends are skipped.
func (sm *ShutdownManager) Shutdown(ctx context.Context) *ShutdownResult {
	sm.mu.Lock()
	if sm.shuttingDown {
		sm.mu.Unlock()
		return &ShutdownResult{Errors: []string{"shutdown already in progress"}}
	}
	sm.shuttingDown = true
	components := make([]*ShutdownComponent, len(sm.components))
	copy(components, sm.components)
	sm.mu.Unlock()

	sort.SliceStable(components, func(i, j int) bool {
		if components[i].Priority != components[j].Priority {
			return components[i].Priority > components[j].Priority
		}
		return components[i].order < components[j].order
	})

	start := time.Now()
	result := &ShutdownResult{Success: true, Components: components}
	sm.log.Info("Starting graceful shutdown", "components", len(components))

	for _, component := range components {
		if ctx.Err() != nil {
			component.Status = ShutdownStatusSkipped
			component.Error = "shutdown cancelled"
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", component.Name, component.Error))
			result.Success = false
			continue
		}

		compCtx, cancel := context.WithTimeout(ctx, component.Timeout)
		err := component.ShutdownFunc(compCtx)
		cancel()

		if err != nil {
			component.Status = ShutdownStatusFailed
			component.Error = err.Error()
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", component.Name, err))
			result.Success = false
			sm.log.Error("Component shutdown failed", "name", component.Name, "error", err)
			continue
		}
		component.Status = ShutdownStatusCompleted
		sm.log.Info("Component stopped", "name", component.Name)
	}

	result.Duration = time.Since(start)
	sm.log.Info("Graceful shutdown finished", "duration", result.Duration.String(), "success", result.Success)
	return result
}
