// Package registry lets nodes of the network advertise which release they run.
//
// Each node writes its own record to a shared Store on a schedule. Records
// carry a TTL, so a node that stops heartbeating disappears on its own.
package registry

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	"aqstn/internal/version"
)

var ErrNodeNotFound = errors.New("node not found")

// Node is the record a node publishes about itself.
type Node struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Author    string    `json:"author"`
	Host      string    `json:"host"`
	Address   string    `json:"address,omitempty"`
	StartedAt time.Time `json:"started_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// NewLocalNode describes the current process. An empty name defaults to the
// hostname.
func NewLocalNode(name, address string) Node {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	if name == "" {
		name = host
	}

	info := version.FromBuild()
	now := time.Now().UTC()
	return Node{
		ID:        uuid.NewString(),
		Name:      name,
		Version:   info.Version,
		Author:    info.Author,
		Host:      host,
		Address:   address,
		StartedAt: now,
		LastSeen:  now,
	}
}

// HealthChecker is implemented by stores that can report their backend's
// reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Store keeps node records with an expiry.
type Store interface {
	Put(ctx context.Context, node Node, ttl time.Duration) error
	Get(ctx context.Context, id string) (Node, error)
	List(ctx context.Context) ([]Node, error)
	Delete(ctx context.Context, id string) error
}
