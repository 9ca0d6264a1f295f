package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pushgate/internal/push/model"
)

// MemoryRegistry is an in-process Registry used by tests and by deployments
// that run without Postgres. A single mutex guards the map; entry updates for
// one identifier happen under it, so counters never regress.
type MemoryRegistry struct {
	mu       sync.Mutex
	mappings map[string]*model.InstanceMapping
	channels map[string][]model.Channel
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		mappings: make(map[string]*model.InstanceMapping),
		channels: make(map[string][]model.Channel),
	}
}

func (r *MemoryRegistry) Observe(_ context.Context, rule *model.Rule, instance string) (*model.InstanceMapping, error) {
	if instance == "" {
		return nil, fmt.Errorf("empty instance identifier")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	m, ok := r.mappings[instance]
	if !ok {
		m = &model.InstanceMapping{Instance: instance, CreatedAt: now}
		r.mappings[instance] = m
	}
	m.AlertCount++
	m.LastAlertTime = &now
	m.UpdatedAt = now
	if m.SourceRule == nil && rule != nil {
		m.SourceRule = rule
	}

	cp := *m
	return &cp, nil
}

func (r *MemoryRegistry) ResolveChannels(_ context.Context, instance string, kind model.RobotType) ([]model.Channel, []model.Channel, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.mappings[instance]; !ok {
		return nil, nil, false, nil
	}
	bound := append([]model.Channel(nil), r.channels[instance]...)
	return filterByType(bound, kind), bound, true, nil
}

// BindChannels replaces the channel set for one identifier, creating the
// mapping if it does not exist yet.
func (r *MemoryRegistry) BindChannels(instance string, channels ...model.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.mappings[instance]; !ok {
		now := time.Now()
		r.mappings[instance] = &model.InstanceMapping{Instance: instance, CreatedAt: now, UpdatedAt: now}
	}
	r.channels[instance] = append([]model.Channel(nil), channels...)
}
