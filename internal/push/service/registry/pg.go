package registry

import (
	"context"
	"fmt"

	pushdb "pushgate/internal/push/database"
	"pushgate/internal/push/model"
)

// PgRegistry is the Postgres-backed Registry. Atomicity of Observe rests on
// the single-statement UPSERT in MappingRepo.
type PgRegistry struct {
	mappings *pushdb.MappingRepo
	channels *pushdb.ChannelRepo
}

func NewPgRegistry(mappings *pushdb.MappingRepo, channels *pushdb.ChannelRepo) *PgRegistry {
	return &PgRegistry{mappings: mappings, channels: channels}
}

func (r *PgRegistry) Observe(ctx context.Context, rule *model.Rule, instance string) (*model.InstanceMapping, error) {
	if instance == "" {
		return nil, fmt.Errorf("empty instance identifier")
	}
	var ruleID int64
	if rule != nil {
		ruleID = rule.ID
	}
	// the UPSERT keeps the first rule that saw this identifier, so the
	// returned mapping deliberately leaves SourceRule to GetMapping
	return r.mappings.UpsertObservation(ctx, instance, ruleID)
}

func (r *PgRegistry) ResolveChannels(ctx context.Context, instance string, kind model.RobotType) ([]model.Channel, []model.Channel, bool, error) {
	m, err := r.mappings.GetMapping(ctx, instance)
	if err != nil {
		return nil, nil, false, err
	}
	if m == nil {
		return nil, nil, false, nil
	}
	bound, err := r.channels.GetChannelsByInstance(ctx, instance)
	if err != nil {
		return nil, nil, true, err
	}
	return filterByType(bound, kind), bound, true, nil
}
