package registry

import (
	"context"

	"pushgate/internal/push/model"
)

// Registry maintains the durable identifier → channel mapping with alert
// statistics. Observe must be atomic per identifier: concurrent observations
// of the same instance serialize, different instances do not contend.
type Registry interface {
	// Observe creates the mapping on first sight and always bumps alert_count
	// and last_alert_time. The source rule is recorded once and never
	// overwritten by later observations.
	Observe(ctx context.Context, rule *model.Rule, instance string) (*model.InstanceMapping, error)

	// ResolveChannels returns the bound channels whose robot type equals kind,
	// plus the unfiltered bound set so callers can tell "nothing bound" apart
	// from "bound but nothing compatible". A nil mapping means the identifier
	// is unknown to the registry.
	ResolveChannels(ctx context.Context, instance string, kind model.RobotType) (matched, bound []model.Channel, known bool, err error)
}

func filterByType(channels []model.Channel, kind model.RobotType) []model.Channel {
	var matched []model.Channel
	for _, ch := range channels {
		if ch.Robot.Type == kind {
			matched = append(matched, ch)
		}
	}
	return matched
}
