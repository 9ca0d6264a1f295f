package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pushgate/internal/database"
	"pushgate/internal/push/model"
)

// MappingRepo is the data access layer for identifier → channel mappings.
type MappingRepo struct {
	db *database.Database
}

func NewMappingRepo(db *database.Database) *MappingRepo {
	return &MappingRepo{db: db}
}

// UpsertObservation bumps an identifier's counters in one statement, creating
// the mapping on first sight. The UPSERT serializes concurrent observations of
// the same identifier inside Postgres; source_rule_id is first-writer-wins.
func (r *MappingRepo) UpsertObservation(ctx context.Context, instance string, ruleID int64) (*model.InstanceMapping, error) {
	query := `
	INSERT INTO instance_mappings (instance_name, source_rule_id, alert_count, last_alert_time)
	VALUES ($1, NULLIF($2, 0), 1, now())
	ON CONFLICT (instance_name) DO UPDATE SET
		alert_count     = instance_mappings.alert_count + 1,
		last_alert_time = now(),
		source_rule_id  = COALESCE(instance_mappings.source_rule_id, EXCLUDED.source_rule_id),
		updated_at      = now()
	RETURNING instance_name, alert_count, last_alert_time, created_at, updated_at`

	var m model.InstanceMapping
	if err := r.db.Pool().QueryRow(ctx, query, instance, ruleID).Scan(
		&m.Instance, &m.AlertCount, &m.LastAlertTime, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert instance observation: %w", err)
	}
	return &m, nil
}

func (r *MappingRepo) GetMapping(ctx context.Context, instance string) (*model.InstanceMapping, error) {
	query := `
	SELECT m.instance_name, m.alert_count, m.last_alert_time, m.created_at, m.updated_at,
	       r.id, r.name, r.type, r.description, r.expression, r.is_active, r.created_at, r.updated_at
	FROM instance_mappings m
	LEFT JOIN rules r ON r.id = m.source_rule_id
	WHERE m.instance_name = $1`

	var m model.InstanceMapping
	var rule model.Rule
	var ruleID *int64
	var ruleName, ruleKind, ruleDesc, ruleExpr *string
	var ruleActive *bool
	var ruleCreated, ruleUpdated *time.Time
	err := r.db.Pool().QueryRow(ctx, query, instance).Scan(
		&m.Instance, &m.AlertCount, &m.LastAlertTime, &m.CreatedAt, &m.UpdatedAt,
		&ruleID, &ruleName, &ruleKind, &ruleDesc, &ruleExpr, &ruleActive, &ruleCreated, &ruleUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get instance mapping: %w", err)
	}
	if ruleID != nil {
		rule = model.Rule{ID: *ruleID, Name: *ruleName, Kind: model.RuleKind(*ruleKind), Description: *ruleDesc, Expression: *ruleExpr, Active: *ruleActive}
		if ruleCreated != nil {
			rule.CreatedAt = *ruleCreated
		}
		if ruleUpdated != nil {
			rule.UpdatedAt = *ruleUpdated
		}
		m.SourceRule = &rule
	}
	return &m, nil
}

func (r *MappingRepo) ListMappings(ctx context.Context) ([]model.InstanceMapping, error) {
	query := `
	SELECT instance_name, alert_count, last_alert_time, created_at, updated_at
	FROM instance_mappings ORDER BY updated_at DESC`
	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query instance mappings: %w", err)
	}
	defer rows.Close()

	var mappings []model.InstanceMapping
	for rows.Next() {
		var m model.InstanceMapping
		if err := rows.Scan(&m.Instance, &m.AlertCount, &m.LastAlertTime, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan instance mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// SetChannels replaces an identifier's bound channel set.
func (r *MappingRepo) SetChannels(ctx context.Context, instance string, channelIDs []int64) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin channel binding: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM instance_channels WHERE instance_name=$1`, instance); err != nil {
		return fmt.Errorf("failed to clear channel bindings: %w", err)
	}
	for _, id := range channelIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO instance_channels (instance_name, channel_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			instance, id); err != nil {
			return fmt.Errorf("failed to bind channel %d: %w", id, err)
		}
	}
	return tx.Commit(ctx)
}

// ClearChannels empties an identifier's bound channel set.
func (r *MappingRepo) ClearChannels(ctx context.Context, instance string) error {
	if _, err := r.db.Pool().Exec(ctx, `DELETE FROM instance_channels WHERE instance_name=$1`, instance); err != nil {
		return fmt.Errorf("failed to clear channel bindings: %w", err)
	}
	return nil
}

func (r *MappingRepo) DeleteMapping(ctx context.Context, instance string) error {
	if _, err := r.db.Pool().Exec(ctx, `DELETE FROM instance_mappings WHERE instance_name=$1`, instance); err != nil {
		return fmt.Errorf("failed to delete instance mapping: %w", err)
	}
	return nil
}
