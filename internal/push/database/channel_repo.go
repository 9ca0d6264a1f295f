package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pushgate/internal/database"
	"pushgate/internal/push/model"
)

// ChannelRepo is the data access layer for distribution channels, the
// robot+template pairs that alerts fan out to.
type ChannelRepo struct {
	db *database.Database
}

func NewChannelRepo(db *database.Database) *ChannelRepo {
	return &ChannelRepo{db: db}
}

const channelSelect = `
	SELECT c.id, c.name, c.description, c.is_active, c.created_at, c.updated_at,
	       r.id, r.name, COALESCE(r.english_name, ''), r.webhook_url, r.robot_type, r.is_default, r.created_at, r.updated_at,
	       t.id, t.name, t.content, t.robot_type, t.created_at, t.updated_at
	FROM channels c
	JOIN robots r ON r.id = c.robot_id
	JOIN templates t ON t.id = c.template_id`

func scanChannel(row pgx.Row) (*model.Channel, error) {
	var c model.Channel
	if err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.Active, &c.CreatedAt, &c.UpdatedAt,
		&c.Robot.ID, &c.Robot.Name, &c.Robot.EnglishName, &c.Robot.WebhookURL, &c.Robot.Type, &c.Robot.IsDefault, &c.Robot.CreatedAt, &c.Robot.UpdatedAt,
		&c.Template.ID, &c.Template.Name, &c.Template.Content, &c.Template.Type, &c.Template.CreatedAt, &c.Template.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChannelRepo) CreateChannel(ctx context.Context, name, description string, robotID, templateID int64, active bool) (*model.Channel, error) {
	query := `INSERT INTO channels (name, description, robot_id, template_id, is_active)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id`
	var id int64
	if err := r.db.Pool().QueryRow(ctx, query, name, description, robotID, templateID, active).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	return r.GetChannel(ctx, id)
}

func (r *ChannelRepo) UpdateChannel(ctx context.Context, id int64, name, description string, active bool) error {
	query := `UPDATE channels SET name=$2, description=$3, is_active=$4, updated_at=now() WHERE id=$1`
	tag, err := r.db.Pool().Exec(ctx, query, id, name, description, active)
	if err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("channel %d not found", id)
	}
	return nil
}

func (r *ChannelRepo) DeleteChannel(ctx context.Context, id int64) error {
	if _, err := r.db.Pool().Exec(ctx, `DELETE FROM channels WHERE id=$1`, id); err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}
	return nil
}

func (r *ChannelRepo) GetChannel(ctx context.Context, id int64) (*model.Channel, error) {
	ch, err := scanChannel(r.db.Pool().QueryRow(ctx, channelSelect+` WHERE c.id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return ch, nil
}

func (r *ChannelRepo) ListChannels(ctx context.Context) ([]model.Channel, error) {
	return r.queryChannels(ctx, channelSelect+` ORDER BY c.updated_at DESC`)
}

// GetChannelsByInstance returns the active channels bound to one identifier,
// ordered by channel id for deterministic dispatch.
func (r *ChannelRepo) GetChannelsByInstance(ctx context.Context, instance string) ([]model.Channel, error) {
	query := channelSelect + `
	JOIN instance_channels ic ON ic.channel_id = c.id
	WHERE ic.instance_name = $1 AND c.is_active
	ORDER BY c.id`
	return r.queryChannels(ctx, query, instance)
}

func (r *ChannelRepo) queryChannels(ctx context.Context, query string, args ...any) ([]model.Channel, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	var channels []model.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, *ch)
	}
	return channels, rows.Err()
}
