package database

import (
	"context"
	"fmt"
	"time"

	"pushgate/internal/database"
	"pushgate/internal/push/model"
)

// MessageLogRepo is the data access layer for per-send message logs.
type MessageLogRepo struct {
	db *database.Database
}

func NewMessageLogRepo(db *database.Database) *MessageLogRepo {
	return &MessageLogRepo{db: db}
}

func (r *MessageLogRepo) InsertLog(ctx context.Context, ml *model.MessageLog) error {
	query := `
	INSERT INTO message_logs (id, template_id, robot_id, content, raw_data, formatted_content, status, error_message)
	VALUES ($1, NULLIF($2, 0), NULLIF($3, 0), $4, $5, $6, $7, NULLIF($8, ''))`
	_, err := r.db.Pool().Exec(ctx, query,
		ml.ID, ml.TemplateID, ml.RobotID, ml.Content, ml.RawData, ml.FormattedContent, ml.Status, ml.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to insert message log: %w", err)
	}
	return nil
}

func (r *MessageLogRepo) ListRecentLogs(ctx context.Context, limit int) ([]model.MessageLog, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `
	SELECT id, COALESCE(template_id, 0), COALESCE(robot_id, 0), content, raw_data, formatted_content,
	       status, COALESCE(error_message, ''), created_at
	FROM message_logs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query message logs: %w", err)
	}
	defer rows.Close()

	var logs []model.MessageLog
	for rows.Next() {
		var ml model.MessageLog
		if err := rows.Scan(&ml.ID, &ml.TemplateID, &ml.RobotID, &ml.Content, &ml.RawData, &ml.FormattedContent,
			&ml.Status, &ml.ErrorMessage, &ml.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message log: %w", err)
		}
		logs = append(logs, ml)
	}
	return logs, rows.Err()
}

// CountLogsSince counts send attempts since a point in time, optionally
// filtered by outcome. status == nil counts everything.
func (r *MessageLogRepo) CountLogsSince(ctx context.Context, since time.Time, status *bool) (int64, error) {
	query := `SELECT count(*) FROM message_logs WHERE created_at >= $1`
	args := []any{since}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	var n int64
	if err := r.db.Pool().QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count message logs: %w", err)
	}
	return n, nil
}

// DailyOutcome is one day of send statistics for trend charts.
type DailyOutcome struct {
	Day     time.Time `json:"day"`
	Success int64     `json:"success"`
	Failed  int64     `json:"failed"`
}

// OutcomesByDay aggregates success/failure counts per day over [since, now].
func (r *MessageLogRepo) OutcomesByDay(ctx context.Context, since time.Time) ([]DailyOutcome, error) {
	query := `
	SELECT date_trunc('day', created_at) AS day,
	       count(*) FILTER (WHERE status)     AS success,
	       count(*) FILTER (WHERE NOT status) AS failed
	FROM message_logs
	WHERE created_at >= $1
	GROUP BY day ORDER BY day`
	rows, err := r.db.Pool().Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query message log outcomes: %w", err)
	}
	defer rows.Close()

	var out []DailyOutcome
	for rows.Next() {
		var d DailyOutcome
		if err := rows.Scan(&d.Day, &d.Success, &d.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan message log outcome: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RobotTypeCount is one slice of the robot type distribution.
type RobotTypeCount struct {
	Type  model.RobotType `json:"robot_type"`
	Count int64           `json:"count"`
}

func (r *MessageLogRepo) CountRobotsByType(ctx context.Context) ([]RobotTypeCount, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT robot_type, count(*) FROM robots GROUP BY robot_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count robots by type: %w", err)
	}
	defer rows.Close()

	var out []RobotTypeCount
	for rows.Next() {
		var c RobotTypeCount
		if err := rows.Scan(&c.Type, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan robot type count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountRows is a small helper for dashboard totals over simple tables.
func (r *MessageLogRepo) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	switch table {
	case "templates", "robots", "rules", "channels", "instance_mappings":
	default:
		return 0, fmt.Errorf("unsupported table for count: %s", table)
	}
	if err := r.db.Pool().QueryRow(ctx, `SELECT count(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}
