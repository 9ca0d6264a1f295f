package database

import (
	"context"
	"encoding/json"
	"fmt"

	"pushgate/internal/database"
	"pushgate/internal/push/model"
)

// RecordRepo is the data access layer for the append-only alert audit log.
type RecordRepo struct {
	db *database.Database
}

func NewRecordRepo(db *database.Database) *RecordRepo {
	return &RecordRepo{db: db}
}

func (r *RecordRepo) InsertRecord(ctx context.Context, rec *model.AlertRecord) error {
	valuesJSON, err := json.Marshal(rec.ExtractedValues)
	if err != nil {
		return fmt.Errorf("failed to marshal extracted values: %w", err)
	}
	query := `
	INSERT INTO alert_records (id, instance_name, rule_name, alert_content, raw_data, extracted_values, alert_time, processed)
	VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)`
	_, err = r.db.Pool().Exec(ctx, query,
		rec.ID, rec.Instance, rec.RuleName, rec.Content, rec.RawData, string(valuesJSON), rec.AlertTime, rec.Processed)
	if err != nil {
		return fmt.Errorf("failed to insert alert record: %w", err)
	}
	return nil
}

// ListRecordsByInstance returns the newest records for one identifier.
func (r *RecordRepo) ListRecordsByInstance(ctx context.Context, instance string, limit int) ([]model.AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
	SELECT id, instance_name, rule_name, alert_content, raw_data, extracted_values, alert_time, processed
	FROM alert_records WHERE instance_name=$1 ORDER BY alert_time DESC LIMIT $2`
	rows, err := r.db.Pool().Query(ctx, query, instance, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert records: %w", err)
	}
	defer rows.Close()

	var records []model.AlertRecord
	for rows.Next() {
		var rec model.AlertRecord
		var valuesJSON []byte
		if err := rows.Scan(&rec.ID, &rec.Instance, &rec.RuleName, &rec.Content, &rec.RawData, &valuesJSON, &rec.AlertTime, &rec.Processed); err != nil {
			return nil, fmt.Errorf("failed to scan alert record: %w", err)
		}
		if len(valuesJSON) > 0 {
			if err := json.Unmarshal(valuesJSON, &rec.ExtractedValues); err != nil {
				return nil, fmt.Errorf("failed to decode extracted values: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkProcessed flags a record once its dispatch pass completed.
func (r *RecordRepo) MarkProcessed(ctx context.Context, id string) error {
	if _, err := r.db.Pool().Exec(ctx, `UPDATE alert_records SET processed=true WHERE id=$1`, id); err != nil {
		return fmt.Errorf("failed to mark alert record processed: %w", err)
	}
	return nil
}
