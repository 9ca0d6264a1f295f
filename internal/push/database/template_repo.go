package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pushgate/internal/database"
	"pushgate/internal/push/model"
)

// TemplateRepo is the data access layer for message templates.
type TemplateRepo struct {
	db *database.Database
}

func NewTemplateRepo(db *database.Database) *TemplateRepo {
	return &TemplateRepo{db: db}
}

const templateColumns = `id, name, content, robot_type, created_at, updated_at`

func scanTemplate(row pgx.Row) (*model.Template, error) {
	var t model.Template
	if err := row.Scan(&t.ID, &t.Name, &t.Content, &t.Type, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepo) CreateTemplate(ctx context.Context, tpl *model.Template) (*model.Template, error) {
	query := `INSERT INTO templates (name, content, robot_type)
	          VALUES ($1, $2, $3)
	          RETURNING ` + templateColumns
	created, err := scanTemplate(r.db.Pool().QueryRow(ctx, query, tpl.Name, tpl.Content, tpl.Type))
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return created, nil
}

func (r *TemplateRepo) UpdateTemplate(ctx context.Context, tpl *model.Template) error {
	query := `UPDATE templates SET name=$2, content=$3, robot_type=$4, updated_at=now() WHERE id=$1`
	tag, err := r.db.Pool().Exec(ctx, query, tpl.ID, tpl.Name, tpl.Content, tpl.Type)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template %d not found", tpl.ID)
	}
	return nil
}

func (r *TemplateRepo) DeleteTemplate(ctx context.Context, id int64) error {
	if _, err := r.db.Pool().Exec(ctx, `DELETE FROM templates WHERE id=$1`, id); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}

func (r *TemplateRepo) GetTemplate(ctx context.Context, id int64) (*model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id=$1`
	tpl, err := scanTemplate(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tpl, nil
}

func (r *TemplateRepo) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []model.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, *tpl)
	}
	return templates, rows.Err()
}
