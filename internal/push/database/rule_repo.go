package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pushgate/internal/database"
	"pushgate/internal/push/model"
)

// RuleRepo is the data access layer for distribution rules.
type RuleRepo struct {
	db *database.Database
}

func NewRuleRepo(db *database.Database) *RuleRepo {
	return &RuleRepo{db: db}
}

const ruleColumns = `id, name, type, description, expression, is_active, created_at, updated_at`

func scanRule(row pgx.Row) (*model.Rule, error) {
	var r model.Rule
	if err := row.Scan(&r.ID, &r.Name, &r.Kind, &r.Description, &r.Expression, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *RuleRepo) CreateRule(ctx context.Context, rule *model.Rule) (*model.Rule, error) {
	query := `INSERT INTO rules (name, type, description, expression, is_active)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING ` + ruleColumns
	created, err := scanRule(r.db.Pool().QueryRow(ctx, query, rule.Name, rule.Kind, rule.Description, rule.Expression, rule.Active))
	if err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	return created, nil
}

func (r *RuleRepo) UpdateRule(ctx context.Context, rule *model.Rule) error {
	query := `UPDATE rules SET name=$2, type=$3, description=$4, expression=$5, is_active=$6, updated_at=now() WHERE id=$1`
	tag, err := r.db.Pool().Exec(ctx, query, rule.ID, rule.Name, rule.Kind, rule.Description, rule.Expression, rule.Active)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule %d not found", rule.ID)
	}
	return nil
}

func (r *RuleRepo) DeleteRule(ctx context.Context, id int64) error {
	if _, err := r.db.Pool().Exec(ctx, `DELETE FROM rules WHERE id=$1`, id); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}

func (r *RuleRepo) GetRule(ctx context.Context, id int64) (*model.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE id=$1`
	rule, err := scanRule(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

func (r *RuleRepo) ListRules(ctx context.Context) ([]model.Rule, error) {
	return r.listRules(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY created_at DESC`)
}

// ListActiveRules returns the active rules ordered by id. The dispatcher reads
// this once per pass as its rule snapshot.
func (r *RuleRepo) ListActiveRules(ctx context.Context) ([]model.Rule, error) {
	return r.listRules(ctx, `SELECT `+ruleColumns+` FROM rules WHERE is_active ORDER BY id`)
}

func (r *RuleRepo) listRules(ctx context.Context, query string) ([]model.Rule, error) {
	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}
