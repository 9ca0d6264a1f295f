package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pushgate/internal/database"
	"pushgate/internal/push/model"
)

// RobotRepo is the data access layer for webhook robots.
type RobotRepo struct {
	db *database.Database
}

func NewRobotRepo(db *database.Database) *RobotRepo {
	return &RobotRepo{db: db}
}

const robotColumns = `id, name, COALESCE(english_name, ''), webhook_url, robot_type, is_default, created_at, updated_at`

func scanRobot(row pgx.Row) (*model.Robot, error) {
	var b model.Robot
	if err := row.Scan(&b.ID, &b.Name, &b.EnglishName, &b.WebhookURL, &b.Type, &b.IsDefault, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *RobotRepo) CreateRobot(ctx context.Context, robot *model.Robot) (*model.Robot, error) {
	query := `INSERT INTO robots (name, english_name, webhook_url, robot_type, is_default)
	          VALUES ($1, NULLIF($2, ''), $3, $4, $5)
	          RETURNING ` + robotColumns
	created, err := scanRobot(r.db.Pool().QueryRow(ctx, query, robot.Name, robot.EnglishName, robot.WebhookURL, robot.Type, robot.IsDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create robot: %w", err)
	}
	return created, nil
}

func (r *RobotRepo) UpdateRobot(ctx context.Context, robot *model.Robot) error {
	query := `UPDATE robots SET name=$2, english_name=NULLIF($3, ''), webhook_url=$4, robot_type=$5, is_default=$6, updated_at=now() WHERE id=$1`
	tag, err := r.db.Pool().Exec(ctx, query, robot.ID, robot.Name, robot.EnglishName, robot.WebhookURL, robot.Type, robot.IsDefault)
	if err != nil {
		return fmt.Errorf("failed to update robot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("robot %d not found", robot.ID)
	}
	return nil
}

func (r *RobotRepo) DeleteRobot(ctx context.Context, id int64) error {
	if _, err := r.db.Pool().Exec(ctx, `DELETE FROM robots WHERE id=$1`, id); err != nil {
		return fmt.Errorf("failed to delete robot: %w", err)
	}
	return nil
}

func (r *RobotRepo) GetRobot(ctx context.Context, id int64) (*model.Robot, error) {
	query := `SELECT ` + robotColumns + ` FROM robots WHERE id=$1`
	robot, err := scanRobot(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get robot: %w", err)
	}
	return robot, nil
}

// GetRobotByEnglishName resolves a robot by its unique english name.
func (r *RobotRepo) GetRobotByEnglishName(ctx context.Context, name string) (*model.Robot, error) {
	query := `SELECT ` + robotColumns + ` FROM robots WHERE english_name=$1`
	robot, err := scanRobot(r.db.Pool().QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get robot by english name: %w", err)
	}
	return robot, nil
}

// GetDefaultRobot returns the first robot flagged as default, or nil.
func (r *RobotRepo) GetDefaultRobot(ctx context.Context) (*model.Robot, error) {
	query := `SELECT ` + robotColumns + ` FROM robots WHERE is_default ORDER BY id LIMIT 1`
	robot, err := scanRobot(r.db.Pool().QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get default robot: %w", err)
	}
	return robot, nil
}

// GetFirstRobotByType returns any robot of the given vendor type, or nil.
func (r *RobotRepo) GetFirstRobotByType(ctx context.Context, t model.RobotType) (*model.Robot, error) {
	query := `SELECT ` + robotColumns + ` FROM robots WHERE robot_type=$1 ORDER BY id LIMIT 1`
	robot, err := scanRobot(r.db.Pool().QueryRow(ctx, query, t))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get robot by type: %w", err)
	}
	return robot, nil
}

func (r *RobotRepo) ListRobots(ctx context.Context) ([]model.Robot, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT `+robotColumns+` FROM robots ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query robots: %w", err)
	}
	defer rows.Close()

	var robots []model.Robot
	for rows.Next() {
		robot, err := scanRobot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan robot: %w", err)
		}
		robots = append(robots, *robot)
	}
	return robots, rows.Err()
}
