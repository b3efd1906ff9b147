package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kamiapp/kami/internal/apperror"
	"github.com/kamiapp/kami/internal/model"
	"github.com/kamiapp/kami/internal/repository"
	"github.com/rs/xid"
)

var _ repository.GodRepository = (*DB)(nil)

const godColumns = `id, name, description, category, personality, mbti_type,
	image_url, creator_id, believers_count, power_level, created_at`

func (db *DB) CreateGod(ctx context.Context, god *model.God) error {
	god.ID = xid.New().String()
	god.CreatedAt = time.Now()
	if god.PowerLevel == 0 {
		god.PowerLevel = 1
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO gods (id, name, description, category, personality, mbti_type,
			image_url, creator_id, believers_count, power_level, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		god.ID,
		god.Name,
		god.Description,
		god.Category,
		god.Personality,
		god.MBTIType,
		god.ImageURL,
		god.CreatorID,
		god.BelieversCount,
		god.PowerLevel,
		god.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting god %s: %w", god.Name, err)
	}
	return nil
}

func (db *DB) GetGodByID(ctx context.Context, id string) (*model.God, error) {
	var g model.God
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+godColumns+` FROM gods WHERE id = ?`, id).Scan(
		&g.ID, &g.Name, &g.Description, &g.Category, &g.Personality,
		&g.MBTIType, &g.ImageURL, &g.CreatorID, &g.BelieversCount,
		&g.PowerLevel, &g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("god", id)
		}
		return nil, fmt.Errorf("sqlite: getting god %s: %w", id, err)
	}
	return &g, nil
}

func (db *DB) ListGodsByCreator(ctx context.Context, creatorID string) ([]model.God, error) {
	return db.listGods(ctx,
		`SELECT `+godColumns+` FROM gods WHERE creator_id = ? ORDER BY created_at DESC`,
		creatorID)
}

func (db *DB) ListGodsWithBelievers(ctx context.Context) ([]model.God, error) {
	return db.listGods(ctx,
		`SELECT `+godColumns+` FROM gods WHERE believers_count >= 1`)
}

func (db *DB) listGods(ctx context.Context, query string, args ...any) ([]model.God, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing gods: %w", err)
	}
	defer rows.Close()

	gods := []model.God{}
	for rows.Next() {
		var g model.God
		if err := rows.Scan(
			&g.ID, &g.Name, &g.Description, &g.Category, &g.Personality,
			&g.MBTIType, &g.ImageURL, &g.CreatorID, &g.BelieversCount,
			&g.PowerLevel, &g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning god row: %w", err)
		}
		gods = append(gods, g)
	}
	return gods, rows.Err()
}
