package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/poofware/backoffice-service/internal/models"
)

type CrewRepository interface {
	Create(ctx context.Context, c *models.Crew) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Crew, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Crew, error)
	List(ctx context.Context) ([]*models.Crew, error)
	UpdateIfVersion(ctx context.Context, c *models.Crew, expectedVersion int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Crew) error) (*models.Crew, error)
}

type crewRepo struct {
	*BaseVersionedRepo[*models.Crew]
	db DB
}

func NewCrewRepository(db DB) CrewRepository {
	r := &crewRepo{db: db}
	r.BaseVersionedRepo = NewBaseRepo(db, baseSelectCrew()+" WHERE id = $1", scanCrew)
	return r
}

func baseSelectCrew() string {
	return `
        SELECT
            id, name, zone, status, active_order_count, members,
            base_latitude, base_longitude, progress,
            row_version, created_at, updated_at
        FROM crews
    `
}

func scanCrew(row pgx.Row) (*models.Crew, error) {
	var (
		c       models.Crew
		members []byte
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Zone, &c.Status, &c.ActiveOrderCount, &members,
		&c.BaseLatitude, &c.BaseLongitude, &c.Progress,
		&c.RowVersion, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(members) > 0 {
		if err := json.Unmarshal(members, &c.Members); err != nil {
			return nil, fmt.Errorf("crew %s members: %w", c.ID, err)
		}
	}
	return &c, nil
}

func membersArg(m []models.CrewMember) (string, error) {
	if m == nil {
		m = []models.CrewMember{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *crewRepo) Create(ctx context.Context, c *models.Crew) error {
	members, err := membersArg(c.Members)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
        INSERT INTO crews (
            id, name, zone, status, active_order_count, members,
            base_latitude, base_longitude, progress,
            row_version, created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7,$8,$9,1,$10,$10)
    `,
		c.ID, c.Name, c.Zone, c.Status, c.ActiveOrderCount, members,
		c.BaseLatitude, c.BaseLongitude, c.Progress, c.CreatedAt,
	)
	if err == nil {
		c.RowVersion = 1
		c.UpdatedAt = c.CreatedAt
	}
	return err
}

func (r *crewRepo) List(ctx context.Context) ([]*models.Crew, error) {
	rows, err := r.db.Query(ctx, baseSelectCrew()+" ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.Crew{}
	for rows.Next() {
		c, err := scanCrew(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *crewRepo) UpdateIfVersion(ctx context.Context, c *models.Crew, expectedVersion int64) (pgconn.CommandTag, error) {
	members, err := membersArg(c.Members)
	if err != nil {
		return nil, err
	}
	tag, err := r.db.Exec(ctx, `
        UPDATE crews SET
            name = $1,
            zone = $2,
            status = $3,
            active_order_count = $4,
            members = $5::jsonb,
            progress = $6,
            updated_at = $7,
            row_version = row_version + 1
        WHERE id = $8 AND row_version = $9
    `,
		c.Name, c.Zone, c.Status, c.ActiveOrderCount, members, c.Progress, c.UpdatedAt,
		c.ID, expectedVersion,
	)
	if err == nil && tag.RowsAffected() == 1 {
		c.SetRowVersion(expectedVersion + 1)
	}
	return tag, err
}

func (r *crewRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Crew) error) (*models.Crew, error) {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, id, mutate, r.UpdateIfVersion)
}
