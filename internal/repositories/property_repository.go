package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/poofware/backoffice-service/internal/models"
)

type PropertyRepository interface {
	Create(ctx context.Context, p *models.Property) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
}

type propertyRepo struct {
	db DB
}

func NewPropertyRepository(db DB) PropertyRepository {
	return &propertyRepo{db: db}
}

func (r *propertyRepo) Create(ctx context.Context, p *models.Property) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO properties (
            id, customer_id, address, city, latitude, longitude, time_zone, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `, p.ID, p.CustomerID, p.Address, p.City, p.Latitude, p.Longitude, p.TimeZone, p.CreatedAt)
	return err
}

func (r *propertyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var p models.Property
	err := r.db.QueryRow(ctx, `
        SELECT id, customer_id, address, city, latitude, longitude, time_zone, created_at
        FROM properties
        WHERE id = $1
    `, id).Scan(&p.ID, &p.CustomerID, &p.Address, &p.City, &p.Latitude, &p.Longitude, &p.TimeZone, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
