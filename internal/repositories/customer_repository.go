package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/poofware/backoffice-service/internal/models"
)

type CustomerRepository interface {
	Create(ctx context.Context, c *models.Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

type customerRepo struct {
	db DB
}

func NewCustomerRepository(db DB) CustomerRepository {
	return &customerRepo{db: db}
}

func (r *customerRepo) Create(ctx context.Context, c *models.Customer) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO customers (
            id, name, email, phone, gateway_customer_id, payment_method_id, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, c.ID, c.Name, c.Email, c.Phone, c.GatewayCustomerID, c.PaymentMethodID, c.CreatedAt)
	return err
}

func (r *customerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var c models.Customer
	err := r.db.QueryRow(ctx, `
        SELECT id, name, email, phone, gateway_customer_id, payment_method_id, created_at
        FROM customers
        WHERE id = $1
    `, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.GatewayCustomerID, &c.PaymentMethodID, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
