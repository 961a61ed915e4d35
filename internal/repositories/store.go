package repositories

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/poofware/backoffice-service/internal/constants"
	"github.com/poofware/backoffice-service/internal/utils"
)

// Repositories bundles every repository bound to one DB handle, either the
// pool or a single transaction.
type Repositories struct {
	WorkOrders    WorkOrderRepository
	Timeline      TimelineRepository
	Crews         CrewRepository
	Customers     CustomerRepository
	Properties    PropertyRepository
	Plans         PlanRepository
	Subscriptions SubscriptionRepository
	Payments      PaymentRepository
}

func NewRepositories(db DB) *Repositories {
	return &Repositories{
		WorkOrders:    NewWorkOrderRepository(db),
		Timeline:      NewTimelineRepository(db),
		Crews:         NewCrewRepository(db),
		Customers:     NewCustomerRepository(db),
		Properties:    NewPropertyRepository(db),
		Plans:         NewPlanRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
		Payments:      NewPaymentRepository(db),
	}
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	// Repos returns repositories outside any transaction, for reads.
	Repos() *Repositories
	// WithTx runs fn in one transaction: committed when fn returns nil,
	// rolled back otherwise. fn may be replayed, so it must not perform
	// external side effects.
	WithTx(ctx context.Context, fn func(tx *Repositories) error) error
}

type pgStore struct {
	db    DB
	repos *Repositories
}

func NewStore(db DB) Store {
	return &pgStore{db: db, repos: NewRepositories(db)}
}

func (s *pgStore) Repos() *Repositories {
	return s.repos
}

func (s *pgStore) WithTx(ctx context.Context, fn func(tx *Repositories) error) error {
	var err error
	for attempt := 1; attempt <= constants.MaxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isRetryableTxError(err) {
			return err
		}
		utils.Logger.WithFields(logrus.Fields{
			"attempt": attempt,
		}).WithError(err).Warn("Transaction aborted by serialization conflict; retrying")
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", constants.MaxTxAttempts, err)
}

func (s *pgStore) runTx(ctx context.Context, fn func(tx *Repositories) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(NewRepositories(tx))
	return err
}
