package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/xxxsen/simurgh/internal/model"
)

// EmployeeStore is the employee directory. The verification flow only uses
// FindByUsername and FindByID; the rest serves the admin API.
type EmployeeStore interface {
	Create(ctx context.Context, tx Tx, employee *model.Employee) error
	Update(ctx context.Context, tx Tx, employee *model.Employee) error
	DeleteByUsername(ctx context.Context, tx Tx, username string) error
	FindByUsername(ctx context.Context, tx Tx, username string) (*model.Employee, error)
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Employee, error)
	List(ctx context.Context, tx Tx) ([]*model.Employee, error)
}

type VerificationRequestStore interface {
	// Insert stores req and assigns req.ID.
	Insert(ctx context.Context, tx Tx, req *model.VerificationRequest) error
	// DeactivateAllForEmployee clears the active flag of every active request
	// of the employee and returns how many rows changed. It also serializes
	// concurrent writers on the same employee until tx ends.
	DeactivateAllForEmployee(ctx context.Context, tx Tx, employeeID int64) (int64, error)
	// FindActiveByReference returns the request that is active, matches
	// reference and has not expired at now. The row stays locked until tx ends.
	FindActiveByReference(ctx context.Context, tx Tx, reference string, now int64) (*model.VerificationRequest, error)
	// MarkVerified consumes an active request.
	MarkVerified(ctx context.Context, tx Tx, id int64, now int64) error
}

type NotificationStore interface {
	Insert(ctx context.Context, tx Tx, n *model.NotificationRequest) error
	FindUnsentAndUnexpired(ctx context.Context, tx Tx, now int64, limit int) ([]*model.NotificationRequest, error)
	MarkSent(ctx context.Context, tx Tx, id int64, now int64) error
}

// Stores bundles one backend: a TxManager plus the stores that accept its
// transactions.
type Stores struct {
	Tx            TxManager
	Employees     EmployeeStore
	Verifications VerificationRequestStore
	Notifications NotificationStore
}

func NewStores(db *sql.DB, txTimeout time.Duration) Stores {
	return Stores{
		Tx:            NewPostgresTxManager(db, txTimeout),
		Employees:     NewEmployeeRepo(),
		Verifications: NewVerificationRequestRepo(),
		Notifications: NewNotificationRepo(),
	}
}
