// Package memrepo is an in-process backend that honours the same transaction
// contract as the postgres stores: writes are staged per transaction and
// applied atomically on commit, and writers on one employee are serialized
// by a per-employee key lock held until the transaction ends.
package memrepo

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/xxxsen/simurgh/internal/model"
	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
	"github.com/xxxsen/simurgh/internal/repo"
)

var ErrTxDone = errors.New("memrepo: transaction already finished")

type DB struct {
	mu            sync.RWMutex
	employees     map[int64]model.Employee
	verifications map[int64]model.VerificationRequest
	notifications map[int64]model.NotificationRequest

	employeeSeq     atomic.Int64
	verificationSeq atomic.Int64
	notificationSeq atomic.Int64

	lockMu sync.Mutex
	locks  map[int64]chan struct{}
}

func New() *DB {
	return &DB{
		employees:     make(map[int64]model.Employee),
		verifications: make(map[int64]model.VerificationRequest),
		notifications: make(map[int64]model.NotificationRequest),
		locks:         make(map[int64]chan struct{}),
	}
}

// Stores returns the store bundle backed by this DB.
func (d *DB) Stores() repo.Stores {
	return repo.Stores{
		Tx:            d,
		Employees:     &employeeStore{},
		Verifications: &verificationStore{},
		Notifications: &notificationStore{},
	}
}

func (d *DB) Begin(ctx context.Context) (repo.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErr.Storage("begin", err)
	}
	return &Tx{
		db:            d,
		employees:     make(map[int64]model.Employee),
		deleted:       make(map[int64]struct{}),
		verifications: make(map[int64]model.VerificationRequest),
		notifications: make(map[int64]model.NotificationRequest),
		held:          make(map[int64]chan struct{}),
	}, nil
}

func (d *DB) keyLock(employeeID int64) chan struct{} {
	d.lockMu.Lock()
	defer d.lockMu.Unlock()
	ch, ok := d.locks[employeeID]
	if !ok {
		ch = make(chan struct{}, 1)
		d.locks[employeeID] = ch
	}
	return ch
}

// Verifications returns a committed snapshot ordered by id.
func (d *DB) Verifications() []model.VerificationRequest {
	d.mu.RLock()
	defer d.mu.RUnlock()
	items := make([]model.VerificationRequest, 0, len(d.verifications))
	for _, v := range d.verifications {
		items = append(items, v)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// Notifications returns a committed snapshot ordered by id.
func (d *DB) Notifications() []model.NotificationRequest {
	d.mu.RLock()
	defer d.mu.RUnlock()
	items := make([]model.NotificationRequest, 0, len(d.notifications))
	for _, n := range d.notifications {
		items = append(items, n)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// ActiveVerifications returns the committed active requests of an employee.
func (d *DB) ActiveVerifications(employeeID int64) []model.VerificationRequest {
	var active []model.VerificationRequest
	for _, v := range d.Verifications() {
		if v.EmployeeID == employeeID && v.Active {
			active = append(active, v)
		}
	}
	return active
}
