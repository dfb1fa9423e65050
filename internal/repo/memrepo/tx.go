package memrepo

import (
	"context"
	"sort"

	"github.com/xxxsen/simurgh/internal/model"
	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
	"github.com/xxxsen/simurgh/internal/repo"
)

// Tx stages writes on top of the committed state. A Tx is used by a single
// goroutine.
type Tx struct {
	db            *DB
	employees     map[int64]model.Employee
	deleted       map[int64]struct{}
	verifications map[int64]model.VerificationRequest
	notifications map[int64]model.NotificationRequest
	held          map[int64]chan struct{}
	done          bool
}

func asTx(tx repo.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, repo.ErrForeignTx
	}
	if t.done {
		return nil, ErrTxDone
	}
	return t, nil
}

func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	defer t.finish()

	d := t.db
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := t.checkConstraintsLocked(); err != nil {
		return err
	}
	for id := range t.deleted {
		delete(d.employees, id)
		for vid, v := range d.verifications {
			if v.EmployeeID == id {
				delete(d.verifications, vid)
			}
		}
		for nid, n := range d.notifications {
			if n.EmployeeID == id {
				delete(d.notifications, nid)
			}
		}
	}
	for id, e := range t.employees {
		d.employees[id] = e
	}
	for id, v := range t.verifications {
		d.verifications[id] = v
	}
	for id, n := range t.notifications {
		d.notifications[id] = n
	}
	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *Tx) finish() {
	t.done = true
	for id, ch := range t.held {
		<-ch
		delete(t.held, id)
	}
}

// lockEmployee blocks until this Tx owns the employee key or ctx ends.
func (t *Tx) lockEmployee(ctx context.Context, employeeID int64) error {
	if _, ok := t.held[employeeID]; ok {
		return nil
	}
	ch := t.db.keyLock(employeeID)
	select {
	case ch <- struct{}{}:
		t.held[employeeID] = ch
		return nil
	case <-ctx.Done():
		return appErr.Storage("employees.lock", ctx.Err())
	}
}

// checkConstraintsLocked mirrors the postgres constraints: unique username,
// unique reference, one active request per employee and existing owners.
func (t *Tx) checkConstraintsLocked() error {
	employees := t.employeeViewLocked()
	usernames := make(map[string]int64, len(employees))
	for _, e := range employees {
		if other, ok := usernames[e.Username]; ok && other != e.ID {
			return appErr.ErrConflict
		}
		usernames[e.Username] = e.ID
	}
	references := make(map[string]int64)
	active := make(map[int64]int)
	for _, v := range t.verificationViewLocked() {
		if _, ok := employees[v.EmployeeID]; !ok {
			if _, staged := t.verifications[v.ID]; staged {
				return appErr.ErrNotFound
			}
			continue
		}
		if other, ok := references[v.Reference]; ok && other != v.ID {
			return appErr.ErrConflict
		}
		references[v.Reference] = v.ID
		if v.Active {
			active[v.EmployeeID]++
			if active[v.EmployeeID] > 1 {
				return appErr.ErrConflict
			}
		}
	}
	for _, n := range t.notifications {
		if _, ok := employees[n.EmployeeID]; !ok {
			return appErr.ErrNotFound
		}
	}
	return nil
}

func (t *Tx) employeeViewLocked() map[int64]model.Employee {
	view := make(map[int64]model.Employee, len(t.db.employees)+len(t.employees))
	for id, e := range t.db.employees {
		view[id] = e
	}
	for id, e := range t.employees {
		view[id] = e
	}
	for id := range t.deleted {
		delete(view, id)
	}
	return view
}

func (t *Tx) verificationViewLocked() []model.VerificationRequest {
	view := make(map[int64]model.VerificationRequest, len(t.db.verifications)+len(t.verifications))
	for id, v := range t.db.verifications {
		view[id] = v
	}
	for id, v := range t.verifications {
		view[id] = v
	}
	items := make([]model.VerificationRequest, 0, len(view))
	for _, v := range view {
		if _, gone := t.deleted[v.EmployeeID]; gone {
			continue
		}
		items = append(items, v)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (t *Tx) notificationViewLocked() []model.NotificationRequest {
	view := make(map[int64]model.NotificationRequest, len(t.db.notifications)+len(t.notifications))
	for id, n := range t.db.notifications {
		view[id] = n
	}
	for id, n := range t.notifications {
		view[id] = n
	}
	items := make([]model.NotificationRequest, 0, len(view))
	for _, n := range view {
		if _, gone := t.deleted[n.EmployeeID]; gone {
			continue
		}
		items = append(items, n)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (t *Tx) employeeView() map[int64]model.Employee {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	return t.employeeViewLocked()
}

func (t *Tx) verificationsView() []model.VerificationRequest {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	return t.verificationViewLocked()
}

func (t *Tx) notificationsView() []model.NotificationRequest {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	return t.notificationViewLocked()
}
