package memrepo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/simurgh/internal/model"
	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
	"github.com/xxxsen/simurgh/internal/repo"
)

func seedEmployee(t *testing.T, db *DB, username string) *model.Employee {
	t.Helper()
	stores := db.Stores()
	e := &model.Employee{FirstName: "Ada", SecondName: "Lovelace", Username: username, Ctime: 1, Mtime: 1}
	require.NoError(t, repo.RunInTx(context.Background(), stores.Tx, func(tx repo.Tx) error {
		return stores.Employees.Create(context.Background(), tx, e)
	}))
	return e
}

func TestCommitPublishesStagedWrites(t *testing.T) {
	db := New()
	stores := db.Stores()
	ctx := context.Background()
	e := seedEmployee(t, db, "ada")

	tx, err := stores.Tx.Begin(ctx)
	require.NoError(t, err)
	req := &model.VerificationRequest{Reference: "REF1", Secret: "S1", Active: true, ExpiresAt: 100, EmployeeID: e.ID}
	require.NoError(t, stores.Verifications.Insert(ctx, tx, req))
	require.NotZero(t, req.ID)
	assert.Empty(t, db.Verifications())

	found, err := stores.Verifications.FindActiveByReference(ctx, tx, "REF1", 10)
	require.NoError(t, err)
	assert.Equal(t, req.ID, found.ID)

	require.NoError(t, tx.Commit())
	require.Len(t, db.Verifications(), 1)
	assert.ErrorIs(t, tx.Commit(), ErrTxDone)
}

func TestRollbackDiscardsStagedWrites(t *testing.T) {
	db := New()
	stores := db.Stores()
	ctx := context.Background()
	e := seedEmployee(t, db, "ada")

	tx, err := stores.Tx.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, stores.Notifications.Insert(ctx, tx, &model.NotificationRequest{Title: "t", Body: "b", ExpiresAt: 100, EmployeeID: e.ID}))
	require.NoError(t, tx.Rollback())
	assert.Empty(t, db.Notifications())

	_, err = stores.Notifications.FindUnsentAndUnexpired(ctx, tx, 0, 10)
	assert.ErrorIs(t, err, ErrTxDone)
}

func TestForeignTxRejected(t *testing.T) {
	stores := New().Stores()
	_, err := stores.Employees.FindByUsername(context.Background(), fakeTx{}, "ada")
	assert.ErrorIs(t, err, repo.ErrForeignTx)
}

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

func TestEmployeeUsernameUnique(t *testing.T) {
	db := New()
	stores := db.Stores()
	ctx := context.Background()
	seedEmployee(t, db, "ada")

	err := repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		return stores.Employees.Create(ctx, tx, &model.Employee{Username: "ada"})
	})
	assert.ErrorIs(t, err, appErr.ErrConflict)
}

func TestCommitRejectsConcurrentDuplicateUsername(t *testing.T) {
	db := New()
	stores := db.Stores()
	ctx := context.Background()

	tx1, err := stores.Tx.Begin(ctx)
	require.NoError(t, err)
	tx2, err := stores.Tx.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, stores.Employees.Create(ctx, tx1, &model.Employee{Username: "ada"}))
	require.NoError(t, stores.Employees.Create(ctx, tx2, &model.Employee{Username: "ada"}))
	require.NoError(t, tx1.Commit())
	assert.ErrorIs(t, tx2.Commit(), appErr.ErrConflict)
}

func TestDeactivateAllForEmployee(t *testing.T) {
	db := New()
	stores := db.Stores()
	ctx := context.Background()
	e := seedEmployee(t, db, "ada")

	require.NoError(t, repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		return stores.Verifications.Insert(ctx, tx, &model.VerificationRequest{Reference: "A", Active: true, ExpiresAt: 100, EmployeeID: e.ID})
	}))
	var affected int64
	require.NoError(t, repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		var err error
		affected, err = stores.Verifications.DeactivateAllForEmployee(ctx, tx, e.ID)
		if err != nil {
			return err
		}
		return stores.Verifications.Insert(ctx, tx, &model.VerificationRequest{Reference: "B", Active: true, ExpiresAt: 100, EmployeeID: e.ID})
	}))
	assert.EqualValues(t, 1, affected)
	active := db.ActiveVerifications(e.ID)
	require.Len(t, active, 1)
	assert.Equal(t, "B", active[0].Reference)

	err := repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		_, err := stores.Verifications.DeactivateAllForEmployee(ctx, tx, e.ID+100)
		return err
	})
	assert.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestFindActiveByReferenceSkipsExpiredAndConsumed(t *testing.T) {
	db := New()
	stores := db.Stores()
	ctx := context.Background()
	e := seedEmployee(t, db, "ada")
	req := &model.VerificationRequest{Reference: "A", Active: true, ExpiresAt: 100, EmployeeID: e.ID}
	require.NoError(t, repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		return stores.Verifications.Insert(ctx, tx, req)
	}))

	err := repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		_, err := stores.Verifications.FindActiveByReference(ctx, tx, "A", 100)
		return err
	})
	assert.ErrorIs(t, err, appErr.ErrNotFound)

	require.NoError(t, repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		return stores.Verifications.MarkVerified(ctx, tx, req.ID, 50)
	}))
	err = repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		_, err := stores.Verifications.FindActiveByReference(ctx, tx, "A", 60)
		return err
	})
	assert.ErrorIs(t, err, appErr.ErrNotFound)

	stored := db.Verifications()
	require.Len(t, stored, 1)
	assert.False(t, stored[0].Active)
	assert.EqualValues(t, 50, stored[0].VerifiedAt)

	err = repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		return stores.Verifications.MarkVerified(ctx, tx, req.ID, 70)
	})
	assert.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestFindActiveByReferenceDuplicateFailsClosed(t *testing.T) {
	db := New()
	stores := db.Stores()
	ctx := context.Background()
	e := seedEmployee(t, db, "ada")
	db.mu.Lock()
	for _, id := range []int64{1, 2} {
		db.verifications[id] = model.VerificationRequest{ID: id, Reference: "DUP", Active: true, ExpiresAt: 100, EmployeeID: e.ID}
	}
	db.mu.Unlock()

	err := repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		_, err := stores.Verifications.FindActiveByReference(ctx, tx, "DUP", 50)
		return err
	})
	assert.ErrorIs(t, err, appErr.ErrInvariantViolation)
	for _, v := range db.Verifications() {
		assert.True(t, v.Active)
		assert.Zero(t, v.VerifiedAt)
	}
}

func TestKeyLockSerializesSameEmployee(t *testing.T) {
	db := New()
	stores := db.Stores()
	ctx := context.Background()
	e := seedEmployee(t, db, "ada")

	tx1, err := stores.Tx.Begin(ctx)
	require.NoError(t, err)
	_, err = stores.Verifications.DeactivateAllForEmployee(ctx, tx1, e.ID)
	require.NoError(t, err)

	tx2, err := stores.Tx.Begin(ctx)
	require.NoError(t, err)
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = stores.Verifications.DeactivateAllForEmployee(waitCtx, tx2, e.ID)
	require.Error(t, err)
	assert.True(t, appErr.IsStorage(err))
	require.NoError(t, tx2.Rollback())

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tx3, err := stores.Tx.Begin(ctx)
		if err != nil {
			return
		}
		defer func() { _ = tx3.Rollback() }()
		if _, err := stores.Verifications.DeactivateAllForEmployee(ctx, tx3, e.ID); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second writer acquired the employee lock while it was held")
	case <-time.After(30 * time.Millisecond):
	}
	require.NoError(t, tx1.Commit())
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was not released on commit")
	}
	wg.Wait()
}

func TestKeyLockIndependentAcrossEmployees(t *testing.T) {
	db := New()
	stores := db.Stores()
	ctx := context.Background()
	ada := seedEmployee(t, db, "ada")
	bob := seedEmployee(t, db, "bob")

	tx1, err := stores.Tx.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx1.Rollback() }()
	_, err = stores.Verifications.DeactivateAllForEmployee(ctx, tx1, ada.ID)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	tx2, err := stores.Tx.Begin(waitCtx)
	require.NoError(t, err)
	_, err = stores.Verifications.DeactivateAllForEmployee(waitCtx, tx2, bob.ID)
	require.NoError(t, err)
	require.NoError(t, tx2.Commit())
}

func TestDeleteEmployeeCascades(t *testing.T) {
	db := New()
	stores := db.Stores()
	ctx := context.Background()
	e := seedEmployee(t, db, "ada")
	require.NoError(t, repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		if err := stores.Verifications.Insert(ctx, tx, &model.VerificationRequest{Reference: "A", Active: true, ExpiresAt: 100, EmployeeID: e.ID}); err != nil {
			return err
		}
		return stores.Notifications.Insert(ctx, tx, &model.NotificationRequest{Title: "t", Body: "b", ExpiresAt: 100, EmployeeID: e.ID})
	}))

	require.NoError(t, repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		return stores.Employees.DeleteByUsername(ctx, tx, "ada")
	}))
	assert.Empty(t, db.Verifications())
	assert.Empty(t, db.Notifications())

	err := repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		return stores.Employees.DeleteByUsername(ctx, tx, "ada")
	})
	assert.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestInsertForDeletedEmployeeFailsOnCommit(t *testing.T) {
	db := New()
	stores := db.Stores()
	ctx := context.Background()
	e := seedEmployee(t, db, "ada")

	tx, err := stores.Tx.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, stores.Notifications.Insert(ctx, tx, &model.NotificationRequest{Title: "t", EmployeeID: e.ID, ExpiresAt: 100}))

	require.NoError(t, repo.RunInTx(ctx, stores.Tx, func(del repo.Tx) error {
		return stores.Employees.DeleteByUsername(ctx, del, "ada")
	}))
	assert.ErrorIs(t, tx.Commit(), appErr.ErrNotFound)
	assert.Empty(t, db.Notifications())
}

func TestNotificationsUnsentAndUnexpired(t *testing.T) {
	db := New()
	stores := db.Stores()
	ctx := context.Background()
	e := seedEmployee(t, db, "ada")
	items := []*model.NotificationRequest{
		{Title: "live", ExpiresAt: 100, EmployeeID: e.ID},
		{Title: "expired", ExpiresAt: 10, EmployeeID: e.ID},
		{Title: "live2", ExpiresAt: 200, EmployeeID: e.ID},
	}
	require.NoError(t, repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		for _, n := range items {
			if err := stores.Notifications.Insert(ctx, tx, n); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		return stores.Notifications.MarkSent(ctx, tx, items[2].ID, 20)
	}))

	var pending []*model.NotificationRequest
	require.NoError(t, repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		var err error
		pending, err = stores.Notifications.FindUnsentAndUnexpired(ctx, tx, 50, 10)
		return err
	}))
	require.Len(t, pending, 1)
	assert.Equal(t, "live", pending[0].Title)

	err := repo.RunInTx(ctx, stores.Tx, func(tx repo.Tx) error {
		return stores.Notifications.MarkSent(ctx, tx, items[2].ID, 30)
	})
	assert.ErrorIs(t, err, appErr.ErrNotFound)
}
