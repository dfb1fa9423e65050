package memrepo

import (
	"context"

	"github.com/xxxsen/simurgh/internal/model"
	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
	"github.com/xxxsen/simurgh/internal/repo"
)

type verificationStore struct{}

func (s *verificationStore) Insert(_ context.Context, tx repo.Tx, req *model.VerificationRequest) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if _, ok := t.employeeView()[req.EmployeeID]; !ok {
		return appErr.ErrNotFound
	}
	for _, v := range t.verificationsView() {
		if v.Reference == req.Reference {
			return appErr.ErrConflict
		}
		if req.Active && v.Active && v.EmployeeID == req.EmployeeID {
			return appErr.ErrConflict
		}
	}
	req.ID = t.db.verificationSeq.Add(1)
	t.verifications[req.ID] = *req
	return nil
}

func (s *verificationStore) DeactivateAllForEmployee(ctx context.Context, tx repo.Tx, employeeID int64) (int64, error) {
	t, err := asTx(tx)
	if err != nil {
		return 0, err
	}
	if _, ok := t.employeeView()[employeeID]; !ok {
		return 0, appErr.ErrNotFound
	}
	if err := t.lockEmployee(ctx, employeeID); err != nil {
		return 0, err
	}
	var affected int64
	for _, v := range t.verificationsView() {
		if v.EmployeeID != employeeID || !v.Active {
			continue
		}
		v.Active = false
		t.verifications[v.ID] = v
		affected++
	}
	return affected, nil
}

func (s *verificationStore) FindActiveByReference(ctx context.Context, tx repo.Tx, reference string, now int64) (*model.VerificationRequest, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	found, err := t.activeByReference(reference, now)
	if err != nil {
		return nil, err
	}
	if err := t.lockEmployee(ctx, found.EmployeeID); err != nil {
		return nil, err
	}
	// Another transaction may have consumed or superseded the row while we
	// waited for the lock.
	return t.activeByReference(reference, now)
}

func (s *verificationStore) MarkVerified(_ context.Context, tx repo.Tx, id int64, now int64) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	for _, v := range t.verificationsView() {
		if v.ID != id || !v.Active {
			continue
		}
		v.Active = false
		v.VerifiedAt = now
		t.verifications[id] = v
		return nil
	}
	return appErr.ErrNotFound
}

func (t *Tx) activeByReference(reference string, now int64) (*model.VerificationRequest, error) {
	var found []model.VerificationRequest
	for _, v := range t.verificationsView() {
		if v.Reference == reference && v.Usable(now) {
			found = append(found, v)
		}
	}
	switch len(found) {
	case 0:
		return nil, appErr.ErrNotFound
	case 1:
		return &found[0], nil
	default:
		return nil, appErr.ErrInvariantViolation
	}
}
