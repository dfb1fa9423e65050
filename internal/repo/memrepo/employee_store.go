package memrepo

import (
	"context"
	"sort"

	"github.com/xxxsen/simurgh/internal/model"
	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
	"github.com/xxxsen/simurgh/internal/repo"
)

type employeeStore struct{}

func (s *employeeStore) Create(_ context.Context, tx repo.Tx, employee *model.Employee) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	for _, e := range t.employeeView() {
		if e.Username == employee.Username {
			return appErr.ErrConflict
		}
	}
	employee.ID = t.db.employeeSeq.Add(1)
	t.employees[employee.ID] = *employee
	return nil
}

func (s *employeeStore) Update(_ context.Context, tx repo.Tx, employee *model.Employee) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	view := t.employeeView()
	current, ok := view[employee.ID]
	if !ok {
		return appErr.ErrNotFound
	}
	for _, e := range view {
		if e.ID != employee.ID && e.Username == employee.Username {
			return appErr.ErrConflict
		}
	}
	updated := *employee
	updated.Ctime = current.Ctime
	t.employees[employee.ID] = updated
	return nil
}

func (s *employeeStore) DeleteByUsername(_ context.Context, tx repo.Tx, username string) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	for id, e := range t.employeeView() {
		if e.Username == username {
			delete(t.employees, id)
			t.deleted[id] = struct{}{}
			return nil
		}
	}
	return appErr.ErrNotFound
}

func (s *employeeStore) FindByUsername(_ context.Context, tx repo.Tx, username string) (*model.Employee, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	for _, e := range t.employeeView() {
		if e.Username == username {
			found := e
			return &found, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (s *employeeStore) FindByID(_ context.Context, tx repo.Tx, id int64) (*model.Employee, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	e, ok := t.employeeView()[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &e, nil
}

func (s *employeeStore) List(_ context.Context, tx repo.Tx) ([]*model.Employee, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	view := t.employeeView()
	items := make([]*model.Employee, 0, len(view))
	for _, e := range view {
		e := e
		items = append(items, &e)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Username < items[j].Username })
	return items, nil
}
