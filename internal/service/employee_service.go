package service

import (
	"context"
	"strings"

	"github.com/xxxsen/simurgh/internal/model"
	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
	"github.com/xxxsen/simurgh/internal/pkg/timeutil"
	"github.com/xxxsen/simurgh/internal/repo"
)

type EmployeeInput struct {
	EmployeeNr  string `json:"employee_nr"`
	FirstName   string `json:"first_name"`
	SecondName  string `json:"second_name"`
	Username    string `json:"username"`
	OfficeEmail string `json:"office_email"`
	Mobile      string `json:"mobile"`
}

func (in *EmployeeInput) trim() {
	in.EmployeeNr = strings.TrimSpace(in.EmployeeNr)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.SecondName = strings.TrimSpace(in.SecondName)
	in.Username = strings.TrimSpace(in.Username)
	in.OfficeEmail = strings.TrimSpace(in.OfficeEmail)
	in.Mobile = strings.TrimSpace(in.Mobile)
}

type EmployeeService struct {
	stores repo.Stores
	clock  timeutil.Clock
}

func NewEmployeeService(stores repo.Stores, clock timeutil.Clock) *EmployeeService {
	if clock == nil {
		clock = timeutil.System
	}
	return &EmployeeService{stores: stores, clock: clock}
}

func (s *EmployeeService) Create(ctx context.Context, input EmployeeInput) (*model.Employee, error) {
	input.trim()
	if input.FirstName == "" || input.SecondName == "" || input.Username == "" {
		return nil, appErr.ErrInvalid
	}
	now := s.clock().Unix()
	employee := &model.Employee{
		EmployeeNr:  input.EmployeeNr,
		FirstName:   input.FirstName,
		SecondName:  input.SecondName,
		Username:    input.Username,
		OfficeEmail: input.OfficeEmail,
		Mobile:      input.Mobile,
		Ctime:       now,
		Mtime:       now,
	}
	err := repo.RunInTx(ctx, s.stores.Tx, func(tx repo.Tx) error {
		return s.stores.Employees.Create(ctx, tx, employee)
	})
	if err != nil {
		return nil, err
	}
	return employee, nil
}

// Update applies the non-empty fields of input to the employee.
func (s *EmployeeService) Update(ctx context.Context, username string, input EmployeeInput) (*model.Employee, error) {
	input.trim()
	var employee *model.Employee
	err := repo.RunInTx(ctx, s.stores.Tx, func(tx repo.Tx) error {
		var err error
		employee, err = s.stores.Employees.FindByUsername(ctx, tx, strings.TrimSpace(username))
		if err != nil {
			return err
		}
		applyEmployeeInput(employee, input)
		employee.Mtime = s.clock().Unix()
		return s.stores.Employees.Update(ctx, tx, employee)
	})
	if err != nil {
		return nil, err
	}
	return employee, nil
}

func (s *EmployeeService) Delete(ctx context.Context, username string) error {
	return repo.RunInTx(ctx, s.stores.Tx, func(tx repo.Tx) error {
		return s.stores.Employees.DeleteByUsername(ctx, tx, strings.TrimSpace(username))
	})
}

func (s *EmployeeService) Get(ctx context.Context, username string) (*model.Employee, error) {
	var employee *model.Employee
	err := repo.RunInTx(ctx, s.stores.Tx, func(tx repo.Tx) error {
		var err error
		employee, err = s.stores.Employees.FindByUsername(ctx, tx, strings.TrimSpace(username))
		return err
	})
	if err != nil {
		return nil, err
	}
	return employee, nil
}

func (s *EmployeeService) List(ctx context.Context) ([]*model.Employee, error) {
	var items []*model.Employee
	err := repo.RunInTx(ctx, s.stores.Tx, func(tx repo.Tx) error {
		var err error
		items, err = s.stores.Employees.List(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func applyEmployeeInput(e *model.Employee, in EmployeeInput) {
	if in.EmployeeNr != "" {
		e.EmployeeNr = in.EmployeeNr
	}
	if in.FirstName != "" {
		e.FirstName = in.FirstName
	}
	if in.SecondName != "" {
		e.SecondName = in.SecondName
	}
	if in.Username != "" {
		e.Username = in.Username
	}
	if in.OfficeEmail != "" {
		e.OfficeEmail = in.OfficeEmail
	}
	if in.Mobile != "" {
		e.Mobile = in.Mobile
	}
}
