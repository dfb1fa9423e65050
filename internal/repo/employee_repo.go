package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/simurgh/internal/model"
	"github.com/xxxsen/simurgh/internal/pkg/dbutil"
	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
)

const employeeTable = "employees"

var employeeFields = []string{"id", "employee_nr", "first_name", "second_name", "username", "office_email", "mobile", "ctime", "mtime"}

type EmployeeRepo struct{}

func NewEmployeeRepo() *EmployeeRepo {
	return &EmployeeRepo{}
}

func (r *EmployeeRepo) Create(ctx context.Context, tx Tx, employee *model.Employee) error {
	stx, ctx, err := sqlTx(ctx, tx)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"employee_nr":  employee.EmployeeNr,
		"first_name":   employee.FirstName,
		"second_name":  employee.SecondName,
		"username":     employee.Username,
		"office_email": employee.OfficeEmail,
		"mobile":       employee.Mobile,
		"ctime":        employee.Ctime,
		"mtime":        employee.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert(employeeTable, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" RETURNING id", args)
	if err := stx.QueryRowContext(ctx, sqlStr, args...).Scan(&employee.ID); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return appErr.Storage("employees.insert", err)
	}
	return nil
}

func (r *EmployeeRepo) Update(ctx context.Context, tx Tx, employee *model.Employee) error {
	stx, ctx, err := sqlTx(ctx, tx)
	if err != nil {
		return err
	}
	where := map[string]interface{}{"id": employee.ID}
	update := map[string]interface{}{
		"employee_nr":  employee.EmployeeNr,
		"first_name":   employee.FirstName,
		"second_name":  employee.SecondName,
		"username":     employee.Username,
		"office_email": employee.OfficeEmail,
		"mobile":       employee.Mobile,
		"mtime":        employee.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate(employeeTable, where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := stx.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return appErr.Storage("employees.update", err)
	}
	return requireAffected(result, "employees.update")
}

func (r *EmployeeRepo) DeleteByUsername(ctx context.Context, tx Tx, username string) error {
	stx, ctx, err := sqlTx(ctx, tx)
	if err != nil {
		return err
	}
	sqlStr, args, err := builder.BuildDelete(employeeTable, map[string]interface{}{"username": username})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := stx.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return appErr.Storage("employees.delete", err)
	}
	return requireAffected(result, "employees.delete")
}

func (r *EmployeeRepo) FindByUsername(ctx context.Context, tx Tx, username string) (*model.Employee, error) {
	return r.findOne(ctx, tx, map[string]interface{}{"username": username})
}

func (r *EmployeeRepo) FindByID(ctx context.Context, tx Tx, id int64) (*model.Employee, error) {
	return r.findOne(ctx, tx, map[string]interface{}{"id": id})
}

func (r *EmployeeRepo) List(ctx context.Context, tx Tx) ([]*model.Employee, error) {
	stx, ctx, err := sqlTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	where := map[string]interface{}{"_orderby": "username asc"}
	sqlStr, args, err := builder.BuildSelect(employeeTable, where, employeeFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := stx.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, appErr.Storage("employees.select", err)
	}
	defer func() { _ = rows.Close() }()
	var items []*model.Employee
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, appErr.Storage("employees.scan", err)
		}
		items = append(items, employee)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Storage("employees.select", err)
	}
	return items, nil
}

func (r *EmployeeRepo) findOne(ctx context.Context, tx Tx, where map[string]interface{}) (*model.Employee, error) {
	stx, ctx, err := sqlTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	sqlStr, args, err := builder.BuildSelect(employeeTable, where, employeeFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := stx.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, appErr.Storage("employees.select", err)
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, appErr.Storage("employees.select", err)
		}
		return nil, appErr.ErrNotFound
	}
	employee, err := scanEmployee(rows)
	if err != nil {
		return nil, appErr.Storage("employees.scan", err)
	}
	return employee, nil
}

func scanEmployee(rows *sql.Rows) (*model.Employee, error) {
	var e model.Employee
	if err := rows.Scan(&e.ID, &e.EmployeeNr, &e.FirstName, &e.SecondName, &e.Username, &e.OfficeEmail, &e.Mobile, &e.Ctime, &e.Mtime); err != nil {
		return nil, err
	}
	return &e, nil
}

func requireAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return appErr.Storage(op, err)
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
