package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/simurgh/internal/model"
	"github.com/xxxsen/simurgh/internal/pkg/dbutil"
	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
)

const verificationTable = "verification_requests"

const (
	lockEmployeeSQL = "SELECT id FROM employees WHERE id = ? FOR UPDATE"

	findActiveByReferenceSQL = "SELECT id, reference, secret, active, ctime, expires_at, verified_at, employee_id " +
		"FROM verification_requests WHERE reference = ? AND active = TRUE AND expires_at > ? FOR UPDATE"
)

type VerificationRequestRepo struct{}

func NewVerificationRequestRepo() *VerificationRequestRepo {
	return &VerificationRequestRepo{}
}

func (r *VerificationRequestRepo) Insert(ctx context.Context, tx Tx, req *model.VerificationRequest) error {
	stx, ctx, err := sqlTx(ctx, tx)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"reference":   req.Reference,
		"secret":      req.Secret,
		"active":      req.Active,
		"ctime":       req.Ctime,
		"expires_at":  req.ExpiresAt,
		"employee_id": req.EmployeeID,
	}
	sqlStr, args, err := builder.BuildInsert(verificationTable, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" RETURNING id", args)
	if err := stx.QueryRowContext(ctx, sqlStr, args...).Scan(&req.ID); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		if dbutil.IsForeignKeyViolation(err) {
			return appErr.ErrNotFound
		}
		return appErr.Storage("verification_requests.insert", err)
	}
	return nil
}

// DeactivateAllForEmployee locks the employee row first. Concurrent issuers
// for the same employee queue on that lock, so the later one always sees the
// earlier one's committed insert and deactivates it. Other employees are
// unaffected.
func (r *VerificationRequestRepo) DeactivateAllForEmployee(ctx context.Context, tx Tx, employeeID int64) (int64, error) {
	stx, ctx, err := sqlTx(ctx, tx)
	if err != nil {
		return 0, err
	}
	lockSQL, lockArgs := dbutil.Finalize(lockEmployeeSQL, []interface{}{employeeID})
	var lockedID int64
	if err := stx.QueryRowContext(ctx, lockSQL, lockArgs...).Scan(&lockedID); err != nil {
		if err == sql.ErrNoRows {
			return 0, appErr.ErrNotFound
		}
		return 0, appErr.Storage("employees.lock", err)
	}

	where := map[string]interface{}{"employee_id": employeeID, "active": true}
	update := map[string]interface{}{"active": false}
	sqlStr, args, err := builder.BuildUpdate(verificationTable, where, update)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := stx.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, appErr.Storage("verification_requests.deactivate", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, appErr.Storage("verification_requests.deactivate", err)
	}
	return affected, nil
}

func (r *VerificationRequestRepo) FindActiveByReference(ctx context.Context, tx Tx, reference string, now int64) (*model.VerificationRequest, error) {
	stx, ctx, err := sqlTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	sqlStr, args := dbutil.Finalize(findActiveByReferenceSQL, []interface{}{reference, now})
	rows, err := stx.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, appErr.Storage("verification_requests.select", err)
	}
	defer func() { _ = rows.Close() }()
	var found []*model.VerificationRequest
	for rows.Next() {
		var (
			req        model.VerificationRequest
			verifiedAt sql.NullInt64
		)
		if err := rows.Scan(&req.ID, &req.Reference, &req.Secret, &req.Active, &req.Ctime, &req.ExpiresAt, &verifiedAt, &req.EmployeeID); err != nil {
			return nil, appErr.Storage("verification_requests.scan", err)
		}
		req.VerifiedAt = verifiedAt.Int64
		found = append(found, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Storage("verification_requests.select", err)
	}
	switch len(found) {
	case 0:
		return nil, appErr.ErrNotFound
	case 1:
		return found[0], nil
	default:
		return nil, appErr.ErrInvariantViolation
	}
}

func (r *VerificationRequestRepo) MarkVerified(ctx context.Context, tx Tx, id int64, now int64) error {
	stx, ctx, err := sqlTx(ctx, tx)
	if err != nil {
		return err
	}
	where := map[string]interface{}{"id": id, "active": true}
	update := map[string]interface{}{"active": false, "verified_at": now}
	sqlStr, args, err := builder.BuildUpdate(verificationTable, where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := stx.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return appErr.Storage("verification_requests.verify", err)
	}
	return requireAffected(result, "verification_requests.verify")
}
