package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/simurgh/internal/model"
	"github.com/xxxsen/simurgh/internal/pkg/dbutil"
	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
)

const notificationTable = "notification_requests"

type NotificationRepo struct{}

func NewNotificationRepo() *NotificationRepo {
	return &NotificationRepo{}
}

func (r *NotificationRepo) Insert(ctx context.Context, tx Tx, n *model.NotificationRequest) error {
	stx, ctx, err := sqlTx(ctx, tx)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"title":       n.Title,
		"body":        n.Body,
		"ctime":       n.Ctime,
		"expires_at":  n.ExpiresAt,
		"employee_id": n.EmployeeID,
	}
	sqlStr, args, err := builder.BuildInsert(notificationTable, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" RETURNING id", args)
	if err := stx.QueryRowContext(ctx, sqlStr, args...).Scan(&n.ID); err != nil {
		if dbutil.IsForeignKeyViolation(err) {
			return appErr.ErrNotFound
		}
		return appErr.Storage("notification_requests.insert", err)
	}
	return nil
}

func (r *NotificationRepo) FindUnsentAndUnexpired(ctx context.Context, tx Tx, now int64, limit int) ([]*model.NotificationRequest, error) {
	stx, ctx, err := sqlTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	where := map[string]interface{}{
		"sent_at":      builder.IsNull,
		"expires_at >": now,
		"_orderby":     "id asc",
		"_limit":       []uint{0, uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect(notificationTable, where, []string{"id", "title", "body", "ctime", "expires_at", "sent_at", "employee_id"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := stx.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, appErr.Storage("notification_requests.select", err)
	}
	defer func() { _ = rows.Close() }()
	var items []*model.NotificationRequest
	for rows.Next() {
		var (
			n      model.NotificationRequest
			sentAt sql.NullInt64
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.Ctime, &n.ExpiresAt, &sentAt, &n.EmployeeID); err != nil {
			return nil, appErr.Storage("notification_requests.scan", err)
		}
		n.SentAt = sentAt.Int64
		items = append(items, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Storage("notification_requests.select", err)
	}
	return items, nil
}

func (r *NotificationRepo) MarkSent(ctx context.Context, tx Tx, id int64, now int64) error {
	stx, ctx, err := sqlTx(ctx, tx)
	if err != nil {
		return err
	}
	where := map[string]interface{}{"id": id, "sent_at": builder.IsNull}
	update := map[string]interface{}{"sent_at": now}
	sqlStr, args, err := builder.BuildUpdate(notificationTable, where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := stx.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return appErr.Storage("notification_requests.mark_sent", err)
	}
	return requireAffected(result, "notification_requests.mark_sent")
}
