package service

import (
	"context"
	"errors"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/simurgh/internal/metrics"
	"github.com/xxxsen/simurgh/internal/model"
	"github.com/xxxsen/simurgh/internal/notify"
	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
	"github.com/xxxsen/simurgh/internal/pkg/timeutil"
	"github.com/xxxsen/simurgh/internal/repo"
)

const defaultDispatchBatch = 100

type DispatchStats struct {
	Pending int
	Sent    int
	Failed  int
}

type pendingNotification struct {
	notification *model.NotificationRequest
	employee     *model.Employee
}

// NotificationDispatcher hands unsent, unexpired notifications to a
// transport and marks them sent. Delivery is at-least-once: a crash between
// Send and MarkSent resends on the next run.
type NotificationDispatcher struct {
	stores    repo.Stores
	sender    notify.Sender
	batchSize int
	clock     timeutil.Clock
	metrics   *metrics.Metrics
}

func NewNotificationDispatcher(stores repo.Stores, sender notify.Sender, batchSize int, clock timeutil.Clock, m *metrics.Metrics) *NotificationDispatcher {
	if batchSize <= 0 {
		batchSize = defaultDispatchBatch
	}
	if clock == nil {
		clock = timeutil.System
	}
	return &NotificationDispatcher{stores: stores, sender: sender, batchSize: batchSize, clock: clock, metrics: m}
}

func (d *NotificationDispatcher) Dispatch(ctx context.Context) (DispatchStats, error) {
	var stats DispatchStats
	pending, err := d.loadPending(ctx, d.clock().Unix())
	if err != nil {
		return stats, err
	}
	stats.Pending = len(pending)
	logger := logutil.GetLogger(ctx)
	for _, item := range pending {
		if err := ctx.Err(); err != nil {
			d.metrics.ObserveDispatch(stats.Pending, stats.Sent, stats.Failed)
			return stats, err
		}
		n := item.notification
		msg := notify.Message{
			NotificationID: n.ID,
			Username:       item.employee.Username,
			Name:           strings.TrimSpace(item.employee.FirstName + " " + item.employee.SecondName),
			To:             item.employee.OfficeEmail,
			Mobile:         item.employee.Mobile,
			Subject:        n.Title,
			Body:           n.Body,
			ExpiresAt:      n.ExpiresAt,
		}
		if err := d.sender.Send(ctx, msg); err != nil {
			stats.Failed++
			logger.Warn("send notification failed",
				zap.Int64("notification_id", n.ID),
				zap.String("sender", d.sender.Name()),
				zap.Error(err),
			)
			continue
		}
		err := repo.RunInTx(ctx, d.stores.Tx, func(tx repo.Tx) error {
			return d.stores.Notifications.MarkSent(ctx, tx, n.ID, d.clock().Unix())
		})
		switch {
		case err == nil:
			stats.Sent++
		case errors.Is(err, appErr.ErrNotFound):
			// sent by a concurrent dispatcher or removed with its employee
			stats.Sent++
		default:
			stats.Failed++
			logger.Error("mark notification sent failed", zap.Int64("notification_id", n.ID), zap.Error(err))
		}
	}
	d.metrics.ObserveDispatch(stats.Pending, stats.Sent, stats.Failed)
	return stats, nil
}

func (d *NotificationDispatcher) loadPending(ctx context.Context, now int64) ([]pendingNotification, error) {
	var pending []pendingNotification
	err := repo.RunInTx(ctx, d.stores.Tx, func(tx repo.Tx) error {
		items, err := d.stores.Notifications.FindUnsentAndUnexpired(ctx, tx, now, d.batchSize)
		if err != nil {
			return err
		}
		employees := make(map[int64]*model.Employee)
		for _, n := range items {
			employee, ok := employees[n.EmployeeID]
			if !ok {
				employee, err = d.stores.Employees.FindByID(ctx, tx, n.EmployeeID)
				if err != nil {
					return err
				}
				employees[n.EmployeeID] = employee
			}
			pending = append(pending, pendingNotification{notification: n, employee: employee})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}
