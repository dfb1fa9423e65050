package memrepo

import (
	"context"

	"github.com/xxxsen/simurgh/internal/model"
	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
	"github.com/xxxsen/simurgh/internal/repo"
)

type notificationStore struct{}

func (s *notificationStore) Insert(_ context.Context, tx repo.Tx, n *model.NotificationRequest) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if _, ok := t.employeeView()[n.EmployeeID]; !ok {
		return appErr.ErrNotFound
	}
	n.ID = t.db.notificationSeq.Add(1)
	t.notifications[n.ID] = *n
	return nil
}

func (s *notificationStore) FindUnsentAndUnexpired(_ context.Context, tx repo.Tx, now int64, limit int) ([]*model.NotificationRequest, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	var items []*model.NotificationRequest
	for _, n := range t.notificationsView() {
		if n.SentAt != 0 || n.ExpiresAt <= now {
			continue
		}
		n := n
		items = append(items, &n)
		if limit > 0 && len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (s *notificationStore) MarkSent(_ context.Context, tx repo.Tx, id int64, now int64) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	for _, n := range t.notificationsView() {
		if n.ID != id || n.SentAt != 0 {
			continue
		}
		n.SentAt = now
		t.notifications[id] = n
		return nil
	}
	return appErr.ErrNotFound
}
