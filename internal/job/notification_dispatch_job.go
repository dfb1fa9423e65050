package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/simurgh/internal/service"
)

type Dispatcher interface {
	Dispatch(ctx context.Context) (service.DispatchStats, error)
}

type NotificationDispatchJob struct {
	dispatcher Dispatcher
}

func NewNotificationDispatchJob(dispatcher Dispatcher) *NotificationDispatchJob {
	return &NotificationDispatchJob{dispatcher: dispatcher}
}

func (j *NotificationDispatchJob) Name() string {
	return "notification_dispatch"
}

func (j *NotificationDispatchJob) Run(ctx context.Context) error {
	if j.dispatcher == nil {
		return nil
	}
	stats, err := j.dispatcher.Dispatch(ctx)
	if err != nil {
		return err
	}
	if stats.Pending > 0 {
		logutil.GetLogger(ctx).Info("notifications dispatched",
			zap.Int("pending", stats.Pending),
			zap.Int("sent", stats.Sent),
			zap.Int("failed", stats.Failed),
		)
	}
	return nil
}
