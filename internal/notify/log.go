package notify

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// logSender writes messages to the process log. Development only: the body
// contains the secret.
type logSender struct{}

func init() {
	Register("log", func(args interface{}) (Sender, error) {
		return &logSender{}, nil
	})
}

func (s *logSender) Name() string {
	return "log"
}

func (s *logSender) Send(ctx context.Context, msg Message) error {
	logutil.GetLogger(ctx).Info("notification delivered to log",
		zap.Int64("notification_id", msg.NotificationID),
		zap.String("username", msg.Username),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
