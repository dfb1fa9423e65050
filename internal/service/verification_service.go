package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/simurgh/internal/metrics"
	"github.com/xxxsen/simurgh/internal/model"
	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
	"github.com/xxxsen/simurgh/internal/pkg/randutil"
	"github.com/xxxsen/simurgh/internal/pkg/timeutil"
	"github.com/xxxsen/simurgh/internal/repo"
)

const (
	secretLength    = 8
	referenceLength = 16

	defaultClockSkew         = 5 * time.Minute
	defaultRequestTTL        = 5 * time.Minute
	defaultNotificationTTL   = 15 * time.Minute
	defaultNotificationTitle = "Simurgh Identity Verification System"
)

type VerificationOptions struct {
	ClockSkew         time.Duration
	RequestTTL        time.Duration
	NotificationTTL   time.Duration
	NotificationTitle string
	Clock             timeutil.Clock
	Metrics           *metrics.Metrics
}

type IssueResult struct {
	Reference  string `json:"reference"`
	ServerUnix int64  `json:"server_utc_dt"`
}

type VerificationService struct {
	stores  repo.Stores
	opts    VerificationOptions
	metrics *metrics.Metrics
}

func NewVerificationService(stores repo.Stores, opts VerificationOptions) *VerificationService {
	if opts.ClockSkew <= 0 {
		opts.ClockSkew = defaultClockSkew
	}
	if opts.RequestTTL <= 0 {
		opts.RequestTTL = defaultRequestTTL
	}
	if opts.NotificationTTL <= 0 {
		opts.NotificationTTL = defaultNotificationTTL
	}
	if opts.NotificationTitle == "" {
		opts.NotificationTitle = defaultNotificationTitle
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.System
	}
	return &VerificationService{stores: stores, opts: opts, metrics: opts.Metrics}
}

// Issue supersedes any active request of the employee and creates a new one
// together with the notification carrying its secret.
func (s *VerificationService) Issue(ctx context.Context, username string, clientUnix int64) (*IssueResult, error) {
	now := s.opts.Clock().Unix()
	if !timeutil.Within(clientUnix, now, s.opts.ClockSkew) {
		s.metrics.ObserveIssue(metrics.ResultSkew)
		return nil, appErr.ErrClockSkew
	}
	secret, err := randutil.AlphanumericString(secretLength)
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	reference, err := randutil.AlphanumericString(referenceLength)
	if err != nil {
		return nil, fmt.Errorf("generate reference: %w", err)
	}

	var employee *model.Employee
	err = repo.RunInTx(ctx, s.stores.Tx, func(tx repo.Tx) error {
		var err error
		employee, err = s.stores.Employees.FindByUsername(ctx, tx, username)
		if err != nil {
			return err
		}
		superseded, err := s.stores.Verifications.DeactivateAllForEmployee(ctx, tx, employee.ID)
		if err != nil {
			return err
		}
		if superseded > 1 {
			logutil.GetLogger(ctx).Error("more than one active verification request",
				zap.Int64("employee_id", employee.ID),
				zap.Int64("active", superseded),
			)
			return appErr.ErrInvariantViolation
		}
		req := &model.VerificationRequest{
			Reference:  reference,
			Secret:     secret,
			Active:     true,
			Ctime:      now,
			ExpiresAt:  now + int64(s.opts.RequestTTL/time.Second),
			EmployeeID: employee.ID,
		}
		if err := s.stores.Verifications.Insert(ctx, tx, req); err != nil {
			return err
		}
		notification := &model.NotificationRequest{
			Title:      s.opts.NotificationTitle,
			Body:       notificationBody(secret),
			Ctime:      now,
			ExpiresAt:  now + int64(s.opts.NotificationTTL/time.Second),
			EmployeeID: employee.ID,
		}
		return s.stores.Notifications.Insert(ctx, tx, notification)
	})
	if err != nil {
		s.metrics.ObserveIssue(resultOf(err))
		return nil, err
	}
	s.metrics.ObserveIssue(metrics.ResultIssued)
	logutil.GetLogger(ctx).Info("verification request issued",
		zap.Int64("employee_id", employee.ID),
		zap.String("reference", reference),
	)
	return &IssueResult{Reference: reference, ServerUnix: now}, nil
}

// Check consumes the request identified by reference when clientSecret
// matches. A wrong secret leaves the request usable until it expires.
func (s *VerificationService) Check(ctx context.Context, reference, clientSecret string, clientUnix int64) error {
	now := s.opts.Clock().Unix()
	if !timeutil.Within(clientUnix, now, s.opts.ClockSkew) {
		s.metrics.ObserveCheck(metrics.ResultSkew)
		return appErr.ErrClockSkew
	}
	err := repo.RunInTx(ctx, s.stores.Tx, func(tx repo.Tx) error {
		req, err := s.stores.Verifications.FindActiveByReference(ctx, tx, reference, now)
		if err != nil {
			return err
		}
		if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(clientSecret)) != 1 {
			return appErr.ErrVerificationFailed
		}
		return s.stores.Verifications.MarkVerified(ctx, tx, req.ID, now)
	})
	s.metrics.ObserveCheck(resultOf(err))
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("verification request verified", zap.String("reference", reference))
	return nil
}

func notificationBody(secret string) string {
	return "Verification code: " + secret
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultVerified
	case errors.Is(err, appErr.ErrVerificationFailed):
		return metrics.ResultFailed
	case errors.Is(err, appErr.ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, appErr.ErrClockSkew):
		return metrics.ResultSkew
	default:
		return metrics.ResultError
	}
}
