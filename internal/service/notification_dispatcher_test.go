package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/xxxsen/simurgh/internal/notify"
	"github.com/xxxsen/simurgh/internal/notify/notifymock"
)

func TestDispatchSendsAndMarksSent(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()
	_, err := f.svc.Issue(ctx, "ada", f.clock.Unix())
	require.NoError(t, err)
	secret := f.db.Verifications()[0].Secret

	ctrl := gomock.NewController(t)
	sender := notifymock.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg notify.Message) error {
		assert.Equal(t, "ada@example.com", msg.To)
		assert.Equal(t, "Ada Lovelace", msg.Name)
		assert.Equal(t, "Verification code: "+secret, msg.Body)
		assert.Equal(t, "Simurgh Identity Verification System", msg.Subject)
		return nil
	})

	d := NewNotificationDispatcher(f.stores, sender, 10, f.clock.Now, nil)
	stats, err := d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, DispatchStats{Pending: 1, Sent: 1}, stats)
	assert.Equal(t, f.clock.Unix(), f.db.Notifications()[0].SentAt)

	stats, err = d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, DispatchStats{}, stats)
}

func TestDispatchRetriesFailedSend(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()
	_, err := f.svc.Issue(ctx, "ada", f.clock.Unix())
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	sender := notifymock.NewMockSender(ctrl)
	sender.EXPECT().Name().Return("mock").AnyTimes()
	gomock.InOrder(
		sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("relay down")),
		sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil),
	)

	d := NewNotificationDispatcher(f.stores, sender, 10, f.clock.Now, nil)
	stats, err := d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, DispatchStats{Pending: 1, Failed: 1}, stats)
	assert.Zero(t, f.db.Notifications()[0].SentAt)

	stats, err = d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, DispatchStats{Pending: 1, Sent: 1}, stats)
}

func TestDispatchSkipsExpired(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()
	_, err := f.svc.Issue(ctx, "ada", f.clock.Unix())
	require.NoError(t, err)
	f.clock.Advance(15 * time.Minute)

	ctrl := gomock.NewController(t)
	sender := notifymock.NewMockSender(ctrl)
	d := NewNotificationDispatcher(f.stores, sender, 10, f.clock.Now, nil)
	stats, err := d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
	assert.Zero(t, f.db.Notifications()[0].SentAt)
}

func TestDispatchHonoursBatchSize(t *testing.T) {
	f := newVerificationFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Issue(ctx, "ada", f.clock.Unix())
		require.NoError(t, err)
	}

	ctrl := gomock.NewController(t)
	sender := notifymock.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).Times(3)
	d := NewNotificationDispatcher(f.stores, sender, 2, f.clock.Now, nil)

	stats, err := d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sent)
	stats, err = d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
}

func TestDispatchStopsOnCancel(t *testing.T) {
	f := newVerificationFixture(t)
	_, err := f.svc.Issue(context.Background(), "ada", f.clock.Unix())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctrl := gomock.NewController(t)
	sender := notifymock.NewMockSender(ctrl)
	d := NewNotificationDispatcher(f.stores, sender, 10, f.clock.Now, nil)
	_, err = d.Dispatch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
