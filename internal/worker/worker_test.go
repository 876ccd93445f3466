package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"pricewatch/internal/models"
	"pricewatch/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	held     bool
	released int
}

func (l *fakeLocker) AcquireLock(context.Context, string, time.Duration) (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLocker) ReleaseLock(context.Context, string) error {
	l.held = false
	l.released++
	return nil
}

type fakePurger struct {
	days []models.Date
}

func (p *fakePurger) PurgeExpired(_ context.Context, today models.Date) (int64, error) {
	p.days = append(p.days, today)
	return 2, nil
}

type fakeNotifier struct {
	users []string
	err   error
}

func (n *fakeNotifier) Notify(_ context.Context, username string) (*service.NotifyResult, error) {
	n.users = append(n.users, username)
	if n.err != nil {
		return nil, n.err
	}
	return &service.NotifyResult{Published: true}, nil
}

func fixedNow() time.Time {
	return time.Date(2025, time.June, 15, 9, 0, 0, 0, time.Local)
}

func TestRunOncePurgesThenNotifies(t *testing.T) {
	locker := &fakeLocker{}
	purger := &fakePurger{}
	notifier := &fakeNotifier{}
	w := NewCycleWorker(locker, purger, notifier, "alice", time.Hour, time.Minute, fixedNow)

	ran, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, []models.Date{{Year: 2025, Month: time.June, Day: 15}}, purger.days)
	assert.Equal(t, []string{"alice"}, notifier.users)
	assert.Equal(t, 1, locker.released)
	assert.False(t, locker.held)
}

func TestRunOnceSkipsWhenLocked(t *testing.T) {
	locker := &fakeLocker{held: true}
	purger := &fakePurger{}
	notifier := &fakeNotifier{}
	w := NewCycleWorker(locker, purger, notifier, "alice", time.Hour, time.Minute, fixedNow)

	ran, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Empty(t, purger.days)
	assert.Empty(t, notifier.users)
	assert.Zero(t, locker.released)
}

func TestRunOnceReleasesLockOnFailure(t *testing.T) {
	locker := &fakeLocker{}
	notifier := &fakeNotifier{err: errors.New("kafka unavailable")}
	w := NewCycleWorker(locker, &fakePurger{}, notifier, "alice", time.Hour, time.Minute, fixedNow)

	_, err := w.RunOnce(context.Background())
	assert.Error(t, err)
	assert.False(t, locker.held)
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	notifier := &fakeNotifier{}
	w := NewCycleWorker(&fakeLocker{}, &fakePurger{}, notifier, "alice", time.Hour, time.Minute, fixedNow)

	cancel()
	err := w.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
