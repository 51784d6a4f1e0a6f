package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
)

// VoucherLockKey builds redis keys guarding voucher status transitions.
func VoucherLockKey(voucherID int64) string {
	return fmt.Sprintf("vouchers:%d:lock", voucherID)
}

// ReconcileLockKey builds the redis key serialising bulk reconciliation runs.
func ReconcileLockKey(scope string) string {
	return fmt.Sprintf("reconcile:%s:lock", scope)
}

// Locker hands out short-lived Redis locks. A nil Locker grants every lock.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewLocker wraps a redislock client. ttl defaults to 30s.
func NewLocker(client *redislock.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// Acquire obtains key without waiting. A held key yields ErrConflict. The
// returned release func is safe to call once the work is done.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	if l == nil || l.client == nil {
		return func(context.Context) {}, nil
	}
	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrConflict, key)
	}
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) {
		_ = lock.Release(ctx)
	}, nil
}
