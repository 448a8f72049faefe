package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

const keyCustomerInvoiceLock = "crewbill:invoice:lock:%s:%s"

var ErrCustomerLocked = errors.New("customer_locked")

// CustomerLocker serializes invoice emission for a customer across sessions
// and processes. A disabled locker grants every lock.
type CustomerLocker struct {
	locker *Locker
	ttl    time.Duration
}

func NewCustomerLocker(locker *Locker, ttl time.Duration) *CustomerLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CustomerLocker{locker: locker, ttl: ttl}
}

func (l *CustomerLocker) Enabled() bool {
	return l != nil && l.locker != nil
}

// Acquire takes the lock and returns a release func. ErrCustomerLocked is
// returned when another holder owns the lock.
func (l *CustomerLocker) Acquire(ctx context.Context, orgID, customerID string) (func(context.Context) error, error) {
	if !l.Enabled() {
		return func(context.Context) error { return nil }, nil
	}

	key := customerLockKey(orgID, customerID)
	token, ok, err := l.locker.TryLock(ctx, key, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCustomerLocked
	}
	return func(ctx context.Context) error {
		return l.locker.Release(ctx, key, token)
	}, nil
}

func customerLockKey(orgID, customerID string) string {
	return fmt.Sprintf(
		keyCustomerInvoiceLock,
		slug.Make(strings.TrimSpace(orgID)),
		slug.Make(strings.TrimSpace(customerID)),
	)
}
