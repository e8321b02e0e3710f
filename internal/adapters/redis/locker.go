package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hypertrader/pkg/errors"
	"hypertrader/pkg/logger"
)

const defaultPollInterval = 50 * time.Millisecond

// AccountLocker serializes real orders per account across processes.
// The TTL bounds how long a crashed holder can block the account.
type AccountLocker struct {
	client *Client
	ttl    time.Duration
	poll   time.Duration
	log    *logger.Logger
}

// NewAccountLocker creates a distributed account locker
func NewAccountLocker(client *Client, ttl time.Duration) *AccountLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AccountLocker{
		client: client,
		ttl:    ttl,
		poll:   defaultPollInterval,
		log:    logger.Get().With("component", "redis_account_locker"),
	}
}

// Acquire polls SET NX until the account lock is taken or ctx is done
func (l *AccountLocker) Acquire(ctx context.Context, accountID string) (func(), error) {
	key := "account:" + accountID
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.AcquireLock(ctx, key, token, l.ttl)
		if err != nil && ctx.Err() == nil {
			return nil, errors.Wrap(err, "acquire account lock")
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(errors.ErrOrderInFlight, "account %s: %v", accountID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *AccountLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	released, err := l.client.ReleaseLock(ctx, key, token)
	if err != nil {
		l.log.Warnw("Failed to release account lock", "key", key, "error", err)
		return
	}
	if !released {
		l.log.Warnw("Account lock expired before release", "key", key, "ttl", l.ttl)
	}
}
