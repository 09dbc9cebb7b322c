package coordination

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

// releaseTimeout bounds the release transaction. Release must work during
// shutdown, after the shared cancellation signal has fired, so it runs on
// its own deadline instead of the caller's context.
const releaseTimeout = 10 * time.Second

// Lock is a session-bound advisory lock on one coordinator key. The stored
// value is the owner's UUID; the cluster guarantees at most one holder
// because creation is guarded on the key not existing and the pair dies
// with the holder's session lease.
//
// A Lock belongs to exactly one agent and is not safe for concurrent use.
type Lock struct {
	client *Client
	key    string
	value  string
	ttl    int

	session *concurrency.Session
}

// NewLock creates a lock handle for key with the given owner value. No
// coordinator traffic happens until Acquire. ttlSeconds is the session lease
// TTL; losing the coordinator for longer than that forfeits leadership.
func (c *Client) NewLock(key, value string, ttlSeconds int) *Lock {
	return &Lock{
		client: c,
		key:    key,
		value:  value,
		ttl:    ttlSeconds,
	}
}

// Key returns the lock key.
func (l *Lock) Key() string {
	return l.key
}

// Acquire blocks until the lock is held or ctx is cancelled. On success it
// returns a channel that is closed when leadership is lost, whether through
// session expiry or through the key being deleted behind our back. On any
// coordinator error the caller retries with its own backoff.
func (l *Lock) Acquire(ctx context.Context) (<-chan struct{}, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		session, err := l.ensureSession(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := l.client.etcd.Txn(ctx).
			If(clientv3.Compare(clientv3.CreateRevision(l.key), "=", 0)).
			Then(clientv3.OpPut(l.key, l.value, clientv3.WithLease(session.Lease()))).
			Commit()
		if err != nil {
			return nil, err
		}

		if resp.Succeeded {
			lost := make(chan struct{})
			go l.monitor(session, resp.Header.Revision, lost)
			return lost, nil
		}

		// Someone else holds the key; wait for it to disappear.
		if err := l.waitRelease(ctx, session, resp.Header.Revision+1); err != nil {
			return nil, err
		}
	}
}

// ensureSession returns the current session, creating a fresh one when none
// exists or the previous lease has expired.
func (l *Lock) ensureSession(ctx context.Context) (*concurrency.Session, error) {
	if l.session != nil {
		select {
		case <-l.session.Done():
			l.session = nil
		default:
			return l.session, nil
		}
	}

	session, err := concurrency.NewSession(l.client.etcd,
		concurrency.WithTTL(l.ttl),
		concurrency.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to open coordinator session: %w", err)
	}
	l.session = session
	return session, nil
}

// waitRelease blocks until the lock key is deleted, the session dies or ctx
// is cancelled. A nil return means the caller should retry acquisition.
func (l *Lock) waitRelease(ctx context.Context, session *concurrency.Session, rev int64) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchCh := l.client.etcd.Watch(watchCtx, l.key,
		clientv3.WithRev(rev), clientv3.WithFilterPut())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-session.Done():
			// Our own lease lapsed while queueing; retry on a new session.
			l.session = nil
			return nil
		case resp, ok := <-watchCh:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return fmt.Errorf("lock watch on %s closed", l.key)
			}
			if resp.Canceled {
				if err := ctx.Err(); err != nil {
					return err
				}
				return fmt.Errorf("lock watch on %s cancelled: %w", l.key, resp.Err())
			}
			for _, ev := range resp.Events {
				if ev.Type == clientv3.EventTypeDelete {
					return nil
				}
			}
		}
	}
}

// monitor watches the held key and closes lost when leadership ends. The
// channel also fires after a voluntary release; by then the owner is no
// longer selecting on it.
func (l *Lock) monitor(session *concurrency.Session, rev int64, lost chan struct{}) {
	defer close(lost)

	watchCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchCh := l.client.etcd.Watch(watchCtx, l.key,
		clientv3.WithRev(rev+1), clientv3.WithFilterPut())

	for {
		select {
		case <-session.Done():
			return
		case resp, ok := <-watchCh:
			if !ok || resp.Canceled {
				return
			}
			for _, ev := range resp.Events {
				if ev.Type == clientv3.EventTypeDelete {
					return
				}
			}
		}
	}
}

// Release deletes the lock key if this owner still holds it. It runs on its
// own deadline so it remains usable after the shared cancellation signal.
func (l *Lock) Release() error {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	_, err := l.client.etcd.Txn(ctx).
		If(clientv3.Compare(clientv3.Value(l.key), "=", l.value)).
		Then(clientv3.OpDelete(l.key)).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}

// Close revokes the session lease, if any. The agent calls this once on
// termination, after Release.
func (l *Lock) Close() error {
	if l.session == nil {
		return nil
	}
	err := l.session.Close()
	l.session = nil
	return err
}
