package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/LiXi-storage/clownfish/internal/coordination"
	"github.com/LiXi-storage/clownfish/internal/logging"
	"github.com/LiXi-storage/clownfish/internal/mgrcmd"
)

// SessionTTLSeconds is the coordinator session lease in seconds. It doubles
// as the retry cadence and the maintenance tick, and bounds how long a
// partitioned leader can keep acting before losing the lock.
const SessionTTLSeconds = 10

// SessionTTL is SessionTTLSeconds as a duration.
const SessionTTL = SessionTTLSeconds * time.Second

// Agent supervises one Supervisable target. It elects a leader among the
// cluster's agents for the same target, and while leading periodically
// drives the management command to keep the target available, gated on the
// runtime autostart flag.
type Agent struct {
	target  Supervisable
	coord   *coordination.Client
	runner  *mgrcmd.Runner
	logger  *logging.Logger
	uuid    string
	lock    *coordination.Lock
	slot    *ConfigSlot
	watcher *ConfigWatcher

	sessionTTL time.Duration
	ttlSeconds int

	status atomic.Value // Status
}

// New creates the agent for a target. The lock identity is a fresh random
// UUID, compared only for equality.
func New(target Supervisable, coord *coordination.Client, runner *mgrcmd.Runner,
	logger *logging.Logger) *Agent {
	return newAgent(target, coord, runner, logger, SessionTTLSeconds, SessionTTL)
}

func newAgent(target Supervisable, coord *coordination.Client, runner *mgrcmd.Runner,
	logger *logging.Logger, ttlSeconds int, sessionTTL time.Duration) *Agent {
	id := uuid.NewString()

	a := &Agent{
		target:     target,
		coord:      coord,
		runner:     runner,
		logger:     logger.With(target.LogKey(), target.Name()),
		uuid:       id,
		lock:       coord.NewLock(target.LockKey(), id, ttlSeconds),
		slot:       NewConfigSlot(),
		sessionTTL: sessionTTL,
		ttlSeconds: ttlSeconds,
	}
	a.watcher = NewConfigWatcher(coord, target.ConfigKey(), a.slot, a.logger, sessionTTL)
	a.status.Store(StatusUnknown)
	return a
}

// Target returns the supervised target.
func (a *Agent) Target() Supervisable {
	return a.target
}

// UUID returns the agent's lock identity.
func (a *Agent) UUID() string {
	return a.uuid
}

// Status returns the last observed status of the target.
func (a *Agent) Status() Status {
	return a.status.Load().(Status)
}

// Run is the agent's supervisory task. It returns once ctx is cancelled,
// with any held lock released and the coordinator session closed. The
// caller adds to the WaitGroup before starting.
func (a *Agent) Run(ctx context.Context, waitGroup *sync.WaitGroup) {
	defer waitGroup.Done()

	waitGroup.Add(1)
	go a.watcher.Run(ctx, waitGroup)

	for {
		if exiting := a.superviseOnce(ctx, waitGroup); exiting {
			if err := a.lock.Close(); err != nil {
				a.logger.Debug("failed to close coordinator session", "error", err)
			}
			return
		}
	}
}

// superviseOnce runs one leadership cycle: observe the current leader, queue
// for the lock, maintain the target while leading, release on loss or
// shutdown. It reports whether the agent is exiting.
func (a *Agent) superviseOnce(ctx context.Context, waitGroup *sync.WaitGroup) bool {
	currentLeader, exiting := a.resolveLeader(ctx)
	if exiting {
		a.logger.Info("exiting when trying to get the leader uuid")
		return true
	}

	// The current leader could be an empty string when the lock was not
	// readable for a whole TTL.
	if currentLeader != a.uuid {
		if currentLeader == "" {
			a.logger.Info("not able to get the current leader for a long time")
		} else {
			a.logger.Info("the current leader is someone else")
		}
	}

	a.logger.Info("trying to get the leadership lock")
	leaderLost := a.acquireLock(ctx)
	if leaderLost == nil {
		a.logger.Info("exiting when trying to get the leadership lock")
		return true
	}

	a.logger.Info("got the leadership lock")
	waitGroup.Add(1)
	go a.maintain(ctx, leaderLost, waitGroup)

	select {
	case <-leaderLost:
		a.logger.Info("lost the leadership")
		if err := a.lock.Release(); err != nil {
			a.logger.Error("failed to release the leadership lock", "error", err)
		}
		return false
	case <-ctx.Done():
		a.logger.Info("exiting while holding the leadership lock")
		if err := a.lock.Release(); err != nil {
			a.logger.Error("failed to release the leadership lock", "error", err)
		}
		return true
	}
}

// resolveLeader reads the lock value for observation before queueing. It
// retries for up to one session TTL, one read per second. The second return
// is true when the agent is shutting down.
func (a *Agent) resolveLeader(ctx context.Context) (string, bool) {
	lockKey := a.target.LockKey()
	for i := 0; i < a.ttlSeconds; i++ {
		held, value, err := a.coord.GetLockValue(ctx, lockKey)
		if err == nil && held {
			return value, false
		}

		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return "", true
		}
	}
	return "", false
}

// acquireLock blocks until the lock is acquired, returning the leader-lost
// channel, or nil when shutting down. Coordinator errors are retried on the
// session TTL cadence.
func (a *Agent) acquireLock(ctx context.Context) <-chan struct{} {
	for {
		leaderLost, err := a.lock.Acquire(ctx)
		if err == nil {
			return leaderLost
		}
		if ctx.Err() != nil {
			return nil
		}

		a.logger.Info("failed to acquire lock", "error", err)

		select {
		case <-time.After(a.sessionTTL):
		case <-ctx.Done():
			return nil
		}
	}
}

// maintain is the leader's periodic loop. Every session TTL, while the
// runtime config enables autostart, it drives the management command once
// and tracks the resulting status. The loop ends on leadership loss or
// shutdown; the lock itself is released by superviseOnce.
func (a *Agent) maintain(ctx context.Context, leaderLost <-chan struct{},
	waitGroup *sync.WaitGroup) {
	defer waitGroup.Done()

	kind := a.target.Kind()
	status := StatusUnknown
	a.status.Store(status)
	var autostartEnabled bool
	var oldAutostartEnabled bool
	first := true
	for {
		autostartEnabled = a.slot.Load().AutostartEnabled
		if first || oldAutostartEnabled != autostartEnabled {
			if autostartEnabled {
				a.logger.Info("autostart is enabled")
			} else {
				a.logger.Info("autostart is disabled")
			}
			first = false
		}
		oldAutostartEnabled = autostartEnabled

		if autostartEnabled {
			if status == StatusUnknown || status == a.target.FailedStatus() {
				a.logger.Info("starting " + kind)
			}

			res := a.runner.Run(a.target.ActionArgs()...)

			var newStatus Status
			if res.Err != nil {
				a.logger.Error("failed to start "+kind,
					"error", res.Err,
					"stdout", res.EscapedStdout(),
					"stderr", res.EscapedStderr(),
					"duration", res.DurationSeconds())
				newStatus = a.target.FailedStatus()
			} else {
				newStatus = a.target.OKStatus()
			}

			if status != newStatus {
				a.logger.Info("status change of "+kind,
					"old", status, "new", newStatus,
					"stdout", res.EscapedStdout(),
					"stderr", res.EscapedStderr(),
					"duration", res.DurationSeconds())
				status = newStatus
				a.status.Store(newStatus)
			} else if newStatus == a.target.OKStatus() &&
				res.Stdout != a.target.AlreadyOKMessage() {
				// A repeated success that was not a no-op: something
				// outside the agent restarted the target.
				a.logger.Info(a.target.StaleMessage(),
					"stdout", res.EscapedStdout(),
					"stderr", res.EscapedStderr(),
					"duration", res.DurationSeconds())
			}
		}

		select {
		case <-time.After(a.sessionTTL):
		case <-leaderLost:
			a.logger.Info("stopping maintenance of " + kind + " after losing the leadership")
			return
		case <-ctx.Done():
			a.logger.Error("exiting from maintaining " + kind)
			return
		}
	}
}
