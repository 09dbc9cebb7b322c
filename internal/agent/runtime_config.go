package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LiXi-storage/clownfish/internal/coordination"
	"github.com/LiXi-storage/clownfish/internal/logging"
)

// RuntimeConfig is the per-target configuration read from the coordinator
// KV store. Operators toggle autostart through the management CLI; the
// agent only ever reads it.
type RuntimeConfig struct {
	AutostartEnabled bool `yaml:"autostart"`
}

// ConfigSlot is the single-writer, single-reader slot holding the current
// runtime config. The watcher publishes whole replacement values; the
// supervisory loop loads a snapshot per tick.
type ConfigSlot struct {
	ptr atomic.Pointer[RuntimeConfig]
}

// NewConfigSlot creates a slot holding the default configuration, with
// autostart disabled.
func NewConfigSlot() *ConfigSlot {
	slot := new(ConfigSlot)
	slot.ptr.Store(&RuntimeConfig{})
	return slot
}

// Load returns a snapshot of the current configuration.
func (s *ConfigSlot) Load() RuntimeConfig {
	return *s.ptr.Load()
}

func (s *ConfigSlot) publish(cfg RuntimeConfig) {
	s.ptr.Store(&cfg)
}

// ConfigWatcher keeps a ConfigSlot in sync with a coordinator key. Malformed
// values are logged and discarded, keeping the last good value; a deleted
// key also keeps the current value, so a transient removal cannot flip
// autostart on a running leader.
type ConfigWatcher struct {
	coord  *coordination.Client
	key    string
	slot   *ConfigSlot
	logger *logging.Logger
	retry  time.Duration
}

// NewConfigWatcher creates a watcher publishing into slot. retry is the
// backoff used when the watch stream drops.
func NewConfigWatcher(coord *coordination.Client, key string, slot *ConfigSlot,
	logger *logging.Logger, retry time.Duration) *ConfigWatcher {
	return &ConfigWatcher{
		coord:  coord,
		key:    key,
		slot:   slot,
		logger: logger,
		retry:  retry,
	}
}

// Run subscribes to the key until ctx is cancelled. The caller adds to the
// WaitGroup before starting.
func (w *ConfigWatcher) Run(ctx context.Context, waitGroup *sync.WaitGroup) {
	defer waitGroup.Done()

	w.readInitial(ctx)

	for {
		updates := w.coord.WatchKey(ctx, w.key)
		for update := range updates {
			w.apply(update)
		}

		// The stream ended; back off and re-subscribe unless shutting down.
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retry):
		}
	}
}

// readInitial seeds the slot from the current key value, if any. A failed
// read is logged at debug level and not retried; the slot then keeps its
// current value until the watch delivers the next change of the key.
func (w *ConfigWatcher) readInitial(ctx context.Context) {
	value, exists, err := w.coord.GetValue(ctx, w.key)
	if err != nil {
		w.logger.Debug("failed to read initial config", "error", err, "key", w.key)
		return
	}
	if !exists {
		return
	}
	w.apply(coordination.KeyUpdate{Value: value})
}

func (w *ConfigWatcher) apply(update coordination.KeyUpdate) {
	if update.Deleted {
		return
	}

	newConf := w.slot.Load()
	if err := yaml.Unmarshal(update.Value, &newConf); err != nil {
		w.logger.Error("failed to unmarshal config", "error", err, "key", w.key)
		return
	}

	w.slot.publish(newConf)
	w.logger.Info("change of config", "enable autostart", newConf.AutostartEnabled)
}
