package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LiXi-storage/clownfish/internal/logging"
)

func TestConfigSlotDefaults(t *testing.T) {
	slot := NewConfigSlot()
	assert.False(t, slot.Load().AutostartEnabled)
}

func TestConfigWatcher(t *testing.T) {
	coord, etcd, cleanup := setupEmbeddedEtcd(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	key := "clownfish/services/lustre0-OST000a/config"
	slot := NewConfigSlot()
	watcher := NewConfigWatcher(coord, key, slot, logging.NewDevelopment(), 100*time.Millisecond)

	var waitGroup sync.WaitGroup
	waitGroup.Add(1)
	go watcher.Run(ctx, &waitGroup)

	// Default until a value arrives.
	assert.False(t, slot.Load().AutostartEnabled)

	_, err := etcd.Put(ctx, key, "autostart: true\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return slot.Load().AutostartEnabled
	}, 10*time.Second, 20*time.Millisecond)

	// Malformed YAML is discarded; the last good value remains.
	_, err = etcd.Put(ctx, key, ": not yaml {{{")
	require.NoError(t, err)
	time.Sleep(300 * time.Millisecond)
	assert.True(t, slot.Load().AutostartEnabled)

	// Deletion keeps the current value as well.
	_, err = etcd.Delete(ctx, key)
	require.NoError(t, err)
	time.Sleep(300 * time.Millisecond)
	assert.True(t, slot.Load().AutostartEnabled)

	_, err = etcd.Put(ctx, key, "autostart: false\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return !slot.Load().AutostartEnabled
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	waitGroup.Wait()
}

func TestConfigWatcherInitialRead(t *testing.T) {
	coord, etcd, cleanup := setupEmbeddedEtcd(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	key := "clownfish/hosts/server03/config"
	_, err := etcd.Put(ctx, key, "autostart: true\n")
	require.NoError(t, err)

	slot := NewConfigSlot()
	watcher := NewConfigWatcher(coord, key, slot, logging.NewDevelopment(), 100*time.Millisecond)

	var waitGroup sync.WaitGroup
	waitGroup.Add(1)
	go watcher.Run(ctx, &waitGroup)

	// The value present before subscription is picked up by the initial
	// read, without requiring a later change event.
	require.Eventually(t, func() bool {
		return slot.Load().AutostartEnabled
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	waitGroup.Wait()
}
