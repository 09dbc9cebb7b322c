package agent

import (
	"testing"
	"time"

	"go.etcd.io/etcd/client/pkg/v3/types"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/server/v3/embed"

	"github.com/LiXi-storage/clownfish/internal/coordination"
)

// setupEmbeddedEtcd starts an embedded etcd server for testing
func setupEmbeddedEtcd(t *testing.T) (*coordination.Client, *clientv3.Client, func()) {
	t.Helper()

	cfg := embed.NewConfig()
	cfg.Dir = t.TempDir()
	cfg.LogLevel = "error"

	// Use random local ports for all URLs
	cfg.ListenClientUrls, _ = types.NewURLs([]string{"http://127.0.0.1:0"})
	cfg.ListenPeerUrls, _ = types.NewURLs([]string{"http://127.0.0.1:0"})

	e, err := embed.StartEtcd(cfg)
	if err != nil {
		t.Fatalf("Failed to start embedded etcd: %v", err)
	}

	select {
	case <-e.Server.ReadyNotify():
	case <-time.After(10 * time.Second):
		e.Close()
		t.Fatal("Etcd server took too long to start")
	}

	endpoints := []string{}
	for _, listener := range e.Clients {
		endpoints = append(endpoints, "http://"+listener.Addr().String())
	}

	etcd, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		e.Close()
		t.Fatalf("Failed to create etcd client: %v", err)
	}

	cleanup := func() {
		_ = etcd.Close()
		e.Close()
	}

	return coordination.NewClientWithEtcd(etcd), etcd, cleanup
}
