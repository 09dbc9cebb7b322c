package coordination

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"go.etcd.io/etcd/client/pkg/v3/transport"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Client is a thin facade over the etcd primitives the agent needs: strongly
// consistent KV reads, session-bound advisory locks and key watches. It
// surfaces transport errors to the caller; retry policy lives with the
// agents.
type Client struct {
	etcd *clientv3.Client
}

// Options configures the coordinator connection.
type Options struct {
	Endpoints   []string
	DialTimeout time.Duration
	Username    string
	Password    string

	// TLS material; leave empty for plaintext.
	CertFile      string
	KeyFile       string
	TrustedCAFile string
}

// NewClient connects to the coordinator.
func NewClient(opts Options) (*Client, error) {
	cfg := clientv3.Config{
		Endpoints:   opts.Endpoints,
		DialTimeout: opts.DialTimeout,
		Username:    opts.Username,
		Password:    opts.Password,
	}

	if opts.TrustedCAFile != "" || opts.CertFile != "" {
		tlsConfig, err := tlsFromFiles(opts)
		if err != nil {
			return nil, err
		}
		cfg.TLS = tlsConfig
	}

	etcd, err := clientv3.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to coordinator: %w", err)
	}

	return &Client{etcd: etcd}, nil
}

// NewClientWithEtcd wraps an existing etcd client. Used by tests that run an
// embedded server.
func NewClientWithEtcd(etcd *clientv3.Client) *Client {
	return &Client{etcd: etcd}
}

func tlsFromFiles(opts Options) (*tls.Config, error) {
	tlsInfo := transport.TLSInfo{
		CertFile:      opts.CertFile,
		KeyFile:       opts.KeyFile,
		TrustedCAFile: opts.TrustedCAFile,
	}
	tlsConfig, err := tlsInfo.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build coordinator TLS config: %w", err)
	}
	return tlsConfig, nil
}

// GetLockValue reads a lock key with strong consistency. held reports
// whether the pair exists and is bound to a live session lease; value is the
// stored lock value (the holder's UUID) regardless.
func (c *Client) GetLockValue(ctx context.Context, key string) (bool, string, error) {
	resp, err := c.etcd.Get(ctx, key)
	if err != nil {
		return false, "", err
	}

	if len(resp.Kvs) == 0 {
		return false, "", nil
	}

	kv := resp.Kvs[0]
	held := kv.Lease != 0
	return held, string(kv.Value), nil
}

// GetValue reads a key, reporting whether it exists.
func (c *Client) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := c.etcd.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}

	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}

	return resp.Kvs[0].Value, true, nil
}

// KeyUpdate is one observed change of a watched key.
type KeyUpdate struct {
	Value   []byte
	Deleted bool
}

// WatchKey watches a single key and delivers every change. The returned
// channel is closed when the watch ends, either because ctx was cancelled or
// because the server side dropped it; callers re-establish with their own
// backoff.
func (c *Client) WatchKey(ctx context.Context, key string) <-chan KeyUpdate {
	updates := make(chan KeyUpdate)

	go func() {
		defer close(updates)

		watchCh := c.etcd.Watch(ctx, key)
		for resp := range watchCh {
			if resp.Canceled {
				return
			}
			for _, ev := range resp.Events {
				update := KeyUpdate{
					Value:   ev.Kv.Value,
					Deleted: ev.Type == clientv3.EventTypeDelete,
				}
				select {
				case updates <- update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return updates
}

// Close tears down the coordinator connection.
func (c *Client) Close() error {
	return c.etcd.Close()
}
