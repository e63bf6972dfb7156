package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/codewandler/lava-go/ports/kv"
)

const defaultBucket = "lava_resume"

type KvConfig struct {
	Connect Connector    // Connect is used to create the underlying NATS connection. If nil, ConnectDefault() is used.
	Log     *slog.Logger // Log for diagnostics (optional)
	Bucket  string       // Bucket defaults to lava_resume
	// TTL expires every entry of the bucket. Per-put TTLs are applied on
	// top of it.
	TTL     time.Duration
	Timeout time.Duration // Timeout bounds each operation, default 5s
}

// KvStore is a kv.Store on a JetStream key/value bucket.
type KvStore struct {
	kv      jetstream.KeyValue
	closeNc closeFunc
	log     *slog.Logger
	timeout time.Duration
}

func NewKvStore(cfg KvConfig) (*KvStore, error) {
	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = defaultBucket
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	nc, closeNc, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeNc()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	store, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:         bucket,
		Storage:        jetstream.FileStorage,
		MaxBytes:       1024 * 1024,
		TTL:            cfg.TTL,
		LimitMarkerTTL: time.Second,
	})
	if err != nil {
		closeNc()
		return nil, fmt.Errorf("ensure bucket %s: %w", bucket, err)
	}

	return &KvStore{
		kv:      store,
		closeNc: closeNc,
		log:     log.With(slog.String("store", "nats_kv"), slog.String("bucket", bucket)),
		timeout: timeout,
	}, nil
}

func (k *KvStore) Put(ctx context.Context, key string, value []byte, opts kv.PutOptions) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	key = escapeKey(key)
	if opts.TTL <= 0 {
		if _, err := k.kv.Put(ctx, key, value); err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
		return nil
	}

	// per-key TTLs can only be set on create
	if err := k.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("put %s: %w", key, err)
	}
	if _, err := k.kv.Create(ctx, key, value, jetstream.KeyTTL(opts.TTL)); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (k *KvStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	key = escapeKey(key)
	v, err := k.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v.Value(), nil
}

func (k *KvStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	key = escapeKey(key)
	if err := k.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close releases the NATS connection.
func (k *KvStore) Close() {
	k.closeNc()
}

// escapeKey maps key onto the characters NATS allows in keys. Other bytes
// are written as =XX.
func escapeKey(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '/', c == '.' && i > 0 && i < len(key)-1:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "=%02X", c)
		}
	}
	return b.String()
}

var _ kv.Store = (*KvStore)(nil)
