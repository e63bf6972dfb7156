// Package kv is the key/value port used to persist connection resume keys,
// so a restarted process can replay the key and reclaim its sessions on the
// node before the resume timeout elapses.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

type PutOptions struct {
	// TTL expires the entry; zero keeps it until deleted.
	TTL time.Duration
}

type Store interface {
	Put(ctx context.Context, key string, value []byte, opts PutOptions) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// PutJSON stores v as JSON.
func PutJSON[T any](ctx context.Context, s Store, key string, v T, opts PutOptions) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(ctx, key, data, opts)
}

func GetJSON[T any](ctx context.Context, s Store, key string) (out T, err error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}
