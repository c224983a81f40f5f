package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/store"
	"studiobook/backend/internal/store/memstore"
)

const maxTxAttempts = 5

type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Repo stores each collection as one JSON array under its own key.
// Transactions WATCH all three keys and retry when another writer wins.
type Repo struct {
	client *redis.Client
	prefix string
}

func Open(ctx context.Context, cfg Config) (*Repo, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(client, cfg.KeyPrefix), nil
}

func New(client *redis.Client, prefix string) *Repo {
	return &Repo{client: client, prefix: prefix}
}

func (r *Repo) Close() error {
	return r.client.Close()
}

func (r *Repo) keys() []string {
	return []string{r.prefix + "instructors", r.prefix + "clients", r.prefix + "bookings"}
}

func (r *Repo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.StudioTx) error) error {
	keys := r.keys()
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := r.client.Watch(ctx, func(rtx *redis.Tx) error {
			snap, err := load(ctx, rtx, keys)
			if err != nil {
				return err
			}
			next, err := memstore.Apply(ctx, snap, fn)
			if err != nil {
				return err
			}
			values, err := encode(next)
			if err != nil {
				return err
			}
			_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for i, key := range keys {
					pipe.Set(ctx, key, values[i], 0)
				}
				return nil
			})
			return err
		}, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return store.ErrConflict
}

func (r *Repo) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	return load(ctx, r.client, r.keys())
}

type multiGetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

func load(ctx context.Context, c multiGetter, keys []string) (domain.Snapshot, error) {
	values, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("redis mget: %w", err)
	}
	var snap domain.Snapshot
	decodeTable(values[0], &snap.Instructors)
	decodeTable(values[1], &snap.Clients)
	decodeTable(values[2], &snap.Bookings)
	return snap, nil
}

// decodeTable leaves dst empty when the key is missing or does not hold a
// JSON array.
func decodeTable[T any](v any, dst *[]T) {
	raw, ok := v.(string)
	if !ok || raw == "" {
		return
	}
	var rows []T
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return
	}
	*dst = rows
}

func encode(snap domain.Snapshot) ([]string, error) {
	tables := []any{
		nonNil(snap.Instructors),
		nonNil(snap.Clients),
		nonNil(snap.Bookings),
	}
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		out = append(out, string(raw))
	}
	return out, nil
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
