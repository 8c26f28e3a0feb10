package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yangshenhuai/skid-homework/config"
)

// Redis stores each record as a JSON string and keeps an id index in a
// sorted set scored by createdAt.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "skidhw"
	}
	return &Redis{client: client, prefix: prefix}
}

// DialRedis connects using the redis config section and pings the server
func DialRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedis(client, cfg.Prefix), nil
}

func (r *Redis) recordKey(id string) string { return r.prefix + ":record:" + id }
func (r *Redis) indexKey() string          { return r.prefix + ":records" }

func (r *Redis) Create(ctx context.Context, rec Record) error {
	return r.BulkCreate(ctx, []Record{rec})
}

func (r *Redis) BulkCreate(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	pipe := r.client.TxPipeline()
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
		}
		pipe.Set(ctx, r.recordKey(rec.ID), data, 0)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(rec.CreatedAt), Member: rec.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create records: %w", err)
	}
	return nil
}

func (r *Redis) Update(ctx context.Context, id string, patch Patch) error {
	key := r.recordKey(id)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to decode record %s: %w", id, err)
		}
		patch.Apply(&rec)
		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to update record %s: %w", id, err)
	}
	return err
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.recordKey(id))
	pipe.ZRem(ctx, r.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list record ids: %w", err)
	}
	pipe := r.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, r.recordKey(id))
	}
	pipe.Del(ctx, r.indexKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

func (r *Redis) ClearSolutions(ctx context.Context) error {
	recs, err := r.List(ctx)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	for _, rec := range recs {
		if rec.Solution == nil {
			continue
		}
		rec.Solution = nil
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		pipe.Set(ctx, r.recordKey(rec.ID), data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear solutions: %w", err)
	}
	return nil
}

func (r *Redis) List(ctx context.Context) ([]Record, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list record ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	out := make([]Record, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			// index entry without a record
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", ids[i], err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
