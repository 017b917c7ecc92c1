package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"teambot/entity"
	"teambot/errs"
	"teambot/log"
)

// RedisStore keeps the JSON snapshot under one key and commits inside a
// WATCH/MULTI transaction, retrying when another writer got there first.
type RedisStore struct {
	rdb *redis.Client
	key string
}

func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	return &RedisStore{rdb: rdb, key: key}
}

func (st *RedisStore) Read(ctx context.Context) (*entity.Snapshot, error) {
	return st.get(ctx, st.rdb)
}

func (st *RedisStore) Transact(ctx context.Context, fn TxFunc) error {
	var rejected error
	txf := func(tx *redis.Tx) error {
		rejected = nil
		s, err := st.get(ctx, tx)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			rejected = err
			return nil
		}
		b, err := encode(s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, st.key, b, 0)
			return nil
		})
		return err
	}

	for round := 0; round < maxConflictRounds; round++ {
		err := st.rdb.Watch(ctx, txf, st.key)
		if errors.Is(err, redis.TxFailedErr) {
			log.Logger.Debug("team key changed, retrying", zap.String("key", st.key), zap.Int("round", round))
			continue
		}
		if err != nil {
			if errors.Is(err, errs.ErrStoreIO) {
				return err
			}
			return fmt.Errorf("%w: redis transaction: %v", errs.ErrStoreIO, err)
		}
		return rejected
	}
	return errs.ErrStoreConflict
}

func (st *RedisStore) Close(context.Context) error {
	return st.rdb.Close()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (st *RedisStore) get(ctx context.Context, g getter) (*entity.Snapshot, error) {
	b, err := g.Get(ctx, st.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return entity.NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", errs.ErrStoreIO, st.key, err)
	}
	return decode(b)
}
