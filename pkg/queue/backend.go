package queue

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var errEmpty = errors.New("queue: empty")

// backend is the storage the queue needs: a FIFO list plus a time-ordered retry set.
type backend interface {
	Ping(ctx context.Context) error
	Push(ctx context.Context, list string, data []byte) error
	Pop(ctx context.Context, list string, timeout time.Duration) ([]byte, error)
	Schedule(ctx context.Context, set string, data []byte, at time.Time) error
	PromoteDue(ctx context.Context, set, list string, now time.Time) (int, error)
}

type redisBackend struct {
	client *redis.Client
}

func (b redisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b redisBackend) Push(ctx context.Context, list string, data []byte) error {
	return b.client.LPush(ctx, list, data).Err()
}

func (b redisBackend) Pop(ctx context.Context, list string, timeout time.Duration) ([]byte, error) {
	res, err := b.client.BRPop(ctx, timeout, list).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errEmpty
		}
		return nil, err
	}
	if len(res) < 2 {
		return nil, errEmpty
	}
	return []byte(res[1]), nil
}

func (b redisBackend) Schedule(ctx context.Context, set string, data []byte, at time.Time) error {
	return b.client.ZAdd(ctx, set, redis.Z{Score: float64(at.Unix()), Member: data}).Err()
}

func (b redisBackend) PromoteDue(ctx context.Context, set, list string, now time.Time) (int, error) {
	due, err := b.client.ZRangeByScore(ctx, set, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, member := range due {
		pipe := b.client.TxPipeline()
		pipe.ZRem(ctx, set, member)
		pipe.LPush(ctx, list, member)
		if _, err := pipe.Exec(ctx); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
