package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/payops-agent-gateway/internal/infra"
	"go.uber.org/zap"
)

// RedisStore хранит историю треда как Redis-список JSON-реплик с TTL.
// Память переживает рестарт инстанса и шарится между репликами сервиса.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	cap    int64
	logger *zap.Logger
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		rdb:    rdb,
		ttl:    ttl,
		cap:    50,
		logger: logger.Named("thread-memory"),
	}
}

func (s *RedisStore) AppendTurn(ctx context.Context, threadID string, turn Turn) error {
	raw, err := json.Marshal(turn)
	if err != nil {
		return err
	}

	key := infra.ThreadKey(threadID)

	// Пайплайн: добавить, подрезать хвост, продлить TTL
	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, -s.cap, -1)
	pipe.Expire(ctx, key, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) History(ctx context.Context, threadID string, limit int) ([]Turn, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}

	raws, err := s.rdb.LRange(ctx, infra.ThreadKey(threadID), start, -1).Result()
	if err != nil {
		return nil, err
	}

	turns := make([]Turn, 0, len(raws))
	for _, raw := range raws {
		var t Turn
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			s.logger.Warn("skipping malformed turn", zap.String("thread_id", threadID), zap.Error(err))
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}
