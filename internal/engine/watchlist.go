package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/payops-agent-gateway/internal/infra"
	"go.uber.org/zap"
)

func normalize(id string) string { return strings.ToLower(id) }

// Watchlist — операционный список мерчантов под ручным ревью.
// L1 (RAM) для Hot Path + Redis Set как источник правды между инстансами;
// синхронизация через Pub/Sub. Флаг только аннотирует результаты
// расследования и след аудита — на триггеры и маршрутизацию эскалаций
// он не влияет.
type Watchlist struct {
	mu      sync.RWMutex
	watched map[string]struct{} // lower-case merchant_id
	rdb     *redis.Client
	logger  *zap.Logger
}

func NewWatchlist(rdb *redis.Client, logger *zap.Logger) *Watchlist {
	return &Watchlist{
		watched: make(map[string]struct{}),
		rdb:     rdb,
		logger:  logger.Named("watchlist"),
	}
}

// Init загружает текущее состояние списка при старте сервиса
func (w *Watchlist) Init(ctx context.Context) error {
	ids, err := w.rdb.SMembers(ctx, infra.RedisKeyWatchlist).Result()
	if err != nil {
		return err
	}

	w.replace(ids)
	w.logger.Info("watchlist warmed up", zap.Int("count", len(ids)))
	return nil
}

// StartListener подписывается на сигналы и держит L1 в актуальном состоянии
func (w *Watchlist) StartListener(ctx context.Context) {
	ListenStateResilient(ctx, w.rdb, w.logger, infra.RedisChanWatchlist,
		func() error {
			// Полная ресинхронизация при (пере)подключении
			return w.Init(ctx)
		},
		func(id string, on bool) {
			w.mu.Lock()
			if on {
				w.watched[normalize(id)] = struct{}{}
			} else {
				delete(w.watched, normalize(id))
			}
			w.mu.Unlock()
			w.logger.Info("watchlist signal applied", zap.String("merchant_id", id), zap.Bool("watched", on))
		},
	)
}

// IsWatched — проверка только по RAM, Redis на Hot Path не трогаем
func (w *Watchlist) IsWatched(merchantID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.watched[normalize(merchantID)]
	return ok
}

// Flag ставит мерчанта под ревью: и Redis (правда), и сигнал остальным инстансам.
// Ждем оба действия — иначе инстансы разъезжаются по состоянию.
func (w *Watchlist) Flag(ctx context.Context, merchantID string) error {
	id := normalize(merchantID)
	if err := w.rdb.SAdd(ctx, infra.RedisKeyWatchlist, id).Err(); err != nil {
		return err
	}
	w.mu.Lock()
	w.watched[id] = struct{}{}
	w.mu.Unlock()
	return w.rdb.Publish(ctx, infra.RedisChanWatchlist, id+":true").Err()
}

// Unflag снимает мерчанта с ревью
func (w *Watchlist) Unflag(ctx context.Context, merchantID string) error {
	id := normalize(merchantID)
	if err := w.rdb.SRem(ctx, infra.RedisKeyWatchlist, id).Err(); err != nil {
		return err
	}
	w.mu.Lock()
	delete(w.watched, id)
	w.mu.Unlock()
	return w.rdb.Publish(ctx, infra.RedisChanWatchlist, id+":false").Err()
}

func (w *Watchlist) replace(ids []string) {
	fresh := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		fresh[normalize(id)] = struct{}{}
	}
	w.mu.Lock()
	w.watched = fresh
	w.mu.Unlock()
}
