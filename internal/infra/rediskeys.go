package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "payops"
)

// Ключи для Sets (состояние)
const (
	// RedisKeyWatchlist — мерчанты под ручным ревью (источник правды)
	RedisKeyWatchlist = RedisNamespace + ":merchants:watchlist_set"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanWatchlist — сигналы "merchant_id:true/false" для синхронизации L1
	RedisChanWatchlist = RedisNamespace + ":merchants:watchlist-signal"
)

// ThreadKey — ключ истории диалога одного треда расследования
func ThreadKey(threadID string) string {
	return RedisNamespace + ":threads:" + threadID
}
