package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/wager-marketplace/pkg/contracts/events"
	"github.com/radieske/wager-marketplace/pkg/contracts/topics"
)

// setIfNewer só sobrescreve o snapshot quando a version recebida não é menor que a gravada.
// A version vem do estado commitado; o relógio de quem publicou não entra na decisão.
// KEYS[1]=chave ARGV[1]=json ARGV[2]=version ARGV[3]=ttl em ms
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, snap = pcall(cjson.decode, cur)
  if ok and type(snap) == 'table' and tonumber(snap.version) and tonumber(snap.version) > tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// RedisCache guarda o último snapshot de cada aposta e conta no Redis
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

func BetKey(betID int64) string { return topics.BetSnapshotKey(strconv.FormatInt(betID, 10)) }

func AccountKey(agentID string) string { return topics.AccountSnapshotKey(agentID) }

// SetBet grava o snapshot da aposta; eventos atrasados não sobrescrevem um estado mais novo
func (r *RedisCache) SetBet(ctx context.Context, e events.BetEvent) (bool, error) {
	return r.set(ctx, BetKey(e.BetID), e, e.Version)
}

func (r *RedisCache) SetAccount(ctx context.Context, e events.AccountFunded) (bool, error) {
	return r.set(ctx, AccountKey(e.AgentID), e, e.Version)
}

func (r *RedisCache) set(ctx context.Context, key string, v any, version int64) (bool, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	n, err := setIfNewer.Run(ctx, r.Client, []string{key}, b, version, r.TTL.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
