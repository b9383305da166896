package discord

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/roomkeeper/internal/model"
)

// Fetcher は表示メタデータ取得の下位インターフェース。
type Fetcher interface {
	FetchUserInfo(ctx context.Context, discordID string) (*model.UserInfo, error)
}

// cacheKeyPrefix はRedisキーの名前空間。
const cacheKeyPrefix = "roomkeeper:user_info:"

// CachedFetcher は表示メタデータをTTL付きでキャッシュするFetcher。
// Redisが設定されていればRedisを、なければプロセス内メモリを使う。
// キャッシュの読み書きに失敗しても取得自体は下位Fetcherで継続する。
type CachedFetcher struct {
	fetcher Fetcher
	rdb     *redis.Client
	logger  *slog.Logger
	ttl     time.Duration

	mu    sync.Mutex
	local map[string]localEntry
}

type localEntry struct {
	info      model.UserInfo
	expiresAt time.Time
}

// NewCachedFetcher はCachedFetcherの新しいインスタンスを生成する。
// rdbはnilを許容する（その場合はメモリキャッシュのみ）。
func NewCachedFetcher(fetcher Fetcher, rdb *redis.Client, logger *slog.Logger, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		fetcher: fetcher,
		rdb:     rdb,
		logger:  logger,
		ttl:     ttl,
		local:   make(map[string]localEntry),
	}
}

// FetchUserInfo はキャッシュを引き、ミス時のみ下位Fetcherで取得してキャッシュする。
func (c *CachedFetcher) FetchUserInfo(ctx context.Context, discordID string) (*model.UserInfo, error) {
	if info := c.get(ctx, discordID); info != nil {
		return info, nil
	}

	info, err := c.fetcher.FetchUserInfo(ctx, discordID)
	if err != nil {
		return nil, err
	}

	c.set(ctx, discordID, *info)
	return info, nil
}

func (c *CachedFetcher) get(ctx context.Context, discordID string) *model.UserInfo {
	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, cacheKeyPrefix+discordID).Bytes()
		if err == nil {
			var info model.UserInfo
			if err := json.Unmarshal(data, &info); err == nil {
				return &info
			}
		} else if err != redis.Nil {
			c.logger.Warn("Redisキャッシュの読み取りに失敗しました",
				slog.String("discord_id", discordID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.local[discordID]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(c.local, discordID)
		return nil
	}
	info := entry.info
	return &info
}

func (c *CachedFetcher) set(ctx context.Context, discordID string, info model.UserInfo) {
	if c.rdb != nil {
		data, err := json.Marshal(info)
		if err != nil {
			return
		}
		if err := c.rdb.Set(ctx, cacheKeyPrefix+discordID, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Redisキャッシュの書き込みに失敗しました",
				slog.String("discord_id", discordID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[discordID] = localEntry{info: info, expiresAt: time.Now().Add(c.ttl)}
}
