package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/yeremiapane/roomturn/messaging"
	"github.com/yeremiapane/roomturn/utils"
)

// ProfileFetcher loads a chat profile from the platform.
type ProfileFetcher interface {
	GetProfile(ctx context.Context, userID string) (*messaging.Profile, error)
}

// ProfileCache fronts profile lookups with redis. Without a redis client it only fetches.
type ProfileCache struct {
	rdb     *redis.Client
	fetcher ProfileFetcher
	ttl     time.Duration
}

func NewProfileCache(rdb *redis.Client, fetcher ProfileFetcher, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &ProfileCache{rdb: rdb, fetcher: fetcher, ttl: ttl}
}

func profileKey(userID string) string {
	return "roomturn:profile:" + userID
}

// Lookup returns the cached profile or fetches and caches it. Cache errors are logged and
// never fail the lookup.
func (pc *ProfileCache) Lookup(ctx context.Context, userID string) (*messaging.Profile, error) {
	if pc.rdb != nil {
		raw, err := pc.rdb.Get(ctx, profileKey(userID)).Bytes()
		switch {
		case err == nil:
			var p messaging.Profile
			if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
				return &p, nil
			}
		case !errors.Is(err, redis.Nil):
			utils.ErrorLogger.WithError(err).Warn("profile cache read failed")
		}
	}

	profile, err := pc.fetcher.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if pc.rdb != nil {
		if raw, err := json.Marshal(profile); err == nil {
			if err := pc.rdb.Set(ctx, profileKey(userID), raw, pc.ttl).Err(); err != nil {
				utils.ErrorLogger.WithError(err).Warn("profile cache write failed")
			}
		}
	}
	return profile, nil
}
