package user

import (
	"context"

	"promptmarket/internal/middleware"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// TrackSession records sid under the user's session set.
func TrackSession(ctx context.Context, rdb *redis.Client, userID, sid string) {
	if rdb == nil || sid == "" {
		return
	}
	key := middleware.UserSessionsPrefix + userID
	pipe := rdb.TxPipeline()
	pipe.SAdd(ctx, key, sid)
	pipe.Expire(ctx, key, middleware.SessionMaxAge)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("track session")
	}
}

// ForgetSession removes sid from the user's session set.
func ForgetSession(ctx context.Context, rdb *redis.Client, userID, sid string) {
	if rdb == nil || sid == "" {
		return
	}
	rdb.SRem(ctx, middleware.UserSessionsPrefix+userID, sid)
}

// DestroyUserSessions deletes every session recorded for userID.
func DestroyUserSessions(ctx context.Context, rdb *redis.Client, userID string) {
	if rdb == nil {
		return
	}
	key := middleware.UserSessionsPrefix + userID
	sids, err := rdb.SMembers(ctx, key).Result()
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("list user sessions")
		return
	}
	keys := make([]string, 0, len(sids)+1)
	for _, sid := range sids {
		keys = append(keys, middleware.SessionRedisPrefix+sid)
	}
	keys = append(keys, key)
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("destroy user sessions")
	}
}
