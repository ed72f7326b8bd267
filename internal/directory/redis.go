package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// claimScript binds a number to a user atomically.
var claimScript = redis.NewScript(`
-- KEYS[1] = user key
-- KEYS[2] = number key
-- ARGV[1] = user id
-- ARGV[2] = number
--
-- Returns:
--  {number, 1} when the number was bound now
--  {existing, 0} when the user already had a number
--  nil when the number belongs to someone else
local existing = redis.call('GET', KEYS[1])
if existing then
  return {existing, 0}
end
if redis.call('SETNX', KEYS[2], ARGV[1]) == 0 then
  return false
end
redis.call('SET', KEYS[1], ARGV[2])
return {ARGV[2], 1}
`)

// RedisStore shares the directory between service instances.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: keyPrefix}
}

func (s *RedisStore) userKey(userID string) string   { return s.prefix + "directory:user:" + userID }
func (s *RedisStore) numberKey(number string) string { return s.prefix + "directory:number:" + number }

func (s *RedisStore) NumberFor(ctx context.Context, userID string) (string, bool, error) {
	return s.get(ctx, s.userKey(userID))
}

func (s *RedisStore) UserFor(ctx context.Context, number string) (string, bool, error) {
	return s.get(ctx, s.numberKey(number))
}

func (s *RedisStore) Claim(ctx context.Context, userID, number string) (string, bool, error) {
	res, err := claimScript.Run(ctx, s.rdb, []string{s.userKey(userID), s.numberKey(number)}, userID, number).Slice()
	if errors.Is(err, redis.Nil) {
		return "", false, ErrNumberTaken
	}
	if err != nil {
		return "", false, err
	}
	if len(res) != 2 {
		return "", false, fmt.Errorf("unexpected claim reply: %v", res)
	}
	assigned, ok := res[0].(string)
	if !ok {
		return "", false, fmt.Errorf("unexpected claim reply: %v", res)
	}
	created, _ := res[1].(int64)
	return assigned, created == 1, nil
}

func (s *RedisStore) get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
