package endpoints

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"callbridge/pkg/utils"
)

type MemoryStore struct {
	mu     sync.RWMutex
	byUser map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUser: map[string]string{}}
}

func (s *MemoryStore) Put(ctx context.Context, userID, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[userID] = endpoint
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.byUser[userID]
	return ep, ok, nil
}

type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: keyPrefix}
}

func (s *RedisStore) key(userID string) string { return s.prefix + "endpoint:" + userID }

func (s *RedisStore) Put(ctx context.Context, userID, endpoint string) error {
	return s.rdb.Set(ctx, s.key(userID), endpoint, 0).Err()
}

func (s *RedisStore) Get(ctx context.Context, userID string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

const (
	upsertEndpoint = `INSERT INTO push_endpoints (user_id, endpoint, updated_at) VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE SET endpoint = EXCLUDED.endpoint, updated_at = EXCLUDED.updated_at`
	selectEndpoint = `SELECT endpoint FROM push_endpoints WHERE user_id = $1`
)

type PostgresStore struct {
	db utils.PgxDB
}

func NewPostgresStore(db utils.PgxDB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, userID, endpoint string) error {
	_, err := s.db.Exec(ctx, upsertEndpoint, userID, endpoint)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (string, bool, error) {
	var ep string
	err := s.db.QueryRow(ctx, selectEndpoint, userID).Scan(&ep)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ep, true, nil
}
