package directory

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"strconv"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "test:"), mr
}

func TestRedisStore_Claim(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	n, created, err := s.Claim(ctx, "user_a", "2000")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "2000", n)

	// Same user, different candidate: keeps the first number.
	n, created, err = s.Claim(ctx, "user_a", "2001")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "2000", n)

	_, _, err = s.Claim(ctx, "user_b", "2000")
	assert.ErrorIs(t, err, ErrNumberTaken)

	got, _ := mr.Get("test:directory:number:2000")
	assert.Equal(t, "user_a", got)
	assert.False(t, mr.Exists("test:directory:user:user_b"))
}

func TestRedisStore_Lookups(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	_, ok, err := s.NumberFor(ctx, "user_x")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = s.Claim(ctx, "user_x", "3141")
	require.NoError(t, err)

	n, ok, err := s.NumberFor(ctx, "user_x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3141", n)

	u, ok, err := s.UserFor(ctx, "3141")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user_x", u)
}

func TestRedisStore_DirectoryConcurrent(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)
	d := New(s, nil)

	const users = 40
	got := make([]string, users)
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := d.AssignOrGet(ctx, UserIDFor(strconv.Itoa(i)))
			if err != nil {
				t.Errorf("assign: %v", err)
				return
			}
			got[i] = n
		}(i)
	}
	wg.Wait()

	distinct := map[string]bool{}
	for _, n := range got {
		distinct[n] = true
	}
	assert.Len(t, distinct, users)
}

func TestRedisStore_Unavailable(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Close()

	d := New(s, rand.New(rand.NewSource(1)))
	_, err := d.AssignOrGet(context.Background(), "user_y")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrExhaustedRange))
}

func TestPostgresStore_ClaimInserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(insertEntry)).
		WithArgs("user_a", "4242").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, created, err := NewPostgresStore(mock).Claim(context.Background(), "user_a", "4242")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "4242", n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClaimConflictExistingUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(insertEntry)).
		WithArgs("user_a", "4243").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectNumberByUser)).
		WithArgs("user_a").
		WillReturnRows(mock.NewRows([]string{"phone_number"}).AddRow("4242"))

	n, created, err := NewPostgresStore(mock).Claim(context.Background(), "user_a", "4243")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "4242", n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClaimConflictNumberTaken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(insertEntry)).
		WithArgs("user_b", "4242").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectNumberByUser)).
		WithArgs("user_b").
		WillReturnError(pgx.ErrNoRows)

	_, _, err = NewPostgresStore(mock).Claim(context.Background(), "user_b", "4242")
	assert.ErrorIs(t, err, ErrNumberTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UserFor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectUserByNumber)).
		WithArgs("4242").
		WillReturnRows(mock.NewRows([]string{"user_id"}).AddRow("user_a"))
	mock.ExpectQuery(regexp.QuoteMeta(selectUserByNumber)).
		WithArgs("5555").
		WillReturnError(pgx.ErrNoRows)

	s := NewPostgresStore(mock)
	u, ok, err := s.UserFor(context.Background(), "4242")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user_a", u)

	_, ok, err = s.UserFor(context.Background(), "5555")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
