package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"callbridge/pkg/utils"
)

// PostgresStore persists the directory in the directory_entries table.
// user_id is the primary key and phone_number is unique, so the constraints
// enforce the one-to-one mapping.
type PostgresStore struct {
	db utils.PgxDB
}

func NewPostgresStore(db utils.PgxDB) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	selectNumberByUser = `SELECT phone_number FROM directory_entries WHERE user_id = $1`
	selectUserByNumber = `SELECT user_id FROM directory_entries WHERE phone_number = $1`
	insertEntry        = `INSERT INTO directory_entries (user_id, phone_number, created_at) VALUES ($1, $2, now()) ON CONFLICT DO NOTHING`
)

func (s *PostgresStore) NumberFor(ctx context.Context, userID string) (string, bool, error) {
	return s.queryOne(ctx, selectNumberByUser, userID)
}

func (s *PostgresStore) UserFor(ctx context.Context, number string) (string, bool, error) {
	return s.queryOne(ctx, selectUserByNumber, number)
}

func (s *PostgresStore) Claim(ctx context.Context, userID, number string) (string, bool, error) {
	tag, err := s.db.Exec(ctx, insertEntry, userID, number)
	if err != nil {
		return "", false, err
	}
	if tag.RowsAffected() == 1 {
		return number, true, nil
	}

	// Conflict: either the user raced us to a number or the number is taken.
	existing, ok, err := s.NumberFor(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if ok {
		return existing, false, nil
	}
	return "", false, ErrNumberTaken
}

func (s *PostgresStore) queryOne(ctx context.Context, q, arg string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(ctx, q, arg).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
