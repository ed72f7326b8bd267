package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"callbridge/internal/metrics"
)

// Number plan.
//
// AgentNumber is permanently reserved for the automated agent. It is outside the
// allocatable range and is never handed to a user.
const (
	AgentNumber = "100"

	MinNumber = 1001
	MaxNumber = 9999

	rangeSize = MaxNumber - MinNumber + 1

	defaultMaxDraws = 64

	userIDPrefix = "user_"
)

var (
	ErrInvalidArgument = errors.New("directory: invalid argument")
	ErrExhaustedRange  = errors.New("directory: phone number range exhausted")

	// ErrNumberTaken is returned by Store.Claim when the number belongs to another user.
	ErrNumberTaken = errors.New("directory: number already allocated")
)

// Store persists the user <-> number mapping.
//
// Claim is the only mutating operation and must be atomic: it binds number to
// userID only if the user has no number yet and the number is unallocated.
// If the user already holds a number, that number is returned with created=false.
// If the number belongs to someone else, Claim returns ErrNumberTaken.
type Store interface {
	NumberFor(ctx context.Context, userID string) (string, bool, error)
	UserFor(ctx context.Context, number string) (string, bool, error)
	Claim(ctx context.Context, userID, number string) (assigned string, created bool, err error)
}

// Rand is the randomness the allocator draws candidates from.
// *math/rand.Rand satisfies it; tests inject deterministic sequences.
// Directory serializes its own calls, so implementations need not be safe
// for concurrent use.
type Rand interface {
	Intn(n int) int
}

// AuditLogger records number assignments. Best-effort.
type AuditLogger interface {
	LogNumberAssigned(ctx context.Context, userID, number string) error
}

type Directory struct {
	Store Store
	RNG   Rand
	Audit AuditLogger
	Log   *slog.Logger

	// MaxDraws bounds the random sampling phase before the allocator falls back
	// to a single sweep of the range.
	MaxDraws int

	rngMu sync.Mutex
}

func New(store Store, rng Rand) *Directory {
	return &Directory{Store: store, RNG: rng, MaxDraws: defaultMaxDraws}
}

// UserIDFor derives the user identity for a login name.
func UserIDFor(username string) string {
	return userIDPrefix + username
}

// AssignOrGet returns the user's number, allocating one on first use.
func (d *Directory) AssignOrGet(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrInvalidArgument
	}
	if d.Store == nil {
		return "", errors.New("directory: store not configured")
	}

	n, ok, err := d.Store.NumberFor(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("directory: lookup user: %w", err)
	}
	if ok {
		return n, nil
	}

	draws := d.MaxDraws
	if draws <= 0 {
		draws = defaultMaxDraws
	}

	for i := 0; i < draws; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := d.claim(ctx, userID, numberAt(d.draw(rangeSize)))
		if errors.Is(err, ErrNumberTaken) {
			continue
		}
		return n, err
	}

	// Dense range: sweep once from a random offset so the result does not
	// depend on luck. Exhaustion is only reported after every number was seen taken.
	start := d.draw(rangeSize)
	for i := 0; i < rangeSize; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := numberAt((start + i) % rangeSize)
		_, taken, err := d.Store.UserFor(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("directory: lookup number: %w", err)
		}
		if taken {
			continue
		}
		n, err := d.claim(ctx, userID, candidate)
		if errors.Is(err, ErrNumberTaken) {
			continue
		}
		return n, err
	}

	d.logger().Error("phone number range exhausted", "user_id", userID)
	return "", ErrExhaustedRange
}

// Resolve returns the user holding number. Unknown numbers are not an error.
func (d *Directory) Resolve(ctx context.Context, number string) (string, bool, error) {
	number = strings.TrimSpace(number)
	if number == "" || number == AgentNumber {
		return "", false, nil
	}
	if d.Store == nil {
		return "", false, errors.New("directory: store not configured")
	}
	u, ok, err := d.Store.UserFor(ctx, number)
	if err != nil {
		return "", false, fmt.Errorf("directory: resolve: %w", err)
	}
	return u, ok, nil
}

func (d *Directory) claim(ctx context.Context, userID, candidate string) (string, error) {
	n, created, err := d.Store.Claim(ctx, userID, candidate)
	if err != nil {
		if errors.Is(err, ErrNumberTaken) {
			return "", err
		}
		return "", fmt.Errorf("directory: claim: %w", err)
	}
	if created {
		metrics.NumbersAssigned.Inc()
		d.logger().Info("phone number assigned", "user_id", userID, "phone_number", n)
		if d.Audit != nil {
			if err := d.Audit.LogNumberAssigned(ctx, userID, n); err != nil {
				d.logger().Warn("audit number assignment failed", "err", err)
			}
		}
	}
	return n, nil
}

// draw returns an offset in [0, n) from the injected source.
func (d *Directory) draw(n int) int {
	if d.RNG == nil {
		return sharedRand{}.Intn(n)
	}
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return d.RNG.Intn(n)
}

func (d *Directory) logger() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

func numberAt(offset int) string {
	return strconv.Itoa(MinNumber + offset)
}

// ValidNumber reports whether s is an allocatable user number.
func ValidNumber(s string) bool {
	if len(s) != 4 {
		return false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return n >= MinNumber && n <= MaxNumber
}

// sharedRand uses the package-level math/rand source, which is safe for concurrent use.
type sharedRand struct{}

func (sharedRand) Intn(n int) int { return rand.Intn(n) }
