package endpoints

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var ErrInvalidArgument = errors.New("endpoints: invalid argument")

// Store maps a user to their most recently registered push endpoint.
type Store interface {
	Put(ctx context.Context, userID, endpoint string) error
	Get(ctx context.Context, userID string) (string, bool, error)
}

// Registry records where each user can be reached with a call invitation.
// Registration overwrites. Endpoints are never validated against the push provider.
type Registry struct {
	Store Store
	Log   *slog.Logger
}

func NewRegistry(store Store) *Registry {
	return &Registry{Store: store}
}

func (r *Registry) Register(ctx context.Context, userID, endpoint string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(endpoint) == "" {
		return ErrInvalidArgument
	}
	if err := r.Store.Put(ctx, userID, endpoint); err != nil {
		return fmt.Errorf("endpoints: register: %w", err)
	}
	r.logger().Info("push endpoint registered", "user_id", userID)
	return nil
}

// Lookup returns the user's endpoint. A user who never registered is not an error.
func (r *Registry) Lookup(ctx context.Context, userID string) (string, bool, error) {
	if userID == "" {
		return "", false, nil
	}
	ep, ok, err := r.Store.Get(ctx, userID)
	if err != nil {
		return "", false, fmt.Errorf("endpoints: lookup: %w", err)
	}
	return ep, ok, nil
}

func (r *Registry) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}
