package credentials

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Role is the media role a credential grants on a channel.
type Role int

const (
	RoleBroadcaster Role = 1
	RoleSubscriber  Role = 2
)

const DefaultTTL = time.Hour

var ErrInvalidRequest = errors.New("credentials: invalid request")

// Request describes a channel credential.
// UID 0 means the holder gets no fixed identity on the channel.
type Request struct {
	Channel string
	UID     uint32
	Role    Role
	TTL     time.Duration
}

func (r Request) withDefaults() Request {
	out := r
	if out.Role == 0 {
		out.Role = RoleBroadcaster
	}
	if out.TTL <= 0 {
		out.TTL = DefaultTTL
	}
	return out
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Channel) == "" {
		return ErrInvalidRequest
	}
	if r.Role != RoleBroadcaster && r.Role != RoleSubscriber {
		return ErrInvalidRequest
	}
	return nil
}

// Issuer mints opaque credentials admitting a holder to a media channel.
type Issuer interface {
	Issue(ctx context.Context, req Request) (string, error)
}
