package notify

import (
	"context"
	"errors"
	"log/slog"
)

// MessageType marks the data payload of a call invitation.
const MessageType = "call_initiation"

var ErrInvalidEndpoint = errors.New("notify: invalid endpoint")

// Invite is the payload pushed to a callee's device. The callee joins Channel
// using Credential; CallerID identifies who is calling.
type Invite struct {
	Channel    string
	Credential string
	CallerID   string
}

// Data renders the invite as the flat string map push providers carry.
func (i Invite) Data() map[string]string {
	return map[string]string{
		"type":         MessageType,
		"channel_name": i.Channel,
		"agora_token":  i.Credential,
		"caller_id":    i.CallerID,
	}
}

// Dispatcher delivers a call invitation to a push endpoint.
// Delivery is best-effort: an error means the provider rejected or never
// acknowledged the push, not that the callee did not receive it.
type Dispatcher interface {
	Dispatch(ctx context.Context, endpoint string, inv Invite) error
}

// LogDispatcher only logs invitations. Used for local development.
type LogDispatcher struct {
	Log *slog.Logger
}

func (d LogDispatcher) Dispatch(ctx context.Context, endpoint string, inv Invite) error {
	if endpoint == "" {
		return ErrInvalidEndpoint
	}
	l := d.Log
	if l == nil {
		l = slog.Default()
	}
	l.Info("call invite (log provider)", "channel", inv.Channel, "caller_id", inv.CallerID)
	return nil
}
