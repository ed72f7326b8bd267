package notify

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type fcmSender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// FCMDispatcher pushes invitations as Firebase Cloud Messaging data messages.
// The endpoint is the device registration token.
type FCMDispatcher struct {
	client fcmSender
}

// NewFCMDispatcher builds a messaging client from a service account file.
// An empty path falls back to application default credentials.
func NewFCMDispatcher(ctx context.Context, credentialsFile string) (*FCMDispatcher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("notify: firebase messaging: %w", err)
	}
	return &FCMDispatcher{client: client}, nil
}

func (d *FCMDispatcher) Dispatch(ctx context.Context, endpoint string, inv Invite) error {
	if endpoint == "" {
		return ErrInvalidEndpoint
	}
	_, err := d.client.Send(ctx, fcmMessage(endpoint, inv))
	if err != nil {
		return fmt.Errorf("notify: fcm send: %w", err)
	}
	return nil
}

// fcmMessage delivers immediately or not at all: a ringing invite is useless later.
func fcmMessage(endpoint string, inv Invite) *messaging.Message {
	ttl := time.Duration(0)
	return &messaging.Message{
		Token: endpoint,
		Data:  inv.Data(),
		Android: &messaging.AndroidConfig{
			Priority: "high",
			TTL:      &ttl,
		},
	}
}
